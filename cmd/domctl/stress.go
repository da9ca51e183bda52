package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/manager"
)

// faultEvery is the mean number of reads between injected faults.
const faultEvery = 10

type stressResult struct {
	reads   atomic.Int64
	crashes atomic.Int64
	faults  atomic.Int64
}

// runStress runs workers concurrent readers against every shadow that fronts
// a ramdisk, injecting faults into the ramdisks as it goes. Reads that fail
// with a crash (two faults in a row) are counted, any other error stops the run.
func runStress(ctx context.Context, mgr *manager.Manager, w io.Writer, workers, rounds int) error {
	targets := shadowTargets(mgr)
	if len(targets) == 0 {
		return fmt.Errorf("manifest has no shadow in front of a ramdisk")
	}

	var res stressResult
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for shadow, target := range targets {
		capacity, err := capacityOf(ctx, mgr, shadow)
		if err != nil {
			return err
		}
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				return stressWorker(ctx, mgr, &res, shadow, target, capacity, rounds)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d reads in %s: %d faults injected, %d unrecovered crashes\n",
		res.reads.Load(), time.Since(start).Round(time.Millisecond), res.faults.Load(), res.crashes.Load())
	return nil
}

func stressWorker(ctx context.Context, mgr *manager.Manager, res *stressResult, shadow, target string, capacity uint64, rounds int) error {
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rand.IntN(faultEvery) == 0 {
			if err := injectCrashes(mgr, target, 1); err != nil {
				return err
			}
			res.faults.Add(1)
		}
		sector := uint32(rand.Uint64N(capacity))
		_, err := readBlock(ctx, mgr, shadow, sector)
		res.reads.Add(1)
		if errors.IsCrash(err) {
			res.crashes.Add(1)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s sector %d: %w", shadow, sector, err)
		}
	}
	return nil
}

func capacityOf(ctx context.Context, mgr *manager.Manager, name string) (uint64, error) {
	blk, err := mgr.Registry().ResolveBlk(name)
	if err != nil {
		return 0, err
	}
	c, err := blk.Capacity(ctx)
	if err != nil {
		return 0, fmt.Errorf("capacity of %s: %w", name, err)
	}
	if c == 0 {
		return 0, fmt.Errorf("%s has no sectors", name)
	}
	return c, nil
}
