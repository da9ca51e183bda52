package main

import (
	"context"
	"fmt"

	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/manager"
)

func readBlock(ctx context.Context, mgr *manager.Manager, name string, sector uint32) (heap.Block, error) {
	blk, err := mgr.Registry().ResolveBlk(name)
	if err != nil {
		return heap.Block{}, err
	}
	out, err := blk.ReadBlock(ctx, sector, heap.Fresh[heap.Block](mgr.Heap()))
	if err != nil {
		return heap.Block{}, err
	}
	data := *out.Data()
	_ = out.Drop()
	return data, nil
}

func writeBlock(ctx context.Context, mgr *manager.Manager, name string, sector uint32, fill byte) (int, error) {
	blk, err := mgr.Registry().ResolveBlk(name)
	if err != nil {
		return 0, err
	}
	var b heap.Block
	for i := range b {
		b[i] = fill
	}
	src := heap.NewRRef(mgr.Heap(), b)
	defer func() { _ = src.Drop() }()

	ref := src.Borrow()
	defer ref.Release()
	return blk.WriteBlock(ctx, sector, ref)
}

func readTime(ctx context.Context, mgr *manager.Manager, name string) (heap.RtcTime, error) {
	r, err := mgr.Registry().ResolveRtc(name)
	if err != nil {
		return heap.RtcTime{}, err
	}
	out, err := r.ReadTime(ctx, heap.NewBox(mgr.Heap(), heap.RtcTime{}))
	if err != nil {
		return heap.RtcTime{}, err
	}
	t := *out.Get()
	_ = out.Drop()
	return t, nil
}

func injectCrashes(mgr *manager.Manager, name string, n int) error {
	disk, ok := mgr.Disk(name)
	if !ok {
		return fmt.Errorf("%s is not a ramdisk", name)
	}
	disk.InjectCrashes(n)
	return nil
}

// shadowTargets returns shadow domains whose target is backed by a ramdisk.
func shadowTargets(mgr *manager.Manager) map[string]string {
	out := make(map[string]string)
	for _, st := range mgr.Status() {
		if st.Kind != domain.KindShadowBlk {
			continue
		}
		if _, ok := mgr.Disk(st.Target); ok {
			out[st.Name] = st.Target
		}
	}
	return out
}

func hexPrefix(b heap.Block, n int) string {
	return fmt.Sprintf("% x", b[:n])
}
