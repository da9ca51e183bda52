package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/drivers/rtc"
	"github.com/wippyai/faultdomain/errors"
	"github.com/wippyai/faultdomain/manager"
)

// runDemo walks each shadow through a clean read, a recovered crash, a
// double crash and a restart of its target.
func runDemo(ctx context.Context, mgr *manager.Manager, w io.Writer) error {
	targets := shadowTargets(mgr)
	if len(targets) == 0 {
		return fmt.Errorf("manifest has no shadow in front of a ramdisk")
	}
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, shadow := range names {
		if err := demoShadow(ctx, mgr, w, shadow, targets[shadow]); err != nil {
			return err
		}
	}

	for _, st := range mgr.Status() {
		if st.Kind != domain.KindRtc {
			continue
		}
		t, err := readTime(ctx, mgr, st.Name)
		if err != nil {
			return fmt.Errorf("read %s: %w", st.Name, err)
		}
		fmt.Fprintf(w, "%s: %s (weekday %d, day %d of year)\n", st.Name, rtc.FormatTime(t), t.WDay, t.YDay+1)
	}

	fmt.Fprintln(w)
	printStatus(w, mgr)
	return nil
}

func demoShadow(ctx context.Context, mgr *manager.Manager, w io.Writer, shadow, target string) error {
	const sector = 1
	fmt.Fprintf(w, "== %s -> %s ==\n", shadow, target)

	if _, err := writeBlock(ctx, mgr, target, sector, 0xa5); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	b, err := readBlock(ctx, mgr, shadow, sector)
	if err != nil {
		return fmt.Errorf("read %s: %w", shadow, err)
	}
	fmt.Fprintf(w, "clean read:      %s\n", hexPrefix(b, 8))

	if err := injectCrashes(mgr, target, 1); err != nil {
		return err
	}
	b, err = readBlock(ctx, mgr, shadow, sector)
	if err != nil {
		return fmt.Errorf("recovered read %s: %w", shadow, err)
	}
	fmt.Fprintf(w, "recovered read:  %s (target crashed once)\n", hexPrefix(b, 8))

	if err := injectCrashes(mgr, target, 2); err != nil {
		return err
	}
	_, err = readBlock(ctx, mgr, shadow, sector)
	switch {
	case errors.IsCrash(err):
		fmt.Fprintf(w, "double crash:    %v\n", err)
	case err != nil:
		return fmt.Errorf("double crash read %s: %w", shadow, err)
	default:
		return fmt.Errorf("%s: read succeeded despite two faults", shadow)
	}

	if err := mgr.Restart(ctx, target); err != nil {
		return fmt.Errorf("restart %s: %w", target, err)
	}
	b, err = readBlock(ctx, mgr, shadow, sector)
	if err != nil {
		return fmt.Errorf("read after restart %s: %w", shadow, err)
	}
	fmt.Fprintf(w, "after restart:   %s (fresh ramdisk)\n\n", hexPrefix(b, 8))
	return nil
}
