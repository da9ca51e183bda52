package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/faultdomain/config"
	"github.com/wippyai/faultdomain/domain"
	"github.com/wippyai/faultdomain/drivers/ramblk"
	"github.com/wippyai/faultdomain/drivers/rtc"
	"github.com/wippyai/faultdomain/drivers/shadowblk"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/manager"
	"github.com/wippyai/faultdomain/metrics"
	"github.com/wippyai/faultdomain/unwind"
)

type options struct {
	configFile  string
	stress      int
	rounds      int
	demo        bool
	metrics     bool
	interactive bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "Path to domain manifest (TOML); built-in manifest if empty")
	flag.BoolVar(&opts.demo, "demo", false, "Run the crash recovery walkthrough")
	flag.IntVar(&opts.stress, "stress", 0, "Concurrent readers per shadow domain, with injected faults")
	flag.IntVar(&opts.rounds, "rounds", 200, "Reads per stress worker")
	flag.BoolVar(&opts.metrics, "metrics", false, "Print metrics on exit")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx := context.Background()

	if opts.interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}

	manifest, err := loadManifest(opts.configFile)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if !opts.interactive {
		logger, err = buildLogger(manifest.Log)
		if err != nil {
			return err
		}
	}
	defer func() { _ = logger.Sync() }()
	installLogger(logger)

	reg := prometheus.NewRegistry()
	mgr := manager.New(domain.NewRegistry(), heap.New(), metrics.New(reg))
	defer func() {
		if err := mgr.Close(ctx); err != nil {
			logger.Warn("close domains", zap.Error(err))
		}
	}()

	if err := mgr.Load(ctx, manifest); err != nil {
		return fmt.Errorf("load domains: %w", err)
	}

	switch {
	case opts.interactive:
		err = runInteractive(mgr)
	case opts.demo:
		err = runDemo(ctx, mgr, os.Stdout)
	case opts.stress > 0:
		err = runStress(ctx, mgr, os.Stdout, opts.stress, opts.rounds)
	default:
		printStatus(os.Stdout, mgr)
	}
	if err != nil {
		return err
	}

	if opts.metrics {
		return writeMetrics(os.Stdout, reg)
	}
	return nil
}

func loadManifest(path string) (config.Manifest, error) {
	manifest := config.Default()
	if path != "" {
		var err error
		if manifest, err = config.Load(path); err != nil {
			return config.Manifest{}, err
		}
	}
	if err := config.ApplyEnv(&manifest); err != nil {
		return config.Manifest{}, err
	}
	return manifest, manifest.Validate()
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg, err := cfg.ZapConfig()
	if err != nil {
		return nil, err
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func installLogger(l *zap.Logger) {
	unwind.SetLogger(l.Named("unwind"))
	ramblk.SetLogger(l.Named("ramblk"))
	rtc.SetLogger(l.Named("rtc"))
	shadowblk.SetLogger(l.Named("shadowblk"))
	manager.SetLogger(l.Named("manager"))
}

func printStatus(w io.Writer, mgr *manager.Manager) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tID\tTARGET\tINSTANCE\tSTARTED\tRESTARTS")
	for _, st := range mgr.Status() {
		target := st.Target
		if target == "" {
			target = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%d\n",
			st.Name, st.Kind, st.ID, target, st.Instance, st.Started.Format(time.RFC3339), st.Restarts)
	}
	_ = tw.Flush()
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
