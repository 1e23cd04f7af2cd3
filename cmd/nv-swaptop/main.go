// nv-swaptop is a live terminal dashboard for swap usage, NUMA placement
// and NVIDIA GPU memory, merged per process.
//
// Two modes of operation:
//
// Interactive (default on a terminal): a bubbletea dashboard refreshed every
// --interval. The config file, if any, is watched and re-applied on change.
//
// Once (--once, or whenever stdout is not a terminal): one snapshot of
// --view is printed as plain tables and the program exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/srodi/nv-swaptop/pkg/clock"
	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/config"
	"github.com/srodi/nv-swaptop/pkg/provider"
	"github.com/srodi/nv-swaptop/pkg/types"
	"github.com/srodi/nv-swaptop/pkg/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	interval   time.Duration
	units      string
	sort       string
	aggregate  bool
	filter     string
	once       bool
	view       string
	logFile    string
	debug      bool
	version    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nv-swaptop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("nv-swaptop", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default $"+config.EnvVar+")")
	flagSet.DurationVarP(&opts.interval, "interval", "i", time.Second, "refresh interval, 100ms to 10s")
	flagSet.StringVarP(&opts.units, "units", "u", "KB", "display units: KB, MB or GB")
	flagSet.StringVarP(&opts.sort, "sort", "s", "swap", "unified sort column: swap, gpu_mem, numa or name")
	flagSet.BoolVarP(&opts.aggregate, "aggregate", "a", false, "group swap processes by name")
	flagSet.StringVarP(&opts.filter, "filter", "f", "", "only show processes whose name contains this substring")
	flagSet.BoolVar(&opts.once, "once", false, "print one snapshot and exit")
	flagSet.StringVar(&opts.view, "view", "swap", "initial view: swap, numa, gpu or unified")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write JSON logs to this file")
	flagSet.BoolVar(&opts.debug, "debug", false, "log at debug level")
	flagSet.BoolVarP(&opts.version, "version", "v", false, "print the version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.version {
		fmt.Printf("nv-swaptop %s\n", version)
		return nil
	}

	cfg, cfgPath, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(flagSet, &opts, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	view, err := types.ParseView(opts.view)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, opts.debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	p, err := provider.New(host.NewReal(), cfg, clock.Real(), logger)
	if err != nil {
		return fmt.Errorf("initializing data provider: %w", err)
	}
	defer p.Close()

	logger.Info("nv-swaptop starting",
		zap.String("version", version),
		zap.String("config", cfgPath),
		zap.Duration("interval", p.RefreshInterval()),
		zap.Stringer("view", view),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if opts.once || !stdoutTTY {
		return printOnce(p, view, stdoutTTY)
	}
	overlay := func(cfg *config.Config) { applyFlags(flagSet, &opts, cfg) }
	return runDashboard(ctx, p, view, cfgPath, overlay, logger)
}

// applyFlags overrides cfg with every flag given on the command line. It runs
// on startup and again on every config reload.
func applyFlags(flagSet *pflag.FlagSet, opts *options, cfg *config.Config) {
	if flagSet.Changed("interval") {
		cfg.RefreshInterval = opts.interval
	}
	if flagSet.Changed("units") {
		cfg.Units = opts.units
	}
	if flagSet.Changed("sort") {
		cfg.Sort = opts.sort
	}
	if flagSet.Changed("aggregate") {
		cfg.Aggregate = opts.aggregate
	}
	if flagSet.Changed("filter") {
		cfg.Filter = opts.filter
	}
	if flagSet.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}
}

// newLogger writes JSON to the configured file. The terminal belongs to the
// dashboard, so without a file nothing is logged.
func newLogger(cfg config.LogConfig, debug bool) (*zap.Logger, error) {
	if cfg.File == "" {
		return zap.NewNop(), nil
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = level
	loggerConfig.OutputPaths = []string{cfg.File}
	loggerConfig.ErrorOutputPaths = []string{cfg.File}
	return loggerConfig.Build()
}

func printOnce(p *provider.Provider, view types.View, banner bool) error {
	// Placement data is only sampled from the NUMA view; prime it so a
	// unified report has it.
	if view == types.ViewUnified {
		p.Snapshot(types.ViewNuma)
	}
	if banner {
		fmt.Print(ui.Banner())
	}
	return ui.WriteOnce(os.Stdout, p.Snapshot(view), p.RefreshInterval())
}

func runDashboard(ctx context.Context, p *provider.Provider, view types.View, cfgPath string, overlay func(*config.Config), logger *zap.Logger) error {
	program := tea.NewProgram(ui.NewModel(p, view), tea.WithAltScreen(), tea.WithContext(ctx))

	if cfgPath != "" {
		stopWatch, err := watchConfig(ctx, cfgPath, logger, overlay, func(msg ui.ConfigReloadMsg) { program.Send(msg) })
		if err != nil {
			logger.Warn("config hot reload disabled", zap.String("path", cfgPath), zap.Error(err))
		} else {
			defer stopWatch()
		}
	}

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
