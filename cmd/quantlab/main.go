package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/quantlab/internal/app"
	"github.com/newthinker/quantlab/internal/collector"
	"github.com/newthinker/quantlab/internal/collector/file"
	"github.com/newthinker/quantlab/internal/collector/yahoo"
	"github.com/newthinker/quantlab/internal/config"
	"github.com/newthinker/quantlab/internal/logger"
	"github.com/newthinker/quantlab/internal/metrics"
	"github.com/newthinker/quantlab/internal/storage/archive"
	"github.com/newthinker/quantlab/internal/storage/bars"
)

var (
	cfgFile string
	debug   bool
	symbols []string
)

var rootCmd = &cobra.Command{
	Use:   "quantlab",
	Short: "quantlab - technical indicator research and backtesting",
	Long: `quantlab computes technical indicators over price history, turns model
predictions into long/short/flat signals and simulates the resulting trades.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringSliceVarP(&symbols, "symbol", "s", nil, "symbols to process (overrides data.symbols)")
}

func main() {
	// Interrupts cancel the running command between bars and stages.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand runs with.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *bars.Store
	storage archive.Storage
	metrics *metrics.Registry
	runner  *app.Runner
}

func setup() (*env, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}
	if len(symbols) > 0 {
		cfg.Data.Symbols = symbols
	}

	logOpts := logger.Options{Development: debug || cfg.Log.Development, Level: cfg.Log.Level}
	if debug {
		logOpts.Level = "debug"
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return nil, err
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	store, err := bars.Open("", log)
	if err != nil {
		return nil, fmt.Errorf("opening bar store: %w", err)
	}
	storage, err := archive.New(cfg.Storage.Archive())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	e := &env{cfg: cfg, log: log, store: store, storage: storage}
	opts := []app.Option{app.WithStorage(storage)}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.NewRegistry()
		opts = append(opts, app.WithMetrics(e.metrics))
	}
	e.runner = app.New(cfg, log, opts...)

	y := yahoo.New()
	if err := y.Init(collector.Config{BaseURL: cfg.Data.BaseURL}); err != nil {
		e.close()
		return nil, err
	}
	e.runner.RegisterCollector(y)

	f := file.New(store)
	if err := f.Init(collector.Config{Extra: map[string]any{"dir": cfg.Data.Path}}); err != nil {
		e.close()
		return nil, err
	}
	e.runner.RegisterCollector(f)

	return e, nil
}

// close flushes metrics and releases the bar store.
func (e *env) close() {
	if e.metrics != nil && e.cfg.Metrics.Textfile != "" {
		if err := e.metrics.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
			e.log.Error("writing metrics textfile", zap.Error(err))
		}
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("closing bar store", zap.Error(err))
	}
	_ = e.log.Sync()
}
