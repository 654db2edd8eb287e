// Package app wires collectors, the indicator pipeline, the predictor, the
// signal generator and the simulator into one run per symbol.
package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/newthinker/quantlab/internal/backtest"
	"github.com/newthinker/quantlab/internal/collector"
	"github.com/newthinker/quantlab/internal/config"
	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/metrics"
	"github.com/newthinker/quantlab/internal/pipeline"
	"github.com/newthinker/quantlab/internal/predictor"
	"github.com/newthinker/quantlab/internal/report"
	"github.com/newthinker/quantlab/internal/series"
	"github.com/newthinker/quantlab/internal/signal"
	"github.com/newthinker/quantlab/internal/storage/archive"
	"go.uber.org/zap"
)

// Columns the runner adds to the feature series.
const (
	PredictionColumn = "prediction"
	SignalColumn     = "signal"
)

// Runner is the main application orchestrator
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	collectors *collector.Registry
	predictor  predictor.Predictor
	storage    archive.Storage
	metrics    *metrics.Registry
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithPredictor replaces the model built from the model section.
func WithPredictor(p predictor.Predictor) Option {
	return func(r *Runner) { r.predictor = p }
}

// WithStorage sets where reports and feature tables are written. Without
// storage nothing is persisted.
func WithStorage(st archive.Storage) Option {
	return func(r *Runner) { r.storage = st }
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a new Runner instance
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:        cfg,
		logger:     logger,
		collectors: collector.NewRegistry(),
		predictor:  newPredictor(cfg.Model),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newPredictor(m config.ModelConfig) predictor.Predictor {
	if m.Type == "crossover" {
		return &predictor.Crossover{Fast: m.Fast, Slow: m.Slow}
	}
	return &predictor.Linear{Intercept: m.Intercept, Weights: m.Weights}
}

// RegisterCollector adds a collector to the runner
func (r *Runner) RegisterCollector(c collector.Collector) {
	r.collectors.Register(c)
}

// Features is a preprocessed series with indicator columns attached.
type Features struct {
	Symbol  string
	Series  *series.Series
	Columns []string // indicator columns in pipeline order
	Dropped int      // warm-up rows trimmed by the pipeline
}

// Outcome is everything one backtest run produced.
type Outcome struct {
	Symbol       string
	Features     *Features
	Result       *backtest.Result
	Returns      *backtest.ReturnsTable
	Model        *predictor.Metrics
	Report       *report.Report
	ReportPath   string
	FeaturesPath string
}

// Fetch loads bars for symbol from the configured source.
func (r *Runner) Fetch(ctx context.Context, symbol string) ([]core.Bar, error) {
	c, err := r.collectors.MustGet(r.cfg.Data.Source)
	if err != nil {
		return nil, err
	}
	start, err := r.cfg.Data.StartTime()
	if err != nil {
		return nil, err
	}
	end, err := r.cfg.Data.EndTime()
	if err != nil {
		return nil, err
	}

	began := time.Now()
	bars, err := c.FetchHistory(ctx, symbol, start.TakeOr(time.Time{}), end.TakeOr(time.Time{}), r.cfg.Data.Interval)
	if r.metrics != nil {
		r.metrics.RecordFetch(c.Name(), len(bars), err, time.Since(began).Seconds())
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("fetched bars",
		zap.String("symbol", symbol),
		zap.String("source", c.Name()),
		zap.Int("bars", len(bars)),
	)
	return bars, nil
}

// Features fetches bars and runs the indicator pipeline over them. The
// daily return column is added before the pipeline so it survives trimming.
func (r *Runner) Features(ctx context.Context, symbol string) (*Features, error) {
	bars, err := r.Fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.FeaturesFromBars(ctx, symbol, bars)
}

// FeaturesFromBars is Features over bars already in hand.
func (r *Runner) FeaturesFromBars(ctx context.Context, symbol string, bars []core.Bar) (*Features, error) {
	clean := series.Preprocess(bars)
	if dropped := len(bars) - len(clean); dropped > 0 {
		r.logger.Warn("preprocess dropped bars",
			zap.String("symbol", symbol),
			zap.Int("dropped", dropped),
		)
	}
	s, err := series.New(clean)
	if err != nil {
		return nil, err
	}
	if err := series.AddDailyReturn(s, r.cfg.Pipeline.PriceColumn); err != nil {
		return nil, err
	}

	steps, err := pipeline.Build(r.cfg.Pipeline.PriceColumn, r.cfg.Pipeline.Indicators)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithParallel(r.cfg.Pipeline.Parallel),
		pipeline.WithLogger(r.logger),
	}
	if r.metrics != nil {
		opts = append(opts, pipeline.WithRecorder(r.metrics))
	}
	res, err := pipeline.New(steps, opts...).Run(ctx, s)
	if err != nil {
		return nil, err
	}

	return &Features{
		Symbol:  symbol,
		Series:  res.Series,
		Columns: res.Columns,
		Dropped: res.Dropped,
	}, nil
}

// SaveFeatures writes the feature table to storage under id.
func (r *Runner) SaveFeatures(ctx context.Context, f *Features, id string) (string, error) {
	if r.storage == nil {
		return "", core.Errorf(core.ErrConfigMissing, "no storage configured")
	}
	return report.SaveFeatures(ctx, r.storage, f.Symbol, id, f.Series, featureColumns(f))
}

// WriteFeatures writes the feature table as CSV to w.
func (r *Runner) WriteFeatures(w io.Writer, f *Features) error {
	return report.WriteFeaturesCSV(w, f.Series, featureColumns(f))
}

// featureColumns lists close, daily return and the indicator columns, plus
// prediction, signal and return columns once a backtest has added them.
func featureColumns(f *Features) []string {
	cols := append([]string{series.Close, series.DailyReturn}, f.Columns...)
	for _, c := range []string{PredictionColumn, SignalColumn, backtest.StrategyReturnColumn, backtest.CumulativeReturnColumn} {
		if f.Series.Has(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Backtest runs the whole chain for one symbol: features, predictions,
// signals, the discrete simulation and the continuous return table.
func (r *Runner) Backtest(ctx context.Context, symbol string) (*Outcome, error) {
	f, err := r.Features(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return r.BacktestFeatures(ctx, f)
}

// BacktestFeatures is Backtest over an already computed feature series.
func (r *Runner) BacktestFeatures(ctx context.Context, f *Features) (*Outcome, error) {
	began := time.Now()
	out, err := r.backtest(ctx, f)
	if r.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordBacktest(status, time.Since(began).Seconds())
	}
	return out, err
}

func (r *Runner) backtest(ctx context.Context, f *Features) (*Outcome, error) {
	s := f.Series

	matrix, err := s.Matrix(f.Columns)
	if err != nil {
		return nil, err
	}
	raw, err := r.predictor.Predict(matrix, f.Columns)
	if err != nil {
		return nil, core.WrapError(core.ErrPredictorFailed, err)
	}
	preds := predictor.Lag(raw, r.cfg.Model.Lag)
	if err := s.SetColumn(PredictionColumn, preds); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	actual, err := s.Column(series.DailyReturn)
	if err != nil {
		return nil, err
	}
	var model *predictor.Metrics
	if m, err := predictor.Evaluate(actual, preds); err == nil {
		model = &m
	} else if !errors.Is(err, core.ErrEmptySeries) {
		return nil, err
	}

	signals, err := signal.Generate(preds, r.cfg.Signal.Threshold)
	if err != nil {
		return nil, err
	}
	if err := signal.ToColumn(s, SignalColumn, signals); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		for _, sig := range signals {
			if sig != core.SignalFlat {
				r.metrics.RecordSignal(sig.String())
			}
		}
	}

	flip, err := backtest.ParseFlipPolicy(r.cfg.Backtest.FlipPolicy)
	if err != nil {
		return nil, err
	}
	sim := &backtest.Simulator{
		PriceColumn:    r.cfg.Backtest.PriceColumn,
		SignalColumn:   SignalColumn,
		Flip:           flip,
		PeriodsPerYear: r.cfg.Backtest.PeriodsPerYear,
	}
	result, err := sim.Run(ctx, s)
	if err != nil {
		return nil, err
	}
	table, err := backtest.Returns(s, PredictionColumn, series.DailyReturn)
	if err != nil {
		return nil, err
	}

	rep, err := report.Build(report.Input{
		Symbol:   f.Symbol,
		Features: f.Columns,
		Settings: report.Settings{
			Threshold: r.cfg.Signal.Threshold,
			Flip:      flip.String(),
			Lag:       r.cfg.Model.Lag,
		},
		Result:     result,
		Continuous: table,
		Model:      model,
		Now:        r.now(),
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Symbol:   f.Symbol,
		Features: f,
		Result:   result,
		Returns:  table,
		Model:    model,
		Report:   rep,
	}

	if r.metrics != nil {
		for _, t := range result.Trades {
			r.metrics.RecordTrade(string(t.Side), t.Return)
		}
		r.metrics.SetTotalReturn(f.Symbol, result.Stats.TotalReturn)
	}

	if r.storage != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out.ReportPath, err = report.Save(ctx, r.storage, rep); err != nil {
			return nil, err
		}
		if out.FeaturesPath, err = r.SaveFeatures(ctx, f, rep.ID); err != nil {
			return nil, err
		}
	}

	r.logger.Info("backtest complete",
		zap.String("symbol", f.Symbol),
		zap.String("id", rep.ID),
		zap.Int("bars", s.Len()),
		zap.Int("trades", result.Stats.TotalTrades),
		zap.Float64("total_return", result.Stats.TotalReturn),
		zap.Float64("sharpe", result.Stats.SharpeRatio),
		zap.Float64("continuous_return", table.Final()),
	)
	return out, nil
}
