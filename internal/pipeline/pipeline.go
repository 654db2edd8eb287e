// Package pipeline runs a configured list of indicator steps over a series,
// grouping them into dependency stages and trimming warm-up rows.
package pipeline

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
)

// Recorder receives per-step and per-run measurements.
type Recorder interface {
	ObserveStep(step string, duration float64)
	RecordPipelineRun(err error, dropped int)
}

// Result is the outcome of a pipeline run.
type Result struct {
	Series  *series.Series
	Columns []string
	Dropped int
}

// Pipeline computes indicator columns in declared order.
type Pipeline struct {
	steps    []Step
	parallel bool
	trim     bool
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithParallel computes independent steps of a stage concurrently.
func WithParallel(parallel bool) Option {
	return func(p *Pipeline) { p.parallel = parallel }
}

// WithTrim controls whether rows with undefined outputs are dropped.
func WithTrim(trim bool) Option {
	return func(p *Pipeline) { p.trim = trim }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// New creates a pipeline over steps.
func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  steps,
		trim:   true,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Steps returns the configured steps.
func (p *Pipeline) Steps() []Step {
	return slices.Clone(p.steps)
}

// Outputs lists every column the pipeline writes, in step order.
func (p *Pipeline) Outputs() []string {
	var out []string
	for _, st := range p.steps {
		out = append(out, st.Outputs()...)
	}
	return out
}

// Run computes every step over a copy of s. The input series is left
// untouched. With trimming enabled, the returned series holds only rows
// where every output column is defined.
func (p *Pipeline) Run(ctx context.Context, s *series.Series) (*Result, error) {
	res, err := p.run(ctx, s)
	if p.recorder != nil {
		dropped := 0
		if res != nil {
			dropped = res.Dropped
		}
		p.recorder.RecordPipelineRun(err, dropped)
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, s *series.Series) (*Result, error) {
	if s.Len() == 0 {
		return nil, core.ErrEmptySeries
	}

	stages, err := p.plan(s.Columns())
	if err != nil {
		return nil, err
	}

	work := s.Clone()
	for i, stage := range stages {
		p.logger.Debug("computing stage",
			zap.Int("stage", i),
			zap.Strings("steps", stepNames(stage)),
		)
		outputs, err := p.computeStage(ctx, work, stage)
		if err != nil {
			return nil, err
		}
		for j, st := range stage {
			for _, name := range st.Outputs() {
				col, ok := outputs[j][name]
				if !ok {
					return nil, core.Errorf(core.ErrInvalidParameter, "step %s did not produce column %s", st.Name(), name)
				}
				if err := work.SetColumn(name, col); err != nil {
					return nil, err
				}
			}
		}
	}

	columns := p.Outputs()
	res := &Result{Series: work, Columns: columns}
	if p.trim && len(columns) > 0 {
		trimmed, err := work.Trim(columns...)
		if err != nil {
			return nil, err
		}
		res.Dropped = work.Len() - trimmed.Len()
		res.Series = trimmed
		if trimmed.Len() == 0 {
			p.logger.Warn("no rows left after trimming warm-up",
				zap.Int("rows", work.Len()),
				zap.Strings("columns", columns),
			)
		}
	}

	p.logger.Info("pipeline complete",
		zap.Int("steps", len(p.steps)),
		zap.Int("stages", len(stages)),
		zap.Int("rows", res.Series.Len()),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

// plan groups steps into stages; every step's inputs are available from the
// base columns or an earlier stage. Within a stage, declared order is kept.
func (p *Pipeline) plan(base []string) ([][]Step, error) {
	available := make(map[string]bool, len(base))
	for _, c := range base {
		available[c] = true
	}

	seen := make(map[string]string)
	for _, st := range p.steps {
		for _, out := range st.Outputs() {
			if prev, ok := seen[out]; ok {
				return nil, core.Errorf(core.ErrInvalidParameter, "column %s written by both %s and %s", out, prev, st.Name())
			}
			if available[out] {
				return nil, core.Errorf(core.ErrInvalidParameter, "step %s overwrites base column %s", st.Name(), out)
			}
			seen[out] = st.Name()
		}
	}

	remaining := slices.Clone(p.steps)
	var stages [][]Step
	for len(remaining) > 0 {
		var stage, next []Step
		for _, st := range remaining {
			if ready(st, available) {
				stage = append(stage, st)
			} else {
				next = append(next, st)
			}
		}
		if len(stage) == 0 {
			st := next[0]
			return nil, core.Errorf(core.ErrDependencyMissing, "step %s requires %v", st.Name(), missing(st, available))
		}
		for _, st := range stage {
			for _, out := range st.Outputs() {
				available[out] = true
			}
		}
		stages = append(stages, stage)
		remaining = next
	}
	return stages, nil
}

func (p *Pipeline) computeStage(ctx context.Context, s *series.Series, stage []Step) ([]map[string][]float64, error) {
	outputs := make([]map[string][]float64, len(stage))
	compute := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		out, err := stage[i].Compute(s)
		if err != nil {
			return err
		}
		if p.recorder != nil {
			p.recorder.ObserveStep(stage[i].Name(), time.Since(start).Seconds())
		}
		outputs[i] = out
		return nil
	}

	if !p.parallel || len(stage) == 1 {
		for i := range stage {
			if err := compute(ctx, i); err != nil {
				return nil, err
			}
		}
		return outputs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range stage {
		g.Go(func() error { return compute(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func ready(st Step, available map[string]bool) bool {
	return len(missing(st, available)) == 0
}

func missing(st Step, available map[string]bool) []string {
	var out []string
	for _, r := range st.Requires() {
		if !available[r] {
			out = append(out, r)
		}
	}
	return out
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = st.Name()
	}
	return names
}
