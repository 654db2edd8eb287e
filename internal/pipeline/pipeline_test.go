package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(t *testing.T, n int) *series.Series {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, n)
	for i := range bars {
		c := 100 + 0.3*float64(i) + 5*math.Sin(float64(i)/4)
		bars[i] = core.Bar{
			Time:     base.AddDate(0, 0, i),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			AdjClose: c,
			Volume:   1000 + float64(i%7)*100,
		}
	}
	s, err := series.New(bars)
	require.NoError(t, err)
	return s
}

type fakeRecorder struct {
	mu      sync.Mutex
	steps   []string
	runs    int
	dropped int
	lastErr error
}

func (f *fakeRecorder) ObserveStep(step string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
}

func (f *fakeRecorder) RecordPipelineRun(err error, dropped int) {
	f.runs++
	f.dropped = dropped
	f.lastErr = err
}

func TestPipeline_DefaultSteps(t *testing.T) {
	s := makeSeries(t, 60)
	p := New(DefaultSteps())

	res, err := p.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"sma_10", "rsi_14", "macd", "macd_signal", "macd_hist"}, res.Columns)
	// RSI has the longest warm-up: 13 rows.
	assert.Equal(t, 13, res.Dropped)
	assert.Equal(t, 47, res.Series.Len())
	assert.Equal(t, s.Time(13), res.Series.Time(0))

	for _, name := range res.Columns {
		col, err := res.Series.Column(name)
		require.NoError(t, err)
		for i, v := range col {
			assert.Falsef(t, math.IsNaN(v), "%s row %d is NaN", name, i)
		}
	}
}

func TestPipeline_LeavesInputUntouched(t *testing.T) {
	s := makeSeries(t, 40)
	before := s.Columns()

	_, err := New(DefaultSteps()).Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, before, s.Columns())
	assert.False(t, s.Has("sma_10"))
	assert.Equal(t, 40, s.Len())
}

func TestPipeline_NoTrim(t *testing.T) {
	s := makeSeries(t, 40)

	res, err := New(DefaultSteps(), WithTrim(false)).Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 40, res.Series.Len())
	assert.Equal(t, 0, res.Dropped)
	sma, err := res.Series.Column("sma_10")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sma[8]))
	assert.False(t, math.IsNaN(sma[9]))
}

func TestPipeline_ParallelMatchesSequential(t *testing.T) {
	s := makeSeries(t, 120)
	steps, err := Build(series.Close, allSpecs())
	require.NoError(t, err)

	seq, err := New(steps).Run(context.Background(), s)
	require.NoError(t, err)
	par, err := New(steps, WithParallel(true)).Run(context.Background(), s)
	require.NoError(t, err)

	require.Equal(t, seq.Columns, par.Columns)
	require.Equal(t, seq.Series.Len(), par.Series.Len())
	for _, name := range seq.Columns {
		want, err := seq.Series.Column(name)
		require.NoError(t, err)
		got, err := par.Series.Column(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestPipeline_AllIndicators(t *testing.T) {
	s := makeSeries(t, 120)
	steps, err := Build(series.Close, allSpecs())
	require.NoError(t, err)

	res, err := New(steps, WithParallel(true)).Run(context.Background(), s)
	require.NoError(t, err)

	for _, name := range []string{
		"sma_10", "ema_20", "rsi_14", "macd", "macd_signal", "macd_hist",
		"bb_upper_20", "bb_lower_20", "stoch_14", "atr_14", "adx_14", "cci_20",
		"roc_10", "mfi_14", "obv", "vwap", "tsi", "uo",
		"atr_10", "keltner_upper_20", "keltner_lower_20",
		"donchian_high_20", "donchian_low_20",
	} {
		assert.True(t, res.Series.Has(name), name)
	}
	// Ultimate oscillator's long window dominates warm-up.
	assert.Equal(t, 28, res.Dropped)
	assert.Equal(t, 92, res.Series.Len())
}

func TestPipeline_DependencyStages(t *testing.T) {
	steps, err := Build(series.Close, []Spec{{Name: "keltner"}, {Name: "sma"}})
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "atr_10", steps[0].Name())

	stages, err := New(steps).plan(makeSeries(t, 40).Columns())
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, []string{"atr_10", "sma_10"}, stepNames(stages[0]))
	assert.Equal(t, []string{"keltner_20"}, stepNames(stages[1]))
}

func TestPipeline_ReusesExistingATR(t *testing.T) {
	atr10 := Spec{Name: "atr", Params: map[string]float64{"window": 10}}
	tests := []struct {
		name  string
		specs []Spec
		want  []string
	}{
		{"atr before keltner", []Spec{atr10, {Name: "keltner"}}, []string{"atr_10", "keltner_20"}},
		{"atr after keltner", []Spec{{Name: "keltner"}, atr10}, []string{"atr_10", "keltner_20"}},
		{"other atr window", []Spec{{Name: "keltner"}, {Name: "atr"}}, []string{"atr_10", "keltner_20", "atr_14"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := Build(series.Close, tt.specs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stepNames(steps))

			res, err := New(steps).Run(context.Background(), makeSeries(t, 60))
			require.NoError(t, err)
			assert.True(t, res.Series.Has("atr_10"))
			assert.True(t, res.Series.Has("keltner_upper_20"))
			assert.True(t, res.Series.Has("keltner_lower_20"))
		})
	}
}

func TestPipeline_MissingDependency(t *testing.T) {
	s := makeSeries(t, 40)
	p := New([]Step{NewKeltner(series.Close, 20, 10, 2)})

	_, err := p.Run(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDependencyMissing)
}

func TestPipeline_DuplicateOutput(t *testing.T) {
	s := makeSeries(t, 40)
	p := New([]Step{NewSMA(series.Close, 5), NewSMA(series.Close, 5)})

	_, err := p.Run(context.Background(), s)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestPipeline_EmptySeries(t *testing.T) {
	s, err := series.New(nil)
	require.NoError(t, err)

	_, err = New(DefaultSteps()).Run(context.Background(), s)
	assert.ErrorIs(t, err, core.ErrEmptySeries)
}

func TestPipeline_InsufficientHistory(t *testing.T) {
	s := makeSeries(t, 5)
	rec := &fakeRecorder{}

	_, err := New(DefaultSteps(), WithRecorder(rec), WithParallel(true)).Run(context.Background(), s)
	assert.ErrorIs(t, err, core.ErrInsufficientHistory)
	assert.Equal(t, 1, rec.runs)
	assert.Error(t, rec.lastErr)
}

func TestPipeline_Cancelled(t *testing.T) {
	s := makeSeries(t, 40)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultSteps()).Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Recorder(t *testing.T) {
	s := makeSeries(t, 60)
	rec := &fakeRecorder{}

	_, err := New(DefaultSteps(), WithRecorder(rec)).Run(context.Background(), s)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"sma_10", "rsi_14", "macd"}, rec.steps)
	assert.Equal(t, 1, rec.runs)
	assert.Equal(t, 13, rec.dropped)
	assert.NoError(t, rec.lastErr)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown", Spec{Name: "ichimoku"}},
		{"fractional window", Spec{Name: "sma", Params: map[string]float64{"window": 2.5}}},
		{"zero window", Spec{Name: "rsi", Params: map[string]float64{"window": 0}}},
		{"negative multiplier", Spec{Name: "bollinger", Params: map[string]float64{"k": -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(series.Close, []Spec{tt.spec})
			assert.ErrorIs(t, err, core.ErrInvalidParameter)
		})
	}
}

func TestBuild_NameIsCaseInsensitive(t *testing.T) {
	steps, err := Build("", []Spec{{Name: " RSI "}})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{series.Close}, steps[0].Requires())
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 17)
	assert.Contains(t, names, "keltner")
	assert.IsNonDecreasing(t, names)
}

func allSpecs() []Spec {
	specs := make([]Spec, 0, len(builders))
	for _, name := range Names() {
		specs = append(specs, Spec{Name: name})
	}
	return specs
}
