package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCumulative(t *testing.T) {
	got := Cumulative([]float64{0.1, -0.1, math.NaN(), 0.2})

	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, 1.1*0.9-1, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
	assert.InDelta(t, 1.1*0.9*1.2-1, got[3], 1e-12)
}

func TestCumulative_RoundTrip(t *testing.T) {
	r := make([]float64, 500)
	for i := range r {
		r[i] = 0.01 * math.Sin(float64(i))
	}

	cum := Cumulative(r)
	for i := 1; i < len(r); i++ {
		back := (1+cum[i])/(1+cum[i-1]) - 1
		assert.InDelta(t, r[i], back, 1e-9, "row %d", i)
	}
}

func TestStrategyReturns(t *testing.T) {
	got := StrategyReturns([]float64{1, -1, 0.5, math.NaN()}, []float64{0.02, 0.02, -0.04, 0.01})

	assert.InDelta(t, 0.02, got[0], 1e-12)
	assert.InDelta(t, -0.02, got[1], 1e-12)
	assert.InDelta(t, -0.02, got[2], 1e-12)
	assert.True(t, math.IsNaN(got[3]))
}

func TestReturns(t *testing.T) {
	s := makeSeries(t, []float64{100, 101, 102})
	require.NoError(t, s.SetColumn("prediction", []float64{1, 1, -1}))
	require.NoError(t, series.AddDailyReturn(s, series.Close))

	table, err := Returns(s, "prediction", series.DailyReturn)
	require.NoError(t, err)

	r1 := 101.0/100 - 1
	r2 := -(102.0/101 - 1)
	assert.InDelta(t, 0, table.Strategy[0], 1e-12)
	assert.InDelta(t, r1, table.Strategy[1], 1e-12)
	assert.InDelta(t, r2, table.Strategy[2], 1e-12)
	assert.InDelta(t, (1+r1)*(1+r2)-1, table.Final(), 1e-12)
	assert.True(t, s.Has(StrategyReturnColumn))
	assert.True(t, s.Has(CumulativeReturnColumn))
	assert.Len(t, table.Times, 3)
}

func TestReturns_Errors(t *testing.T) {
	empty, err := series.New(nil)
	require.NoError(t, err)
	_, err = Returns(empty, "prediction", series.DailyReturn)
	assert.ErrorIs(t, err, core.ErrEmptySeries)

	s := makeSeries(t, []float64{100, 101})
	_, err = Returns(s, "prediction", series.Close)
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestReturnsTable_FinalAllUndefined(t *testing.T) {
	table := &ReturnsTable{Cumulative: []float64{math.NaN()}}
	assert.Equal(t, 0.0, table.Final())
}

func makeSeries(t *testing.T, closes []float64) *series.Series {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Time:     base.AddDate(0, 0, i),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			AdjClose: c,
			Volume:   1000,
		}
	}
	s, err := series.New(bars)
	require.NoError(t, err)
	return s
}
