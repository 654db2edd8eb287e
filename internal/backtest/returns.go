package backtest

import (
	"math"
	"time"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
)

// Column names written by Returns.
const (
	StrategyReturnColumn   = "strategy_return"
	CumulativeReturnColumn = "cumulative_return"
)

// ReturnsTable is the per-bar output of the continuous mode.
type ReturnsTable struct {
	Times      []time.Time
	Strategy   []float64
	Cumulative []float64
}

// Final is the last defined cumulative return, or 0.
func (t *ReturnsTable) Final() float64 {
	for i := len(t.Cumulative) - 1; i >= 0; i-- {
		if !math.IsNaN(t.Cumulative[i]) {
			return t.Cumulative[i]
		}
	}
	return 0
}

// Returns computes prediction[t] * return[t] and its compounded total for
// each row. The caller must ensure prediction[t] only used information
// available before t. Both columns are also written back to s.
func Returns(s *series.Series, predCol, retCol string) (*ReturnsTable, error) {
	if s.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	pred, err := s.Column(predCol)
	if err != nil {
		return nil, err
	}
	ret, err := s.Column(retCol)
	if err != nil {
		return nil, err
	}

	strat := StrategyReturns(pred, ret)
	table := &ReturnsTable{
		Times:      s.Times(),
		Strategy:   strat,
		Cumulative: Cumulative(strat),
	}
	if err := s.SetColumn(StrategyReturnColumn, table.Strategy); err != nil {
		return nil, err
	}
	if err := s.SetColumn(CumulativeReturnColumn, table.Cumulative); err != nil {
		return nil, err
	}
	return table, nil
}

// StrategyReturns multiplies aligned predictions and returns. An undefined
// input yields an undefined output for that row.
func StrategyReturns(pred, ret []float64) []float64 {
	out := make([]float64, len(pred))
	for i := range pred {
		out[i] = pred[i] * ret[i]
	}
	return out
}

// Cumulative compounds per-row returns with a running product:
// out[t] = prod(1 + r[0..t]) - 1. Undefined rows output NaN and leave the
// running product unchanged.
func Cumulative(r []float64) []float64 {
	out := make([]float64, len(r))
	growth := 1.0
	for i, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = math.NaN()
			continue
		}
		growth *= 1 + v
		out[i] = growth - 1
	}
	return out
}
