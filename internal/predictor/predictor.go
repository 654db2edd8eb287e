// Package predictor holds the regression collaborator that turns a feature
// matrix into one prediction per row, plus error metrics to score it.
package predictor

import (
	"math"
	"sort"

	"github.com/newthinker/quantlab/internal/core"
)

// Predictor maps rows of features to predictions. columns names each
// feature in row order.
type Predictor interface {
	Predict(features [][]float64, columns []string) ([]float64, error)
}

// Linear is intercept + sum(weight * feature). Features without a weight
// are ignored; a weight without a matching column is an error.
type Linear struct {
	Intercept float64
	Weights   map[string]float64
}

// Predict implements Predictor.
func (m *Linear) Predict(features [][]float64, columns []string) ([]float64, error) {
	index := make(map[string]int, len(columns))
	for j, c := range columns {
		index[c] = j
	}

	type term struct {
		col    int
		weight float64
	}
	terms := make([]term, 0, len(m.Weights))
	for name, w := range m.Weights {
		j, ok := index[name]
		if !ok {
			return nil, core.Errorf(core.ErrMissingColumn, "weight for %q has no feature column", name)
		}
		terms = append(terms, term{col: j, weight: w})
	}
	// Fixed summation order keeps predictions bit-for-bit reproducible.
	sort.Slice(terms, func(a, b int) bool { return terms[a].col < terms[b].col })

	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(columns) {
			return nil, core.Errorf(core.ErrInvalidParameter, "row %d has %d features, want %d", i, len(row), len(columns))
		}
		v := m.Intercept
		for _, t := range terms {
			v += t.weight * row[t.col]
		}
		out[i] = v
	}
	return out, nil
}

// Lag shifts predictions n rows forward so the value used at row t was
// produced from features at row t-n. The first n rows are 0.
func Lag(preds []float64, n int) []float64 {
	out := make([]float64, len(preds))
	if n < 0 {
		n = 0
	}
	for i := n; i < len(preds); i++ {
		out[i] = preds[i-n]
	}
	return out
}

// Metrics scores predictions against actual values.
type Metrics struct {
	MSE               float64 `yaml:"mse"`
	MAE               float64 `yaml:"mae"`
	RMSE              float64 `yaml:"rmse"`
	R2                float64 `yaml:"r2"`
	MAPE              float64 `yaml:"mape"`
	ExplainedVariance float64 `yaml:"explained_variance"`
}

// Evaluate computes regression metrics over rows where both values are
// defined. MAPE skips rows whose actual value is 0 and is a percentage.
func Evaluate(actual, predicted []float64) (Metrics, error) {
	if len(actual) != len(predicted) {
		return Metrics{}, core.Errorf(core.ErrInvalidParameter, "%d actual values, %d predictions", len(actual), len(predicted))
	}

	var a, p []float64
	for i := range actual {
		if isFinite(actual[i]) && isFinite(predicted[i]) {
			a = append(a, actual[i])
			p = append(p, predicted[i])
		}
	}
	n := float64(len(a))
	if n == 0 {
		return Metrics{}, core.ErrEmptySeries
	}

	var meanA, meanRes float64
	for i := range a {
		meanA += a[i]
		meanRes += a[i] - p[i]
	}
	meanA /= n
	meanRes /= n

	var m Metrics
	var ssTot, varRes, apeSum float64
	var apeN int
	for i := range a {
		res := a[i] - p[i]
		m.MSE += res * res
		m.MAE += math.Abs(res)
		ssTot += (a[i] - meanA) * (a[i] - meanA)
		varRes += (res - meanRes) * (res - meanRes)
		if a[i] != 0 {
			apeSum += math.Abs(res / a[i])
			apeN++
		}
	}
	ssRes := m.MSE
	m.MSE /= n
	m.MAE /= n
	m.RMSE = math.Sqrt(m.MSE)
	if apeN > 0 {
		m.MAPE = apeSum / float64(apeN) * 100
	}
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
		m.ExplainedVariance = 1 - varRes/ssTot
	}
	return m, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
