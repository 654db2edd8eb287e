// Package signal turns continuous predictions into discrete long, short and
// flat signals.
package signal

import (
	"math"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
)

// Generate maps each prediction to +1 above threshold, -1 below -threshold
// and 0 otherwise. Undefined predictions map to 0.
func Generate(predictions []float64, threshold float64) ([]core.Signal, error) {
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, core.Errorf(core.ErrInvalidParameter, "threshold must be >= 0, got %v", threshold)
	}

	out := make([]core.Signal, len(predictions))
	for i, p := range predictions {
		switch {
		case p > threshold:
			out[i] = core.SignalLong
		case p < -threshold:
			out[i] = core.SignalShort
		}
	}
	return out, nil
}

// ToColumn stores signals as a -1/0/+1 column.
func ToColumn(s *series.Series, name string, signals []core.Signal) error {
	col := make([]float64, len(signals))
	for i, sig := range signals {
		col[i] = float64(sig)
	}
	return s.SetColumn(name, col)
}

// FromColumn reads a signal column back. Every value must be -1, 0 or +1.
func FromColumn(s *series.Series, name string) ([]core.Signal, error) {
	col, err := s.Column(name)
	if err != nil {
		return nil, err
	}

	out := make([]core.Signal, len(col))
	for i, v := range col {
		switch v {
		case -1:
			out[i] = core.SignalShort
		case 0:
			out[i] = core.SignalFlat
		case 1:
			out[i] = core.SignalLong
		default:
			return nil, core.Errorf(core.ErrInvalidParameter, "column %q row %d: %v is not a signal", name, i, v)
		}
	}
	return out, nil
}

// Count tallies signals by value.
func Count(signals []core.Signal) map[core.Signal]int {
	counts := make(map[core.Signal]int, 3)
	for _, sig := range signals {
		counts[sig]++
	}
	return counts
}
