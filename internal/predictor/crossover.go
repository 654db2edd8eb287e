package predictor

import (
	"math"

	"github.com/newthinker/quantlab/internal/core"
)

// Crossover predicts the relative divergence of a fast average column over a
// slow one, (fast - slow) / slow. It is positive after a golden cross and
// negative after a death cross, so a signal threshold sets how far apart the
// averages must be before taking a side.
type Crossover struct {
	Fast string
	Slow string
}

// Predict implements Predictor. Rows where the slow value is 0 or undefined
// predict NaN.
func (c *Crossover) Predict(features [][]float64, columns []string) ([]float64, error) {
	if c.Fast == c.Slow {
		return nil, core.Errorf(core.ErrInvalidParameter, "fast and slow are both %q", c.Fast)
	}
	fast, slow := -1, -1
	for j, name := range columns {
		switch name {
		case c.Fast:
			fast = j
		case c.Slow:
			slow = j
		}
	}
	if fast < 0 {
		return nil, core.Errorf(core.ErrMissingColumn, "fast column %q", c.Fast)
	}
	if slow < 0 {
		return nil, core.Errorf(core.ErrMissingColumn, "slow column %q", c.Slow)
	}

	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(columns) {
			return nil, core.Errorf(core.ErrInvalidParameter, "row %d has %d features, want %d", i, len(row), len(columns))
		}
		f, s := row[fast], row[slow]
		if s == 0 || !isFinite(s) || !isFinite(f) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (f - s) / s
	}
	return out, nil
}
