// Package indicator implements technical indicators as pure functions over
// aligned float64 slices. Every function returns slices of the same length as
// its input, with NaN marking undefined (warm-up or degenerate) values.
package indicator

import (
	"math"

	"github.com/newthinker/quantlab/internal/core"
)

func undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// checkWindow rejects non-positive windows and windows longer than the input.
func checkWindow(name string, n, window int) error {
	if window <= 0 {
		return core.Errorf(core.ErrInvalidParameter, "%s: window must be positive, got %d", name, window)
	}
	if window > n {
		return core.Errorf(core.ErrInsufficientHistory, "%s: window %d exceeds %d rows", name, window, n)
	}
	return nil
}

func checkAligned(name string, cols ...[]float64) error {
	for _, c := range cols[1:] {
		if len(c) != len(cols[0]) {
			return core.Errorf(core.ErrInvalidParameter,
				"%s: input lengths differ (%d vs %d)", name, len(cols[0]), len(c))
		}
	}
	return nil
}

// diff returns x[i]-x[i-1], undefined at row 0.
func diff(x []float64) []float64 {
	out := nanSlice(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// rollingSum sums the trailing window. A window containing an undefined value
// is undefined. A window whose values are all zero sums to exactly zero, so
// zero-denominator checks downstream are not defeated by cancellation error.
func rollingSum(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	var sum float64
	var bad, nonzero int
	for i, v := range x {
		switch {
		case undefined(v):
			bad++
		case v != 0:
			sum += v
			nonzero++
		}
		if i >= window {
			old := x[i-window]
			switch {
			case undefined(old):
				bad--
			case old != 0:
				sum -= old
				nonzero--
			}
		}
		if nonzero == 0 {
			sum = 0
		}
		if i >= window-1 && bad == 0 {
			out[i] = sum
		}
	}
	return out
}

// RollingSum returns the trailing window sum of x.
func RollingSum(x []float64, window int) ([]float64, error) {
	if err := checkWindow("rolling sum", len(x), window); err != nil {
		return nil, err
	}
	return rollingSum(x, window), nil
}

func rollingMean(x []float64, window int) []float64 {
	out := rollingSum(x, window)
	for i := range out {
		out[i] /= float64(window)
	}
	return out
}

// rollingStd is the sample (n-1) standard deviation of the trailing window.
func rollingStd(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window < 2 {
		return out
	}
	mean := rollingMean(x, window)
	for i := window - 1; i < len(x); i++ {
		if undefined(mean[i]) {
			continue
		}
		var ss float64
		for _, v := range x[i-window+1 : i+1] {
			d := v - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// rollingExtreme keeps a monotonic deque of indices so each row is pushed and
// popped at most once. better(a, b) reports whether a should evict b.
func rollingExtreme(x []float64, window int, better func(a, b float64) bool) []float64 {
	out := nanSlice(len(x))
	deque := make([]int, 0, window)
	bad := 0
	for i, v := range x {
		if i >= window && undefined(x[i-window]) {
			bad--
		}
		if len(deque) > 0 && deque[0] <= i-window {
			deque = deque[1:]
		}
		if undefined(v) {
			bad++
		} else {
			for len(deque) > 0 && !better(x[deque[len(deque)-1]], v) {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, i)
		}
		if i >= window-1 && bad == 0 && len(deque) > 0 {
			out[i] = x[deque[0]]
		}
	}
	return out
}

func rollingMax(x []float64, window int) []float64 {
	return rollingExtreme(x, window, func(a, b float64) bool { return a > b })
}

func rollingMin(x []float64, window int) []float64 {
	return rollingExtreme(x, window, func(a, b float64) bool { return a < b })
}

// RollingMax returns the trailing window maximum of x.
func RollingMax(x []float64, window int) ([]float64, error) {
	if err := checkWindow("rolling max", len(x), window); err != nil {
		return nil, err
	}
	return rollingMax(x, window), nil
}

// RollingMin returns the trailing window minimum of x.
func RollingMin(x []float64, window int) ([]float64, error) {
	if err := checkWindow("rolling min", len(x), window); err != nil {
		return nil, err
	}
	return rollingMin(x, window), nil
}

// ewm is the recursive exponentially weighted mean
// y[t] = alpha*x[t] + (1-alpha)*y[t-1], seeded with the first defined input.
// Undefined inputs after the seed carry the previous value forward.
func ewm(x []float64, alpha float64) []float64 {
	out := nanSlice(len(x))
	started := false
	var prev float64
	for i, v := range x {
		if undefined(v) {
			if started {
				out[i] = prev
			}
			continue
		}
		if !started {
			prev = v
			started = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// ratio divides elementwise, undefined where either side is undefined or the
// denominator is zero.
func ratio(num, den []float64) []float64 {
	out := nanSlice(len(num))
	for i := range num {
		if undefined(num[i]) || undefined(den[i]) || den[i] == 0 {
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}
