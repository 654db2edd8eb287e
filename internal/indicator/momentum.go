package indicator

// RSI computes the Relative Strength Index from rolling means of gains and
// losses. The first row contributes a zero gain and zero loss, so values are
// defined from row window-1. A zero average loss yields exactly 100.
func RSI(x []float64, window int) ([]float64, error) {
	if err := checkWindow("rsi", len(x), window); err != nil {
		return nil, err
	}

	delta := diff(x)
	gain := make([]float64, len(x))
	loss := make([]float64, len(x))
	for i, d := range delta {
		switch {
		case d > 0:
			gain[i] = d
		case d < 0:
			loss[i] = -d
		}
	}

	return strengthIndex(rollingMean(gain, window), rollingMean(loss, window)), nil
}

// strengthIndex maps up/down averages to 100 - 100/(1+up/down).
func strengthIndex(up, down []float64) []float64 {
	out := nanSlice(len(up))
	for i := range up {
		if undefined(up[i]) || undefined(down[i]) {
			continue
		}
		if down[i] == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+up[i]/down[i])
	}
	return out
}

// ROC is the percent change against the value window rows earlier.
func ROC(x []float64, window int) ([]float64, error) {
	if err := checkWindow("roc", len(x), window); err != nil {
		return nil, err
	}
	out := nanSlice(len(x))
	for i := window; i < len(x); i++ {
		prev := x[i-window]
		if undefined(prev) || prev == 0 {
			continue
		}
		out[i] = (x[i]/prev - 1) * 100
	}
	return out, nil
}

// TSI is the True Strength Index: double-smoothed momentum over
// double-smoothed absolute momentum, times 100.
func TSI(x []float64, long, short int) ([]float64, error) {
	for _, w := range []int{long, short} {
		if err := checkWindow("tsi", len(x), w); err != nil {
			return nil, err
		}
	}

	m := diff(x)
	absM := make([]float64, len(m))
	for i, v := range m {
		if v < 0 {
			v = -v
		}
		absM[i] = v
	}

	a1, a2 := 2/float64(long+1), 2/float64(short+1)
	num := ewm(ewm(m, a1), a2)
	den := ewm(ewm(absM, a1), a2)

	out := ratio(num, den)
	for i := range out {
		out[i] *= 100
	}
	return out, nil
}

// Stochastic computes %K: where close sits in the window's low-high range.
// A flat range (high == low) is undefined.
func Stochastic(high, low, close []float64, window int) ([]float64, error) {
	if err := checkAligned("stochastic", high, low, close); err != nil {
		return nil, err
	}
	if err := checkWindow("stochastic", len(close), window); err != nil {
		return nil, err
	}

	lowMin := rollingMin(low, window)
	highMax := rollingMax(high, window)

	out := nanSlice(len(close))
	for i := range close {
		den := highMax[i] - lowMin[i]
		if undefined(den) || den == 0 {
			continue
		}
		out[i] = 100 * (close[i] - lowMin[i]) / den
	}
	return out, nil
}

// UltimateOscillator blends buying pressure over three windows with 4:2:1
// weights.
func UltimateOscillator(high, low, close []float64, short, medium, long int) ([]float64, error) {
	if err := checkAligned("ultimate", high, low, close); err != nil {
		return nil, err
	}
	for _, w := range []int{short, medium, long} {
		if err := checkWindow("ultimate", len(close), w); err != nil {
			return nil, err
		}
	}

	tr := trueRange(high, low, close)
	bp := nanSlice(len(close))
	for i := 1; i < len(close); i++ {
		bp[i] = close[i] - min(low[i], close[i-1])
	}

	avg := func(w int) []float64 {
		return ratio(rollingSum(bp, w), rollingSum(tr, w))
	}
	s, m, l := avg(short), avg(medium), avg(long)

	out := make([]float64, len(close))
	for i := range out {
		out[i] = 100 * (4*s[i] + 2*m[i] + l[i]) / 7
	}
	return out, nil
}
