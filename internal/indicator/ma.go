package indicator

// SMA returns the arithmetic mean of the trailing window.
// Rows before window-1 are undefined.
func SMA(x []float64, window int) ([]float64, error) {
	if err := checkWindow("sma", len(x), window); err != nil {
		return nil, err
	}
	return rollingMean(x, window), nil
}

// EMA returns the exponential moving average with alpha = 2/(window+1),
// seeded with the first value so there is no warm-up gap.
func EMA(x []float64, window int) ([]float64, error) {
	if err := checkWindow("ema", len(x), window); err != nil {
		return nil, err
	}
	return ewm(x, 2/float64(window+1)), nil
}

// MACDResult holds the three MACD lines.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow), its signal EMA and the histogram.
func MACD(x []float64, fast, slow, signal int) (MACDResult, error) {
	for _, w := range []int{fast, slow, signal} {
		if err := checkWindow("macd", len(x), w); err != nil {
			return MACDResult{}, err
		}
	}

	fastEMA := ewm(x, 2/float64(fast+1))
	slowEMA := ewm(x, 2/float64(slow+1))

	macd := make([]float64, len(x))
	for i := range x {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	sig := ewm(macd, 2/float64(signal+1))

	hist := make([]float64, len(x))
	for i := range x {
		hist[i] = macd[i] - sig[i]
	}

	return MACDResult{MACD: macd, Signal: sig, Histogram: hist}, nil
}
