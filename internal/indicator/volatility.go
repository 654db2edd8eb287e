package indicator

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// Row 0 has no previous close and is undefined.
func TrueRange(high, low, close []float64) ([]float64, error) {
	if err := checkAligned("true range", high, low, close); err != nil {
		return nil, err
	}
	return trueRange(high, low, close), nil
}

func trueRange(high, low, close []float64) []float64 {
	out := nanSlice(len(close))
	for i := 1; i < len(close); i++ {
		pc := close[i-1]
		out[i] = max(high[i]-low[i], math.Abs(high[i]-pc), math.Abs(low[i]-pc))
	}
	return out
}

// ATR is the rolling mean of the true range.
func ATR(high, low, close []float64, window int) ([]float64, error) {
	if err := checkAligned("atr", high, low, close); err != nil {
		return nil, err
	}
	if err := checkWindow("atr", len(close), window); err != nil {
		return nil, err
	}
	return rollingMean(trueRange(high, low, close), window), nil
}

// Bands is an upper/middle/lower envelope.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns SMA(window) +/- k sample standard deviations.
func Bollinger(x []float64, window int, k float64) (Bands, error) {
	if err := checkWindow("bollinger", len(x), window); err != nil {
		return Bands{}, err
	}

	mid := rollingMean(x, window)
	std := rollingStd(x, window)

	b := Bands{
		Upper:  make([]float64, len(x)),
		Middle: mid,
		Lower:  make([]float64, len(x)),
	}
	for i := range x {
		b.Upper[i] = mid[i] + k*std[i]
		b.Lower[i] = mid[i] - k*std[i]
	}
	return b, nil
}

// Keltner returns EMA(window) +/- mult*atr. The ATR column is an explicit
// input; it must already be aligned with close.
func Keltner(close, atr []float64, window int, mult float64) (Bands, error) {
	if err := checkAligned("keltner", close, atr); err != nil {
		return Bands{}, err
	}
	if err := checkWindow("keltner", len(close), window); err != nil {
		return Bands{}, err
	}

	mid := ewm(close, 2/float64(window+1))
	b := Bands{
		Upper:  make([]float64, len(close)),
		Middle: mid,
		Lower:  make([]float64, len(close)),
	}
	for i := range close {
		b.Upper[i] = mid[i] + mult*atr[i]
		b.Lower[i] = mid[i] - mult*atr[i]
	}
	return b, nil
}

// Donchian returns the rolling max of high (Upper) and rolling min of low
// (Lower). Middle is their midpoint.
func Donchian(high, low []float64, window int) (Bands, error) {
	if err := checkAligned("donchian", high, low); err != nil {
		return Bands{}, err
	}
	if err := checkWindow("donchian", len(high), window); err != nil {
		return Bands{}, err
	}

	upper := rollingMax(high, window)
	lower := rollingMin(low, window)
	mid := make([]float64, len(high))
	for i := range mid {
		mid[i] = (upper[i] + lower[i]) / 2
	}
	return Bands{Upper: upper, Middle: mid, Lower: lower}, nil
}
