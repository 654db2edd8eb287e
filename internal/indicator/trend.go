package indicator

import "math"

// ADXResult holds the trend strength line and the directional indicators.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX computes the Average Directional Index. Directional movement and true
// range are smoothed with Wilder's alpha = 1/window, seeded at row 1.
func ADX(high, low, close []float64, window int) (ADXResult, error) {
	if err := checkAligned("adx", high, low, close); err != nil {
		return ADXResult{}, err
	}
	if err := checkWindow("adx", len(close), window); err != nil {
		return ADXResult{}, err
	}

	n := len(close)
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	alpha := 1 / float64(window)
	tr := ewm(trueRange(high, low, close), alpha)
	plusDI := ratio(ewm(plusDM, alpha), tr)
	minusDI := ratio(ewm(minusDM, alpha), tr)

	dx := nanSlice(n)
	for i := range dx {
		plusDI[i] *= 100
		minusDI[i] *= 100
		sum := plusDI[i] + minusDI[i]
		if undefined(sum) || sum == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
	}

	return ADXResult{ADX: ewm(dx, alpha), PlusDI: plusDI, MinusDI: minusDI}, nil
}

// CCI is the Commodity Channel Index over the typical price. A window with
// zero mean absolute deviation is undefined.
func CCI(high, low, close []float64, window int) ([]float64, error) {
	if err := checkAligned("cci", high, low, close); err != nil {
		return nil, err
	}
	if err := checkWindow("cci", len(close), window); err != nil {
		return nil, err
	}

	tp := typicalPrice(high, low, close)
	mean := rollingMean(tp, window)

	out := nanSlice(len(close))
	for i := window - 1; i < len(tp); i++ {
		if undefined(mean[i]) {
			continue
		}
		var dev float64
		for _, v := range tp[i-window+1 : i+1] {
			dev += math.Abs(v - mean[i])
		}
		mad := dev / float64(window)
		if mad == 0 {
			continue
		}
		out[i] = (tp[i] - mean[i]) / (0.015 * mad)
	}
	return out, nil
}
