package indicator

// TypicalPrice returns (high+low+close)/3.
func TypicalPrice(high, low, close []float64) ([]float64, error) {
	if err := checkAligned("typical price", high, low, close); err != nil {
		return nil, err
	}
	return typicalPrice(high, low, close), nil
}

func typicalPrice(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		out[i] = (high[i] + low[i] + close[i]) / 3
	}
	return out
}

// OBV is the running sum of volume signed by the close-to-close direction.
// Row 0 has no previous close and is undefined; unchanged closes add 0.
func OBV(close, volume []float64) ([]float64, error) {
	if err := checkAligned("obv", close, volume); err != nil {
		return nil, err
	}

	out := nanSlice(len(close))
	var total float64
	for i := 1; i < len(close); i++ {
		d := close[i] - close[i-1]
		if undefined(d) || undefined(volume[i]) {
			continue
		}
		switch {
		case d > 0:
			total += volume[i]
		case d < 0:
			total -= volume[i]
		}
		out[i] = total
	}
	return out, nil
}

// VWAP is cumulative typical-price volume over cumulative volume. It never
// resets; callers split the series for session boundaries.
func VWAP(high, low, close, volume []float64) ([]float64, error) {
	if err := checkAligned("vwap", high, low, close, volume); err != nil {
		return nil, err
	}

	tp := typicalPrice(high, low, close)
	out := nanSlice(len(close))
	var pv, vol float64
	for i := range close {
		flow := tp[i] * volume[i]
		if undefined(flow) {
			continue
		}
		pv += flow
		vol += volume[i]
		if vol != 0 {
			out[i] = pv / vol
		}
	}
	return out, nil
}

// MFI is the Money Flow Index: RSI's transform applied to rolling positive and
// negative money flow. Zero negative flow yields exactly 100.
func MFI(high, low, close, volume []float64, window int) ([]float64, error) {
	if err := checkAligned("mfi", high, low, close, volume); err != nil {
		return nil, err
	}
	if err := checkWindow("mfi", len(close), window); err != nil {
		return nil, err
	}

	tp := typicalPrice(high, low, close)
	pos := make([]float64, len(close))
	neg := make([]float64, len(close))
	for i := 1; i < len(tp); i++ {
		flow := tp[i] * volume[i]
		switch {
		case tp[i] > tp[i-1]:
			pos[i] = flow
		case tp[i] < tp[i-1]:
			neg[i] = flow
		}
	}

	return strengthIndex(rollingSum(pos, window), rollingSum(neg, window)), nil
}
