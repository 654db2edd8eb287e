package series

import (
	"math"
	"slices"

	"github.com/newthinker/quantlab/internal/core"
)

// DailyReturn is the column written by AddDailyReturn.
const DailyReturn = "daily_return"

// Preprocess sorts bars by time, drops duplicate timestamps (last one wins) and
// forward-fills non-finite fields from the previous bar. Leading bars that have
// nothing to fill from are dropped.
func Preprocess(bars []core.Bar) []core.Bar {
	sorted := slices.Clone(bars)
	slices.SortStableFunc(sorted, func(a, b core.Bar) int {
		return a.Time.Compare(b.Time)
	})

	out := make([]core.Bar, 0, len(sorted))
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out = out[:n-1]
		}
		if n := len(out); n > 0 {
			prev := out[n-1]
			b.Open = fill(b.Open, prev.Open)
			b.High = fill(b.High, prev.High)
			b.Low = fill(b.Low, prev.Low)
			b.Close = fill(b.Close, prev.Close)
			b.AdjClose = fill(b.AdjClose, prev.AdjClose)
			b.Volume = fill(b.Volume, prev.Volume)
		}
		if !b.Finite() {
			continue
		}
		out = append(out, b)
	}
	return out
}

// AddDailyReturn writes the one-bar percent change of priceCol as
// DailyReturn. The first row is 0.
func AddDailyReturn(s *Series, priceCol string) error {
	price, err := s.Column(priceCol)
	if err != nil {
		return err
	}
	ret := make([]float64, len(price))
	for i := 1; i < len(price); i++ {
		if price[i-1] == 0 {
			ret[i] = math.NaN()
			continue
		}
		ret[i] = price[i]/price[i-1] - 1
	}
	return s.SetColumn(DailyReturn, ret)
}

func fill(v, prev float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return prev
	}
	return v
}
