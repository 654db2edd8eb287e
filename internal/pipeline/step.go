package pipeline

import (
	"fmt"

	"github.com/newthinker/quantlab/internal/indicator"
	"github.com/newthinker/quantlab/internal/series"
)

// Step computes one indicator's output columns from a series. Compute must
// not mutate the series; the pipeline merges the returned columns.
type Step interface {
	Name() string
	Outputs() []string
	Requires() []string
	Compute(s *series.Series) (map[string][]float64, error)
}

// columnsFunc adapts a plain function to Step.
type columnsFunc struct {
	name     string
	outputs  []string
	requires []string
	compute  func(cols map[string][]float64) (map[string][]float64, error)
}

func (c *columnsFunc) Name() string       { return c.name }
func (c *columnsFunc) Outputs() []string  { return c.outputs }
func (c *columnsFunc) Requires() []string { return c.requires }

func (c *columnsFunc) Compute(s *series.Series) (map[string][]float64, error) {
	cols := make(map[string][]float64, len(c.requires))
	for _, name := range c.requires {
		col, err := s.Column(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		cols[name] = col
	}
	return c.compute(cols)
}

// NewSMA builds a simple moving average step writing sma_<window>.
func NewSMA(source string, window int) Step {
	out := fmt.Sprintf("sma_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.SMA(c[source], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewEMA builds an exponential moving average step writing ema_<window>.
func NewEMA(source string, window int) Step {
	out := fmt.Sprintf("ema_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.EMA(c[source], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewMACD writes macd, macd_signal and macd_hist.
func NewMACD(source string, fast, slow, signal int) Step {
	return &columnsFunc{
		name:     "macd",
		outputs:  []string{"macd", "macd_signal", "macd_hist"},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			r, err := indicator.MACD(c[source], fast, slow, signal)
			if err != nil {
				return nil, err
			}
			return map[string][]float64{"macd": r.MACD, "macd_signal": r.Signal, "macd_hist": r.Histogram}, nil
		},
	}
}

// NewRSI writes rsi_<window>.
func NewRSI(source string, window int) Step {
	out := fmt.Sprintf("rsi_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.RSI(c[source], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewBollinger writes bb_upper_<window> and bb_lower_<window>.
func NewBollinger(source string, window int, k float64) Step {
	upper, lower := fmt.Sprintf("bb_upper_%d", window), fmt.Sprintf("bb_lower_%d", window)
	return &columnsFunc{
		name:     fmt.Sprintf("bollinger_%d", window),
		outputs:  []string{upper, lower},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			b, err := indicator.Bollinger(c[source], window, k)
			if err != nil {
				return nil, err
			}
			return map[string][]float64{upper: b.Upper, lower: b.Lower}, nil
		},
	}
}

// NewROC writes roc_<window>.
func NewROC(source string, window int) Step {
	out := fmt.Sprintf("roc_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.ROC(c[source], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewTSI writes tsi.
func NewTSI(source string, long, short int) Step {
	return &columnsFunc{
		name:     "tsi",
		outputs:  []string{"tsi"},
		requires: []string{source},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.TSI(c[source], long, short)
			return map[string][]float64{"tsi": v}, err
		},
	}
}

// NewOBV writes obv from source and volume.
func NewOBV(source string) Step {
	return &columnsFunc{
		name:     "obv",
		outputs:  []string{"obv"},
		requires: []string{source, series.Volume},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.OBV(c[source], c[series.Volume])
			return map[string][]float64{"obv": v}, err
		},
	}
}

var hlc = []string{series.High, series.Low, series.Close}

var hlcv = []string{series.High, series.Low, series.Close, series.Volume}

// NewStochastic writes stoch_<window>.
func NewStochastic(window int) Step {
	out := fmt.Sprintf("stoch_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: hlc,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.Stochastic(c[series.High], c[series.Low], c[series.Close], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// ATRColumn is the column an ATR step of the given window writes.
func ATRColumn(window int) string {
	return fmt.Sprintf("atr_%d", window)
}

// NewATR writes atr_<window>.
func NewATR(window int) Step {
	out := ATRColumn(window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: hlc,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.ATR(c[series.High], c[series.Low], c[series.Close], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewADX writes adx_<window>.
func NewADX(window int) Step {
	out := fmt.Sprintf("adx_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: hlc,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			r, err := indicator.ADX(c[series.High], c[series.Low], c[series.Close], window)
			if err != nil {
				return nil, err
			}
			return map[string][]float64{out: r.ADX}, nil
		},
	}
}

// NewCCI writes cci_<window>.
func NewCCI(window int) Step {
	out := fmt.Sprintf("cci_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: hlc,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.CCI(c[series.High], c[series.Low], c[series.Close], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewMFI writes mfi_<window>.
func NewMFI(window int) Step {
	out := fmt.Sprintf("mfi_%d", window)
	return &columnsFunc{
		name:     out,
		outputs:  []string{out},
		requires: hlcv,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.MFI(c[series.High], c[series.Low], c[series.Close], c[series.Volume], window)
			return map[string][]float64{out: v}, err
		},
	}
}

// NewVWAP writes vwap.
func NewVWAP() Step {
	return &columnsFunc{
		name:     "vwap",
		outputs:  []string{"vwap"},
		requires: hlcv,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.VWAP(c[series.High], c[series.Low], c[series.Close], c[series.Volume])
			return map[string][]float64{"vwap": v}, err
		},
	}
}

// NewUltimate writes uo.
func NewUltimate(short, medium, long int) Step {
	return &columnsFunc{
		name:     "uo",
		outputs:  []string{"uo"},
		requires: hlc,
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			v, err := indicator.UltimateOscillator(c[series.High], c[series.Low], c[series.Close], short, medium, long)
			return map[string][]float64{"uo": v}, err
		},
	}
}

// NewKeltner writes keltner_upper_<window> and keltner_lower_<window>. It
// reads the ATR column of atrWindow, so an ATR step must run first.
func NewKeltner(source string, window, atrWindow int, mult float64) Step {
	atr := ATRColumn(atrWindow)
	upper, lower := fmt.Sprintf("keltner_upper_%d", window), fmt.Sprintf("keltner_lower_%d", window)
	return &columnsFunc{
		name:     fmt.Sprintf("keltner_%d", window),
		outputs:  []string{upper, lower},
		requires: []string{source, atr},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			b, err := indicator.Keltner(c[source], c[atr], window, mult)
			if err != nil {
				return nil, err
			}
			return map[string][]float64{upper: b.Upper, lower: b.Lower}, nil
		},
	}
}

// NewDonchian writes donchian_high_<window> and donchian_low_<window>.
func NewDonchian(window int) Step {
	upper, lower := fmt.Sprintf("donchian_high_%d", window), fmt.Sprintf("donchian_low_%d", window)
	return &columnsFunc{
		name:     fmt.Sprintf("donchian_%d", window),
		outputs:  []string{upper, lower},
		requires: []string{series.High, series.Low},
		compute: func(c map[string][]float64) (map[string][]float64, error) {
			b, err := indicator.Donchian(c[series.High], c[series.Low], window)
			if err != nil {
				return nil, err
			}
			return map[string][]float64{upper: b.Upper, lower: b.Lower}, nil
		},
	}
}
