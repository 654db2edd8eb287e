package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
)

// Spec names an indicator and its parameters, as read from configuration.
type Spec struct {
	Name   string             `mapstructure:"name" yaml:"name"`
	Params map[string]float64 `mapstructure:"params" yaml:"params,omitempty"`
}

type builder func(source string, p *params) Step

var builders = map[string]builder{
	"sma": func(src string, p *params) Step {
		return NewSMA(src, p.int("window", 10))
	},
	"ema": func(src string, p *params) Step {
		return NewEMA(src, p.int("window", 20))
	},
	"macd": func(src string, p *params) Step {
		return NewMACD(src, p.int("fast", 12), p.int("slow", 26), p.int("signal", 9))
	},
	"rsi": func(src string, p *params) Step {
		return NewRSI(src, p.int("window", 14))
	},
	"bollinger": func(src string, p *params) Step {
		return NewBollinger(src, p.int("window", 20), p.float("k", 2))
	},
	"stochastic": func(_ string, p *params) Step {
		return NewStochastic(p.int("window", 14))
	},
	"atr": func(_ string, p *params) Step {
		return NewATR(p.int("window", 14))
	},
	"adx": func(_ string, p *params) Step {
		return NewADX(p.int("window", 14))
	},
	"cci": func(_ string, p *params) Step {
		return NewCCI(p.int("window", 20))
	},
	"roc": func(src string, p *params) Step {
		return NewROC(src, p.int("window", 10))
	},
	"mfi": func(_ string, p *params) Step {
		return NewMFI(p.int("window", 14))
	},
	"obv": func(src string, p *params) Step {
		return NewOBV(src)
	},
	"vwap": func(_ string, p *params) Step {
		return NewVWAP()
	},
	"tsi": func(src string, p *params) Step {
		return NewTSI(src, p.int("long", 25), p.int("short", 13))
	},
	"ultimate": func(_ string, p *params) Step {
		return NewUltimate(p.int("short", 7), p.int("medium", 14), p.int("long", 28))
	},
	"keltner": func(src string, p *params) Step {
		return NewKeltner(src, p.int("window", 20), p.int("atr_window", 10), p.float("mult", 2))
	},
	"donchian": func(_ string, p *params) Step {
		return NewDonchian(p.int("window", 20))
	},
}

// Names lists the registered indicator names.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build turns specs into steps reading from the source price column. A
// Keltner step whose ATR column is not produced by an earlier spec gets an
// ATR step inserted ahead of it; a later ATR spec for the same window reuses
// the inserted step.
func Build(source string, specs []Spec) ([]Step, error) {
	if source == "" {
		source = series.Close
	}

	var steps []Step
	produced := make(map[string]bool)
	inserted := make(map[string]bool)
	for _, spec := range specs {
		name := strings.ToLower(strings.TrimSpace(spec.Name))
		b, ok := builders[name]
		if !ok {
			return nil, core.Errorf(core.ErrInvalidParameter, "unknown indicator %q (known: %s)", spec.Name, strings.Join(Names(), ", "))
		}
		p := &params{name: name, values: spec.Params}
		st := b(source, p)
		if p.err != nil {
			return nil, p.err
		}

		if name == "keltner" {
			atrWindow := p.int("atr_window", 10)
			if atr := ATRColumn(atrWindow); !produced[atr] {
				dep := NewATR(atrWindow)
				steps = append(steps, dep)
				produced[atr] = true
				inserted[atr] = true
			}
		}
		if name == "atr" && inserted[st.Outputs()[0]] {
			delete(inserted, st.Outputs()[0])
			continue
		}

		steps = append(steps, st)
		for _, out := range st.Outputs() {
			produced[out] = true
		}
	}
	return steps, nil
}

// DefaultSpecs is the indicator set used when none is configured.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: "sma", Params: map[string]float64{"window": 10}},
		{Name: "rsi", Params: map[string]float64{"window": 14}},
		{Name: "macd", Params: map[string]float64{"fast": 12, "slow": 26, "signal": 9}},
	}
}

// DefaultSteps builds DefaultSpecs over the close column.
func DefaultSteps() []Step {
	steps, err := Build(series.Close, DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return steps
}

type params struct {
	name   string
	values map[string]float64
	err    error
}

func (p *params) int(key string, def int) int {
	v, ok := p.values[key]
	if !ok {
		return def
	}
	if v != math.Trunc(v) || v <= 0 {
		if p.err == nil {
			p.err = core.Errorf(core.ErrInvalidParameter, "%s: %s must be a positive integer, got %v", p.name, key, v)
		}
		return def
	}
	return int(v)
}

func (p *params) float(key string, def float64) float64 {
	v, ok := p.values[key]
	if !ok {
		return def
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		if p.err == nil {
			p.err = core.Errorf(core.ErrInvalidParameter, "%s: %s must be a non-negative number, got %v", p.name, key, v)
		}
		return def
	}
	return v
}
