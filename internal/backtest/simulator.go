package backtest

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/series"
)

// Simulator walks a signal column against a price column and keeps a
// position ledger. A signal observed at bar t executes at bar t's price, so
// the resulting position earns bar t+1's return.
//
// Flat opens long on +1 and short on -1. Long closes when the signal drops
// to 0 or below; short closes when it rises to 0 or above. A reversing
// signal follows Flip. Bars with an undefined price leave the position
// unchanged and produce an undefined bar return; the next priced bar earns
// the return across the gap. Flat bars always return 0. Any position still open on
// the last bar is closed there and flagged Synthetic.
//
// A Simulator holds no per-run state and may be shared.
type Simulator struct {
	PriceColumn    string
	SignalColumn   string
	Flip           FlipPolicy
	PeriodsPerYear int
}

type position struct {
	side  core.Side
	index int
	price float64
}

// ledger is the state owned by a single run.
type ledger struct {
	times  []time.Time
	prices []float64
	open   optional.Option[position]
	trades []Trade
}

func (l *ledger) enter(side core.Side, i int) {
	l.open = optional.Some(position{side: side, index: i, price: l.prices[i]})
}

func (l *ledger) exit(i int, synthetic bool) {
	pos, err := l.open.Take()
	if err != nil {
		return
	}
	l.trades = append(l.trades, Trade{
		Side:       pos.side,
		EntryIndex: pos.index,
		ExitIndex:  i,
		EntryTime:  l.times[pos.index],
		ExitTime:   l.times[i],
		EntryPrice: pos.price,
		ExitPrice:  l.prices[i],
		Return:     tradeReturn(pos.side, pos.price, l.prices[i]),
		Synthetic:  synthetic,
	})
	l.open = optional.None[position]()
}

func (l *ledger) current() core.Signal {
	pos, err := l.open.Take()
	if err != nil {
		return core.SignalFlat
	}
	if pos.side == core.SideShort {
		return core.SignalShort
	}
	return core.SignalLong
}

// Run simulates over s, reading PriceColumn and SignalColumn. Positive signal
// values mean long, negative mean short, zero or undefined mean flat.
func (sim *Simulator) Run(ctx context.Context, s *series.Series) (*Result, error) {
	if s.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	prices, err := s.Column(sim.priceColumn())
	if err != nil {
		return nil, err
	}
	raw, err := s.Column(sim.signalColumn())
	if err != nil {
		return nil, err
	}

	signals := make([]core.Signal, len(raw))
	for i, v := range raw {
		switch {
		case v > 0:
			signals[i] = core.SignalLong
		case v < 0:
			signals[i] = core.SignalShort
		}
	}
	return sim.Simulate(ctx, s.Times(), prices, signals)
}

// Simulate runs the state machine over aligned times, prices and signals.
func (sim *Simulator) Simulate(ctx context.Context, times []time.Time, prices []float64, signals []core.Signal) (*Result, error) {
	n := len(prices)
	if n == 0 {
		return nil, core.ErrEmptySeries
	}
	if len(times) != n || len(signals) != n {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"misaligned inputs: %d times, %d prices, %d signals", len(times), n, len(signals))
	}

	l := &ledger{times: times, prices: prices, open: optional.None[position]()}
	positions := make([]core.Signal, n)
	barReturns := make([]float64, n)
	equity := make([]float64, n)
	growth := 1.0
	lastPriced := -1

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Return earned over bar i by the position held since the last priced
		// bar. An unpriced bar holds its position and earns nothing it can
		// measure; the next priced bar measures across the gap.
		switch {
		case !defined(prices[i]):
			barReturns[i] = math.NaN()
		case i == 0 || lastPriced < 0 || positions[i-1] == core.SignalFlat:
			barReturns[i] = 0
		default:
			barReturns[i] = float64(positions[i-1]) * (prices[i]/prices[lastPriced] - 1)
		}
		if defined(barReturns[i]) {
			growth *= 1 + barReturns[i]
			equity[i] = growth
		} else {
			equity[i] = math.NaN()
		}

		if defined(prices[i]) {
			lastPriced = i
			sim.step(l, i, signals[i])
		}
		positions[i] = l.current()
	}

	if l.open.IsSome() && lastPriced >= 0 {
		l.exit(lastPriced, true)
	}

	res := &Result{
		ID:         uuid.New(),
		Times:      times,
		Positions:  positions,
		BarReturns: barReturns,
		Equity:     equity,
		Trades:     l.trades,
		Stats:      CalculateStats(l.trades, barReturns, equity, sim.PeriodsPerYear),
	}
	return res, nil
}

func (sim *Simulator) step(l *ledger, i int, sig core.Signal) {
	cur := l.current()
	switch {
	case cur == sig:
		return
	case cur == core.SignalFlat:
		l.enter(sideOf(sig), i)
	case sig == core.SignalFlat:
		l.exit(i, false)
	default:
		l.exit(i, false)
		if sim.Flip == FlipReverse {
			l.enter(sideOf(sig), i)
		}
	}
}

func (sim *Simulator) priceColumn() string {
	if sim.PriceColumn == "" {
		return series.Close
	}
	return sim.PriceColumn
}

func (sim *Simulator) signalColumn() string {
	if sim.SignalColumn == "" {
		return "signal"
	}
	return sim.SignalColumn
}

func sideOf(sig core.Signal) core.Side {
	if sig == core.SignalShort {
		return core.SideShort
	}
	return core.SideLong
}

func defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
