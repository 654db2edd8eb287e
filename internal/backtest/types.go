package backtest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/quantlab/internal/core"
)

// FlipPolicy decides what happens when a signal reverses an open position.
type FlipPolicy int

const (
	// FlipReverse closes the open trade and opens the opposite side at the
	// same bar's price.
	FlipReverse FlipPolicy = iota
	// FlipThroughFlat only closes the open trade; a later bar's signal is
	// needed to enter again.
	FlipThroughFlat
)

func (p FlipPolicy) String() string {
	switch p {
	case FlipReverse:
		return "reverse"
	case FlipThroughFlat:
		return "through_flat"
	default:
		return "unknown"
	}
}

// ParseFlipPolicy parses "reverse" or "through_flat".
func ParseFlipPolicy(s string) (FlipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reverse":
		return FlipReverse, nil
	case "through_flat", "flat":
		return FlipThroughFlat, nil
	default:
		return 0, core.Errorf(core.ErrInvalidParameter, "unknown flip policy %q", s)
	}
}

// Result is the output of one simulation. Times, Positions, BarReturns and
// Equity are aligned with the input bars.
type Result struct {
	ID         uuid.UUID
	Times      []time.Time
	Positions  []core.Signal // position held after each bar
	BarReturns []float64     // strategy return earned over each bar
	Equity     []float64     // running product of (1 + bar return)
	Trades     []Trade
	Stats      Stats
}

// Trade is one simulated round trip from entry to exit.
type Trade struct {
	Side       core.Side
	EntryIndex int
	ExitIndex  int
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Return     float64 // realized fractional return
	Synthetic  bool    // force-closed on the last bar, not by a signal
}

// Stats summarizes the trade ledger and the equity curve.
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // fraction of trades with positive return
	AvgWin        float64
	AvgLoss       float64 // mean of losing returns, negative
	TotalReturn   float64 // final equity - 1
	MaxDrawdown   float64 // largest peak-to-trough decline of equity
	SharpeRatio   float64 // annualized, from per-bar returns
}

// IsWin reports whether the trade was profitable.
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsLoss reports whether the trade lost money.
func (t Trade) IsLoss() bool {
	return t.Return < 0
}

// Bars is the number of bars the position was held.
func (t Trade) Bars() int {
	return t.ExitIndex - t.EntryIndex
}

func tradeReturn(side core.Side, entry, exit float64) float64 {
	if side == core.SideShort {
		return (entry - exit) / entry
	}
	return exit/entry - 1
}
