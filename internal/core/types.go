package core

import (
	"math"
	"time"
)

// Bar represents one OHLCV observation.
type Bar struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Finite reports whether every price and volume field is a finite number.
func (b Bar) Finite() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsValid checks the OHLC range invariants and a non-negative volume.
func (b Bar) IsValid() bool {
	if !b.Finite() || b.Volume < 0 {
		return false
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return false
	}
	if b.Low > b.Open || b.Low > b.Close {
		return false
	}
	return true
}

// Signal is a discrete per-bar position decision.
type Signal int8

const (
	SignalShort Signal = -1
	SignalFlat  Signal = 0
	SignalLong  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "long"
	case SignalShort:
		return "short"
	default:
		return "flat"
	}
}

// Side is the direction of an open position or trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)
