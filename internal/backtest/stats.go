package backtest

import (
	"math"
)

// DefaultPeriodsPerYear annualizes daily bars.
const DefaultPeriodsPerYear = 252

// CalculateStats computes performance statistics from the trade ledger and
// the per-bar equity curve.
func CalculateStats(trades []Trade, barReturns, equity []float64, periodsPerYear int) Stats {
	stats := Stats{
		TotalTrades: len(trades),
		TotalReturn: finalEquity(equity) - 1,
		MaxDrawdown: calculateMaxDrawdown(equity),
		SharpeRatio: calculateSharpeRatio(barReturns, periodsPerYear),
	}

	var winSum, lossSum float64
	for _, t := range trades {
		switch {
		case t.IsWin():
			stats.WinningTrades++
			winSum += t.Return
		case t.IsLoss():
			stats.LosingTrades++
			lossSum += t.Return
		}
	}

	if len(trades) > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(len(trades))
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = winSum / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = lossSum / float64(stats.LosingTrades)
	}
	return stats
}

func finalEquity(equity []float64) float64 {
	for i := len(equity) - 1; i >= 0; i-- {
		if !math.IsNaN(equity[i]) {
			return equity[i]
		}
	}
	return 1
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD float64
	peak := 1.0

	for _, e := range equity {
		if math.IsNaN(e) {
			continue
		}
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64, periodsPerYear int) float64 {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	var sum float64
	var n int
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		sum += r
		n++
	}
	if n < 2 {
		return 0
	}
	mean := sum / float64(n)

	// Calculate standard deviation
	var variance float64
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(n-1))

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(float64(periodsPerYear))
}
