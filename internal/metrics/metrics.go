// Package metrics reduces an equity curve and trade counters to summary
// performance statistics.
package metrics

import (
	"math"

	"bandtest/internal/domain"
)

// Compute derives the run metrics.
//
// MaxDrawdownPct is (max - min) / max over the global maximum and minimum
// equity of the whole curve, not the running peak-to-trough decline; see
// RunningMaxDrawdownPct for the conventional measure.
func Compute(curve []domain.EquityPoint, initialCapital float64, totalTrades, wins int) domain.Metrics {
	m := domain.Metrics{
		FinalEquity:   initialCapital,
		TotalTrades:   totalTrades,
		WinningTrades: wins,
	}
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital != 0 {
		m.TotalReturnPct = (m.FinalEquity - initialCapital) / initialCapital * 100
	}

	if len(curve) > 0 {
		maxEq, minEq := math.Inf(-1), math.Inf(1)
		for _, p := range curve {
			maxEq = math.Max(maxEq, p.Equity)
			minEq = math.Min(minEq, p.Equity)
		}
		if maxEq > 0 {
			m.MaxDrawdownPct = math.Abs((maxEq - minEq) / maxEq * 100)
		}
	}

	if totalTrades > 0 {
		m.WinRatePct = float64(wins) / float64(totalTrades) * 100
	}
	return m
}

// RunningMaxDrawdownPct returns the largest decline from a running equity
// peak, as a non-negative percentage of that peak.
func RunningMaxDrawdownPct(curve []domain.EquityPoint) float64 {
	peak, worst := 0.0, 0.0
	for i, p := range curve {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			worst = math.Max(worst, (peak-p.Equity)/peak*100)
		}
	}
	return worst
}
