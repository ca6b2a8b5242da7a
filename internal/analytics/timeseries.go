package analytics

import "market-tick-lab/internal/domain"

// volatilityWindow is the rolling window, in bars, for return volatility.
const volatilityWindow = 10

// BarStats augments one bar with derived series statistics. Return and
// Volatility are nil where the lookback is not yet filled.
type BarStats struct {
	Bar        domain.Bar
	Return     *float64 // close-to-close return vs the previous bar, percent
	Volatility *float64 // sample stddev of the last volatilityWindow returns, percent
	Range      float64  // high - low
	RangePct   float64  // range as a percent of close; 0 when close is 0
}

// ComputeTimeseriesStats derives per-bar returns, rolling volatility and
// range statistics from a chronological bar series.
func ComputeTimeseriesStats(bars []*domain.Bar) []*BarStats {
	if len(bars) == 0 {
		return nil
	}

	returns := make([]float64, len(bars)) // fractional, index 0 unused
	result := make([]*BarStats, len(bars))

	for i, bar := range bars {
		st := &BarStats{
			Bar:   *bar,
			Range: bar.High - bar.Low,
		}
		if bar.Close != 0 {
			st.RangePct = st.Range / bar.Close * 100
		}

		if i > 0 && bars[i-1].Close != 0 {
			returns[i] = bar.Close/bars[i-1].Close - 1
			pct := returns[i] * 100
			st.Return = &pct
		}

		// Volatility needs a full window of returns, which exist from
		// index 1 onward.
		if i >= volatilityWindow {
			vol := sampleStdDev(returns[i-volatilityWindow+1:i+1]) * 100
			st.Volatility = &vol
		}

		result[i] = st
	}
	return result
}
