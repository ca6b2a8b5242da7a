package analytics

import (
	"math"

	"market-tick-lab/internal/domain"
)

// CorrelationResult is the Pearson correlation of two symbols' log
// returns over the inner join of their tick windows.
type CorrelationResult struct {
	SymbolA     string
	SymbolB     string
	Correlation float64
	DataPoints  int // aligned return observations
}

// ComputeCorrelation returns the Pearson correlation of log returns.
// Log returns rather than prices, so trending pairs do not read as
// spuriously correlated. Requires at least 3 aligned price points
// (2 returns). Symmetric in its arguments.
func ComputeCorrelation(symbolA, symbolB string, a, b []*domain.Tick) (*CorrelationResult, error) {
	points := alignTicks(a, b)
	if len(points) < 3 {
		return nil, ErrInsufficientData
	}

	retA := make([]float64, 0, len(points)-1)
	retB := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		if points[i-1].A <= 0 || points[i-1].B <= 0 || points[i].A <= 0 || points[i].B <= 0 {
			continue
		}
		retA = append(retA, math.Log(points[i].A/points[i-1].A))
		retB = append(retB, math.Log(points[i].B/points[i-1].B))
	}
	if len(retA) < 2 {
		return nil, ErrInsufficientData
	}

	corr := pearson(retA, retB)

	return &CorrelationResult{
		SymbolA:     symbolA,
		SymbolB:     symbolB,
		Correlation: corr,
		DataPoints:  len(retA),
	}, nil
}

// pearson computes the Pearson correlation coefficient, clamped to
// [-1, 1] against floating-point overshoot. Zero when either series is
// constant.
func pearson(x, y []float64) float64 {
	mx := mean(x)
	my := mean(y)

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}

	r := cov / math.Sqrt(varX*varY)
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
