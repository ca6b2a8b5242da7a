package analytics

import (
	"fmt"
	"math"

	"market-tick-lab/internal/domain"
)

// SpreadMethod selects the hedge-ratio estimator.
type SpreadMethod string

// Supported hedge-ratio estimators. OLS fits one static ratio over the
// whole window; RLS tracks a time-varying ratio with exponential
// forgetting and reports the final estimate.
const (
	SpreadOLS SpreadMethod = "ols"
	SpreadRLS SpreadMethod = "rls"
)

// rlsForgetting is the RLS forgetting factor. 0.99 weights an
// observation k steps back by 0.99^k, an effective memory of roughly
// 100 points.
const rlsForgetting = 0.99

// ParseSpreadMethod validates a method string.
func ParseSpreadMethod(s string) (SpreadMethod, error) {
	switch SpreadMethod(s) {
	case SpreadOLS, SpreadRLS:
		return SpreadMethod(s), nil
	case "":
		return SpreadOLS, nil
	}
	return "", fmt.Errorf("unknown spread method %q", s)
}

// SpreadPoint is one aligned observation's spread and z-score.
type SpreadPoint struct {
	Timestamp int64
	Spread    float64
	ZScore    float64
}

// SpreadResult describes the spread between two symbols over a window.
type SpreadResult struct {
	SymbolA       string
	SymbolB       string
	Method        SpreadMethod
	HedgeRatio    float64
	SpreadMean    float64
	SpreadStd     float64 // sample standard deviation
	CurrentSpread float64
	ZScore        float64  // z-score of the latest spread
	HalfLife      *float64 // mean-reversion half-life in observations; nil if not mean-reverting
	DataPoints    int
	Series        []SpreadPoint
}

// ComputeSpread estimates spread = priceA - ratio*priceB over the inner
// join of two tick windows. Requires at least 2 aligned points.
func ComputeSpread(symbolA, symbolB string, a, b []*domain.Tick, method SpreadMethod) (*SpreadResult, error) {
	points := alignTicks(a, b)
	if len(points) < 2 {
		return nil, ErrInsufficientData
	}

	ys := make([]float64, len(points))
	xs := make([]float64, len(points))
	for i, p := range points {
		ys[i] = p.A
		xs[i] = p.B
	}

	var ratio float64
	switch method {
	case SpreadRLS:
		ratio = rlsHedgeRatio(ys, xs)
	default:
		ratio, _ = olsFit(ys, xs)
	}

	spread := make([]float64, len(points))
	for i := range points {
		spread[i] = ys[i] - ratio*xs[i]
	}

	spreadMean := mean(spread)
	spreadStd := sampleStdDev(spread)

	series := make([]SpreadPoint, len(points))
	for i, p := range points {
		z := 0.0
		if spreadStd > 0 {
			z = (spread[i] - spreadMean) / spreadStd
		}
		series[i] = SpreadPoint{Timestamp: p.Timestamp, Spread: spread[i], ZScore: z}
	}

	return &SpreadResult{
		SymbolA:       symbolA,
		SymbolB:       symbolB,
		Method:        method,
		HedgeRatio:    ratio,
		SpreadMean:    spreadMean,
		SpreadStd:     spreadStd,
		CurrentSpread: spread[len(spread)-1],
		ZScore:        series[len(series)-1].ZScore,
		HalfLife:      halfLife(spread),
		DataPoints:    len(points),
		Series:        series,
	}, nil
}

// olsFit regresses y on x, returning slope and intercept.
// Zero variance in x yields a zero slope.
func olsFit(y, x []float64) (slope, intercept float64) {
	mx := mean(x)
	my := mean(y)

	var cov, varX float64
	for i := range x {
		dx := x[i] - mx
		cov += dx * (y[i] - my)
		varX += dx * dx
	}
	if varX == 0 {
		return 0, my
	}
	slope = cov / varX
	return slope, my - slope*mx
}

// rlsHedgeRatio runs recursive least squares over [x, 1] -> y with
// forgetting factor rlsForgetting and returns the final slope estimate.
func rlsHedgeRatio(y, x []float64) float64 {
	// theta = [slope, intercept], P = inverse information matrix,
	// initialized large so early observations dominate.
	const p0 = 1e6
	theta := [2]float64{0, 0}
	p := [2][2]float64{{p0, 0}, {0, p0}}

	for i := range x {
		phi := [2]float64{x[i], 1}

		// P * phi
		pp := [2]float64{
			p[0][0]*phi[0] + p[0][1]*phi[1],
			p[1][0]*phi[0] + p[1][1]*phi[1],
		}
		denom := rlsForgetting + phi[0]*pp[0] + phi[1]*pp[1]
		gain := [2]float64{pp[0] / denom, pp[1] / denom}

		innov := y[i] - (phi[0]*theta[0] + phi[1]*theta[1])
		theta[0] += gain[0] * innov
		theta[1] += gain[1] * innov

		// P = (P - gain * phi^T * P) / lambda
		var next [2][2]float64
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				next[r][c] = (p[r][c] - gain[r]*(phi[0]*p[0][c]+phi[1]*p[1][c])) / rlsForgetting
			}
		}
		p = next
	}
	return theta[0]
}

// halfLife estimates the mean-reversion half-life of a spread series by
// regressing its first differences on its lagged level. A non-negative
// regression coefficient means no mean reversion, reported as nil.
func halfLife(spread []float64) *float64 {
	if len(spread) < 3 {
		return nil
	}

	lag := spread[:len(spread)-1]
	diff := make([]float64, len(spread)-1)
	for i := 1; i < len(spread); i++ {
		diff[i-1] = spread[i] - spread[i-1]
	}

	lambda, _ := olsFit(diff, lag)
	if lambda >= 0 {
		return nil
	}

	hl := -math.Ln2 / lambda
	if hl <= 0 || math.IsInf(hl, 0) || math.IsNaN(hl) {
		return nil
	}
	return &hl
}
