// Package analytics computes descriptive statistics, pair-spread models
// and mean-reversion diagnostics over tick and bar windows. All functions
// are stateless: callers fetch the window and pass it in.
package analytics

import (
	"errors"
	"math"

	"market-tick-lab/internal/domain"
)

// ErrInsufficientData is returned when a window holds too few points for
// the requested computation.
var ErrInsufficientData = errors.New("insufficient data")

// Stats summarizes one symbol's recent ticks.
type Stats struct {
	Symbol    string
	Count     int
	Last      float64
	Mean      float64
	StdDev    float64 // sample standard deviation
	StdDevPop float64 // population standard deviation
	Min       float64
	Max       float64
	Volume    float64 // total traded size
	VWAP      float64 // volume-weighted average price; plain mean when total size is zero
}

// ComputeStats calculates rolling statistics over a tick window.
// Requires at least 2 ticks.
func ComputeStats(symbol string, ticks []*domain.Tick) (*Stats, error) {
	if len(ticks) < 2 {
		return nil, ErrInsufficientData
	}

	s := &Stats{
		Symbol: symbol,
		Count:  len(ticks),
		Last:   ticks[len(ticks)-1].Price,
		Min:    ticks[0].Price,
		Max:    ticks[0].Price,
	}

	sum := 0.0
	weighted := 0.0
	for _, t := range ticks {
		sum += t.Price
		s.Volume += t.Size
		weighted += t.Price * t.Size
		if t.Price < s.Min {
			s.Min = t.Price
		}
		if t.Price > s.Max {
			s.Max = t.Price
		}
	}
	s.Mean = sum / float64(len(ticks))

	if s.Volume > 0 {
		s.VWAP = weighted / s.Volume
	} else {
		s.VWAP = s.Mean
	}

	ss := 0.0
	for _, t := range ticks {
		d := t.Price - s.Mean
		ss += d * d
	}
	s.StdDevPop = math.Sqrt(ss / float64(len(ticks)))
	s.StdDev = math.Sqrt(ss / float64(len(ticks)-1))

	return s, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator).
// Zero for fewer than 2 points.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
