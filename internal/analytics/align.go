package analytics

import "market-tick-lab/internal/domain"

// pricePoint is one timestamp observed on both symbols of a pair.
type pricePoint struct {
	Timestamp int64
	A         float64
	B         float64
}

// alignTicks inner-joins two tick series on timestamp. Inputs must be in
// chronological order. When a symbol has several ticks at one timestamp
// the last one wins. Timestamps present on only one side are discarded
// rather than forward-filled, so every aligned point pairs two real
// observations.
func alignTicks(a, b []*domain.Tick) []pricePoint {
	var result []pricePoint

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Timestamp < b[j].Timestamp:
			i++
		case a[i].Timestamp > b[j].Timestamp:
			j++
		default:
			ts := a[i].Timestamp
			for i+1 < len(a) && a[i+1].Timestamp == ts {
				i++
			}
			for j+1 < len(b) && b[j+1].Timestamp == ts {
				j++
			}
			result = append(result, pricePoint{Timestamp: ts, A: a[i].Price, B: b[j].Price})
			i++
			j++
		}
	}
	return result
}
