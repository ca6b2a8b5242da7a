// Package resample materializes OHLC bars from stored ticks at fixed
// timeframes, tracking a per-(symbol, timeframe) watermark so finalized
// buckets are never recomputed from a partial tick set.
package resample

import (
	"sort"

	"market-tick-lab/internal/domain"
)

// BucketTicks partitions ticks into OHLC bars for one symbol and timeframe.
// Ticks must be pre-sorted by timestamp, ties broken by arrival order.
//
// Bucket alignment: floor(timestamp_ms / interval_ms) * interval_ms
// Aggregation per bucket:
//   - open  = price of the first tick
//   - high  = MAX(price)
//   - low   = MIN(price)
//   - close = price of the last tick
//   - volume = SUM(size)
//
// Buckets with no ticks produce no bar. Result is sorted by bucket start.
func BucketTicks(ticks []*domain.Tick, symbol string, tf domain.Timeframe) []*domain.Bar {
	if len(ticks) == 0 || tf.Millis() <= 0 {
		return nil
	}

	buckets := make(map[int64]*domain.Bar)

	for _, t := range ticks {
		start := tf.BucketStart(t.Timestamp)

		bar, ok := buckets[start]
		if !ok {
			bar = &domain.Bar{
				Symbol:      symbol,
				Timeframe:   tf,
				BucketStart: start,
				Open:        t.Price,
				High:        t.Price,
				Low:         t.Price,
			}
			buckets[start] = bar
		}

		if t.Price > bar.High {
			bar.High = t.Price
		}
		if t.Price < bar.Low {
			bar.Low = t.Price
		}
		bar.Close = t.Price
		bar.Volume += t.Size
	}

	result := make([]*domain.Bar, 0, len(buckets))
	for _, bar := range buckets {
		result = append(result, bar)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart < result[j].BucketStart
	})

	return result
}
