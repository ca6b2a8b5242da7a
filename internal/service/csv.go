package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"market-tick-lab/internal/domain"
)

const barsCSVHeader = "symbol,timeframe,bucket_start_ms,open,high,low,close,volume"

// RenderBarsCSV renders bars as a CSV string, one row per bar plus a
// header row.
func RenderBarsCSV(bars []*domain.Bar) string {
	var sb strings.Builder

	sb.WriteString(barsCSVHeader + "\n")

	for _, b := range bars {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s,%s\n",
			b.Symbol,
			b.Timeframe,
			b.BucketStart,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		))
	}

	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseBarsCSV reads bars from CSV in the RenderBarsCSV layout. Every
// row is validated; the first bad row aborts the parse with its line
// number.
func ParseBarsCSV(r io.Reader) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 8

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Header row is optional on input.
	start := 0
	if records[0][0] == "symbol" {
		start = 1
	}

	bars := make([]*domain.Bar, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		bar, err := parseBarRecord(records[i])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(rec []string) (*domain.Bar, error) {
	tf, err := domain.ParseTimeframe(rec[1])
	if err != nil {
		return nil, err
	}
	bucketStart, err := strconv.ParseInt(rec[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bucket_start_ms: %w", err)
	}

	vals := make([]float64, 5)
	names := []string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5; i++ {
		vals[i], err = strconv.ParseFloat(rec[3+i], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
	}

	bar := &domain.Bar{
		Symbol:      rec[0],
		Timeframe:   tf,
		BucketStart: tf.BucketStart(bucketStart),
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
	}
	if err := bar.Validate(); err != nil {
		return nil, err
	}
	return bar, nil
}

// ExportBarsCSV renders up to limit most recent bars as CSV.
func (s *Service) ExportBarsCSV(ctx context.Context, symbol, timeframe string, limit int) (string, error) {
	bars, err := s.QueryBars(ctx, symbol, timeframe, limit)
	if err != nil {
		return "", err
	}
	return RenderBarsCSV(bars), nil
}

// ImportBars validates and bulk-upserts externally produced bars,
// returning the number written. Imported buckets are replaced by the
// resampler once live ticks cover them again.
func (s *Service) ImportBars(ctx context.Context, bars []*domain.Bar) (int, error) {
	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return 0, fmt.Errorf("bar %d: %w", i, err)
		}
	}
	if err := s.bars.UpsertBulk(ctx, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}
