package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
// The bars table is a ReplacingMergeTree keyed by
// (symbol, timeframe, bucket_start_ms); reads use FINAL so a rewritten
// bucket always resolves to the last-written row.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// Upsert inserts or replaces a single bar.
func (s *BarStore) Upsert(ctx context.Context, bar *domain.Bar) error {
	if bar == nil {
		return storage.ErrInvalidInput
	}
	return s.UpsertBulk(ctx, []*domain.Bar{bar})
}

// UpsertBulk inserts or replaces multiple bars in one batch.
func (s *BarStore) UpsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, bar := range bars {
		if bar == nil {
			return storage.ErrInvalidInput
		}
		if err := bar.Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, timeframe, bucket_start_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, bar := range bars {
		err = batch.Append(
			bar.Symbol, string(bar.Timeframe), uint64(bar.BucketStart),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Recent retrieves up to limit most recent bars, chronological order.
// A non-positive limit returns all bars for the symbol and timeframe.
func (s *BarStore) Recent(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Bar, error) {
	if limit <= 0 {
		return s.Since(ctx, symbol, tf, 0)
	}

	query := `
		SELECT symbol, timeframe, bucket_start_ms, open, high, low, close, volume
		FROM (
			SELECT symbol, timeframe, bucket_start_ms, open, high, low, close, volume
			FROM bars FINAL
			WHERE symbol = ? AND timeframe = ?
			ORDER BY bucket_start_ms DESC
			LIMIT ?
		)
		ORDER BY bucket_start_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(tf), uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("recent bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Since retrieves bars with bucket_start >= sinceMs, chronological order.
func (s *BarStore) Since(ctx context.Context, symbol string, tf domain.Timeframe, sinceMs int64) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, timeframe, bucket_start_ms, open, high, low, close, volume
		FROM bars FINAL
		WHERE symbol = ? AND timeframe = ? AND bucket_start_ms >= ?
		ORDER BY bucket_start_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(tf), uint64(sinceMs))
	if err != nil {
		return nil, fmt.Errorf("bars since: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// MaxBucketStart returns the latest materialized bucket start.
func (s *BarStore) MaxBucketStart(ctx context.Context, symbol string, tf domain.Timeframe) (int64, error) {
	query := `
		SELECT bucket_start_ms
		FROM bars FINAL
		WHERE symbol = ? AND timeframe = ?
		ORDER BY bucket_start_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, symbol, string(tf))
	if err != nil {
		return 0, fmt.Errorf("max bucket start: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, storage.ErrNotFound
	}
	var max uint64
	if err := rows.Scan(&max); err != nil {
		return 0, fmt.Errorf("scan bucket start: %w", err)
	}
	return int64(max), rows.Err()
}

func scanBars(rows driver.Rows) ([]*domain.Bar, error) {
	var result []*domain.Bar
	for rows.Next() {
		b := &domain.Bar{}
		var tf string
		var bucketStart uint64
		if err := rows.Scan(&b.Symbol, &tf, &bucketStart, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timeframe = domain.Timeframe(tf)
		b.BucketStart = int64(bucketStart)
		result = append(result, b)
	}
	return result, rows.Err()
}
