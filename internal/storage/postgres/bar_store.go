package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
// Upserts rely on the unique (symbol, timeframe, bucket_start) constraint
// with ON CONFLICT DO UPDATE: last-writer-wins on the aggregate values.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const upsertBarQuery = `
	INSERT INTO bars (symbol, timeframe, bucket_start_ms, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, timeframe, bucket_start_ms) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume
`

// Upsert inserts or replaces a single bar.
func (s *BarStore) Upsert(ctx context.Context, bar *domain.Bar) error {
	if bar == nil {
		return storage.ErrInvalidInput
	}
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	_, err := s.pool.Exec(ctx, upsertBarQuery,
		bar.Symbol, string(bar.Timeframe), bar.BucketStart,
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
	)
	if err != nil {
		return fmt.Errorf("upsert bar: %w", err)
	}
	return nil
}

// UpsertBulk inserts or replaces multiple bars atomically.
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, bar := range bars {
		_, err := tx.Exec(ctx, upsertBarQuery,
			bar.Symbol, string(bar.Timeframe), bar.BucketStart,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("upsert bar in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Recent retrieves up to limit most recent bars, chronological order.
func (s *BarStore) Recent(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, timeframe, bucket_start_ms, open, high, low, close, volume FROM (
			SELECT symbol, timeframe, bucket_start_ms, open, high, low, close, volume
			FROM bars
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY bucket_start_ms DESC
			LIMIT $3
		) recent
		ORDER BY bucket_start_ms ASC
	`

	// LIMIT NULL means no limit in Postgres.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(ctx, query, symbol, string(tf), limitArg)
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
		FROM bars
		WHERE symbol = $1 AND timeframe = $2 AND bucket_start_ms >= $3
		ORDER BY bucket_start_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, string(tf), sinceMs)
	if err != nil {
		return nil, fmt.Errorf("bars since: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// MaxBucketStart returns the latest materialized bucket start.
func (s *BarStore) MaxBucketStart(ctx context.Context, symbol string, tf domain.Timeframe) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx,
		`SELECT bucket_start_ms FROM bars WHERE symbol = $1 AND timeframe = $2 ORDER BY bucket_start_ms DESC LIMIT 1`,
		symbol, string(tf),
	).Scan(&max)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("max bucket start: %w", err)
	}
	return max, nil
}

func scanBars(rows pgx.Rows) ([]*domain.Bar, error) {
	var result []*domain.Bar
	for rows.Next() {
		b := &domain.Bar{}
		var tf string
		if err := rows.Scan(&b.Symbol, &tf, &b.BucketStart, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timeframe = domain.Timeframe(tf)
		result = append(result, b)
	}
	return result, rows.Err()
}
