package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// TickStore implements storage.TickStore using PostgreSQL.
// The serial id column preserves arrival order across equal timestamps.
type TickStore struct {
	pool *Pool
}

// NewTickStore creates a new TickStore.
func NewTickStore(pool *Pool) *TickStore {
	return &TickStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBatch appends a batch of ticks atomically.
func (s *TickStore) InsertBatch(ctx context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO ticks (symbol, timestamp_ms, price, size)
		VALUES ($1, $2, $3, $4)
	`
	for _, t := range ticks {
		if _, err := tx.Exec(ctx, query, t.Symbol, t.Timestamp, t.Price, t.Size); err != nil {
			return fmt.Errorf("insert tick in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RecentBySymbol retrieves up to limit most recent ticks, chronological order.
// A non-positive limit returns all ticks for the symbol.
func (s *TickStore) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Tick, error) {
	query := `
		SELECT symbol, timestamp_ms, price, size FROM (
			SELECT id, symbol, timestamp_ms, price, size
			FROM ticks
			WHERE symbol = $1
			ORDER BY timestamp_ms DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY timestamp_ms ASC, id ASC
	`

	// LIMIT NULL means no limit in Postgres.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(ctx, query, symbol, limitArg)
	if err != nil {
		return nil, fmt.Errorf("recent ticks: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// Since retrieves ticks with timestamp >= sinceMs, chronological order.
func (s *TickStore) Since(ctx context.Context, symbol string, sinceMs int64, limit int) ([]*domain.Tick, error) {
	query := `
		SELECT symbol, timestamp_ms, price, size
		FROM ticks
		WHERE symbol = $1 AND timestamp_ms >= $2
		ORDER BY timestamp_ms ASC, id ASC
	`
	args := []any{symbol, sinceMs}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticks since: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// Symbols lists all symbols with stored ticks, sorted.
func (s *TickStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM ticks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func scanTicks(rows pgx.Rows) ([]*domain.Tick, error) {
	var result []*domain.Tick
	for rows.Next() {
		t := &domain.Tick{}
		if err := rows.Scan(&t.Symbol, &t.Timestamp, &t.Price, &t.Size); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
