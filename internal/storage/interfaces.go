package storage

import (
	"context"

	"market-tick-lab/internal/domain"
)

// TickStore provides access to raw tick storage. Inserts are append-only
// and order-preserving per symbol: reads return ticks in timestamp order,
// ties broken by insertion order.
type TickStore interface {
	// InsertBatch appends a batch of ticks atomically. A concurrent read
	// never observes a partially-written batch.
	InsertBatch(ctx context.Context, ticks []*domain.Tick) error

	// RecentBySymbol retrieves up to limit most recent ticks for a symbol,
	// returned in chronological order. limit <= 0 means no limit.
	RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Tick, error)

	// Since retrieves ticks for a symbol with timestamp >= sinceMs,
	// in chronological order. limit <= 0 means no limit.
	Since(ctx context.Context, symbol string, sinceMs int64, limit int) ([]*domain.Tick, error)

	// Symbols lists all symbols with at least one stored tick, sorted.
	Symbols(ctx context.Context) ([]string, error)
}

// BarStore provides access to OHLC bar storage. Upserts are keyed by
// (symbol, timeframe, bucket_start): a second write for the same key
// replaces the stored aggregate values (last-writer-wins, not merge).
type BarStore interface {
	// Upsert inserts or replaces a single bar.
	Upsert(ctx context.Context, bar *domain.Bar) error

	// UpsertBulk inserts or replaces multiple bars atomically.
	UpsertBulk(ctx context.Context, bars []*domain.Bar) error

	// Recent retrieves up to limit most recent bars for a symbol and
	// timeframe, returned in chronological order. limit <= 0 means no limit.
	Recent(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]*domain.Bar, error)

	// Since retrieves bars with bucket_start >= sinceMs, in chronological order.
	Since(ctx context.Context, symbol string, tf domain.Timeframe, sinceMs int64) ([]*domain.Bar, error)

	// MaxBucketStart returns the latest materialized bucket start for a
	// symbol and timeframe. Returns ErrNotFound if no bars exist.
	MaxBucketStart(ctx context.Context, symbol string, tf domain.Timeframe) (int64, error)
}

// AlertRuleStore provides access to alert rule storage.
type AlertRuleStore interface {
	// Insert adds a new rule. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, rule *domain.AlertRule) error

	// GetByID retrieves a rule. Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*domain.AlertRule, error)

	// ListActiveBySymbol retrieves active rules for a symbol.
	ListActiveBySymbol(ctx context.Context, symbol string) ([]*domain.AlertRule, error)

	// List retrieves all rules ordered by creation time.
	List(ctx context.Context) ([]*domain.AlertRule, error)

	// IncrementTriggerCount bumps the rule's trigger counter.
	// Missing rules are ignored (the rule may have been deleted mid-flight).
	IncrementTriggerCount(ctx context.Context, id string) error

	// Delete removes a rule. Idempotent: deleting a missing rule is a no-op.
	Delete(ctx context.Context, id string) error
}

// AlertTriggerStore provides access to append-only alert trigger history.
type AlertTriggerStore interface {
	// Insert appends a trigger record.
	Insert(ctx context.Context, trig *domain.AlertTrigger) error

	// Recent retrieves up to limit most recent triggers, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.AlertTrigger, error)
}
