// Package stream provides the trade-stream subscription layer: one
// WebSocket connection per subscribed symbol, delivering decoded ticks.
package stream

import (
	"context"
	"errors"

	"market-tick-lab/internal/domain"
)

// ErrStreamFailed is reported through the status callback when a symbol
// exhausts its reconnect budget.
var ErrStreamFailed = errors.New("stream failed: reconnect retries exhausted")

// Source delivers decoded ticks for one symbol. The returned channel is
// closed when the context is cancelled or the stream permanently fails.
type Source interface {
	Subscribe(ctx context.Context, symbol string) (<-chan domain.Tick, error)
}

// StatusFunc receives connection-state transitions per symbol.
type StatusFunc func(symbol string, status domain.StreamStatus)
