package domain

// Tick represents a single executed trade for one instrument.
// Ticks are immutable once created; ordering within a symbol is by
// Timestamp, ties broken by storage insertion order.
type Tick struct {
	Symbol    string  // lowercase instrument symbol, e.g. "btcusdt"
	Timestamp int64   // trade time, Unix milliseconds
	Price     float64 // execution price
	Size      float64 // executed quantity
}
