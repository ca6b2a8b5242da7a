package stream

import (
	"fmt"
	"strconv"
	"strings"

	"market-tick-lab/internal/domain"
)

// tradeMessage mirrors the Binance futures trade stream payload.
type tradeMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	TradeTime int64  `json:"T"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
}

// toTick decodes a trade message into a domain tick.
func (m *tradeMessage) toTick() (domain.Tick, error) {
	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parse price %q: %w", m.Price, err)
	}
	size, err := strconv.ParseFloat(m.Quantity, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("parse quantity %q: %w", m.Quantity, err)
	}
	return domain.Tick{
		Symbol:    strings.ToLower(m.Symbol),
		Timestamp: m.TradeTime,
		Price:     price,
		Size:      size,
	}, nil
}
