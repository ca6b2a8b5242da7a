// Package alerting evaluates user-defined threshold rules against the
// live tick flow and records every firing.
package alerting

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// Validation errors for rule creation.
var (
	ErrUnknownField     = errors.New("unknown rule field")
	ErrUnknownOperator  = errors.New("unknown rule operator")
	ErrInvalidThreshold = errors.New("threshold must be a finite number")
	ErrEmptySymbol      = errors.New("rule symbol must not be empty")
)

// equalityTolerance bounds the == comparison on float fields.
const equalityTolerance = 1e-6

// Engine owns alert rule lifecycle and per-tick evaluation. Rules never
// deactivate on firing; they keep firing until deleted. Triggers outlive
// the rule that produced them.
type Engine struct {
	rules     storage.AlertRuleStore
	triggers  storage.AlertTriggerStore
	onTrigger func(*domain.AlertTrigger)
	logger    *log.Logger
	now       func() time.Time
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	RuleStore    storage.AlertRuleStore
	TriggerStore storage.AlertTriggerStore
	OnTrigger    func(*domain.AlertTrigger)
	Logger       *log.Logger
}

// NewEngine creates a new alerting engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		rules:     opts.RuleStore,
		triggers:  opts.TriggerStore,
		onTrigger: opts.OnTrigger,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRule validates and stores a new active rule, returning it with a
// generated ID.
func (e *Engine) CreateRule(ctx context.Context, symbol string, field domain.AlertField, op domain.AlertOperator, threshold float64) (*domain.AlertRule, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	switch field {
	case domain.AlertFieldPrice, domain.AlertFieldSize:
	default:
		return nil, ErrUnknownField
	}
	switch op {
	case domain.OpGreater, domain.OpLess, domain.OpGreaterEqual, domain.OpLessEqual, domain.OpEqual:
	default:
		return nil, ErrUnknownOperator
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, ErrInvalidThreshold
	}

	rule := &domain.AlertRule{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Field:     field,
		Operator:  op,
		Threshold: threshold,
		CreatedAt: e.now().UnixMilli(),
		Active:    true,
	}
	if err := e.rules.Insert(ctx, rule); err != nil {
		return nil, err
	}

	e.logger.Printf("[alerting] rule created %s: %s %s %s %v", rule.ID, symbol, field, op, threshold)
	return rule, nil
}

// DeleteRule removes a rule. Idempotent; already-recorded triggers are
// retained.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	return e.rules.Delete(ctx, id)
}

// ListRules returns all rules in creation order.
func (e *Engine) ListRules(ctx context.Context) ([]*domain.AlertRule, error) {
	return e.rules.List(ctx)
}

// RecentTriggers returns up to limit most recent triggers, newest first.
func (e *Engine) RecentTriggers(ctx context.Context, limit int) ([]*domain.AlertTrigger, error) {
	return e.triggers.Recent(ctx, limit)
}

// Evaluate checks one tick against the symbol's active rules and records
// a trigger for every satisfied condition. Storage failures are logged;
// evaluation of the remaining rules continues.
func (e *Engine) Evaluate(ctx context.Context, tick domain.Tick) {
	rules, err := e.rules.ListActiveBySymbol(ctx, tick.Symbol)
	if err != nil {
		e.logger.Printf("[alerting] list rules for %s failed: %v", tick.Symbol, err)
		return
	}

	for _, rule := range rules {
		value := tick.Price
		if rule.Field == domain.AlertFieldSize {
			value = tick.Size
		}
		if !compare(value, rule.Operator, rule.Threshold) {
			continue
		}

		trig := &domain.AlertTrigger{
			RuleID:      rule.ID,
			Symbol:      tick.Symbol,
			Value:       value,
			Timestamp:   tick.Timestamp,
			TriggeredAt: e.now().UnixMilli(),
		}
		if err := e.triggers.Insert(ctx, trig); err != nil {
			e.logger.Printf("[alerting] record trigger for rule %s failed: %v", rule.ID, err)
			continue
		}
		if err := e.rules.IncrementTriggerCount(ctx, rule.ID); err != nil {
			e.logger.Printf("[alerting] bump trigger count for rule %s failed: %v", rule.ID, err)
		}
		if e.onTrigger != nil {
			e.onTrigger(trig)
		}

		e.logger.Printf("[alerting] rule %s fired: %s %s=%v %s %v", rule.ID, tick.Symbol, rule.Field, value, rule.Operator, rule.Threshold)
	}
}

func compare(value float64, op domain.AlertOperator, threshold float64) bool {
	switch op {
	case domain.OpGreater:
		return value > threshold
	case domain.OpLess:
		return value < threshold
	case domain.OpGreaterEqual:
		return value >= threshold
	case domain.OpLessEqual:
		return value <= threshold
	case domain.OpEqual:
		return math.Abs(value-threshold) < equalityTolerance
	}
	return false
}
