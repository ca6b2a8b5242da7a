package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// AlertRuleStore implements storage.AlertRuleStore using PostgreSQL.
type AlertRuleStore struct {
	pool *Pool
}

// NewAlertRuleStore creates a new AlertRuleStore.
func NewAlertRuleStore(pool *Pool) *AlertRuleStore {
	return &AlertRuleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertRuleStore = (*AlertRuleStore)(nil)

// Insert adds a new rule. Returns ErrDuplicateKey if the ID exists.
func (s *AlertRuleStore) Insert(ctx context.Context, rule *domain.AlertRule) error {
	if rule == nil || rule.ID == "" || rule.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alert_rules (id, symbol, field, operator, threshold, created_at_ms, active, trigger_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		rule.ID, rule.Symbol, string(rule.Field), string(rule.Operator),
		rule.Threshold, rule.CreatedAt, rule.Active, rule.TriggerCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule. Returns ErrNotFound if it does not exist.
func (s *AlertRuleStore) GetByID(ctx context.Context, id string) (*domain.AlertRule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, symbol, field, operator, threshold, created_at_ms, active, trigger_count
		 FROM alert_rules WHERE id = $1`, id)

	rule, err := scanRule(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get alert rule: %w", err)
	}
	return rule, nil
}

// ListActiveBySymbol retrieves active rules for a symbol.
func (s *AlertRuleStore) ListActiveBySymbol(ctx context.Context, symbol string) ([]*domain.AlertRule, error) {
	query := `
		SELECT id, symbol, field, operator, threshold, created_at_ms, active, trigger_count
		FROM alert_rules
		WHERE symbol = $1 AND active
		ORDER BY created_at_ms ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("list active alert rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// List retrieves all rules ordered by creation time.
func (s *AlertRuleStore) List(ctx context.Context) ([]*domain.AlertRule, error) {
	query := `
		SELECT id, symbol, field, operator, threshold, created_at_ms, active, trigger_count
		FROM alert_rules
		ORDER BY created_at_ms ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// IncrementTriggerCount bumps the rule's trigger counter.
func (s *AlertRuleStore) IncrementTriggerCount(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET trigger_count = trigger_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment trigger count: %w", err)
	}
	return nil
}

// Delete removes a rule. Idempotent.
func (s *AlertRuleStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	return nil
}

func scanRule(row pgx.Row) (*domain.AlertRule, error) {
	r := &domain.AlertRule{}
	var field, op string
	if err := row.Scan(&r.ID, &r.Symbol, &field, &op, &r.Threshold, &r.CreatedAt, &r.Active, &r.TriggerCount); err != nil {
		return nil, err
	}
	r.Field = domain.AlertField(field)
	r.Operator = domain.AlertOperator(op)
	return r, nil
}

func scanRules(rows pgx.Rows) ([]*domain.AlertRule, error) {
	var result []*domain.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

// AlertTriggerStore implements storage.AlertTriggerStore using PostgreSQL.
// Trigger history is append-only; retention is an external concern.
type AlertTriggerStore struct {
	pool *Pool
}

// NewAlertTriggerStore creates a new AlertTriggerStore.
func NewAlertTriggerStore(pool *Pool) *AlertTriggerStore {
	return &AlertTriggerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertTriggerStore = (*AlertTriggerStore)(nil)

// Insert appends a trigger record.
func (s *AlertTriggerStore) Insert(ctx context.Context, trig *domain.AlertTrigger) error {
	if trig == nil || trig.RuleID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alert_triggers (rule_id, symbol, value, timestamp_ms, triggered_at_ms)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, trig.RuleID, trig.Symbol, trig.Value, trig.Timestamp, trig.TriggeredAt); err != nil {
		return fmt.Errorf("insert alert trigger: %w", err)
	}
	return nil
}

// Recent retrieves up to limit most recent triggers, newest first.
func (s *AlertTriggerStore) Recent(ctx context.Context, limit int) ([]*domain.AlertTrigger, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT rule_id, symbol, value, timestamp_ms, triggered_at_ms
		FROM alert_triggers
		ORDER BY triggered_at_ms DESC, id DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alert triggers: %w", err)
	}
	defer rows.Close()

	var result []*domain.AlertTrigger
	for rows.Next() {
		t := &domain.AlertTrigger{}
		if err := rows.Scan(&t.RuleID, &t.Symbol, &t.Value, &t.Timestamp, &t.TriggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert trigger: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
