package memory

import (
	"context"
	"sort"
	"sync"

	"market-tick-lab/internal/domain"
	"market-tick-lab/internal/storage"
)

// AlertRuleStore is an in-memory implementation of storage.AlertRuleStore.
type AlertRuleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AlertRule
}

// NewAlertRuleStore creates a new in-memory alert rule store.
func NewAlertRuleStore() *AlertRuleStore {
	return &AlertRuleStore{
		data: make(map[string]*domain.AlertRule),
	}
}

// Insert adds a new rule. Returns ErrDuplicateKey if the ID exists.
func (s *AlertRuleStore) Insert(_ context.Context, rule *domain.AlertRule) error {
	if rule == nil || rule.ID == "" || rule.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rule.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *rule
	s.data[rule.ID] = &copy
	return nil
}

// GetByID retrieves a rule by ID.
func (s *AlertRuleStore) GetByID(_ context.Context, id string) (*domain.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *rule
	return &copy, nil
}

// ListActiveBySymbol retrieves active rules for a symbol.
func (s *AlertRuleStore) ListActiveBySymbol(_ context.Context, symbol string) ([]*domain.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AlertRule
	for _, rule := range s.data {
		if rule.Active && rule.Symbol == symbol {
			copy := *rule
			result = append(result, &copy)
		}
	}
	sortRules(result)
	return result, nil
}

// List retrieves all rules ordered by creation time.
func (s *AlertRuleStore) List(_ context.Context) ([]*domain.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AlertRule, 0, len(s.data))
	for _, rule := range s.data {
		copy := *rule
		result = append(result, &copy)
	}
	sortRules(result)
	return result, nil
}

// IncrementTriggerCount bumps the rule's trigger counter.
func (s *AlertRuleStore) IncrementTriggerCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule, ok := s.data[id]; ok {
		rule.TriggerCount++
	}
	return nil
}

// Delete removes a rule. Idempotent.
func (s *AlertRuleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

func sortRules(rules []*domain.AlertRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt != rules[j].CreatedAt {
			return rules[i].CreatedAt < rules[j].CreatedAt
		}
		return rules[i].ID < rules[j].ID
	})
}

var _ storage.AlertRuleStore = (*AlertRuleStore)(nil)

// AlertTriggerStore is an in-memory implementation of storage.AlertTriggerStore.
// History is capped: once maxHistory is exceeded the oldest entries are
// discarded, bounding memory as triggers accumulate.
type AlertTriggerStore struct {
	mu         sync.RWMutex
	data       []domain.AlertTrigger
	maxHistory int
}

// DefaultTriggerHistory caps retained trigger records.
const DefaultTriggerHistory = 1000

// NewAlertTriggerStore creates a new in-memory trigger store.
func NewAlertTriggerStore() *AlertTriggerStore {
	return &AlertTriggerStore{maxHistory: DefaultTriggerHistory}
}

// Insert appends a trigger record.
func (s *AlertTriggerStore) Insert(_ context.Context, trig *domain.AlertTrigger) error {
	if trig == nil || trig.RuleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append(s.data, *trig)
	if len(s.data) > s.maxHistory {
		s.data = s.data[len(s.data)-s.maxHistory:]
	}
	return nil
}

// Recent retrieves up to limit most recent triggers, newest first.
func (s *AlertTriggerStore) Recent(_ context.Context, limit int) ([]*domain.AlertTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.data)
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]*domain.AlertTrigger, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		copy := s.data[i]
		result = append(result, &copy)
	}
	return result, nil
}

var _ storage.AlertTriggerStore = (*AlertTriggerStore)(nil)
