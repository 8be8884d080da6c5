package repository

import (
	"context"
	"sort"
	"sync"

	"originware/guardrail/pkg/rule"
)

// Memory is an in-process Repository. It backs tests and small
// deployments that load their rules from packs at startup and accept
// edits through the API without persistence.
type Memory struct {
	mu     sync.RWMutex
	sets   map[Key]*rule.RuleSet
	nextID int64
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		sets:   make(map[Key]*rule.RuleSet),
		nextID: 1,
	}
}

// Load replaces the stored set for each given set's (type, area) key.
// Sets are stored as-is; the caller must only pass validated sets.
func (m *Memory) Load(sets ...*rule.RuleSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, set := range sets {
		m.sets[Key{Type: set.Type, Area: set.Area}] = set
	}
}

// GetRuleSet implements Repository.
func (m *Memory) GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.sets[Key{Type: ruleType, Area: area}]
	if !ok {
		return nil, notFound(ruleType, area)
	}
	return set, nil
}

// SaveRule implements Repository. The definition is validated, assigned
// an identifier when it has none, and appended to its set's rules. The
// stored set is replaced, never mutated in place, so sets handed out by
// GetRuleSet stay stable for callers still evaluating them.
func (m *Memory) SaveRule(ctx context.Context, def rule.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if def.ID == 0 {
		def.ID = m.nextID
	}

	r, err := rule.New(def)
	if err != nil {
		return err
	}
	if def.ID >= m.nextID {
		m.nextID = def.ID + 1
	}

	key := Key{Type: r.Type, Area: r.Area}
	old := m.sets[key]

	rules := make([]*rule.Rule, 0, old.Len()+1)
	replaced := false
	for _, existing := range old.Ordered() {
		if existing.ID == r.ID {
			rules = append(rules, r)
			replaced = true
			continue
		}
		rules = append(rules, existing)
	}
	if !replaced {
		rules = append(rules, r)
	}

	m.sets[key] = &rule.RuleSet{Type: r.Type, Area: r.Area, Rules: rules}
	return nil
}

// ListAreas implements Repository.
func (m *Memory) ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var areas []string
	for key := range m.sets {
		if key.Type == ruleType {
			areas = append(areas, key.Area)
		}
	}
	sort.Strings(areas)
	return areas, nil
}
