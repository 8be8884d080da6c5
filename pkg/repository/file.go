package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"originware/guardrail/pkg/rule"
	"originware/guardrail/pkg/rule/parser"
)

// FileStore serves rule sets from a directory of pack files. Packs are
// loaded wholesale: a broken pack aborts the load, and a failed reload
// leaves the previously loaded packs in place, so the store never serves
// a half-applied directory.
type FileStore struct {
	dir     string
	parser  *parser.Parser
	logger  *slog.Logger
	metrics *Metrics

	mu   sync.RWMutex
	sets map[Key]*rule.RuleSet
}

// NewFileStore loads every pack under dir. Metrics may be nil.
func NewFileStore(dir string, logger *slog.Logger, metrics *Metrics) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default().With("component", "repository")
	}
	s := &FileStore{
		dir:     dir,
		parser:  parser.New(),
		logger:  logger,
		metrics: metrics,
		sets:    make(map[Key]*rule.RuleSet),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the pack directory and swaps the served index in one
// step. On error the previous index stays in place.
func (s *FileStore) Reload() error {
	packs, err := s.parser.ParseDir(s.dir)
	if err != nil {
		s.metrics.RecordReload("file", "error")
		return err
	}

	sets := make(map[Key]*rule.RuleSet)
	for _, pack := range packs {
		for _, set := range pack.Sets {
			key := Key{Type: set.Type, Area: set.Area}
			if _, exists := sets[key]; exists {
				s.metrics.RecordReload("file", "error")
				return fmt.Errorf("rule set %s defined by more than one pack (second: %s)", key, pack.Path)
			}
			sets[key] = set

			if dups := set.DuplicateSequences(); len(dups) > 0 {
				s.logger.Warn("rule set has duplicate sequence numbers",
					"rule_type", set.Type,
					"area", set.Area,
					"pack", pack.Name,
					"sequences", dups)
			}
		}
	}

	s.mu.Lock()
	s.sets = sets
	s.mu.Unlock()

	s.metrics.RecordReload("file", "ok")
	s.logger.Info("rule packs loaded",
		"dir", s.dir,
		"packs", len(packs),
		"rule_sets", len(sets))
	return nil
}

// Watch starts a debounced directory watcher that reloads on change.
// A non-positive debounce uses the watcher default. Blocks until the
// context is cancelled.
func (s *FileStore) Watch(ctx context.Context, debounce time.Duration) error {
	cfg := DefaultWatcherConfig(s.dir)
	if debounce > 0 {
		cfg.DebounceInterval = debounce
	}
	w, err := NewWatcher(cfg, s.logger)
	if err != nil {
		return err
	}
	return w.Watch(ctx, s.Reload)
}

// GetRuleSet implements Repository.
func (s *FileStore) GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[Key{Type: ruleType, Area: area}]
	if !ok {
		return nil, notFound(ruleType, area)
	}
	return set, nil
}

// SaveRule implements Repository. Pack directories are edited through
// review and shipped as files, never written by the service.
func (s *FileStore) SaveRule(ctx context.Context, def rule.Definition) error {
	return fmt.Errorf("file store %s: %w", s.dir, ErrReadOnly)
}

// ListAreas implements Repository.
func (s *FileStore) ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var areas []string
	for key := range s.sets {
		if key.Type == ruleType {
			areas = append(areas, key.Area)
		}
	}
	sort.Strings(areas)
	return areas, nil
}
