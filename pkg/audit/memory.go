package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore holds records in memory. It backs tests and deployments
// that only need the trail for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Store implements Store.
func (s *MemoryStore) Store(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records[record.ID] = &copied
	return nil
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, query *Query) ([]*Record, error) {
	if query == nil {
		query = &Query{}
	}

	s.mu.RLock()
	var results []*Record
	for _, record := range s.records {
		if matches(record, query) {
			copied := *record
			results = append(results, &copied)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if query.OldestFirst {
			return results[i].EvaluatedAt.Before(results[j].EvaluatedAt)
		}
		return results[i].EvaluatedAt.After(results[j].EvaluatedAt)
	})

	if query.Offset > 0 {
		if query.Offset >= len(results) {
			return []*Record{}, nil
		}
		results = results[query.Offset:]
	}
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matches(record, query) {
			count++
		}
	}
	return count, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matches(record, query) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func matches(record *Record, query *Query) bool {
	if query.StartTime != nil && record.EvaluatedAt.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.EvaluatedAt.After(*query.EndTime) {
		return false
	}
	if query.RequestID != "" && record.RequestID != query.RequestID {
		return false
	}
	if query.RuleType != "" && record.RuleType != query.RuleType {
		return false
	}
	if query.Area != "" && record.Area != query.Area {
		return false
	}
	if query.Success != nil && record.Success != *query.Success {
		return false
	}
	return true
}
