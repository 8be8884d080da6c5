package repository

import (
	"context"
	"sync"
	"time"

	"originware/guardrail/pkg/rule"
)

// CacheConfig holds configuration for rule set caching.
type CacheConfig struct {
	// TTL is the time-to-live for cached rule sets.
	// Set to 0 for no expiration (invalidation on mutation only).
	// Default: 30s
	TTL time.Duration
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 30 * time.Second,
	}
}

// Caching memoizes rule sets per (type, area) in front of another
// Repository. Rule sets are immutable once constructed, so entries are
// shared between callers without copying. SaveRule writes through and
// drops every cached entry; external edits to the backing store surface
// after at most one TTL.
type Caching struct {
	inner   Repository
	config  CacheConfig
	metrics *Metrics

	mu      sync.RWMutex
	entries map[Key]cacheEntry
}

type cacheEntry struct {
	set      *rule.RuleSet
	cachedAt time.Time
}

// NewCaching wraps inner with a rule set cache. Metrics may be nil.
func NewCaching(inner Repository, config CacheConfig, metrics *Metrics) *Caching {
	return &Caching{
		inner:   inner,
		config:  config,
		metrics: metrics,
		entries: make(map[Key]cacheEntry),
	}
}

// GetRuleSet implements Repository.
func (c *Caching) GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error) {
	key := Key{Type: ruleType, Area: area}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.fresh(entry) {
		c.metrics.RecordCacheHit()
		return entry.set, nil
	}
	c.metrics.RecordCacheMiss()

	set, err := c.inner.GetRuleSet(ctx, ruleType, area)
	if err != nil {
		// Misses are not cached; a missing area that appears later must
		// be visible immediately.
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{set: set, cachedAt: time.Now()}
	c.mu.Unlock()
	return set, nil
}

// SaveRule implements Repository, writing through and invalidating the
// whole cache. Mutations are rare and correctness beats cleverness here:
// a rule edit may move a rule between areas, so per-key invalidation
// would have to track both sides.
func (c *Caching) SaveRule(ctx context.Context, def rule.Definition) error {
	if err := c.inner.SaveRule(ctx, def); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// ListAreas implements Repository, passing through uncached.
func (c *Caching) ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error) {
	return c.inner.ListAreas(ctx, ruleType)
}

// Invalidate drops every cached rule set.
func (c *Caching) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]cacheEntry)
}

func (c *Caching) fresh(entry cacheEntry) bool {
	if c.config.TTL <= 0 {
		return true
	}
	return time.Since(entry.cachedAt) <= c.config.TTL
}
