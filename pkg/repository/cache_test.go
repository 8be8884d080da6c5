package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"originware/guardrail/pkg/rule"
)

// countingRepo wraps a Memory repository and counts calls reaching it.
type countingRepo struct {
	inner *Memory

	mu    sync.Mutex
	gets  int
	saves int
	lists int
}

func newCountingRepo() *countingRepo {
	return &countingRepo{inner: NewMemory()}
}

func (c *countingRepo) GetRuleSet(ctx context.Context, ruleType rule.RuleType, area string) (*rule.RuleSet, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.inner.GetRuleSet(ctx, ruleType, area)
}

func (c *countingRepo) SaveRule(ctx context.Context, def rule.Definition) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.inner.SaveRule(ctx, def)
}

func (c *countingRepo) ListAreas(ctx context.Context, ruleType rule.RuleType) ([]string, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.inner.ListAreas(ctx, ruleType)
}

func (c *countingRepo) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func TestCachingServesRepeatReadsFromCache(t *testing.T) {
	backing := newCountingRepo()
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))

	cached := NewCaching(backing, DefaultCacheConfig(), nil)
	ctx := context.Background()

	first, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP")
	if err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}
	second, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP")
	if err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}

	if got := backing.getCount(); got != 1 {
		t.Errorf("backing store reads = %d, want 1", got)
	}
	if first != second {
		t.Error("cache returned a different rule set instance on the second read")
	}
}

func TestCachingExpiresEntriesAfterTTL(t *testing.T) {
	backing := newCountingRepo()
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))

	cached := NewCaching(backing, CacheConfig{TTL: 20 * time.Millisecond}, nil)
	ctx := context.Background()

	if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}

	if got := backing.getCount(); got != 2 {
		t.Errorf("backing store reads = %d, want 2 after TTL expiry", got)
	}
}

func TestCachingZeroTTLNeverExpires(t *testing.T) {
	backing := newCountingRepo()
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))

	cached := NewCaching(backing, CacheConfig{TTL: 0}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
			t.Fatalf("GetRuleSet: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := backing.getCount(); got != 1 {
		t.Errorf("backing store reads = %d, want 1 with TTL disabled", got)
	}
}

func TestCachingSaveRuleWritesThroughAndInvalidates(t *testing.T) {
	backing := newCountingRepo()
	cached := NewCaching(backing, DefaultCacheConfig(), nil)
	ctx := context.Background()

	if err := cached.SaveRule(ctx, statusDef(1, "application.lender")); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if backing.saves != 1 {
		t.Fatalf("backing store writes = %d, want 1", backing.saves)
	}

	set, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP")
	if err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("set.Len() = %d, want 1", set.Len())
	}

	// The second save must evict the cached set so the next read sees
	// both rules.
	if err := cached.SaveRule(ctx, statusDef(2, "application.amount")); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	set, err = cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP")
	if err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("set.Len() after second save = %d, want 2", set.Len())
	}
}

func TestCachingRejectedSaveKeepsCache(t *testing.T) {
	backing := newCountingRepo()
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))

	cached := NewCaching(backing, DefaultCacheConfig(), nil)
	ctx := context.Background()

	if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}

	bad := statusDef(2, "application.amount")
	bad.Operator = "launders"
	if err := cached.SaveRule(ctx, bad); err == nil {
		t.Fatal("SaveRule with unknown operator succeeded, want error")
	}

	if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
		t.Fatalf("GetRuleSet: %v", err)
	}
	if got := backing.getCount(); got != 1 {
		t.Errorf("backing store reads = %d, want 1 (rejected save must not invalidate)", got)
	}
}

func TestCachingDoesNotCacheMisses(t *testing.T) {
	backing := newCountingRepo()
	cached := NewCaching(backing, DefaultCacheConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetRuleSet = %v, want ErrNotFound", err)
		}
	}
	if got := backing.getCount(); got != 2 {
		t.Errorf("backing store reads = %d, want 2 (misses are not cached)", got)
	}

	// An area appearing later is visible on the next read.
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))
	if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
		t.Fatalf("GetRuleSet after area appeared: %v", err)
	}
}

func TestCachingListAreasPassesThrough(t *testing.T) {
	backing := newCountingRepo()
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))

	cached := NewCaching(backing, DefaultCacheConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		areas, err := cached.ListAreas(ctx, rule.TypeStatus)
		if err != nil {
			t.Fatalf("ListAreas: %v", err)
		}
		if len(areas) != 1 || areas[0] != "DOC_PREP" {
			t.Errorf("ListAreas = %v, want [DOC_PREP]", areas)
		}
	}
	if backing.lists != 2 {
		t.Errorf("backing store list calls = %d, want 2", backing.lists)
	}
}

func TestCachingRecordsHitAndMissMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics("guardrail", registry)

	backing := newCountingRepo()
	backing.inner.Load(mustRuleSet(t, statusDef(1, "application.lender")))

	cached := NewCaching(backing, DefaultCacheConfig(), metrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.GetRuleSet(ctx, rule.TypeStatus, "DOC_PREP"); err != nil {
			t.Fatalf("GetRuleSet: %v", err)
		}
	}

	if got := testutil.ToFloat64(metrics.cacheMisses); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.cacheHits); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
}
