package semantic

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
)

// CachedAnalyzer memoizes successful analyses by content hash and
// language. Failures are never cached.
type CachedAnalyzer struct {
	next   Analyzer
	cache  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// NewCachedAnalyzer wraps next with a cache.
func NewCachedAnalyzer(next Analyzer, ttl, cleanupInterval time.Duration) *CachedAnalyzer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	return &CachedAnalyzer{
		next:  next,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Analyze implements Analyzer.
func (c *CachedAnalyzer) Analyze(ctx context.Context, text, language string) (*Scores, error) {
	key := compliance.HashContent(text) + ":" + language

	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		metrics.SemanticCache.WithLabelValues("hit").Inc()
		s := v.(Scores)
		return &s, nil
	}

	c.misses.Add(1)
	metrics.SemanticCache.WithLabelValues("miss").Inc()

	scores, err := c.next.Analyze(ctx, text, language)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, *scores)
	return scores, nil
}

// Stats returns hit and miss counts.
func (c *CachedAnalyzer) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.ItemCount(),
	}
}

// Flush drops every cached analysis, e.g. after a model change.
func (c *CachedAnalyzer) Flush() {
	c.cache.Flush()
}

// HealthCheck delegates to the wrapped analyzer when it supports health checks.
func (c *CachedAnalyzer) HealthCheck(ctx context.Context) error {
	if hc, ok := c.next.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
