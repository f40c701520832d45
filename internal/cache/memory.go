package cache

import (
	"context"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/pii"
)

// MemoryCache is an in-process scan result cache for single-instance
// deployments that do not run Redis.
type MemoryCache struct {
	store  *gocache.Cache
	logger *zap.Logger
	hits   int64
	misses int64
}

// NewMemoryCache creates a new in-process scan cache
func NewMemoryCache(config *Config, logger *zap.Logger) *MemoryCache {
	logger.Info("Scan cache initialized successfully",
		zap.String("backend", "memory"),
		zap.Duration("default_ttl", config.DefaultTTL))

	return &MemoryCache{
		store:  gocache.New(config.DefaultTTL, 2*config.DefaultTTL),
		logger: logger,
	}
}

// Get returns cached findings for key. A miss is not an error.
func (c *MemoryCache) Get(_ context.Context, key string) ([]pii.Finding, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}

	findings, ok := v.([]pii.Finding)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		c.store.Delete(key)
		return nil, false, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return findings, true, nil
}

// Set caches findings under key with the configured TTL.
func (c *MemoryCache) Set(_ context.Context, key string, findings []pii.Finding) error {
	// Copy so later mutation by the caller cannot leak into the cache.
	stored := make([]pii.Finding, len(findings))
	copy(stored, findings)
	c.store.SetDefault(key, stored)
	return nil
}

// Stats returns cache performance counters
func (c *MemoryCache) Stats() Stats {
	stats := Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Clear removes all cached scan results.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.store.Flush()
	return nil
}

// Close is a no-op for the in-process backend.
func (c *MemoryCache) Close() error {
	return nil
}
