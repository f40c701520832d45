package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/pii"
)

// Cache stores scan results keyed by document content, so re-uploading an
// unchanged file skips extraction and detection.
type Cache interface {
	Get(ctx context.Context, key string) ([]pii.Finding, bool, error)
	Set(ctx context.Context, key string, findings []pii.Finding) error
	Stats() Stats
	Clear(ctx context.Context) error
	Close() error
}

// Config contains scan cache configuration
type Config struct {
	Backend        string        `yaml:"backend" mapstructure:"backend"` // redis or memory
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Stats contains cache performance counters
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// New creates the cache backend selected by cfg.Backend.
func New(cfg *Config, logger *zap.Logger) (Cache, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg, logger)
	case "memory", "":
		return NewMemoryCache(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// Key derives a deterministic cache key from the scan mode, the file name
// and the raw payload. Identical uploads always hit the same entry.
func Key(prefix, mode, fileName string, data []byte) string {
	hasher := sha256.New()
	hasher.Write([]byte(mode))
	hasher.Write([]byte{0})
	hasher.Write([]byte(fileName))
	hasher.Write([]byte{0})
	hasher.Write(data)

	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:scan:%s", prefix, hash[:32])
}
