package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/docsentry/internal/config"
)

// clientLimiter tracks a token-bucket limiter per client IP. Idle entries
// are swept periodically so the map does not grow unbounded.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int
	enabled bool
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	cl := &clientLimiter{
		clients: make(map[string]*clientEntry),
		limit:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   cfg.Burst,
		enabled: cfg.Enabled,
	}
	if cl.enabled {
		go cl.cleanup()
	}
	return cl
}

// Allow reports whether the given client may make a request now.
func (cl *clientLimiter) Allow(clientIP string) bool {
	if !cl.enabled {
		return true
	}

	cl.mu.Lock()
	entry, ok := cl.clients[clientIP]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[clientIP] = entry
	}
	entry.lastSeen = time.Now()
	cl.mu.Unlock()

	return entry.limiter.Allow()
}

func (cl *clientLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cl.mu.Lock()
		for ip, entry := range cl.clients {
			if time.Since(entry.lastSeen) > 10*time.Minute {
				delete(cl.clients, ip)
			}
		}
		cl.mu.Unlock()
	}
}
