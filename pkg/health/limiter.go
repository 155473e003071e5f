// pkg/health/limiter.go
package health

import (
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket. Each client may make maxRequests
// requests per window; tokens refill continuously.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	clients map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter creates a limiter. maxRequests <= 0 allows everything.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		clients:     make(map[string]*bucket),
	}
}

// Allow consumes a token for clientID and reports whether one was available.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.maxRequests <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	max := float64(rl.maxRequests)
	b, ok := rl.clients[clientID]
	if !ok {
		b = &bucket{tokens: max, lastSeen: now}
		rl.clients[clientID] = b
		rl.prune(now)
	} else {
		elapsed := now.Sub(b.lastSeen)
		b.tokens = min(max, b.tokens+max*float64(elapsed)/float64(rl.window))
		b.lastSeen = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// prune drops clients idle for two windows; a full bucket is
// indistinguishable from a new one.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-2 * rl.window)
	for id, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}
