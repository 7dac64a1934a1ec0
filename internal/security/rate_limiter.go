package security

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/iron-mask/internal/config"
	"golang.org/x/time/rate"
)

const (
	idleClientTTL   = time.Hour
	cleanupInterval = 10 * time.Minute
)

// RateLimiter implements per-client token bucket rate limiting in front of
// the relay endpoint
type RateLimiter struct {
	config  config.RateLimitConfig
	clients map[string]*clientLimiter
	mu      sync.RWMutex
	now     func() time.Time
}

// clientLimiter pairs a token bucket with the last time it was used
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Enabled reports whether requests are limited at all
func (r *RateLimiter) Enabled() bool {
	return r.config.Enabled && r.config.RequestsPerMin > 0
}

// Allow checks if a request from the given client is allowed. When it is
// not, retryAfter says how long until a token is available.
func (r *RateLimiter) Allow(clientIP string) (allowed bool, retryAfter time.Duration) {
	if !r.Enabled() {
		return true, 0
	}

	client := r.getClient(clientIP)
	now := r.now()

	client.mu.Lock()
	defer client.mu.Unlock()
	client.lastSeen = now

	res := client.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// getClient gets or creates the limiter for a client
func (r *RateLimiter) getClient(clientIP string) *clientLimiter {
	r.mu.RLock()
	client, exists := r.clients[clientIP]
	r.mu.RUnlock()

	if exists {
		return client
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := r.clients[clientIP]; exists {
		return client
	}

	burst := r.config.Burst
	if burst <= 0 {
		burst = 1
	}
	client = &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(float64(r.config.RequestsPerMin)/60.0), burst),
		lastSeen: r.now(),
	}

	r.clients[clientIP] = client
	return client
}

// CleanupIdleClients removes limiters not used within ttl
func (r *RateLimiter) CleanupIdleClients(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	removed := 0

	for ip, client := range r.clients {
		client.mu.Lock()
		if client.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
		client.mu.Unlock()
	}

	return removed
}

// StartCleanupRoutine drops idle clients in the background until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupIdleClients(idleClientTTL)
			}
		}
	}()
}
