package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fallback rate limiting knobs, used when the service config leaves them
// unset.
const (
	DefaultMaxFailedAttempts = 5
	DefaultRateLimitWindow   = 15 * time.Minute
	DefaultCleanupInterval   = 5 * time.Minute
)

// RateLimiterConfig holds the failed-login rate limiting knobs.
type RateLimiterConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	CleanupInterval   time.Duration
}

// DefaultRateLimiterConfig returns the fallback configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		Window:            DefaultRateLimitWindow,
		CleanupInterval:   DefaultCleanupInterval,
	}
}

// withDefaults fills unset knobs so a partially populated config never
// produces a limiter that blocks everyone or ticks at zero interval.
func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if c.Window <= 0 {
		c.Window = DefaultRateLimitWindow
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// failureLog is the per-IP failure count within the current window.
type failureLog struct {
	failures    int
	windowStart time.Time
}

// RateLimiter blocks token validation and login for IPs that have failed
// too many times within the window. Counts reset when the window rolls
// over or on a successful authentication.
type RateLimiter struct {
	mu       sync.RWMutex
	byIP     map[string]*failureLog
	config   RateLimiterConfig
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		byIP:   make(map[string]*failureLog),
		config: config.withDefaults(),
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.dropExpired()
		}
	}
}

func (rl *RateLimiter) dropExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for ip, log := range rl.byIP {
		if now.Sub(log.windowStart) > rl.config.Window {
			delete(rl.byIP, ip)
		}
	}
}

// Stop stops the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// IsLimited reports whether the IP has exhausted its failure budget within
// the current window.
func (rl *RateLimiter) IsLimited(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	log, ok := rl.byIP[ip]
	if !ok {
		return false
	}
	if time.Since(log.windowStart) > rl.config.Window {
		return false
	}

	return log.failures >= rl.config.MaxFailedAttempts
}

// RecordFailure counts a failed authentication attempt against the IP. A
// failure after the window expired starts a fresh window.
func (rl *RateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	log, ok := rl.byIP[ip]
	if !ok || time.Since(log.windowStart) > rl.config.Window {
		rl.byIP[ip] = &failureLog{
			failures:    1,
			windowStart: time.Now(),
		}
		return
	}

	log.failures++
}

// Reset clears the failure count for the IP.
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.byIP, ip)
}

// GetClientIP extracts the client IP from the request, preferring the
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For may carry a chain; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
