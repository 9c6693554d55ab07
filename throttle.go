package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultLoginAttemptsPerMinute = 10
	DefaultLoginBurst             = 5

	maxTrackedLoginKeys = 10000
)

// LoginThrottle limits sign in attempts per key, usually the email
type LoginThrottle struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLoginThrottle allows perMinute attempts per key with the given burst
func NewLoginThrottle(perMinute, burst int) *LoginThrottle {
	if perMinute <= 0 {
		perMinute = DefaultLoginAttemptsPerMinute
	}
	if burst <= 0 {
		burst = DefaultLoginBurst
	}
	return &LoginThrottle{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perMinute) / 60,
		burst:    burst,
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (t *LoginThrottle) WithClock(now func() time.Time) *LoginThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

// Allow consumes one attempt for key
func (t *LoginThrottle) Allow(key string) bool {
	if t == nil {
		return true
	}

	now := t.now()
	return t.getLimiter(key, now).AllowN(now, 1)
}

func (t *LoginThrottle) getLimiter(key string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	limiter, exists := t.limiters[key]
	if exists {
		return limiter
	}

	if len(t.limiters) >= maxTrackedLoginKeys {
		t.sweep(now)
	}

	limiter = rate.NewLimiter(t.limit, t.burst)
	t.limiters[key] = limiter
	return limiter
}

// sweep drops limiters that refilled completely, must be called with mu held
func (t *LoginThrottle) sweep(now time.Time) {
	for key, limiter := range t.limiters {
		if limiter.TokensAt(now) >= float64(t.burst) {
			delete(t.limiters, key)
		}
	}
}
