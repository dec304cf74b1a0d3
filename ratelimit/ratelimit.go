// Package ratelimit provides the throttling capability injected into the
// credential service entry points. Keys are scoped by the caller, e.g.
// "login:tenant:email", and each key gets its own token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultLimit allows 10 requests per minute with a burst of 5.
const (
	DefaultRatePerMinute = 10
	DefaultBurst         = 5
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyLimiter is an in-memory token-bucket limiter keyed by caller-supplied
// strings. Idle keys are pruned so the map does not grow with every email
// address that ever hit a login form.
type KeyLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	maxIdle time.Duration
}

type Option func(*KeyLimiter)

// WithRate overrides the per-minute request rate and burst.
func WithRate(perMinute, burst int) Option {
	return func(l *KeyLimiter) {
		l.limit = rate.Limit(float64(perMinute) / 60.0)
		l.burst = burst
	}
}

// WithMaxIdle overrides how long an unused key survives before pruning.
func WithMaxIdle(d time.Duration) Option {
	return func(l *KeyLimiter) { l.maxIdle = d }
}

func New(opts ...Option) *KeyLimiter {
	l := &KeyLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(float64(DefaultRatePerMinute) / 60.0),
		burst:   DefaultBurst,
		maxIdle: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether the request under key may proceed, consuming one
// token when it does.
func (l *KeyLimiter) Allow(ctx context.Context, key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Reset clears the bucket for a key, e.g. after a successful verification.
func (l *KeyLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Prune drops keys idle longer than the configured window and returns how
// many were removed. Callers run it periodically.
func (l *KeyLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.maxIdle)
	n := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

// PruneLoop runs Prune on an interval until the context is cancelled.
func (l *KeyLimiter) PruneLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}
