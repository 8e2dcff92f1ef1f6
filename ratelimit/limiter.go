// Package ratelimit throttles outbound gateway sends per key.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key (e.g. one per gateway).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter   *rate.Limiter
	perSecond int
}

// New creates a new rate limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether one send for key may proceed now.
// A perSecond of 0 means unlimited (always returns true).
func (l *Limiter) Allow(key string, perSecond int) bool {
	if perSecond <= 0 {
		return true
	}
	return l.get(key, perSecond).Allow()
}

// Wait blocks until a send for key may proceed or the context is done.
// A perSecond of 0 means unlimited (returns immediately).
func (l *Limiter) Wait(ctx context.Context, key string, perSecond int) error {
	if perSecond <= 0 {
		return nil
	}
	return l.get(key, perSecond).Wait(ctx)
}

// Reset clears the state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// get returns the bucket for key, replacing it when the configured rate changed.
// Buckets start full with a burst equal to the per-second rate.
func (l *Limiter) get(key string, perSecond int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.perSecond != perSecond {
		b = &bucket{
			limiter:   rate.NewLimiter(rate.Limit(perSecond), perSecond),
			perSecond: perSecond,
		}
		l.buckets[key] = b
	}
	return b.limiter
}
