package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chainscope/pkg/errors"
)

// Limiter provides rate limiting for one named resource
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a limiter allowing rps requests per second with the given burst
func NewLimiter(name string, rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// KeyedLimiter keeps one limiter per client key (remote address)
type KeyedLimiter struct {
	name  string
	rps   float64
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*keyedEntry
}

type keyedEntry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// NewKeyedLimiter creates a per-key limiter. Keys idle for longer than ttl are forgotten.
func NewKeyedLimiter(name string, rps float64, burst int, ttl time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		name:     name,
		rps:      rps,
		burst:    burst,
		ttl:      ttl,
		limiters: make(map[string]*keyedEntry),
	}
}

// Allow reports whether key may make a request now
func (k *KeyedLimiter) Allow(key string) bool {
	now := time.Now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.ttl > 0 {
		for id, e := range k.limiters {
			if now.Sub(e.lastSeen) > k.ttl {
				delete(k.limiters, id)
			}
		}
	}

	e, ok := k.limiters[key]
	if !ok {
		e = &keyedEntry{limiter: NewLimiter(k.name+":"+key, k.rps, k.burst)}
		k.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Len returns the number of tracked keys
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
