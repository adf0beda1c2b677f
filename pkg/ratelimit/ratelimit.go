package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter controls the rate and timing of operations, incorporating optional jitter.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	lim      *rate.Limiter
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
}

// NewLimiter creates a new limiter with the given requests per second (rps)
// and jitter factor. Jitter must be between 0.0 and 1.0.
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}

	return &Limiter{
		lim:      rate.NewLimiter(rate.Limit(rps), 1),
		jitter:   jitter,
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Wait blocks until it is time to perform the next operation, or until the
// context is canceled. It applies jitter to the sleep time if configured.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}

	if err := l.lim.Wait(ctx); err != nil {
		return err
	}

	if l.jitter > 0 {
		// Only positive jitter delays; the token bucket already enforces the minimum spacing.
		jitterDuration := time.Duration(float64(l.interval) * l.jitter * rand.Float64())
		if jitterDuration > 0 {
			select {
			case <-time.After(jitterDuration):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Set holds one Limiter per key, created lazily with the same settings.
type Set struct {
	rps    float64
	jitter float64
	mu     sync.Mutex
	lims   map[string]*Limiter
}

// NewSet returns a Set whose limiters share rps and jitter.
func NewSet(rps, jitter float64) *Set {
	return &Set{
		rps:    rps,
		jitter: jitter,
		lims:   make(map[string]*Limiter),
	}
}

// For returns the limiter for key.
func (s *Set) For(key string) *Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lims[key]
	if !ok {
		l = NewLimiter(s.rps, s.jitter)
		s.lims[key] = l
	}
	return l
}
