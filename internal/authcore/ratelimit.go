// ABOUTME: Per-source attempt limiter guarding the authentication ceremonies
// ABOUTME: Allows 10 attempts per source within a 15 minute window

package authcore

import (
	"sync"
	"time"
)

const (
	rateLimitWindow      = 15 * time.Minute
	rateLimitMaxAttempts = 10
)

type rateBucket struct {
	attempts int
	resetAt  time.Time
}

// RateLimiter tracks authentication attempts per opaque source key
// (typically the client address). A fully exhausted bucket does not
// extend its own window: denied attempts are not counted.
type RateLimiter struct {
	mu      sync.Mutex
	clock   Clock
	buckets map[string]*rateBucket
}

// NewRateLimiter returns an empty limiter using the given clock.
func NewRateLimiter(clock Clock) *RateLimiter {
	return &RateLimiter{
		clock:   clock,
		buckets: make(map[string]*rateBucket),
	}
}

// Allow reports whether source may make another attempt, counting it if so.
func (r *RateLimiter) Allow(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	bucket, ok := r.buckets[source]
	if !ok || now.After(bucket.resetAt) {
		r.buckets[source] = &rateBucket{
			attempts: 1,
			resetAt:  now.Add(rateLimitWindow),
		}
		return true
	}
	if bucket.attempts >= rateLimitMaxAttempts {
		return false
	}
	bucket.attempts++
	return true
}

// Sweep drops buckets whose window has elapsed.
func (r *RateLimiter) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	for source, bucket := range r.buckets {
		if now.After(bucket.resetAt) {
			delete(r.buckets, source)
		}
	}
}
