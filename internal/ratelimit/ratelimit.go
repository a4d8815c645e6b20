// Package ratelimit guards the per-user write frequency inside an event.
//
// Every (event, user) pair owns its own token bucket, so one guest hammering the submit button
// can never throttle anybody else - not even inside the same event.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// How long an idle bucket survives before the cleanup removes it
const idleExpiry = time.Hour

// limiterEntry wraps a rate limiter with its last access time
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter implements per-(event, user) rate limiting with automatic cleanup of idle entries
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	stop     chan struct{}
}

// New creates a new limiter. Every user may issue `burst` writes at once; one spent write becomes
// available again after `refill`
func New(burst int, refill time.Duration) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Every(refill),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop(5 * time.Minute)
	return l
}

// Allow checks if the given user may issue another write inside the given event right now.
// Calls that return false consume nothing - only the excess calls of a burst are refused
func (l *Limiter) Allow(eventID, email string) bool {
	key := eventID + "/" + email
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(l.rate, l.burst),
		}
		l.limiters[key] = entry
	}
	entry.lastAccess = time.Now()
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Stop ends the background cleanup goroutine
func (l *Limiter) Stop() {
	close(l.stop)
}

// cleanupLoop periodically removes buckets nobody has touched for a while
func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	deadline := time.Now().Add(-idleExpiry)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.limiters {
		if entry.lastAccess.Before(deadline) {
			delete(l.limiters, key)
		}
	}
}
