package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurstIsHonored(t *testing.T) {
	l := New(3, time.Hour)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("event-1", "guest@example.com"), "call %d of the burst should pass", i+1)
	}
	// The bucket is drained and refills far too slowly for this test
	assert.False(t, l.Allow("event-1", "guest@example.com"))
}

func TestUsersAreIndependent(t *testing.T) {
	l := New(1, time.Hour)
	defer l.Stop()

	assert.True(t, l.Allow("event-1", "a@example.com"))
	assert.False(t, l.Allow("event-1", "a@example.com"))
	// One guest draining their bucket never affects another guest
	assert.True(t, l.Allow("event-1", "b@example.com"))
	// ...and the same guest at another event has their own bucket too
	assert.True(t, l.Allow("event-2", "a@example.com"))
}

func TestSustainedRateBelowRefillPasses(t *testing.T) {
	l := New(2, 5*time.Millisecond)
	defer l.Stop()

	// Writing slower than the refill interval must never be throttled
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("event-1", "slow@example.com"))
		time.Sleep(6 * time.Millisecond)
	}
}

func TestConcurrentBurstAllowsExactlyBurstCalls(t *testing.T) {
	const burst = 5
	const calls = 25
	l := New(burst, time.Hour)
	defer l.Stop()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("event-1", "rusher@example.com") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(burst), allowed.Load())
}

func TestCleanupRemovesIdleBuckets(t *testing.T) {
	l := New(1, time.Hour)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		l.Allow("event-1", fmt.Sprintf("guest%d@example.com", i))
	}
	l.mu.Lock()
	for _, entry := range l.limiters {
		entry.lastAccess = time.Now().Add(-2 * idleExpiry)
	}
	l.mu.Unlock()

	l.cleanup()

	l.mu.Lock()
	remaining := len(l.limiters)
	l.mu.Unlock()
	assert.Zero(t, remaining)
}
