// Package ratelimit implements per-(userId, messageType) token-bucket rate
// limiting for inbound protocol messages (spec §4.4).
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Rule configures one message type's bucket.
type Rule struct {
	MaxRequests   int
	WindowSeconds float64
}

// refillRate returns tokens granted per second under this rule.
func (r Rule) refillRate() float64 {
	if r.WindowSeconds <= 0 {
		return float64(r.MaxRequests)
	}
	return float64(r.MaxRequests) / r.WindowSeconds
}

// bucket is a single token bucket for one (userId, messageType) pair.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastSeen   time.Time
}

func newBucket(rule Rule) *bucket {
	return &bucket{
		tokens:     float64(rule.MaxRequests),
		capacity:   float64(rule.MaxRequests),
		refillRate: rule.refillRate(),
		lastSeen:   time.Now(),
	}
}

// refill advances token state by elapsed time. Caller holds the lock.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastSeen).Seconds()
	if elapsed <= 0 {
		return
	}
	b.lastSeen = now
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
}

// tryConsume attempts to consume one token, returning (allowed, retryAfter).
func (b *bucket) tryConsume(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, 0
	}
	needed := 1 - b.tokens
	wait := time.Duration(math.Ceil(needed/b.refillRate*1000)) * time.Millisecond
	return false, wait
}

func (b *bucket) idleSince(now time.Time, idle time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastSeen) >= idle
}
