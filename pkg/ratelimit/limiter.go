package ratelimit

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// Config maps a message type to its bucket rule. Message types absent from
// Config bypass rate limiting entirely (spec §4.4).
type Config map[protocol.MessageType]Rule

// DefaultConfig returns the rate-limit defaults table (spec §6).
func DefaultConfig() Config {
	return Config{
		protocol.TypeDataMessageSend:    {MaxRequests: 10, WindowSeconds: 60},
		protocol.TypeDataResponseSubmit: {MaxRequests: 30, WindowSeconds: 60},
		protocol.TypeDataToolResult:     {MaxRequests: 20, WindowSeconds: 60},
		protocol.TypeDataAuditEvents:    {MaxRequests: 10, WindowSeconds: 60},
	}
}

// key composes a bucket lookup key from user id and message type, following
// the composite-key idiom used for per-key limiter registries.
func key(userID string, msgType protocol.MessageType) string {
	return userID + "\x00" + string(msgType)
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed      bool
	RetryAfterMs int64
}

// Limiter manages token buckets keyed by (userId, messageType). Safe for
// concurrent use across connections.
type Limiter struct {
	config  Config
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New builds a Limiter from the given per-type rules.
func New(config Config) *Limiter {
	return &Limiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks and consumes one token for (userID, msgType). Message types
// with no configured Rule always return Allowed: true.
func (l *Limiter) Allow(userID string, msgType protocol.MessageType) Decision {
	rule, ok := l.config[msgType]
	if !ok {
		return Decision{Allowed: true}
	}

	b := l.getOrCreate(key(userID, msgType), rule)
	allowed, retryAfter := b.tryConsume(time.Now())
	return Decision{Allowed: allowed, RetryAfterMs: retryAfter.Milliseconds()}
}

func (l *Limiter) getOrCreate(k string, rule Rule) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[k]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[k]; ok {
		return b
	}
	b = newBucket(rule)
	l.buckets[k] = b
	return b
}

// GC removes buckets that have not been touched for at least idle. Intended
// to run periodically from a background goroutine owned by the caller.
func (l *Limiter) GC(idle time.Duration) int {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, b := range l.buckets {
		if b.idleSince(now, idle) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets, for tests and diagnostics.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}
