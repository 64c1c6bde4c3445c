package tokenexchange

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Breaker states (spec §4.3).
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// ErrBreakerOpen is returned while the breaker is open; callers should map
// this to UPSTREAM_UNAVAILABLE (retryable).
var ErrBreakerOpen = errors.New("tokenexchange: circuit breaker open")

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	OnStateChange    func(from, to string)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	return c
}

// Breaker is a three-state (closed/open/half-open) circuit breaker guarding
// a single upstream dependency (token issuance), adapted from the pack's
// generic CircuitBreaker to a narrower single-purpose shape.
type Breaker struct {
	config BreakerConfig

	mu              sync.Mutex
	state           string
	failures        int
	lastStateChange time.Time
}

// NewBreaker builds a Breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{
		config:          config.withDefaults(),
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn under breaker protection, short-circuiting with
// ErrBreakerOpen when open and the recovery timeout has not elapsed.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.canExecute(); err != nil {
		return err
	}
	err := fn(ctx)
	b.recordResult(err)
	return err
}

func (b *Breaker) canExecute() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastStateChange) >= b.config.RecoveryTimeout {
			b.transitionLocked(StateHalfOpen)
			return nil
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

func (b *Breaker) recordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transitionLocked(StateClosed)
		}
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	}
}

func (b *Breaker) transitionLocked(to string) {
	from := b.state
	b.state = to
	b.lastStateChange = time.Now()
	b.failures = 0
	if b.config.OnStateChange != nil && from != to {
		go b.config.OnStateChange(from, to)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to closed (admin operation, §4.3).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed)
}
