// Package tokenexchange implements the shared OAuth2 client-credentials and
// RFC 8693 token-exchange cache: TTL-aware caching, single-flight fetch
// de-duplication, and circuit-breaker protection around the upstream token
// endpoint (spec §4.3).
package tokenexchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// GrantType distinguishes the two flows sharing this cache.
type GrantType string

// Grant types.
const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantTokenExchange     GrantType = "token_exchange"
)

// CacheKey identifies one cached token: grant type plus the
// subject/audience/client tuple that scopes it.
type CacheKey struct {
	Grant   GrantType
	Subject string
	Audience string
	ClientID string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Grant, k.Subject, k.Audience, k.ClientID)
}

// AccessToken is a cached upstream token.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
	Scope     string
}

// FetchFunc performs the actual network round-trip to mint a fresh token.
type FetchFunc func(ctx context.Context) (AccessToken, error)

// Config controls cache freshness and breaker behavior.
type Config struct {
	BufferSeconds    int
	BreakerConfig    BreakerConfig
	MaxWaitOnContend time.Duration
}

func (c Config) bufferDuration() time.Duration {
	if c.BufferSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.BufferSeconds) * time.Second
}

// UpstreamUnavailableError wraps ErrBreakerOpen into the spec's retryable
// UPSTREAM_UNAVAILABLE classification.
type UpstreamUnavailableError struct {
	Err error
}

func (e *UpstreamUnavailableError) Error() string { return "upstream unavailable: " + e.Err.Error() }
func (e *UpstreamUnavailableError) Unwrap() error  { return e.Err }

// Cache is the shared token cache used by both client-credentials and
// RFC 8693 token-exchange callers.
type Cache struct {
	config  Config
	breaker *Breaker
	flight  group[string, AccessToken]

	mu      sync.RWMutex
	entries map[string]AccessToken
}

// New builds a Cache.
func New(config Config) *Cache {
	return &Cache{
		config:  config,
		breaker: NewBreaker(config.BreakerConfig),
		entries: make(map[string]AccessToken),
	}
}

// GetOrFetch returns a fresh token for key, using the cache when not stale,
// otherwise invoking fetch exactly once per key even under concurrent
// callers (§4.3 single-flight), with the fetch itself breaker-protected.
func (c *Cache) GetOrFetch(ctx context.Context, key CacheKey, fetch FetchFunc) (AccessToken, error) {
	k := key.String()

	if tok, ok := c.lookup(k); ok && !c.isStale(tok) {
		return tok, nil
	}

	tok, err := c.flight.do(k, func() (AccessToken, error) {
		// Re-check: another goroutine may have refreshed while we queued
		// for the singleflight lock.
		if cached, ok := c.lookup(k); ok && !c.isStale(cached) {
			return cached, nil
		}

		var fetched AccessToken
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var ferr error
			fetched, ferr = fetch(ctx)
			return ferr
		})
		if err != nil {
			return AccessToken{}, err
		}

		c.store(k, fetched)
		return fetched, nil
	})

	if err != nil {
		if errors.Is(err, ErrBreakerOpen) {
			return AccessToken{}, &UpstreamUnavailableError{Err: err}
		}
		return AccessToken{}, err
	}
	return tok, nil
}

func (c *Cache) lookup(key string) (AccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.entries[key]
	return tok, ok
}

func (c *Cache) store(key string, tok AccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tok
}

func (c *Cache) isStale(tok AccessToken) bool {
	return time.Now().Add(c.config.bufferDuration()).After(tok.ExpiresAt)
}

// BreakerState exposes the underlying breaker state for diagnostics.
func (c *Cache) BreakerState() string {
	return c.breaker.State()
}

// ResetBreaker is the admin operation described in §4.3.
func (c *Cache) ResetBreaker() {
	c.breaker.Reset()
}

// Invalidate drops a single cached entry, forcing the next GetOrFetch to
// refetch.
func (c *Cache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}
