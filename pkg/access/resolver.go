package access

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Policy is one access-control document: if all of its ClaimMatchers match
// the caller's claims, it contributes AllowedGroupIDs to the result.
type Policy struct {
	ID              string
	Priority        int
	ClaimMatchers   []ClaimMatcher
	AllowedGroupIDs []string
}

// volatileClaimFields are stripped before hashing the cache key, since they
// change on every token mint/refresh without affecting which policies
// apply (spec §4.5).
var volatileClaimFields = []string{"exp", "iat", "jti", "nbf", "auth_time", "session_state", "nonce"}

// GroupActivator reports which groups are currently active, so resolved
// results can be intersected against it.
type GroupActivator interface {
	ActiveGroups() map[string]bool
}

// PolicyStore supplies the active policy set, sorted by the caller by
// descending priority is NOT assumed — Resolver sorts internally.
type PolicyStore interface {
	ActivePolicies() []Policy
}

type cacheEntry struct {
	groups    map[string]bool
	expiresAt time.Time
}

// Resolver evaluates claims against policies to produce a caller's allowed
// tool-group set, cached by a canonical hash of the claims.
type Resolver struct {
	policies PolicyStore
	groups   GroupActivator
	ttl      time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Config controls cache TTL.
type Config struct {
	TTLSeconds int
}

func (c Config) ttl() time.Duration {
	if c.TTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// NewResolver builds a Resolver.
func NewResolver(policies PolicyStore, groups GroupActivator, config Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		policies: policies,
		groups:   groups,
		ttl:      config.ttl(),
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

// ResolveGroups returns the set of group ids the given claims resolve to.
func (r *Resolver) ResolveGroups(claims map[string]any) (map[string]bool, error) {
	canonical, key, err := canonicalCacheKey(claims)
	if err != nil {
		return nil, err
	}

	if groups, ok := r.lookup(key); ok {
		return groups, nil
	}

	groups := r.evaluate(canonical)
	r.store(key, groups)
	return groups, nil
}

func (r *Resolver) evaluate(canonicalClaims []byte) map[string]bool {
	policies := append([]Policy(nil), r.policies.ActivePolicies()...)
	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].Priority > policies[j].Priority
	})

	result := make(map[string]bool)
	for _, p := range policies {
		matched, err := policyMatches(p, canonicalClaims)
		if err != nil {
			r.logger.Warn("access: policy evaluation error, treating as non-matching",
				"policyId", p.ID, "error", err)
			continue
		}
		if !matched {
			continue
		}
		for _, g := range p.AllowedGroupIDs {
			result[g] = true
		}
	}

	if r.groups == nil {
		return result
	}
	active := r.groups.ActiveGroups()
	for g := range result {
		if !active[g] {
			delete(result, g)
		}
	}
	return result
}

func policyMatches(p Policy, canonicalClaims []byte) (bool, error) {
	for _, m := range p.ClaimMatchers {
		ok, err := m.Match(canonicalClaims)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *Resolver) lookup(key string) (map[string]bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.groups, true
}

func (r *Resolver) store(key string, groups map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{groups: groups, expiresAt: time.Now().Add(r.ttl)}
}

// Invalidate clears the entire resolution cache, per the admin "policy
// changed" operation in §4.5.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

// canonicalCacheKey strips volatile fields and produces a deterministic
// JSON encoding (sorted keys, via an intermediate map round-trip) so the
// SHA-256 hash is stable across semantically-identical claim sets.
func canonicalCacheKey(claims map[string]any) (canonicalJSON []byte, hashHex string, err error) {
	stripped := make(map[string]any, len(claims))
	for k, v := range claims {
		stripped[k] = v
	}
	for _, f := range volatileClaimFields {
		delete(stripped, f)
	}

	canonicalJSON, err = json.Marshal(stripped)
	if err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256(canonicalJSON)
	return canonicalJSON, hex.EncodeToString(sum[:]), nil
}
