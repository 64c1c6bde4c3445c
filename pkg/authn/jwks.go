// Package authn verifies inbound bearer tokens against a JWKS-published key
// set and extracts the caller's role claims (spec §4.2).
package authn

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// jwk is the subset of a JSON Web Key this verifier understands: RSA
// signing keys only, which is all the issuer in scope ever publishes. No
// general-purpose JWK library exists anywhere in the reference corpus, so
// this is a small hand-rolled decoder (see DESIGN.md stdlib justification).
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// ErrKeyNotFound is returned when a kid is absent even after a refetch.
var ErrKeyNotFound = errors.New("authn: signing key not found")

// KeySet fetches and caches an issuer's JWKS document, resolving keys by kid.
type KeySet struct {
	issuerJWKSURL string
	httpClient    *http.Client

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewKeySet builds a KeySet that fetches from jwksURL on demand.
func NewKeySet(jwksURL string, httpClient *http.Client) *KeySet {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &KeySet{
		issuerJWKSURL: jwksURL,
		httpClient:    httpClient,
		keys:          make(map[string]*rsa.PublicKey),
	}
}

// PublicKey resolves kid to an *rsa.PublicKey. On a cache miss it fetches
// the JWKS document once and looks kid up a single time more. Only the swap
// of the key map is lock-protected; the fetch itself is not, so concurrent
// misses each fetch the document.
func (k *KeySet) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	if err := k.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

func (k *KeySet) lookup(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[kid]
	return key, ok
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.issuerJWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authn: fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authn: jwks endpoint returned %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("authn: decode jwks: %w", err)
	}

	next := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, key := range doc.Keys {
		if key.Kty != "RSA" || key.Kid == "" {
			continue
		}
		pub, err := decodeRSAPublicKey(key)
		if err != nil {
			continue
		}
		next[key.Kid] = pub
	}

	k.mu.Lock()
	k.keys = next
	k.mu.Unlock()
	return nil
}

func decodeRSAPublicKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("authn: decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("authn: decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
