package authn

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySetPublicKeyFetchesOnMiss(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newTestJWKSServer(t, key)

	ks := NewKeySet(srv.URL, nil)
	pub, err := ks.PublicKey(t.Context(), testKid)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, pub.N)
	assert.Equal(t, key.PublicKey.E, pub.E)
}

func TestKeySetPublicKeyUnknownKidReturnsError(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newTestJWKSServer(t, key)

	ks := NewKeySet(srv.URL, nil)
	_, err = ks.PublicKey(t.Context(), "no-such-kid")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeySetPublicKeyCachesAfterFirstFetch(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	hits := 0
	inner := newTestJWKSServerHandler(t, key)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		inner(w, r)
	}))
	t.Cleanup(srv.Close)

	ks := NewKeySet(srv.URL, nil)
	_, err = ks.PublicKey(t.Context(), testKid)
	require.NoError(t, err)
	_, err = ks.PublicKey(t.Context(), testKid)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}
