package connection

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agenthost/pkg/authn"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

const testKid = "manager-test-key"

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newTestAuth(t *testing.T) (*authn.Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []jwk{{Kty: "RSA", Kid: testKid, Alg: "RS256", Use: "sig", N: n, E: e}},
		})
	}))
	t.Cleanup(jwksSrv.Close)

	keys := authn.NewKeySet(jwksSrv.URL, nil)
	verifier := authn.NewVerifier(keys, authn.Config{ExpectedIssuer: "https://issuer.test"})
	return verifier, key
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "https://issuer.test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

type recordingHandler struct {
	received chan protocol.Message
}

func (h *recordingHandler) HandleInbound(_ context.Context, _ *Connection, msg protocol.Message) {
	h.received <- msg
}

func setupTestManager(t *testing.T) (*Manager, *httptest.Server, *rsa.PrivateKey, *recordingHandler) {
	t.Helper()
	verifier, key := newTestAuth(t)
	handler := &recordingHandler{received: make(chan protocol.Message, 8)}
	mgr := NewManager(verifier, handler, Config{PingInterval: time.Hour})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = mgr.Accept(w, r)
	}))
	t.Cleanup(srv.Close)
	return mgr, srv, key, handler
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):] + "?token=" + token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestAcceptRejectsMissingToken(t *testing.T) {
	_, srv, _, _ := setupTestManager(t)
	url := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusCode(protocol.CloseAuthFailure), websocket.CloseStatus(err))
}

func TestAcceptRegistersAuthenticatedConnection(t *testing.T) {
	mgr, srv, key, _ := setupTestManager(t)
	token := signTestToken(t, key, "user-1")
	dial(t, srv, token)

	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
	ids := mgr.ConnectionsForUser("user-1")
	assert.Len(t, ids, 1)
}

type fakeGroupResolver struct {
	groups map[string]bool
	err    error
}

func (f *fakeGroupResolver) ResolveGroups(map[string]any) (map[string]bool, error) {
	return f.groups, f.err
}

func TestAcceptPopulatesAllowedGroupsFromResolver(t *testing.T) {
	verifier, key := newTestAuth(t)
	handler := &recordingHandler{received: make(chan protocol.Message, 8)}
	mgr := NewManager(verifier, handler, Config{PingInterval: time.Hour})
	mgr.SetGroupResolver(&fakeGroupResolver{groups: map[string]bool{"ops": true}})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = mgr.Accept(w, r)
	}))
	t.Cleanup(srv.Close)

	token := signTestToken(t, key, "user-1")
	dial(t, srv, token)

	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
	ids := mgr.ConnectionsForUser("user-1")
	require.Len(t, ids, 1)
	conn, ok := mgr.Get(ids[0])
	require.True(t, ok)
	assert.True(t, conn.AllowedGroups["ops"])
}

func TestAcceptToleratesGroupResolverError(t *testing.T) {
	verifier, key := newTestAuth(t)
	handler := &recordingHandler{received: make(chan protocol.Message, 8)}
	mgr := NewManager(verifier, handler, Config{PingInterval: time.Hour})
	mgr.SetGroupResolver(&fakeGroupResolver{err: assert.AnError})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = mgr.Accept(w, r)
	}))
	t.Cleanup(srv.Close)

	token := signTestToken(t, key, "user-1")
	dial(t, srv, token)

	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestAcceptRunsConnectHookBeforeReadLoop(t *testing.T) {
	verifier, key := newTestAuth(t)
	handler := &recordingHandler{received: make(chan protocol.Message, 8)}
	mgr := NewManager(verifier, handler, Config{PingInterval: time.Hour})

	hookCalled := make(chan string, 1)
	mgr.SetConnectHook(func(_ context.Context, conn *Connection, r *http.Request) error {
		hookCalled <- r.URL.Query().Get("conversationId")
		return nil
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = mgr.Accept(w, r)
	}))
	t.Cleanup(srv.Close)

	token := signTestToken(t, key, "user-1")
	url := "ws" + srv.URL[len("http"):] + "?token=" + token + "&conversationId=conv-42"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	select {
	case got := <-hookCalled:
		assert.Equal(t, "conv-42", got)
	case <-time.After(time.Second):
		t.Fatal("connect hook was not called")
	}
}

func TestAcceptClosesConnectionWhenConnectHookErrors(t *testing.T) {
	verifier, key := newTestAuth(t)
	handler := &recordingHandler{received: make(chan protocol.Message, 8)}
	mgr := NewManager(verifier, handler, Config{PingInterval: time.Hour})
	mgr.SetConnectHook(func(context.Context, *Connection, *http.Request) error {
		return assert.AnError
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = mgr.Accept(w, r)
	}))
	t.Cleanup(srv.Close)

	token := signTestToken(t, key, "user-1")
	url := "ws" + srv.URL[len("http"):] + "?token=" + token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, _ = websocket.Dial(ctx, url, nil)

	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestReadLoopDispatchesRegisteredMessageToHandler(t *testing.T) {
	mgr, srv, key, handler := setupTestManager(t)
	token := signTestToken(t, key, "user-1")
	conn := dial(t, srv, token)
	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{Content: "hi"})
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))

	select {
	case got := <-handler.received:
		assert.Equal(t, protocol.TypeDataMessageSend, got.Type)
	case <-time.After(time.Second):
		t.Fatal("handler did not receive dispatched message")
	}
}

func TestReadLoopRejectsUnregisteredType(t *testing.T) {
	mgr, srv, key, _ := setupTestManager(t)
	token := signTestToken(t, key, "user-1")
	conn := dial(t, srv, token)
	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	raw := []byte(`{"type":"bogus.type","message_id":"m1","timestamp":1}`)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, raw))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got protocol.Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, protocol.TypeSystemError, got.Type)

	var payload protocol.ErrorPayload
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, protocol.CodeUnknownMessageType, payload.Code)
}

func TestSendAndBroadcastToConversation(t *testing.T) {
	mgr, srv, key, _ := setupTestManager(t)
	tokenA := signTestToken(t, key, "user-a")
	tokenB := signTestToken(t, key, "user-b")
	connA := dial(t, srv, tokenA)
	connB := dial(t, srv, tokenB)
	require.Eventually(t, func() bool { return mgr.ActiveConnections() == 2 }, time.Second, 10*time.Millisecond)

	idsA := mgr.ConnectionsForUser("user-a")
	require.Len(t, idsA, 1)

	mgr.Send(idsA[0], protocol.TypeDataMessageAck, "conv-1", protocol.MessageAckPayload{MessageID: "m1"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := connA.Read(ctx)
	require.NoError(t, err)
	var got protocol.Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, protocol.TypeDataMessageAck, got.Type)

	// Subscribe connB to conv-1; it then receives the conversation broadcast.
	mgr.mu.RLock()
	cB, ok := mgr.byID[mgr.ConnectionsForUser("user-b")[0]]
	mgr.mu.RUnlock()
	require.True(t, ok)
	mgr.Subscribe(cB, "conv-1")

	mgr.BroadcastToConversation("conv-1", "", protocol.TypeDataContentChunk, protocol.ContentChunkPayload{MessageID: "m2", Content: "hello"})
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	_, data2, err := connB.Read(ctx2)
	require.NoError(t, err)
	var got2 protocol.Message
	require.NoError(t, json.Unmarshal(data2, &got2))
	assert.Equal(t, protocol.TypeDataContentChunk, got2.Type)
}
