package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/agenthost/pkg/authn"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// InboundHandler dispatches a decoded inbound message for a connection.
// Implemented by pkg/router; kept as an interface here so this package never
// imports router (router imports connection, not the other way around).
type InboundHandler interface {
	HandleInbound(ctx context.Context, conn *Connection, msg protocol.Message)
}

// GroupResolver resolves a verified token's claims into the set of tool
// groups it grants (spec §4.5). Implemented by pkg/access; kept local so
// this package does not depend on it. Optional: a Manager with no
// GroupResolver set leaves Connection.AllowedGroups nil.
type GroupResolver interface {
	ResolveGroups(claims map[string]any) (map[string]bool, error)
}

// ConnectHook runs once per successful Accept, after authentication and
// registration and before the read loop starts. It is the seam
// cmd/agenthost wires the orchestrator's conversation bootstrap through
// (reading conversationId/definitionId off r, building a
// ConversationContext, subscribing c to it) without this package needing
// to know anything about pkg/orchestrator.
type ConnectHook func(ctx context.Context, conn *Connection, r *http.Request) error

// Config tunes accept/heartbeat behavior.
type Config struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMissedPongs int
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = 2
	}
	return c
}

// Manager owns every live connection in this process: accept, auth,
// heartbeat, resume, and send/broadcast (spec §4.6). One Manager per
// process; broadcasts reach only connections registered with this Manager,
// and there is no cross-process fan-out.
type Manager struct {
	config      Config
	verifier    *authn.Verifier
	handler     InboundHandler
	groups      GroupResolver
	connectHook ConnectHook

	mu     sync.RWMutex
	byID   map[string]*Connection
	byUser map[string]map[string]bool

	convMu         sync.RWMutex
	byConversation map[string]map[string]bool
}

// NewManager constructs a Manager. verifier authenticates the accept-path
// bearer token; handler receives every inbound message once the connection
// is ACTIVE.
func NewManager(verifier *authn.Verifier, handler InboundHandler, config Config) *Manager {
	return &Manager{
		config:         config.withDefaults(),
		verifier:       verifier,
		handler:        handler,
		byID:           make(map[string]*Connection),
		byUser:         make(map[string]map[string]bool),
		byConversation: make(map[string]map[string]bool),
	}
}

// SetGroupResolver wires an optional GroupResolver, populating
// Connection.AllowedGroups on every future Accept. Mirrors the teacher's
// optional-dependency setter idiom: callers that don't need access control
// simply never call this.
func (m *Manager) SetGroupResolver(r GroupResolver) {
	m.groups = r
}

// SetConnectHook wires an optional ConnectHook, run once per Accept.
func (m *Manager) SetConnectHook(hook ConnectHook) {
	m.connectHook = hook
}

// SetInboundHandler wires the InboundHandler after construction. pkg/router's
// Router needs a *Manager (as Responder) to be built, so the two cannot
// always be constructed in a single pass; callers that build the router
// first use NewManager(verifier, nil, cfg) and patch it in here once both
// exist.
func (m *Manager) SetInboundHandler(handler InboundHandler) {
	m.handler = handler
}

// Accept upgrades r to a WebSocket, authenticates it, registers it, and then
// blocks in its read loop until the connection closes. Intended to be called
// directly from an echo handler.
func (m *Manager) Accept(w http.ResponseWriter, r *http.Request) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin validation is left to a reverse proxy in front of this
		// service.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	c := New(uuid.NewString(), "", conn, r.Context())
	_ = c.Transition(StateConnected)

	token := bearerToken(r)
	if token == "" {
		c.close(websocket.StatusCode(protocol.CloseAuthFailure), "missing bearer token")
		return nil
	}

	claims, err := m.verifier.Verify(r.Context(), token)
	if err != nil {
		slog.Warn("connection: rejected on accept", "error", err)
		c.close(websocket.StatusCode(protocol.CloseAuthFailure), "authentication failed")
		return nil
	}
	c.UserID = claims.Subject
	if m.groups != nil {
		groups, err := m.groups.ResolveGroups(claims.Raw)
		if err != nil {
			slog.Warn("connection: group resolution failed, proceeding with no groups", "error", err, "user_id", c.UserID)
		}
		c.AllowedGroups = groups
	}

	if err := c.Transition(StateAuthenticated); err != nil {
		slog.Error("connection: could not authenticate", "error", err)
		c.close(websocket.StatusCode(protocol.CloseInternalErr), "state error")
		return nil
	}
	if err := c.Transition(StateActive); err != nil {
		slog.Error("connection: could not activate", "error", err)
		c.close(websocket.StatusCode(protocol.CloseInternalErr), "state error")
		return nil
	}

	m.register(c)
	defer m.unregister(c)

	if m.connectHook != nil {
		if err := m.connectHook(r.Context(), c, r); err != nil {
			slog.Error("connection: connect hook failed", "error", err, "conn_id", c.ID)
			c.close(websocket.StatusCode(protocol.CloseInternalErr), "connect failed")
			return nil
		}
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(c.ctx)
	defer stopHeartbeat()
	go m.heartbeatLoop(heartbeatCtx, c)

	m.readLoop(c)
	return nil
}

// bearerToken reads the access token from the Authorization header, falling
// back to the ?token= query parameter for browser WebSocket clients that
// cannot set custom headers on the upgrade request.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest
		}
	}
	return r.URL.Query().Get("token")
}

func (m *Manager) register(c *Connection) {
	m.mu.Lock()
	m.byID[c.ID] = c
	if m.byUser[c.UserID] == nil {
		m.byUser[c.UserID] = make(map[string]bool)
	}
	m.byUser[c.UserID][c.ID] = true
	m.mu.Unlock()
}

func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	delete(m.byID, c.ID)
	if ids := m.byUser[c.UserID]; ids != nil {
		delete(ids, c.ID)
		if len(ids) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
	m.mu.Unlock()

	for _, convID := range c.BoundConversations() {
		m.Unsubscribe(c, convID)
	}

	_ = c.Transition(StateClosing)
	c.close(websocket.StatusNormalClosure, "")
}

// Subscribe binds a connection to a conversation for broadcast fan-out.
func (m *Manager) Subscribe(c *Connection, conversationID string) {
	m.convMu.Lock()
	if m.byConversation[conversationID] == nil {
		m.byConversation[conversationID] = make(map[string]bool)
	}
	m.byConversation[conversationID][c.ID] = true
	m.convMu.Unlock()
	c.BindConversation(conversationID)
}

// Unsubscribe reverses Subscribe.
func (m *Manager) Unsubscribe(c *Connection, conversationID string) {
	m.convMu.Lock()
	if subs, ok := m.byConversation[conversationID]; ok {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.byConversation, conversationID)
		}
	}
	m.convMu.Unlock()
	c.UnbindConversation(conversationID)
}

// readLoop reads and dispatches inbound frames until the socket closes.
func (m *Manager) readLoop(c *Connection) {
	for {
		_, data, err := c.Conn.Read(c.ctx)
		if err != nil {
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			m.sendError(c, "", protocol.CategoryValidation, protocol.CodeInvalidPayload, "malformed message envelope")
			continue
		}

		if !protocol.IsRegistered(msg.Type) {
			m.sendError(c, msg.ConversationID, protocol.CategoryValidation, protocol.CodeUnknownMessageType, string(msg.Type))
			continue
		}

		switch msg.Type {
		case protocol.TypeSystemPong:
			c.ResetMissedPongs()
			continue
		case protocol.TypeSystemConnectionResume:
			m.handleResume(c, msg)
			continue
		}

		if !c.CanAcceptInbound() {
			m.sendError(c, msg.ConversationID, protocol.CategoryValidation, protocol.CodeInvalidState, "connection not accepting messages")
			continue
		}

		if m.handler != nil {
			m.handler.HandleInbound(c.ctx, c, msg)
		}
	}
}

func (m *Manager) handleResume(c *Connection, msg protocol.Message) {
	var payload protocol.ConnectionResumePayload
	if err := msg.Decode(&payload); err != nil {
		m.sendError(c, msg.ConversationID, protocol.CategoryValidation, protocol.CodeInvalidPayload, "invalid resume payload")
		return
	}
	if err := c.Transition(StateReconnecting); err != nil {
		slog.Warn("connection: illegal transition on resume", "error", err)
	}
	if err := c.Transition(StateActive); err != nil {
		slog.Warn("connection: illegal transition resuming to active", "error", err)
		return
	}
	if payload.ConversationID != "" {
		m.Subscribe(c, payload.ConversationID)
	}
	// Full state hydration (current item index, missed message replay) is
	// the orchestrator's job once it is wired in; here we only re-establish
	// the transport-level binding and acknowledge.
	m.Send(c.ID, protocol.TypeSystemConnectionResumed, payload.ConversationID, protocol.ConnectionResumedPayload{
		StateValid: payload.ConversationID != "",
	})
}

func (m *Manager) sendError(c *Connection, conversationID string, category protocol.ErrorCategory, code, detail string) {
	msg, err := protocol.NewError(conversationID, category, code, false, detail)
	if err != nil {
		return
	}
	m.writeMessage(c, msg)
}

// SendError builds and delivers a system.error frame to a connection by id.
// Exported for pkg/router, which needs to turn handler/middleware failures
// into wire errors without depending on connection internals.
func (m *Manager) SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string) {
	m.mu.RLock()
	c, ok := m.byID[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	msg, err := protocol.NewError(conversationID, category, code, retryable, detail)
	if err != nil {
		return
	}
	m.writeMessage(c, msg)
}

// SendRateLimitError is SendError specialized for RATE_LIMIT_EXCEEDED,
// which additionally carries the client-facing retryAfterMs (spec §4.4).
func (m *Manager) SendRateLimitError(connID, conversationID string, retryAfterMs int64) {
	m.mu.RLock()
	c, ok := m.byID[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	msg, err := protocol.NewError(conversationID, protocol.CategoryRateLimit, protocol.CodeRateLimitExceeded, true, "")
	if err != nil {
		return
	}
	var payload protocol.ErrorPayload
	if err := msg.Decode(&payload); err != nil {
		return
	}
	payload.RetryAfterMs = retryAfterMs
	encoded, err := protocol.New(protocol.TypeSystemError, conversationID, payload)
	if err != nil {
		return
	}
	m.writeMessage(c, encoded)
}

func (m *Manager) heartbeatLoop(ctx context.Context, c *Connection) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.RecordMissedPong() > m.config.MaxMissedPongs {
				c.close(websocket.StatusCode(protocol.CloseNormal), "heartbeat timeout")
				return
			}
			msg, err := protocol.New(protocol.TypeSystemPing, "", nil)
			if err != nil {
				continue
			}
			m.writeMessage(c, msg)
		}
	}
}

// Send encodes and delivers a message to a single connection by id. It is a
// no-op if the connection is unknown or not currently writable.
func (m *Manager) Send(connID string, t protocol.MessageType, conversationID string, payload any) {
	m.mu.RLock()
	c, ok := m.byID[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	msg, err := protocol.New(t, conversationID, payload)
	if err != nil {
		slog.Error("connection: failed to encode outbound message", "error", err)
		return
	}
	m.writeMessage(c, msg)
}

// BroadcastToConversation delivers a message to every connection subscribed
// to conversationID, except excludeConnID when non-empty.
func (m *Manager) BroadcastToConversation(conversationID, excludeConnID string, t protocol.MessageType, payload any) {
	m.convMu.RLock()
	subs, ok := m.byConversation[conversationID]
	if !ok {
		m.convMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		if id != excludeConnID {
			ids = append(ids, id)
		}
	}
	m.convMu.RUnlock()

	msg, err := protocol.New(t, conversationID, payload)
	if err != nil {
		slog.Error("connection: failed to encode broadcast message", "error", err)
		return
	}

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.byID[id]; ok {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		m.writeMessage(c, msg)
	}
}

func (m *Manager) writeMessage(c *Connection, msg protocol.Message) {
	if !c.CanSendOutbound() {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("connection: failed to marshal message", "error", err)
		return
	}
	if err := c.writeRaw(data, m.config.WriteTimeout); err != nil {
		slog.Warn("connection: write failed", "connection_id", c.ID, "error", err)
	}
}

// Get returns the connection with the given id, if registered.
func (m *Manager) Get(connID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[connID]
	return c, ok
}

// ActiveConnections reports the number of currently registered connections.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// ConnectionsForUser returns the ids of every connection registered for
// userID (a user may have more than one open tab/device).
func (m *Manager) ConnectionsForUser(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.byUser[userID]))
	for id := range m.byUser[userID] {
		ids = append(ids, id)
	}
	return ids
}
