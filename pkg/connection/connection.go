package connection

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Connection is a single WebSocket client, tracked by the ConnectionManager.
//
// writeMu serializes writes to Conn: coder/websocket does not allow
// concurrent writers, and both the sender (pkg/sender) and the heartbeat
// ping share this connection.
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn

	// AllowedGroups is the set of tool groups this connection's verified
	// claims resolved to (spec §4.5), set once during Accept and read-only
	// thereafter. Nil when the Manager was built without a GroupResolver.
	AllowedGroups map[string]bool

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state State

	writeMu sync.Mutex

	// conversations this connection is currently bound to, for
	// broadcastToConversation fan-out.
	conversationsMu sync.RWMutex
	conversations   map[string]bool

	heartbeatMu     sync.Mutex
	missedPongCount int
}

// New constructs a Connection in CONNECTING state.
func New(id, userID string, conn *websocket.Conn, parentCtx context.Context) *Connection {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Connection{
		ID:            id,
		UserID:        userID,
		Conn:          conn,
		ctx:           ctx,
		cancel:        cancel,
		state:         StateConnecting,
		conversations: make(map[string]bool),
	}
}

// Context is the connection-scoped context, cancelled on close.
func (c *Connection) Context() context.Context { return c.ctx }

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Transition attempts to move the connection to State to. Illegal
// transitions are refused and return *ErrIllegalTransition; callers are
// expected to log and continue (spec §4.6: "illegal transitions log and
// are refused").
func (c *Connection) Transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return &ErrIllegalTransition{From: c.state, To: to}
	}
	c.state = to
	return nil
}

// CanAcceptInbound reports whether the connection's current state accepts
// inbound protocol messages.
func (c *Connection) CanAcceptInbound() bool {
	return acceptsInbound[c.State()]
}

// CanSendOutbound reports whether the connection's current state may still
// be written to.
func (c *Connection) CanSendOutbound() bool {
	return acceptsOutbound[c.State()]
}

// BindConversation records that this connection is receiving broadcasts for
// conversationID.
func (c *Connection) BindConversation(conversationID string) {
	c.conversationsMu.Lock()
	defer c.conversationsMu.Unlock()
	c.conversations[conversationID] = true
}

// UnbindConversation reverses BindConversation.
func (c *Connection) UnbindConversation(conversationID string) {
	c.conversationsMu.Lock()
	defer c.conversationsMu.Unlock()
	delete(c.conversations, conversationID)
}

// BoundConversations returns a snapshot of bound conversation ids.
func (c *Connection) BoundConversations() []string {
	c.conversationsMu.RLock()
	defer c.conversationsMu.RUnlock()
	ids := make([]string, 0, len(c.conversations))
	for id := range c.conversations {
		ids = append(ids, id)
	}
	return ids
}

func (c *Connection) isBoundTo(conversationID string) bool {
	c.conversationsMu.RLock()
	defer c.conversationsMu.RUnlock()
	return c.conversations[conversationID]
}

// ResetMissedPongs zeroes the missed-heartbeat counter, called when a
// system.pong is received.
func (c *Connection) ResetMissedPongs() {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	c.missedPongCount = 0
}

// RecordMissedPong increments the missed-heartbeat counter and returns the
// new count.
func (c *Connection) RecordMissedPong() int {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	c.missedPongCount++
	return c.missedPongCount
}

// writeRaw serializes access to the underlying connection write path and
// bounds it with writeTimeout.
func (c *Connection) writeRaw(data []byte, writeTimeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.Conn.Write(ctx, websocket.MessageText, data)
}

// close cancels the connection context and closes the socket with code/reason.
func (c *Connection) close(code websocket.StatusCode, reason string) {
	c.cancel()
	_ = c.Conn.Close(code, reason)
}
