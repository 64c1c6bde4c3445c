package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/ratelimit"
)

type recordedError struct {
	connID, conversationID string
	category               protocol.ErrorCategory
	code                   string
	retryable              bool
	retryAfterMs           int64
}

type fakeResponder struct {
	errors []recordedError
}

func (f *fakeResponder) SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string) {
	f.errors = append(f.errors, recordedError{connID, conversationID, category, code, retryable, 0})
}

func (f *fakeResponder) SendRateLimitError(connID, conversationID string, retryAfterMs int64) {
	f.errors = append(f.errors, recordedError{connID, conversationID, protocol.CategoryRateLimit, protocol.CodeRateLimitExceeded, true, retryAfterMs})
}

func newTestConn(id, userID string) *connection.Connection {
	return connection.New(id, userID, nil, context.Background())
}

func TestRouteDispatchesToRegisteredHandler(t *testing.T) {
	responder := &fakeResponder{}
	r := New(responder)

	called := false
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		called = true
		return nil
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{Content: "hi"})
	require.NoError(t, err)
	r.Route(context.Background(), newTestConn("c1", "u1"), msg)

	assert.True(t, called)
	assert.Empty(t, responder.errors)
}

func TestRouteTranslatesValidationError(t *testing.T) {
	responder := &fakeResponder{}
	r := New(responder)
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		return &ValidationError{Err: errors.New("bad content")}
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{})
	require.NoError(t, err)
	r.Route(context.Background(), newTestConn("c1", "u1"), msg)

	require.Len(t, responder.errors, 1)
	assert.Equal(t, protocol.CodeInvalidPayload, responder.errors[0].code)
	assert.False(t, responder.errors[0].retryable)
}

func TestRouteTranslatesGenericErrorAsHandlerError(t *testing.T) {
	responder := &fakeResponder{}
	r := New(responder)
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		return errors.New("boom")
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{})
	require.NoError(t, err)
	r.Route(context.Background(), newTestConn("c1", "u1"), msg)

	require.Len(t, responder.errors, 1)
	assert.Equal(t, protocol.CodeHandlerError, responder.errors[0].code)
	assert.True(t, responder.errors[0].retryable)
}

func TestRouteAppliesMiddlewareInOutermostFirstOrder(t *testing.T) {
	responder := &fakeResponder{}
	r := New(responder)

	var order []string
	r.Use(func(ctx context.Context, conn *connection.Connection, msg protocol.Message, next Next) error {
		order = append(order, "first")
		return next()
	})
	r.Use(func(ctx context.Context, conn *connection.Connection, msg protocol.Message, next Next) error {
		order = append(order, "second")
		return next()
	})
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		order = append(order, "handler")
		return nil
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{})
	require.NoError(t, err)
	r.Route(context.Background(), newTestConn("c1", "u1"), msg)

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestRateLimitMiddlewareShortCircuitsOnBreach(t *testing.T) {
	responder := &fakeResponder{}
	limiter := ratelimit.New(ratelimit.Config{
		protocol.TypeDataMessageSend: {MaxRequests: 1, WindowSeconds: 60},
	})
	r := New(responder)
	r.Use(RateLimitMiddleware(limiter, responder))

	called := 0
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		called++
		return nil
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{})
	require.NoError(t, err)
	conn := newTestConn("c1", "u1")

	r.Route(context.Background(), conn, msg)
	r.Route(context.Background(), conn, msg)

	assert.Equal(t, 1, called)
	require.Len(t, responder.errors, 1)
	assert.Equal(t, protocol.CodeRateLimitExceeded, responder.errors[0].code)
}

type staticStateProvider map[string]string

func (s staticStateProvider) StateFor(conversationID string) (string, bool) {
	state, ok := s[conversationID]
	return state, ok
}

func TestStateGuardMiddlewareRejectsInvalidState(t *testing.T) {
	responder := &fakeResponder{}
	states := staticStateProvider{"conv-1": "SUSPENDED"}
	r := New(responder)
	r.Use(StateGuardMiddleware(DefaultStateGuardConfig(), states))

	called := false
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		called = true
		return nil
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{})
	require.NoError(t, err)
	r.Route(context.Background(), newTestConn("c1", "u1"), msg)

	assert.False(t, called)
	require.Len(t, responder.errors, 1)
	assert.Equal(t, protocol.CodeInvalidState, responder.errors[0].code)
}

func TestStateGuardMiddlewareAllowsValidState(t *testing.T) {
	responder := &fakeResponder{}
	states := staticStateProvider{"conv-1": "READY"}
	r := New(responder)
	r.Use(StateGuardMiddleware(DefaultStateGuardConfig(), states))

	called := false
	r.Handle(protocol.TypeDataMessageSend, func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
		called = true
		return nil
	})

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{})
	require.NoError(t, err)
	r.Route(context.Background(), newTestConn("c1", "u1"), msg)

	assert.True(t, called)
	assert.Empty(t, responder.errors)
}
