// Package router dispatches inbound protocol messages to per-type handlers
// through an ordered middleware chain (spec §4.7), generalizing the
// teacher's `func() echo.MiddlewareFunc` idiom (pkg/api/middleware.go) from
// HTTP middleware to protocol-message middleware.
package router

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// Handler processes one inbound message for a connection.
type Handler func(ctx context.Context, conn *connection.Connection, msg protocol.Message) error

// Next invokes the remainder of the middleware chain.
type Next func() error

// Middleware wraps a Handler invocation. It must call next to proceed, or
// return (possibly nil) to short-circuit the chain.
type Middleware func(ctx context.Context, conn *connection.Connection, msg protocol.Message, next Next) error

// ValidationError marks a handler failure as a client-caused payload
// problem; Route translates it to INVALID_PAYLOAD instead of HANDLER_ERROR.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Responder is the subset of *connection.Manager the router needs to turn
// handler/middleware failures into system.error frames.
type Responder interface {
	SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string)
	SendRateLimitError(connID, conversationID string, retryAfterMs int64)
}

// Router holds the type -> Handler map plus the ordered, outermost-first
// middleware chain (spec §4.7).
type Router struct {
	handlers    map[protocol.MessageType]Handler
	middlewares []Middleware
	responder   Responder
}

// New builds an empty Router. Middlewares are applied in registration order,
// outermost first, so the first middleware Use'd sees the message first.
func New(responder Responder) *Router {
	return &Router{
		handlers:  make(map[protocol.MessageType]Handler),
		responder: responder,
	}
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

// Handle registers h as the handler for t, overwriting any prior handler.
func (r *Router) Handle(t protocol.MessageType, h Handler) {
	r.handlers[t] = h
}

// HandleInbound satisfies connection.InboundHandler, letting a *Router be
// passed straight into connection.NewManager as its handler.
func (r *Router) HandleInbound(ctx context.Context, conn *connection.Connection, msg protocol.Message) {
	r.Route(ctx, conn, msg)
}

// Route composes the middleware chain around the registered handler for
// msg.Type and invokes it. A missing handler is itself routed as a
// HANDLER_ERROR — the router's caller (connection.Manager's read loop) has
// already rejected unregistered wire types, so this only guards against a
// registered-but-unwired type.
func (r *Router) Route(ctx context.Context, conn *connection.Connection, msg protocol.Message) {
	handler, ok := r.handlers[msg.Type]
	if !ok {
		r.reportError(conn, msg, errors.New("no handler registered for type "+string(msg.Type)))
		return
	}

	chain := func() error { return handler(ctx, conn, msg) }
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		mw := r.middlewares[i]
		next := chain
		chain = func() error { return mw(ctx, conn, msg, next) }
	}

	if err := chain(); err != nil {
		r.reportError(conn, msg, err)
	}
}

// reportError translates a handler/middleware error into a system.error
// frame per spec §4.7: ValidationError -> INVALID_PAYLOAD (validation,
// non-retryable); state-guard rejection -> INVALID_STATE (validation,
// non-retryable); anything else -> HANDLER_ERROR (server, retryable).
func (r *Router) reportError(conn *connection.Connection, msg protocol.Message, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		r.responder.SendError(conn.ID, msg.ConversationID, protocol.CategoryValidation, protocol.CodeInvalidPayload, false, err.Error())
		return
	}
	var serr *stateGuardRejection
	if errors.As(err, &serr) {
		r.responder.SendError(conn.ID, msg.ConversationID, protocol.CategoryValidation, protocol.CodeInvalidState, false, err.Error())
		return
	}
	r.responder.SendError(conn.ID, msg.ConversationID, protocol.CategoryServer, protocol.CodeHandlerError, true, err.Error())
}
