package router

import (
	"context"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// ConversationStateProvider resolves a conversation's current orchestrator
// state (spec §4.8's state machine), independent of the connection-level
// state machine already enforced by connection.Manager's read loop.
type ConversationStateProvider interface {
	StateFor(conversationID string) (state string, ok bool)
}

// StateGuardConfig lists, per message type, the orchestrator states in
// which that type may be processed (spec §4.8: "{READY, PROCESSING} accept
// data.message.send; {SUSPENDED} accepts data.response.submit"). A type
// absent from the config is unrestricted by this middleware.
type StateGuardConfig map[protocol.MessageType][]string

// DefaultStateGuardConfig encodes the spec's input-acceptance table.
func DefaultStateGuardConfig() StateGuardConfig {
	return StateGuardConfig{
		protocol.TypeDataMessageSend:    {"READY", "PROCESSING"},
		protocol.TypeDataResponseSubmit: {"SUSPENDED"},
	}
}

// StateGuardMiddleware rejects messages whose type is not valid in the
// message's conversation's current orchestrator state (spec §4.7 #2).
// Messages with no bound conversation (e.g. system-plane frames) pass
// through untouched.
func StateGuardMiddleware(config StateGuardConfig, states ConversationStateProvider) Middleware {
	return func(ctx context.Context, conn *connection.Connection, msg protocol.Message, next Next) error {
		allowed, restricted := config[msg.Type]
		if !restricted || msg.ConversationID == "" {
			return next()
		}

		current, ok := states.StateFor(msg.ConversationID)
		if !ok {
			return next()
		}

		for _, s := range allowed {
			if s == current {
				return next()
			}
		}

		return &stateGuardRejection{conversationID: msg.ConversationID, current: current, msgType: msg.Type}
	}
}

// stateGuardRejection is translated by Router.reportError like any other
// handler error, but carries INVALID_STATE instead of HANDLER_ERROR.
type stateGuardRejection struct {
	conversationID string
	current        string
	msgType        protocol.MessageType
}

func (e *stateGuardRejection) Error() string {
	return "state guard: " + string(e.msgType) + " not valid in state " + e.current
}
