package orchestrator

import (
	"context"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// Sender is the subset of pkg/sender the handlers emit protocol frames
// through. Kept as an interface so this package does not depend on C13.
type Sender interface {
	SendMessageAck(connID, conversationID, messageID string)
	SendResponseAck(connID, conversationID, itemID, widgetID string)
	SendFlowAck(connID, conversationID string)
	SendFlowChatInput(connID, conversationID string, enabled bool)
	SendWidgetUpdate(connID, conversationID string, payload protocol.WidgetUpdatePayload)
	SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string)
}

// AgentRunner invokes the ReAct loop (C11) for a free-form user message and
// returns the accumulated final assistant content.
type AgentRunner interface {
	Run(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext, userMessage, assistantMessageID string) (finalContent string, err error)
}

// Commands is the slice of the mediator (C15) the orchestrator dispatches
// through; it never talks to the repository (C14) directly.
type Commands interface {
	SendMessage(ctx context.Context, conversationID, userID, content string) (assistantMessageID string, err error)
	CompleteMessage(ctx context.Context, conversationID, assistantMessageID, finalContent string) error
	RecordItemResponse(ctx context.Context, conversationID string, item *ItemExecutionState) error
	AdvanceTemplate(ctx context.Context, conversationID string, newItemIndex int) error
}

// TemplateRunner is the background task (C10) that renders items one by
// one in proactive conversations.
type TemplateRunner interface {
	Start(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext)
	Advance(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext)
}

// Scorer judges a completed item's responses via an LLM call (spec §4.9).
type Scorer interface {
	Score(ctx context.Context, item *ItemExecutionState) (*ScoringResult, error)
}

// AuditRecorder persists a batch of client-submitted audit telemetry
// (spec §4.1 data.audit.events). Kept as an interface so this package does
// not depend on C14/C15 directly.
type AuditRecorder interface {
	RecordAuditEvents(ctx context.Context, conversationID string, events []protocol.AuditEventEntry) error
}
