package template

import (
	"context"

	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// Sender is the subset of C13's outbound surface the template runner
// needs. A superset of orchestrator.Sender — the concrete pkg/sender
// implementation satisfies both.
type Sender interface {
	SendConversationConfig(connID, conversationID string, cfg protocol.ConversationConfigPayload)
	SendItemContext(connID, conversationID string, payload protocol.ItemContextPayload)
	SendWidgetRender(connID, conversationID string, payload protocol.WidgetRenderPayload)
	SendWidgetUpdate(connID, conversationID string, payload protocol.WidgetUpdatePayload)
	SendContentChunk(connID, conversationID, messageID, content string, final bool)
	SendContentComplete(connID, conversationID, messageID string, role protocol.ContentRole, fullContent string)
	SendFlowChatInput(connID, conversationID string, enabled bool)
	SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string)
}

// Commands is the slice of the mediator (C15) the runner's timeout race
// dispatches through to persist and advance an item the client never
// answered (spec §5). A narrow subset of orchestrator.Commands — the same
// mediator value handlers.go already holds satisfies this too.
type Commands interface {
	RecordItemResponse(ctx context.Context, conversationID string, item *orchestrator.ItemExecutionState) error
	AdvanceTemplate(ctx context.Context, conversationID string, newItemIndex int) error
}
