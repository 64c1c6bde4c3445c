// Package sender implements C13: the single outbound surface every other
// package talks to through a narrow local interface (orchestrator.Sender,
// template.Sender, agent.Sender). It never touches the socket directly —
// every send goes through connection.Manager.Send/BroadcastToConversation,
// which already serializes writes per connection (Connection.writeRaw's
// mutex), so Sender itself needs no locking of its own.
//
// Grounded on pkg/events/manager.go's per-connection single-writer send
// discipline and pkg/agent/controller/streaming.go's chunk-then-complete
// accumulation pattern, both generalized from the teacher's SSE/timeline
// event stream to this project's typed WebSocket frames.
package sender

import (
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// Manager is the subset of connection.Manager Sender needs. Kept local so
// this package does not require the concrete *connection.Manager type in
// tests — a fake satisfying this interface is enough.
type Manager interface {
	Send(connID string, t protocol.MessageType, conversationID string, payload any)
	BroadcastToConversation(conversationID, excludeConnID string, t protocol.MessageType, payload any)
}

// Sender is the concrete outbound gateway. It satisfies orchestrator.Sender,
// template.Sender, and agent.Sender simultaneously — the union of every
// local interface those packages declared while C13 did not yet exist.
type Sender struct {
	manager Manager
}

// New wires a Sender against a connection manager.
func New(manager Manager) *Sender {
	return &Sender{manager: manager}
}

// SendMessageAck acknowledges data.message.send with the assigned
// assistant message id (spec §4.12).
func (s *Sender) SendMessageAck(connID, conversationID, messageID string) {
	s.manager.Send(connID, protocol.TypeDataMessageAck, conversationID, protocol.MessageAckPayload{
		MessageID: messageID,
	})
}

// SendResponseAck acknowledges data.response.submit.
func (s *Sender) SendResponseAck(connID, conversationID, itemID, widgetID string) {
	s.manager.Send(connID, protocol.TypeDataResponseAck, conversationID, protocol.ResponseAckPayload{
		ItemID:   itemID,
		WidgetID: widgetID,
	})
}

// SendFlowAck acknowledges a control.flow.{pause,cancel,resume} request,
// stamping serverTimestamp with the current server time in Unix
// milliseconds.
func (s *Sender) SendFlowAck(connID, conversationID string) {
	s.manager.Send(connID, protocol.TypeControlFlowStart, conversationID, protocol.FlowAckPayload{
		ServerTimestamp: time.Now().UnixMilli(),
	})
}

// SendFlowChatInput toggles whether the client's chat input is enabled
// (control.flow.chatInput).
func (s *Sender) SendFlowChatInput(connID, conversationID string, enabled bool) {
	s.manager.Send(connID, protocol.TypeControlFlowChatInput, conversationID, protocol.FlowChatInputPayload{
		Enabled: enabled,
	})
}

// SendConversationConfig sends control.conversation.config, normally once
// at the start of a proactive conversation (spec §4.9).
func (s *Sender) SendConversationConfig(connID, conversationID string, cfg protocol.ConversationConfigPayload) {
	s.manager.Send(connID, protocol.TypeControlConversationConfig, conversationID, cfg)
}

// SendItemContext sends control.item.context ahead of rendering an item.
func (s *Sender) SendItemContext(connID, conversationID string, payload protocol.ItemContextPayload) {
	s.manager.Send(connID, protocol.TypeControlItemContext, conversationID, payload)
}

// SendWidgetRender sends control.widget.render. Callers (pkg/template) are
// responsible for never populating a correct-answer field on payload — the
// payload type itself has none (spec §8 invariant).
func (s *Sender) SendWidgetRender(connID, conversationID string, payload protocol.WidgetRenderPayload) {
	s.manager.Send(connID, protocol.TypeControlWidgetRender, conversationID, payload)
}

// SendWidgetUpdate sends control.widget.update once an answered widget has
// been scored, carrying feedback and (when the item's revealCorrectAnswer
// flag is set) the correct answer (spec §3, §4.9 step 6).
func (s *Sender) SendWidgetUpdate(connID, conversationID string, payload protocol.WidgetUpdatePayload) {
	s.manager.Send(connID, protocol.TypeControlWidgetUpdate, conversationID, payload)
}

// SendContentChunk sends one data.content.chunk frame. final marks the
// last chunk of a streamed response (spec §4.12 chunking contract).
func (s *Sender) SendContentChunk(connID, conversationID, messageID, content string, final bool) {
	s.manager.Send(connID, protocol.TypeDataContentChunk, conversationID, protocol.ContentChunkPayload{
		Content:   content,
		MessageID: messageID,
		Final:     final,
	})
}

// SendContentComplete sends data.content.complete with the full
// accumulated content, once chunking for a message has finished.
func (s *Sender) SendContentComplete(connID, conversationID, messageID string, role protocol.ContentRole, fullContent string) {
	s.manager.Send(connID, protocol.TypeDataContentComplete, conversationID, protocol.ContentCompletePayload{
		MessageID:   messageID,
		Role:        role,
		FullContent: fullContent,
	})
}

// SendToolCall relays a ReAct tool invocation to the client for display
// (data.tool.call).
func (s *Sender) SendToolCall(connID, conversationID, callID, name, arguments string) {
	s.manager.Send(connID, protocol.TypeDataToolCall, conversationID, protocol.ToolCallPayload{
		CallID:    callID,
		Name:      name,
		Arguments: arguments,
	})
}

// SendToolResult relays a tool call's outcome to the client
// (data.tool.result). success/result/errMsg mirror agent.ToolResult
// verbatim — business and transport failures are indistinguishable here
// too, matching C12's contract.
func (s *Sender) SendToolResult(connID, conversationID, callID string, success bool, result any, errMsg string) {
	s.manager.Send(connID, protocol.TypeDataToolResult, conversationID, protocol.ToolResultPayload{
		CallID:  callID,
		Success: success,
		Result:  result,
		Error:   errMsg,
	})
}

// SendError sends a system.error frame to a single connection.
func (s *Sender) SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string) {
	s.manager.Send(connID, protocol.TypeSystemError, conversationID, protocol.ErrorPayload{
		Category:    category,
		Code:        code,
		Message:     detail,
		IsRetryable: retryable,
	})
}

// BroadcastWidgetRender fans a widget render out to every connection
// subscribed to the conversation except excludeConnID (spec §4.6
// multi-connection fan-out) —
// used when a proactive conversation's item should render on all of a
// user's open tabs, not just the one that triggered it.
func (s *Sender) BroadcastWidgetRender(conversationID, excludeConnID string, payload protocol.WidgetRenderPayload) {
	s.manager.BroadcastToConversation(conversationID, excludeConnID, protocol.TypeControlWidgetRender, payload)
}
