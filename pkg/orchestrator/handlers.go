package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/router"
)

// Handlers bundles the three cooperating handlers that share a
// ConversationContext (spec §4.8): message, widget, and flow.
type Handlers struct {
	registry  *Registry
	sender    Sender
	agent     AgentRunner
	commands  Commands
	templates TemplateRunner
	scorer    Scorer
	audit     AuditRecorder
}

// NewHandlers wires the handlers to their dependencies.
func NewHandlers(registry *Registry, sender Sender, agent AgentRunner, commands Commands, templates TemplateRunner, scorer Scorer) *Handlers {
	return &Handlers{
		registry:  registry,
		sender:    sender,
		agent:     agent,
		commands:  commands,
		templates: templates,
		scorer:    scorer,
	}
}

// SetAuditRecorder wires the audit-event sink, mirroring the teacher's
// optional-dependency setters (pkg/api/server.go's SetHealthMonitor et
// al.) instead of growing NewHandlers' constructor for a feature most
// deployments leave disabled. A nil recorder makes HandleAuditEvents a
// no-op beyond the handler-chain rate limiting already applied to it.
func (h *Handlers) SetAuditRecorder(recorder AuditRecorder) {
	h.audit = recorder
}

func (h *Handlers) contextFor(conversationID string) (*ConversationContext, error) {
	convCtx, ok := h.registry.Get(conversationID)
	if !ok {
		return nil, &router.ValidationError{Err: fmt.Errorf("unknown conversation %q", conversationID)}
	}
	return convCtx, nil
}

// HandleMessageSend implements the data.message.send handler (spec §4.8).
func (h *Handlers) HandleMessageSend(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
	convCtx, err := h.contextFor(msg.ConversationID)
	if err != nil {
		return err
	}

	if !convCtx.AcceptsMessageSend() {
		h.sender.SendError(conn.ID, msg.ConversationID, protocol.CategoryValidation, protocol.CodeInvalidState, false, "message.send not valid in current state")
		return nil
	}

	var payload protocol.MessageSendPayload
	if err := msg.Decode(&payload); err != nil {
		return &router.ValidationError{Err: err}
	}

	if err := convCtx.Transition(StateProcessing); err != nil {
		convCtx.ForceError()
		return err
	}

	h.sender.SendMessageAck(conn.ID, msg.ConversationID, msg.MessageID)

	assistantMessageID, err := h.commands.SendMessage(ctx, msg.ConversationID, conn.UserID, payload.Content)
	if err != nil {
		convCtx.ForceError()
		h.sender.SendError(conn.ID, msg.ConversationID, protocol.CategoryBusiness, protocol.CodeMessageError, true, err.Error())
		return nil
	}

	finalContent, err := h.agent.Run(ctx, conn, convCtx, payload.Content, assistantMessageID)
	if err != nil {
		convCtx.ForceError()
		h.sender.SendError(conn.ID, msg.ConversationID, protocol.CategoryBusiness, protocol.CodeMessageError, true, err.Error())
		return nil
	}

	if err := h.commands.CompleteMessage(ctx, msg.ConversationID, assistantMessageID, finalContent); err != nil {
		convCtx.ForceError()
		h.sender.SendError(conn.ID, msg.ConversationID, protocol.CategoryBusiness, protocol.CodeMessageError, true, err.Error())
		return nil
	}

	if err := convCtx.Transition(StateReady); err != nil {
		convCtx.ForceError()
		return err
	}
	return nil
}

// HandleResponseSubmit implements the data.response.submit handler
// (spec §4.8).
func (h *Handlers) HandleResponseSubmit(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
	convCtx, err := h.contextFor(msg.ConversationID)
	if err != nil {
		return err
	}

	var payload protocol.ResponseSubmitPayload
	if err := msg.Decode(&payload); err != nil {
		return &router.ValidationError{Err: err}
	}

	h.sender.SendResponseAck(conn.ID, msg.ConversationID, payload.ItemID, payload.WidgetID)

	item := convCtx.CurrentItem()
	if item == nil || item.ItemID != payload.ItemID {
		// Late submission for an item the orchestrator has already moved
		// past — ignore it (spec §4.8 widget handler step 2).
		if !convCtx.IsProactive {
			_ = convCtx.Transition(StateReady)
		}
		return nil
	}

	if payload.WidgetID == payload.ItemID+"-confirm" {
		item.Confirm()
	} else {
		item.RecordResponse(payload.WidgetID, payload.Value)
	}

	if payload.Batch && !payload.BatchFinal {
		return nil
	}

	if !item.IsComplete() {
		return nil
	}

	item.Complete(time.Now())

	if item.ProvideFeedback && h.scorer != nil {
		if result, err := h.scorer.Score(ctx, item); err == nil {
			item.ScoringResult = result
		}
	}
	h.sendWidgetUpdates(conn, msg.ConversationID, item)

	if err := h.commands.RecordItemResponse(ctx, msg.ConversationID, item); err != nil {
		convCtx.ForceError()
		h.sender.SendError(conn.ID, msg.ConversationID, protocol.CategoryBusiness, protocol.CodeMessageError, true, err.Error())
		return nil
	}
	if err := h.commands.AdvanceTemplate(ctx, msg.ConversationID, item.ItemIndex+1); err != nil {
		convCtx.ForceError()
		h.sender.SendError(conn.ID, msg.ConversationID, protocol.CategoryBusiness, protocol.CodeMessageError, true, err.Error())
		return nil
	}
	convCtx.EndItem()

	if convCtx.IsProactive {
		h.templates.Advance(ctx, conn, convCtx)
	} else {
		_ = convCtx.Transition(StateReady)
	}
	return nil
}

// sendWidgetUpdates emits control.widget.update for every required widget
// once an item scores, carrying feedback and — only when the item's
// revealCorrectAnswer flag is set — the correct answer (spec §3, §4.9
// step 6).
func (h *Handlers) sendWidgetUpdates(conn *connection.Connection, conversationID string, item *ItemExecutionState) {
	if item.ScoringResult == nil && !item.RevealCorrectAnswer {
		return
	}
	for widgetID := range item.RequiredWidgetIDs {
		update := protocol.WidgetUpdatePayload{ItemID: item.ItemID, WidgetID: widgetID}
		if item.ScoringResult != nil {
			update.IsCorrect = item.ScoringResult.IsCorrect
			update.Score = item.ScoringResult.Score
			update.MaxScore = item.ScoringResult.MaxScore
			update.Feedback = item.ScoringResult.Feedback
		}
		if item.RevealCorrectAnswer {
			update.CorrectAnswer = item.WidgetConfigs[widgetID]
		}
		h.sender.SendWidgetUpdate(conn.ID, conversationID, update)
	}
}

// HandleFlow implements the control.flow.* handlers (spec §4.8).
func (h *Handlers) HandleFlow(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
	convCtx, err := h.contextFor(msg.ConversationID)
	if err != nil {
		return err
	}

	switch msg.Type {
	case protocol.TypeControlFlowStart:
		return h.handleFlowStart(ctx, conn, convCtx, msg)
	case protocol.TypeControlFlowPause:
		if err := convCtx.Transition(StatePaused); err != nil {
			return err
		}
		h.sender.SendFlowAck(conn.ID, msg.ConversationID)
		return nil
	case protocol.TypeControlFlowCancel:
		convCtx.PendingWidgetID = ""
		convCtx.PendingToolCallID = ""
		if err := convCtx.Transition(StateReady); err != nil {
			return err
		}
		h.sender.SendFlowAck(conn.ID, msg.ConversationID)
		return nil
	case protocol.TypeControlFlowResume:
		if convCtx.State() != StatePaused {
			return &router.ValidationError{Err: fmt.Errorf("flow.resume only valid from PAUSED")}
		}
		return h.handleFlowStart(ctx, conn, convCtx, msg)
	default:
		return &router.ValidationError{Err: fmt.Errorf("unsupported flow message %q", msg.Type)}
	}
}

func (h *Handlers) handleFlowStart(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext, msg protocol.Message) error {
	current := convCtx.State()
	if current != StateReady && current != StatePaused {
		return &router.ValidationError{Err: fmt.Errorf("flow.start/resume not valid in state %s", current)}
	}

	if convCtx.IsProactive && convCtx.HasTemplate {
		if err := convCtx.Transition(StatePresenting); err != nil {
			return err
		}
		h.templates.Start(ctx, conn, convCtx)
		return nil
	}

	if current != StateReady {
		if err := convCtx.Transition(StateReady); err != nil {
			return err
		}
	}
	h.sender.SendFlowChatInput(conn.ID, convCtx.ConversationID, true)
	return nil
}

// HandleAuditEvents implements the data.audit.events handler (spec §4.1).
// A payload that does not decode is returned as a ValidationError
// (INVALID_PAYLOAD) like in the other handlers, but an empty batch, an
// unknown conversation, or a nil recorder is dropped silently rather than
// surfaced as a client-visible error: audit telemetry is best-effort and
// must never interrupt the conversation it describes.
func (h *Handlers) HandleAuditEvents(ctx context.Context, conn *connection.Connection, msg protocol.Message) error {
	if h.audit == nil {
		return nil
	}

	var payload protocol.AuditEventsPayload
	if err := msg.Decode(&payload); err != nil {
		return &router.ValidationError{Err: err}
	}
	if len(payload.Events) == 0 {
		return nil
	}

	if _, ok := h.registry.Get(msg.ConversationID); !ok {
		return nil
	}

	return h.audit.RecordAuditEvents(ctx, msg.ConversationID, payload.Events)
}
