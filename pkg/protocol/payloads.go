package protocol

// WidgetType is the closed set of UI widget kinds (spec §3, GLOSSARY).
type WidgetType string

// Widget types.
const (
	WidgetMultipleChoice WidgetType = "multiple_choice"
	WidgetFreeText       WidgetType = "free_text"
	WidgetSlider         WidgetType = "slider"
	WidgetConfirm        WidgetType = "confirm"
	WidgetStaticText     WidgetType = "static_text"
)

// MessageSendPayload is the payload of data.message.send.
type MessageSendPayload struct {
	Content string `json:"content"`
}

// MessageAckPayload is the payload of data.message.ack.
type MessageAckPayload struct {
	MessageID string `json:"messageId"`
}

// ContentRole is the role field of data.content.complete (spec §4.12).
type ContentRole string

// Content roles.
const (
	RoleAssistant ContentRole = "assistant"
	RoleSystem    ContentRole = "system"
	RoleUser      ContentRole = "user"
)

// ContentChunkPayload is the payload of data.content.chunk.
type ContentChunkPayload struct {
	Content   string `json:"content"`
	MessageID string `json:"messageId"`
	Final     bool   `json:"final"`
}

// ContentCompletePayload is the payload of data.content.complete.
type ContentCompletePayload struct {
	MessageID   string      `json:"messageId"`
	Role        ContentRole `json:"role"`
	FullContent string      `json:"fullContent"`
}

// ResponseSubmitPayload is the payload of data.response.submit.
//
// BatchFinal resolves the "batch mode" open question (spec §9, DESIGN.md
// decision #3): when a client submits a group of widget responses together,
// every submission sets Batch=true; all but the last carry BatchFinal=false
// so the widget handler records the value without checking completion, and
// the final submission in the batch sets BatchFinal=true. A non-batched,
// single submission leaves Batch false, and BatchFinal is then ignored.
type ResponseSubmitPayload struct {
	ItemID     string `json:"itemId"`
	WidgetID   string `json:"widgetId"`
	Value      any    `json:"value"`
	Batch      bool   `json:"batch,omitempty"`
	BatchFinal bool   `json:"batchFinal,omitempty"`
}

// ResponseAckPayload is the payload of data.response.ack.
type ResponseAckPayload struct {
	ItemID   string `json:"itemId"`
	WidgetID string `json:"widgetId"`
}

// ToolCallPayload is the payload of data.tool.call.
type ToolCallPayload struct {
	CallID    string `json:"callId"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResultPayload is the payload of data.tool.result.
type ToolResultPayload struct {
	CallID  string `json:"callId"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ConnectionResumePayload is the payload of system.connection.resume.
type ConnectionResumePayload struct {
	ConversationID string `json:"conversationId"`
	LastMessageID  string `json:"lastMessageId,omitempty"`
	LastItemIndex  *int   `json:"lastItemIndex,omitempty"`
}

// ConnectionResumedPayload is the payload of system.connection.resumed.
type ConnectionResumedPayload struct {
	StateValid       bool `json:"stateValid"`
	CurrentItemIndex int  `json:"currentItemIndex"`
	MissedMessages   int  `json:"missedMessages"`
}

// ConversationConfigPayload is the payload of control.conversation.config.
type ConversationConfigPayload struct {
	IsProactive              bool `json:"isProactive"`
	HasTemplate              bool `json:"hasTemplate"`
	AllowNavigation          bool `json:"allowNavigation"`
	AllowBackwardNavigation  bool `json:"allowBackwardNavigation"`
	EnableChatInputInitially bool `json:"enableChatInputInitially"`
	DisplayProgressIndicator bool `json:"displayProgressIndicator"`
	DisplayFinalScoreReport  bool `json:"displayFinalScoreReport"`
	ShuffleItems             bool `json:"shuffleItems"`
	ContinueAfterCompletion  bool `json:"continueAfterCompletion"`
	TotalItems               int  `json:"totalItems"`
}

// ItemContextPayload is the payload of control.item.context (spec §3, §4.9).
// Field names follow the original ConfigSender.send_item_context wire shape
// (orchestrator/protocol/config_sender.py).
type ItemContextPayload struct {
	ItemID                  string `json:"itemId"`
	ItemIndex               int    `json:"itemIndex"`
	Total                   int    `json:"total"`
	EnableChatInput         bool   `json:"enableChatInput"`
	TimeLimitSeconds        int    `json:"timeLimitSeconds,omitempty"`
	ShowRemainingTime       bool   `json:"showRemainingTime"`
	RequireUserConfirmation bool   `json:"requireUserConfirmation"`
	ConfirmationButtonText  string `json:"confirmationButtonText,omitempty"`
}

// WidgetConstraints carries optional per-widget validation constraints
// (min/max, max length, etc.) surfaced to the client but never containing
// the correct answer.
type WidgetConstraints struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
}

// WidgetRenderPayload is the payload of control.widget.render (spec §4.12).
// CorrectAnswer is intentionally absent — it must never be sent to the
// client (spec §8 invariant).
type WidgetRenderPayload struct {
	ItemID           string            `json:"itemId"`
	WidgetID         string            `json:"widgetId"`
	WidgetType       WidgetType        `json:"widgetType"`
	Stem             string            `json:"stem,omitempty"`
	Options          []string          `json:"options,omitempty"`
	WidgetConfig     map[string]any    `json:"widgetConfig,omitempty"`
	Required         bool              `json:"required"`
	Skippable        bool              `json:"skippable"`
	InitialValue     any               `json:"initialValue,omitempty"`
	ShowUserResponse bool              `json:"showUserResponse"`
	Layout           string            `json:"layout,omitempty"`
	Constraints      WidgetConstraints `json:"constraints,omitempty"`
}

// WidgetUpdatePayload is the payload of control.widget.update: post-scoring
// feedback for an answered widget, sent only when the item's
// revealCorrectAnswer/provideFeedback flags ask for it (spec §3, §4.9 step
// 6). Unlike WidgetRenderPayload, CorrectAnswer is allowed here because the
// user has already answered.
type WidgetUpdatePayload struct {
	ItemID        string  `json:"itemId"`
	WidgetID      string  `json:"widgetId"`
	IsCorrect     bool    `json:"isCorrect"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"maxScore"`
	Feedback      string  `json:"feedback,omitempty"`
	CorrectAnswer any     `json:"correctAnswer,omitempty"`
}

// FlowChatInputPayload is the payload of control.flow.chatInput.
type FlowChatInputPayload struct {
	Enabled bool `json:"enabled"`
}

// FlowAckPayload acknowledges a control.flow.{pause,cancel,resume} request.
type FlowAckPayload struct {
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// AuditEventEntry is one client-submitted telemetry entry within a
// data.audit.events batch (spec §4.1; rate-limited 10/60s, spec §4.4).
type AuditEventEntry struct {
	SequenceNumber int            `json:"sequenceNumber"`
	EventType      string         `json:"eventType"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// AuditEventsPayload is the payload of data.audit.events.
type AuditEventsPayload struct {
	Events []AuditEventEntry `json:"events"`
}
