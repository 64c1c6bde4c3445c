// Package protocol defines the WebSocket wire envelope, the closed message
// type registry, and the error/close-code vocabulary shared by every other
// package in the orchestrator.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Plane partitions the type registry into the four planes described by the
// protocol (system, control, data-in, data-out).
type Plane string

// Plane values.
const (
	PlaneSystem  Plane = "system"
	PlaneControl Plane = "control"
	PlaneDataIn  Plane = "data_in"
	PlaneDataOut Plane = "data_out"
)

// MessageType is a dotted, closed-registry wire type (e.g. "data.message.send").
type MessageType string

// System plane.
const (
	TypeSystemPing               MessageType = "system.ping"
	TypeSystemPong               MessageType = "system.pong"
	TypeSystemError              MessageType = "system.error"
	TypeSystemConnectionResume   MessageType = "system.connection.resume"
	TypeSystemConnectionResumed MessageType = "system.connection.resumed"
)

// Control plane.
const (
	TypeControlConversationConfig  MessageType = "control.conversation.config"
	TypeControlConversationPause   MessageType = "control.conversation.pause"
	TypeControlConversationCancel  MessageType = "control.conversation.cancel"
	TypeControlConversationResume  MessageType = "control.conversation.resume"
	TypeControlItemContext         MessageType = "control.item.context"
	TypeControlWidgetRender        MessageType = "control.widget.render"
	TypeControlWidgetUpdate        MessageType = "control.widget.update"
	TypeControlFlowChatInput       MessageType = "control.flow.chatInput"
	TypeControlFlowPause           MessageType = "control.flow.pause"
	TypeControlFlowResume          MessageType = "control.flow.resume"
	TypeControlFlowStart           MessageType = "control.flow.start"
	TypeControlFlowCancel          MessageType = "control.flow.cancel"
)

// Data plane, client -> server.
const (
	TypeDataMessageSend    MessageType = "data.message.send"
	TypeDataResponseSubmit MessageType = "data.response.submit"
	TypeDataAuditEvents    MessageType = "data.audit.events"
)

// TypeDataToolResult is listed by the source protocol as client->server
// rate-limited (§4.4) even though tool results are normally server-emitted
// (§4.1). We register it once and route it through the data-out plane by
// default; see DESIGN.md "Open Question decisions" #1 for the resolution.
const TypeDataToolResult MessageType = "data.tool.result"

// Data plane, server -> client.
const (
	TypeDataMessageAck      MessageType = "data.message.ack"
	TypeDataContentChunk    MessageType = "data.content.chunk"
	TypeDataContentComplete MessageType = "data.content.complete"
	TypeDataToolCall        MessageType = "data.tool.call"
	TypeDataResponseAck     MessageType = "data.response.ack"
)

// TypeDescriptor records the plane a registered type belongs to. The
// registry is closed: any type not present here is rejected by
// connection.Manager's read loop with UNKNOWN_MESSAGE_TYPE (§4.1).
type TypeDescriptor struct {
	Plane Plane
}

// registry is populated once at package init, mirroring the teacher's
// config-registry-at-init idiom.
var registry = map[MessageType]TypeDescriptor{
	TypeSystemPing:               {PlaneSystem},
	TypeSystemPong:               {PlaneSystem},
	TypeSystemError:              {PlaneSystem},
	TypeSystemConnectionResume:   {PlaneSystem},
	TypeSystemConnectionResumed: {PlaneSystem},

	TypeControlConversationConfig: {PlaneControl},
	TypeControlConversationPause:  {PlaneControl},
	TypeControlConversationCancel: {PlaneControl},
	TypeControlConversationResume: {PlaneControl},
	TypeControlItemContext:        {PlaneControl},
	TypeControlWidgetRender:       {PlaneControl},
	TypeControlWidgetUpdate:       {PlaneControl},
	TypeControlFlowChatInput:      {PlaneControl},
	TypeControlFlowPause:          {PlaneControl},
	TypeControlFlowResume:         {PlaneControl},
	TypeControlFlowStart:          {PlaneControl},
	TypeControlFlowCancel:         {PlaneControl},

	TypeDataMessageSend:    {PlaneDataIn},
	TypeDataResponseSubmit: {PlaneDataIn},
	TypeDataAuditEvents:    {PlaneDataIn},
	TypeDataToolResult:     {PlaneDataOut},

	TypeDataMessageAck:      {PlaneDataOut},
	TypeDataContentChunk:    {PlaneDataOut},
	TypeDataContentComplete: {PlaneDataOut},
	TypeDataToolCall:        {PlaneDataOut},
	TypeDataResponseAck:     {PlaneDataOut},
}

// IsRegistered reports whether t is a known wire type.
func IsRegistered(t MessageType) bool {
	_, ok := registry[t]
	return ok
}

// DescriptorFor returns the descriptor for a registered type.
func DescriptorFor(t MessageType) (TypeDescriptor, bool) {
	d, ok := registry[t]
	return d, ok
}

// Message is the on-wire envelope (spec §3). Immutable once created;
// construct with New.
type Message struct {
	Type           MessageType     `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	MessageID      string          `json:"message_id"`
	Timestamp      int64           `json:"timestamp"`
}

// New builds a Message with a fresh message id and the current monotonic
// millisecond timestamp, marshaling payload into the envelope.
func New(t MessageType, conversationID string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:           t,
		Payload:        raw,
		ConversationID: conversationID,
		MessageID:      uuid.NewString(),
		Timestamp:      time.Now().UnixMilli(),
	}, nil
}

// Decode unmarshals m.Payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// CloseCode is a WebSocket close status used by the connection manager.
type CloseCode int

// Close codes (spec §4.1).
const (
	CloseNormal       CloseCode = 1000
	CloseAuthFailure  CloseCode = 1008
	CloseInternalErr  CloseCode = 1011
	CloseRestart      CloseCode = 1012
	CloseAppSpecified CloseCode = 4000
)
