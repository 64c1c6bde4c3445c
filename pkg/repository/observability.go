package repository

import (
	"context"
	"sync"
	"time"
)

// ToolExecutionRecord is one ReAct tool call's full request/response
// detail, kept for replay and debugging (spec §4.10/§4.11
// ToolExecutionResult{success,result?|error,executionTimeMs}).
type ToolExecutionRecord struct {
	ID             string
	ConversationID string
	CallID         string
	ToolName       string
	Arguments      map[string]any
	Result         any
	Success        bool
	ErrorMessage   string
	DurationMs     int64
	CreatedAt      time.Time
}

// AuditEventRecord is one client-submitted audit event (spec §4.1
// data.audit.events, rate-limited per §4.4).
type AuditEventRecord struct {
	ID             string
	ConversationID string
	SequenceNumber int
	EventType      string
	Payload        map[string]any
	CreatedAt      time.Time
}

// ConversationScoreRecord is the aggregated per-item score shown as the
// final score report (spec §4.9,
// control.conversation.config.displayFinalScoreReport).
type ConversationScoreRecord struct {
	ConversationID string
	CorrectCount   int
	TotalCount     int
	Summary        string
	ComputedAt     time.Time
}

// ObservabilityStore is the C14 contract for the append-only tool-call and
// audit-event trails, plus the single score record per conversation.
// Kept as one interface (rather than three) since the mediator writes all
// three through the same conversation-scoped lifecycle and no caller needs
// them split.
type ObservabilityStore interface {
	RecordToolExecution(ctx context.Context, rec ToolExecutionRecord) error
	RecordAuditEvent(ctx context.Context, rec AuditEventRecord) error
	PutScore(ctx context.Context, rec ConversationScoreRecord) error
	ToolExecutionsForConversation(ctx context.Context, conversationID string) ([]ToolExecutionRecord, error)
	AuditEventsForConversation(ctx context.Context, conversationID string) ([]AuditEventRecord, error)
	ScoreForConversation(ctx context.Context, conversationID string) (*ConversationScoreRecord, error)
}

// InMemoryObservabilityStore is a process-local reference implementation.
type InMemoryObservabilityStore struct {
	mu             sync.Mutex
	toolExecutions map[string][]ToolExecutionRecord
	auditEvents    map[string][]AuditEventRecord
	scores         map[string]ConversationScoreRecord
}

// NewInMemoryObservabilityStore constructs an empty store.
func NewInMemoryObservabilityStore() *InMemoryObservabilityStore {
	return &InMemoryObservabilityStore{
		toolExecutions: make(map[string][]ToolExecutionRecord),
		auditEvents:    make(map[string][]AuditEventRecord),
		scores:         make(map[string]ConversationScoreRecord),
	}
}

// RecordToolExecution appends a tool-call record to its conversation's trail.
func (s *InMemoryObservabilityStore) RecordToolExecution(ctx context.Context, rec ToolExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolExecutions[rec.ConversationID] = append(s.toolExecutions[rec.ConversationID], rec)
	return nil
}

// RecordAuditEvent appends a client audit event to its conversation's trail.
func (s *InMemoryObservabilityStore) RecordAuditEvent(ctx context.Context, rec AuditEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditEvents[rec.ConversationID] = append(s.auditEvents[rec.ConversationID], rec)
	return nil
}

// PutScore replaces the score record for a conversation.
func (s *InMemoryObservabilityStore) PutScore(ctx context.Context, rec ConversationScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[rec.ConversationID] = rec
	return nil
}

// ToolExecutionsForConversation returns the recorded tool calls in append order.
func (s *InMemoryObservabilityStore) ToolExecutionsForConversation(ctx context.Context, conversationID string) ([]ToolExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolExecutionRecord(nil), s.toolExecutions[conversationID]...), nil
}

// AuditEventsForConversation returns the recorded audit events in append order.
func (s *InMemoryObservabilityStore) AuditEventsForConversation(ctx context.Context, conversationID string) ([]AuditEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEventRecord(nil), s.auditEvents[conversationID]...), nil
}

// ScoreForConversation returns the conversation's score record, if any.
func (s *InMemoryObservabilityStore) ScoreForConversation(ctx context.Context, conversationID string) (*ConversationScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scores[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}
