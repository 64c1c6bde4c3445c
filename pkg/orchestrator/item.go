package orchestrator

import (
	"sync"
	"time"
)

// ScoringResult is the outcome of an LLM-judged item score (spec §3, §4.9).
type ScoringResult struct {
	IsCorrect bool
	Score     float64
	MaxScore  float64
	Feedback  string
}

// ItemExecutionState tracks one template item's presentation-to-completion
// lifecycle (spec §3).
type ItemExecutionState struct {
	ItemID    string
	ItemIndex int

	RequiredWidgetIDs map[string]bool
	AnsweredWidgetIDs map[string]bool
	WidgetResponses   map[string]any
	WidgetConfigs     map[string]any

	RequireUserConfirmation bool
	UserConfirmed           bool
	ProvideFeedback         bool
	RevealCorrectAnswer     bool

	StartedAt     time.Time
	CompletedAt   *time.Time
	ScoringResult *ScoringResult

	mu       sync.Mutex
	doneOnce sync.Once
	doneCh   chan struct{}
}

// NewItemExecutionState starts tracking itemID, entered at itemIndex.
func NewItemExecutionState(itemID string, itemIndex int, requiredWidgetIDs []string, requireUserConfirmation, provideFeedback bool, now time.Time) *ItemExecutionState {
	required := make(map[string]bool, len(requiredWidgetIDs))
	for _, id := range requiredWidgetIDs {
		required[id] = true
	}
	return &ItemExecutionState{
		ItemID:                  itemID,
		ItemIndex:               itemIndex,
		RequiredWidgetIDs:       required,
		AnsweredWidgetIDs:       make(map[string]bool),
		WidgetResponses:         make(map[string]any),
		WidgetConfigs:           make(map[string]any),
		RequireUserConfirmation: requireUserConfirmation,
		ProvideFeedback:         provideFeedback,
		StartedAt:               now,
		doneCh:                  make(chan struct{}),
	}
}

// RecordResponse stores value for widgetID and marks it answered if it is
// one of the item's required widgets (spec §4.8 widget handler step 3).
func (s *ItemExecutionState) RecordResponse(widgetID string, value any) {
	s.WidgetResponses[widgetID] = value
	if s.RequiredWidgetIDs[widgetID] {
		s.AnsweredWidgetIDs[widgetID] = true
	}
}

// Confirm records the special "{itemId}-confirm" widget's acknowledgment.
func (s *ItemExecutionState) Confirm() {
	s.UserConfirmed = true
}

// IsComplete is the invariant from spec §3: every required widget answered,
// and confirmation given if required.
func (s *ItemExecutionState) IsComplete() bool {
	for id := range s.RequiredWidgetIDs {
		if !s.AnsweredWidgetIDs[id] {
			return false
		}
	}
	if s.RequireUserConfirmation && !s.UserConfirmed {
		return false
	}
	return true
}

// Complete records the item's completion instant and signals Done to
// anyone racing a timeout against it (spec §5).
func (s *ItemExecutionState) Complete(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CompletedAt != nil {
		return
	}
	s.CompletedAt = &now
	s.doneOnce.Do(func() { close(s.doneCh) })
}

// Done reports when the item becomes complete, normally or by timeout.
// Complete may be called directly on timeout too (spec §5 "forced advance
// with empty responses") — it has no IsComplete precondition of its own.
func (s *ItemExecutionState) Done() <-chan struct{} {
	return s.doneCh
}

// IsCompleted reports whether Complete has already run, letting a losing
// goroutine in the completion/timeout race no-op.
func (s *ItemExecutionState) IsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CompletedAt != nil
}
