package mediator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/repository"
)

// maxConflictRetries bounds the re-fetch-and-retry loop Update runs after
// an ErrVersionConflict. The in-memory repository serializes every call
// behind one mutex, so a conflict here can only come from a second
// command racing the same conversation between this command's Get and
// Update — a handful of retries is plenty.
const maxConflictRetries = 5

// Commands implements orchestrator.Commands (spec §6's SendMessageCommand,
// CompleteMessageCommand, RecordItemResponseCommand, AdvanceTemplateCommand)
// against the C14 repositories. The orchestrator writes to pkg/repository
// only through it and only ever sees the narrow Commands interface it
// declared for itself; cmd/agenthost's connect hook also creates missing
// conversations through the repository directly.
type Commands struct {
	conversations repository.ConversationRepository
	observability repository.ObservabilityStore
}

// New constructs a Commands dispatcher.
func New(conversations repository.ConversationRepository, observability repository.ObservabilityStore) *Commands {
	return &Commands{conversations: conversations, observability: observability}
}

var _ orchestrator.Commands = (*Commands)(nil)
var _ orchestrator.AuditRecorder = (*Commands)(nil)

// SendMessage appends userID's message and a placeholder assistant message
// to conversationID's log, returning the new assistant message's id for
// the caller to stream content into via CompleteMessage
// (spec §6 SendMessageCommand).
func (c *Commands) SendMessage(ctx context.Context, conversationID, userID, content string) (string, error) {
	if content == "" {
		return "", &ValidationError{Field: "content", Message: "must not be empty"}
	}

	assistantMessageID := uuid.New().String()
	now := time.Now()

	err := c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		conv.Messages = append(conv.Messages,
			repository.MessageRecord{ID: uuid.New().String(), Role: "user", Content: content, CreatedAt: now},
			repository.MessageRecord{ID: assistantMessageID, Role: "assistant", Content: "", CreatedAt: now},
		)
		return nil
	})
	if err != nil {
		return "", err
	}
	return assistantMessageID, nil
}

// CompleteMessage fills in the final streamed content of a previously
// pending assistant message (spec §6 CompleteMessageCommand).
func (c *Commands) CompleteMessage(ctx context.Context, conversationID, assistantMessageID, finalContent string) error {
	return c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		for i := range conv.Messages {
			if conv.Messages[i].ID == assistantMessageID {
				conv.Messages[i].Content = finalContent
				return nil
			}
		}
		return ErrNotFound
	})
}

// RecordItemResponse persists a completed template item's responses and,
// once a score is available, refreshes the conversation's aggregated
// score record (spec §6 RecordItemResponseCommand, §4.9 scoring).
func (c *Commands) RecordItemResponse(ctx context.Context, conversationID string, item *orchestrator.ItemExecutionState) error {
	if item == nil {
		return &ValidationError{Field: "item", Message: "must not be nil"}
	}

	completedAt := time.Now()
	if item.CompletedAt != nil {
		completedAt = *item.CompletedAt
	}

	rec := repository.ItemResponseRecord{
		ItemID:          item.ItemID,
		ItemIndex:       item.ItemIndex,
		WidgetResponses: item.WidgetResponses,
		UserConfirmed:   item.UserConfirmed,
		CompletedAt:     completedAt,
	}
	if item.ScoringResult != nil {
		correct := item.ScoringResult.IsCorrect
		rec.IsCorrect = &correct
		rec.Feedback = item.ScoringResult.Feedback
	}

	if err := c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		conv.ItemResponses = append(conv.ItemResponses, rec)
		return nil
	}); err != nil {
		return err
	}

	if item.ScoringResult == nil || c.observability == nil {
		return nil
	}
	return c.refreshScore(ctx, conversationID)
}

// AdvanceTemplate records the proactive template's new current item index
// (spec §6 AdvanceTemplateCommand).
func (c *Commands) AdvanceTemplate(ctx context.Context, conversationID string, newItemIndex int) error {
	if newItemIndex < 0 {
		return &ValidationError{Field: "newItemIndex", Message: "must be non-negative"}
	}
	return c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		conv.CurrentItemIndex = newItemIndex
		return nil
	})
}

// CancelOperation marks a conversation cancelled (spec §6
// CancelOperationCommand).
func (c *Commands) CancelOperation(ctx context.Context, conversationID string) error {
	return c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		conv.Status = "cancelled"
		return nil
	})
}

// PauseConversation marks a conversation paused (spec §6
// PauseConversationCommand).
func (c *Commands) PauseConversation(ctx context.Context, conversationID string) error {
	return c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		conv.Status = "paused"
		return nil
	})
}

// ResumeConversation clears a conversation's paused status (spec §6
// ResumeConversationCommand).
func (c *Commands) ResumeConversation(ctx context.Context, conversationID string) error {
	return c.updateConversation(ctx, conversationID, func(conv *repository.ConversationAggregate) error {
		conv.Status = "active"
		return nil
	})
}

// RecordAuditEvents persists a batch of client-submitted audit telemetry,
// satisfying orchestrator.AuditRecorder (spec §4.1 data.audit.events).
func (c *Commands) RecordAuditEvents(ctx context.Context, conversationID string, events []protocol.AuditEventEntry) error {
	if c.observability == nil {
		return nil
	}
	now := time.Now()
	for _, e := range events {
		if err := c.observability.RecordAuditEvent(ctx, repository.AuditEventRecord{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			SequenceNumber: e.SequenceNumber,
			EventType:      e.EventType,
			Payload:        e.Payload,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// refreshScore recomputes the conversation's ConversationScoreRecord from
// its persisted item responses.
func (c *Commands) refreshScore(ctx context.Context, conversationID string) error {
	conv, err := c.conversations.Get(ctx, conversationID)
	if err != nil {
		return translateRepositoryError(err)
	}

	var correct, total int
	for _, r := range conv.ItemResponses {
		if r.IsCorrect == nil {
			continue
		}
		total++
		if *r.IsCorrect {
			correct++
		}
	}
	if total == 0 {
		return nil
	}
	return c.observability.PutScore(ctx, repository.ConversationScoreRecord{
		ConversationID: conversationID,
		CorrectCount:   correct,
		TotalCount:     total,
		ComputedAt:     time.Now(),
	})
}

// updateConversation runs a read-modify-write cycle against conversationID,
// re-running it on ErrVersionConflict for at most maxConflictRetries
// attempts in total before giving up with ErrConflict.
func (c *Commands) updateConversation(ctx context.Context, conversationID string, mutate func(*repository.ConversationAggregate) error) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		conv, err := c.conversations.Get(ctx, conversationID)
		if err != nil {
			return translateRepositoryError(err)
		}
		if err := mutate(conv); err != nil {
			return translateRepositoryError(err)
		}
		err = c.conversations.Update(ctx, conv)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		return translateRepositoryError(err)
	}
	return ErrConflict
}

func translateRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrConflict
	default:
		return err
	}
}
