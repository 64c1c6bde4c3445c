package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservabilityStoreRecordsToolExecutionsInOrder(t *testing.T) {
	store := NewInMemoryObservabilityStore()
	ctx := context.Background()

	require.NoError(t, store.RecordToolExecution(ctx, ToolExecutionRecord{ConversationID: "c1", CallID: "call_1"}))
	require.NoError(t, store.RecordToolExecution(ctx, ToolExecutionRecord{ConversationID: "c1", CallID: "call_2"}))

	recs, err := store.ToolExecutionsForConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "call_1", recs[0].CallID)
	assert.Equal(t, "call_2", recs[1].CallID)
}

func TestObservabilityStoreRecordsAuditEventsInOrder(t *testing.T) {
	store := NewInMemoryObservabilityStore()
	ctx := context.Background()

	require.NoError(t, store.RecordAuditEvent(ctx, AuditEventRecord{ConversationID: "c1", SequenceNumber: 1, EventType: "widget.viewed"}))
	require.NoError(t, store.RecordAuditEvent(ctx, AuditEventRecord{ConversationID: "c1", SequenceNumber: 2, EventType: "widget.blurred"}))

	recs, err := store.AuditEventsForConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "widget.viewed", recs[0].EventType)
}

func TestObservabilityStorePutAndGetScore(t *testing.T) {
	store := NewInMemoryObservabilityStore()
	ctx := context.Background()

	require.NoError(t, store.PutScore(ctx, ConversationScoreRecord{ConversationID: "c1", CorrectCount: 2, TotalCount: 3}))

	score, err := store.ScoreForConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, score.CorrectCount)
	assert.Equal(t, 3, score.TotalCount)
}

func TestObservabilityStoreScoreForMissingConversationReturnsNotFound(t *testing.T) {
	store := NewInMemoryObservabilityStore()
	_, err := store.ScoreForConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
