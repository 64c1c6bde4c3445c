package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationRepositoryCreateThenGet(t *testing.T) {
	repo := NewInMemoryConversationRepository()
	ctx := context.Background()

	conv := &ConversationAggregate{ID: "conv-1", OwnerUserID: "user-1"}
	require.NoError(t, repo.Update(ctx, conv))
	assert.Equal(t, 1, conv.Version)

	got, err := repo.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerUserID)
	assert.Equal(t, 1, got.Version)
}

func TestConversationRepositoryUpdateRejectsStaleVersion(t *testing.T) {
	repo := NewInMemoryConversationRepository()
	ctx := context.Background()

	conv := &ConversationAggregate{ID: "conv-1", OwnerUserID: "user-1"}
	require.NoError(t, repo.Update(ctx, conv))

	stale := &ConversationAggregate{ID: "conv-1", OwnerUserID: "user-1", Version: conv.Version - 1}
	err := repo.Update(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestConversationRepositoryGetMissingReturnsNotFound(t *testing.T) {
	repo := NewInMemoryConversationRepository()
	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationRepositoryQueryByOwnerAndDefinition(t *testing.T) {
	repo := NewInMemoryConversationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, &ConversationAggregate{ID: "c1", OwnerUserID: "u1", DefinitionID: "d1"}))
	require.NoError(t, repo.Update(ctx, &ConversationAggregate{ID: "c2", OwnerUserID: "u1", DefinitionID: "d2"}))
	require.NoError(t, repo.Update(ctx, &ConversationAggregate{ID: "c3", OwnerUserID: "u2", DefinitionID: "d1"}))

	byOwner, err := repo.QueryByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	byDef, err := repo.QueryByDefinition(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, byDef, 2)
}

func TestConversationRepositoryGetReturnsDefensiveCopy(t *testing.T) {
	repo := NewInMemoryConversationRepository()
	ctx := context.Background()

	conv := &ConversationAggregate{ID: "c1", OwnerUserID: "u1", Messages: []MessageRecord{{ID: "m1", Content: "hi"}}}
	require.NoError(t, repo.Update(ctx, conv))

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	got.Messages[0].Content = "mutated"

	again, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)
}
