package repository

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/agenthost/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStoreItemsForTemplateSatisfiesDefinitionSource(t *testing.T) {
	store := NewInMemoryTemplateStore()
	ctx := context.Background()

	tmpl := &ConversationTemplateRecord{
		ID:   "tmpl-1",
		Name: "onboarding",
		Items: []template.ItemDefinition{
			{ID: "item-1"},
		},
	}
	require.NoError(t, store.Update(ctx, tmpl))

	var source template.DefinitionSource = store
	items, err := source.ItemsForTemplate(ctx, "tmpl-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
}

func TestTemplateStoreItemsForTemplateMissingReturnsNotFound(t *testing.T) {
	store := NewInMemoryTemplateStore()
	_, err := store.ItemsForTemplate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplateStoreUpdateRejectsStaleVersion(t *testing.T) {
	store := NewInMemoryTemplateStore()
	ctx := context.Background()

	tmpl := &ConversationTemplateRecord{ID: "tmpl-1"}
	require.NoError(t, store.Update(ctx, tmpl))

	stale := &ConversationTemplateRecord{ID: "tmpl-1", Version: tmpl.Version - 1}
	assert.ErrorIs(t, store.Update(ctx, stale), ErrVersionConflict)
}
