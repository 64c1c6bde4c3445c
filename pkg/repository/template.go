package repository

import (
	"context"
	"sync"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/template"
)

// ConversationTemplateRecord is the persisted definition of a proactive
// conversation's item sequence (spec §4.9).
type ConversationTemplateRecord struct {
	ID        string
	Name      string
	Items     []template.ItemDefinition
	CreatedAt time.Time
	Version   int
}

// TemplateRepository is the C14 contract for template definitions.
type TemplateRepository interface {
	Get(ctx context.Context, id string) (*ConversationTemplateRecord, error)
	Update(ctx context.Context, tmpl *ConversationTemplateRecord) error
	Remove(ctx context.Context, id string) error
}

// InMemoryTemplateStore is a process-local TemplateRepository that also
// implements template.DefinitionSource, so C10's runner can read item
// definitions without depending on this package's storage details — only
// on the narrow interface it already declared.
type InMemoryTemplateStore struct {
	mu   sync.Mutex
	byID map[string]*ConversationTemplateRecord
}

// NewInMemoryTemplateStore constructs an empty store.
func NewInMemoryTemplateStore() *InMemoryTemplateStore {
	return &InMemoryTemplateStore{byID: make(map[string]*ConversationTemplateRecord)}
}

// Get returns a defensive copy of the stored template.
func (s *InMemoryTemplateStore) Get(ctx context.Context, id string) (*ConversationTemplateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	clone.Items = append([]template.ItemDefinition(nil), t.Items...)
	return &clone, nil
}

// Update inserts or replaces a template, enforcing optimistic concurrency
// the same way InMemoryConversationRepository does.
func (s *InMemoryTemplateStore) Update(ctx context.Context, tmpl *ConversationTemplateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[tmpl.ID]
	if !ok {
		clone := *tmpl
		clone.Version = 1
		s.byID[tmpl.ID] = &clone
		tmpl.Version = 1
		return nil
	}
	if existing.Version != tmpl.Version {
		return ErrVersionConflict
	}
	clone := *tmpl
	clone.Version = existing.Version + 1
	s.byID[tmpl.ID] = &clone
	tmpl.Version = clone.Version
	return nil
}

// Remove deletes a template by id.
func (s *InMemoryTemplateStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ItemsForTemplate implements template.DefinitionSource.
func (s *InMemoryTemplateStore) ItemsForTemplate(ctx context.Context, templateID string) ([]template.ItemDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[templateID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]template.ItemDefinition(nil), t.Items...), nil
}
