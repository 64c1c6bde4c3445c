package repository

import (
	"context"
	"sync"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/agent"
)

// AgentDefinitionRecord is a reusable ReAct agent configuration a
// conversation's definitionId points at (spec §4.10, §6 configuration
// table) — the system prompt plus the subset of agent.Config an operator
// chose to override for this definition (nil fields fall back to
// agent.DefaultConfig()).
type AgentDefinitionRecord struct {
	ID                        string
	Name                      string
	SystemPrompt              string
	AllowedToolNames          []string
	MaxIterations             *int
	MaxToolCallsPerIteration  *int
	TimeoutSeconds            *int
	StopOnError               *bool
	Version                   int
}

// Config builds an agent.Config from the record, applying any overrides
// on top of agent.DefaultConfig().
func (r *AgentDefinitionRecord) Config() agent.Config {
	cfg := agent.DefaultConfig()
	if r.MaxIterations != nil {
		cfg.MaxIterations = *r.MaxIterations
	}
	if r.MaxToolCallsPerIteration != nil {
		cfg.MaxToolCallsPerIteration = *r.MaxToolCallsPerIteration
	}
	if r.TimeoutSeconds != nil {
		cfg.Timeout = secondsToDuration(*r.TimeoutSeconds)
	}
	if r.StopOnError != nil {
		cfg.StopOnError = *r.StopOnError
	}
	return cfg
}

// AgentDefinitionRepository is the C14 contract for agent definitions.
type AgentDefinitionRepository interface {
	Get(ctx context.Context, id string) (*AgentDefinitionRecord, error)
	Update(ctx context.Context, def *AgentDefinitionRecord) error
	Remove(ctx context.Context, id string) error
}

// InMemoryAgentDefinitionRepository is a process-local reference
// implementation.
type InMemoryAgentDefinitionRepository struct {
	mu   sync.Mutex
	byID map[string]*AgentDefinitionRecord
}

// NewInMemoryAgentDefinitionRepository constructs an empty repository.
func NewInMemoryAgentDefinitionRepository() *InMemoryAgentDefinitionRepository {
	return &InMemoryAgentDefinitionRepository{byID: make(map[string]*AgentDefinitionRecord)}
}

// Get returns a copy of the stored definition.
func (r *InMemoryAgentDefinitionRepository) Get(ctx context.Context, id string) (*AgentDefinitionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *d
	return &clone, nil
}

// Update inserts or replaces a definition with the same optimistic
// concurrency discipline as the other in-memory repositories.
func (r *InMemoryAgentDefinitionRepository) Update(ctx context.Context, def *AgentDefinitionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[def.ID]
	if !ok {
		clone := *def
		clone.Version = 1
		r.byID[def.ID] = &clone
		def.Version = 1
		return nil
	}
	if existing.Version != def.Version {
		return ErrVersionConflict
	}
	clone := *def
	clone.Version = existing.Version + 1
	r.byID[def.ID] = &clone
	def.Version = clone.Version
	return nil
}

// Remove deletes a definition by id.
func (r *InMemoryAgentDefinitionRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func secondsToDuration(s int) (d time.Duration) {
	return time.Duration(s) * time.Second
}
