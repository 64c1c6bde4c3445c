package repository

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/agenthost/pkg/access"
)

// AccessPolicyRecord is the persisted form of an access.Policy plus
// repository bookkeeping (spec §4.5, §6 "Repository interface").
type AccessPolicyRecord struct {
	Policy  access.Policy
	Version int
}

// AccessPolicyRepository is the C14 contract for access policies.
type AccessPolicyRepository interface {
	Get(ctx context.Context, id string) (*AccessPolicyRecord, error)
	Update(ctx context.Context, record *AccessPolicyRecord) error
	Remove(ctx context.Context, id string) error
}

// InMemoryPolicyStore is a process-local AccessPolicyRepository that also
// implements access.PolicyStore, so C5's resolver and the repository read
// the same underlying policy set — an admin Update here is immediately
// visible to the next ResolveGroups call (after Invalidate, per spec §4.5).
type InMemoryPolicyStore struct {
	mu   sync.Mutex
	byID map[string]*AccessPolicyRecord
}

// NewInMemoryPolicyStore constructs an empty store.
func NewInMemoryPolicyStore() *InMemoryPolicyStore {
	return &InMemoryPolicyStore{byID: make(map[string]*AccessPolicyRecord)}
}

// Get returns a copy of the stored record.
func (s *InMemoryPolicyStore) Get(ctx context.Context, id string) (*AccessPolicyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *r
	return &clone, nil
}

// Update inserts or replaces a policy record with optimistic concurrency.
func (s *InMemoryPolicyStore) Update(ctx context.Context, record *AccessPolicyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[record.Policy.ID]
	if !ok {
		clone := *record
		clone.Version = 1
		s.byID[record.Policy.ID] = &clone
		record.Version = 1
		return nil
	}
	if existing.Version != record.Version {
		return ErrVersionConflict
	}
	clone := *record
	clone.Version = existing.Version + 1
	s.byID[record.Policy.ID] = &clone
	record.Version = clone.Version
	return nil
}

// Remove deletes a policy by id.
func (s *InMemoryPolicyStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ActivePolicies implements access.PolicyStore.
func (s *InMemoryPolicyStore) ActivePolicies() []access.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]access.Policy, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r.Policy)
	}
	return out
}
