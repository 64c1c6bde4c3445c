package access

import "sync"

// StaticGroupActivator is a process-local GroupActivator backed by a
// mutable set of group ids, standing in for whatever external system
// (feature-flag service, admin console) actually decides which tool
// groups are switched on. Spec §1 scopes that system itself out; the
// resolver only needs something satisfying GroupActivator to intersect
// its resolved groups against.
type StaticGroupActivator struct {
	mu     sync.RWMutex
	active map[string]bool
}

// NewStaticGroupActivator builds an activator with the given groups active.
func NewStaticGroupActivator(groupIDs ...string) *StaticGroupActivator {
	active := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		active[id] = true
	}
	return &StaticGroupActivator{active: active}
}

// ActiveGroups implements GroupActivator.
func (a *StaticGroupActivator) ActiveGroups() map[string]bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]bool, len(a.active))
	for id := range a.active {
		out[id] = true
	}
	return out
}

// Activate turns a group on.
func (a *StaticGroupActivator) Activate(groupID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[groupID] = true
}

// Deactivate turns a group off.
func (a *StaticGroupActivator) Deactivate(groupID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, groupID)
}

var _ GroupActivator = (*StaticGroupActivator)(nil)
