package orchestrator

import "sync"

// Registry owns every live ConversationContext in this process, keyed by
// conversation id. It implements pkg/router.ConversationStateProvider so
// the router's state-guard middleware can look up a conversation's current
// state without this package depending on pkg/router.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*ConversationContext
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*ConversationContext)}
}

// Put registers or replaces the context for its ConversationID.
func (r *Registry) Put(ctx *ConversationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[ctx.ConversationID] = ctx
}

// Get returns the context for conversationID, if any.
func (r *Registry) Get(conversationID string) (*ConversationContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.contexts[conversationID]
	return ctx, ok
}

// Remove drops the context, called when the owning connection closes
// (spec §3: "destroyed when the owning connection closes, with persisted
// state flushed" — flushing itself is the caller's responsibility before
// calling Remove).
func (r *Registry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, conversationID)
}

// StateFor implements pkg/router.ConversationStateProvider.
func (r *Registry) StateFor(conversationID string) (string, bool) {
	ctx, ok := r.Get(conversationID)
	if !ok {
		return "", false
	}
	return string(ctx.State()), true
}
