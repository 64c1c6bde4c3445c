package orchestrator

import (
	"sync"
	"time"
)

// TemplateConfig is the subset of a ConversationTemplate's flow flags the
// orchestrator needs at runtime (spec §3).
type TemplateConfig struct {
	AgentStartsFirst         bool
	AllowNavigation          bool
	AllowBackwardNavigation  bool
	EnableChatInputInitially bool
	DisplayProgressIndicator bool
	DisplayFinalScoreReport  bool
	ShuffleItems             bool
	ContinueAfterCompletion  bool
}

// ConversationContext is the in-memory, per-connection orchestrator state
// (spec §3, C8). All mutation goes through its exported methods, which hold
// mu for the duration of the read/mutate — handlers never touch the fields
// directly from more than one goroutine.
type ConversationContext struct {
	mu sync.Mutex

	ConversationID string
	UserID         string
	DefinitionID   string
	DefinitionName string
	TemplateID     string
	Model          string

	IsProactive bool
	HasTemplate bool

	TemplateConfig TemplateConfig

	// ItemOrder is the fixed item permutation when TemplateConfig.ShuffleItems
	// is set (spec §3), computed once when the first item is presented and
	// reapplied on every later Advance so indices stay stable. Nil means
	// natural (authored) order.
	ItemOrder []int

	state             State
	CurrentItemIndex  int
	TotalItems        int
	CurrentItemState  *ItemExecutionState
	PendingWidgetID   string
	PendingToolCallID string

	LastActivity time.Time
}

// NewConversationContext constructs a context in INITIALIZING state.
func NewConversationContext(conversationID, userID string, isProactive, hasTemplate bool) *ConversationContext {
	return &ConversationContext{
		ConversationID: conversationID,
		UserID:         userID,
		IsProactive:    isProactive,
		HasTemplate:    hasTemplate,
		state:          StateInitializing,
		LastActivity:   time.Now(),
	}
}

// State returns the current orchestrator state.
func (c *ConversationContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition attempts to move to State to, touching LastActivity on
// success. Illegal transitions are refused (spec §4.8 legal-transitions
// table); the caller is expected to fall back to transitioning to ERROR.
func (c *ConversationContext) Transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return &ErrIllegalTransition{From: c.state, To: to}
	}
	c.state = to
	c.LastActivity = time.Now()
	return nil
}

// ForceError unconditionally moves to ERROR, used by handlers' panic/error
// recovery paths where the normal transition table may already forbid the
// direct edge from an unexpected current state.
func (c *ConversationContext) ForceError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateError
	c.LastActivity = time.Now()
}

// Touch updates LastActivity without changing state.
func (c *ConversationContext) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastActivity = time.Now()
}

// BeginItem installs item as the current item and advances the index/total
// bookkeeping used by control.item.context.
func (c *ConversationContext) BeginItem(item *ItemExecutionState, totalItems int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentItemState = item
	c.CurrentItemIndex = item.ItemIndex
	c.TotalItems = totalItems
}

// EndItem clears the current item after it has been persisted.
func (c *ConversationContext) EndItem() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentItemState = nil
}

// CurrentItem returns the in-flight item state, or nil if none.
func (c *ConversationContext) CurrentItem() *ItemExecutionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentItemState
}

// AcceptsMessageSend reports whether data.message.send is valid in the
// context's current state (spec §4.8 input-acceptance table).
func (c *ConversationContext) AcceptsMessageSend() bool {
	return messageSendStates[c.State()]
}

// AcceptsResponseSubmit reports whether data.response.submit is valid in
// the context's current state.
func (c *ConversationContext) AcceptsResponseSubmit() bool {
	return responseSubmitStates[c.State()]
}
