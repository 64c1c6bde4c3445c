// Package orchestrator implements the per-conversation state machine and
// the message/widget/flow handlers that drive it (spec §4.8, C8/C9):
// ConversationContext, ItemExecutionState, and the handlers registered into
// pkg/router for the control/data planes.
package orchestrator

import "fmt"

// State is a node in the conversation orchestrator's state machine,
// independent of the connection-level state machine in pkg/connection.
type State string

// States (spec §4.8).
const (
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StatePresenting   State = "PRESENTING"
	StateProcessing   State = "PROCESSING"
	StateSuspended    State = "SUSPENDED"
	StatePaused       State = "PAUSED"
	StateCompleted    State = "COMPLETED"
	StateError        State = "ERROR"
)

var allowedTransitions = map[State]map[State]bool{
	StateInitializing: {StateReady: true, StatePresenting: true, StateError: true},
	StateReady:        {StateProcessing: true, StatePresenting: true, StatePaused: true, StateCompleted: true, StateError: true},
	StatePresenting:   {StateSuspended: true, StateReady: true, StatePaused: true, StateCompleted: true, StateError: true},
	StateProcessing:   {StateReady: true, StateSuspended: true, StatePaused: true, StateCompleted: true, StateError: true},
	StateSuspended:    {StatePresenting: true, StateReady: true, StatePaused: true, StateCompleted: true, StateError: true},
	StatePaused:       {StateReady: true, StatePresenting: true, StateCompleted: true, StateError: true},
	StateCompleted:    {},
	StateError:        {},
}

// ErrIllegalTransition is returned when a transition violates the state
// machine; the state is left unchanged and the caller decides how to report
// the failure.
type ErrIllegalTransition struct {
	From, To State
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("orchestrator: illegal transition %s -> %s", e.From, e.To)
}

func canTransition(from, to State) bool {
	return allowedTransitions[from][to]
}

// messageSendStates and responseSubmitStates encode the input-acceptance
// table consumed by pkg/router's state-guard middleware
// (DefaultStateGuardConfig mirrors these).
var (
	messageSendStates    = map[State]bool{StateReady: true, StateProcessing: true}
	responseSubmitStates = map[State]bool{StateSuspended: true}
)
