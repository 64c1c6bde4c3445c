// Package connection implements the per-WebSocket connection state machine
// and the process-wide ConnectionManager that owns accept, heartbeat,
// resume, and send/broadcast (spec §4.6).
package connection

import "fmt"

// State is a node in the connection state machine, distinct from the
// orchestrator's conversation state machine (spec §4.6).
type State string

// States.
const (
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateAuthenticated State = "AUTHENTICATED"
	StateActive       State = "ACTIVE"
	StatePaused       State = "PAUSED"
	StateReconnecting State = "RECONNECTING"
	StateClosing      State = "CLOSING"
	StateClosed       State = "CLOSED"
)

// allowedTransitions lists the legal State -> {next states} edges.
var allowedTransitions = map[State]map[State]bool{
	StateConnecting:    {StateConnected: true, StateClosing: true},
	StateConnected:     {StateAuthenticated: true, StateClosing: true},
	StateAuthenticated: {StateActive: true, StateClosing: true},
	StateActive:        {StatePaused: true, StateReconnecting: true, StateClosing: true},
	StatePaused:        {StateActive: true, StateReconnecting: true, StateClosing: true},
	StateReconnecting:  {StateActive: true, StateClosing: true},
	StateClosing:       {StateClosed: true},
	StateClosed:        {},
}

// acceptsInbound is the set of states that may process inbound messages.
var acceptsInbound = map[State]bool{
	StateAuthenticated: true,
	StateActive:        true,
	StatePaused:        true,
}

// acceptsOutbound is the set of states that may still be sent to.
var acceptsOutbound = map[State]bool{
	StateConnected:     true,
	StateAuthenticated: true,
	StateActive:        true,
	StatePaused:        true,
	StateClosing:       true,
}

// ErrIllegalTransition is returned by transition attempts that violate the
// state machine.
type ErrIllegalTransition struct {
	From, To State
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("connection: illegal transition %s -> %s", e.From, e.To)
}

// canTransition reports whether from -> to is a legal edge.
func canTransition(from, to State) bool {
	return allowedTransitions[from][to]
}
