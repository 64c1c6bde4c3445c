package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionAllowsSpecDiagram(t *testing.T) {
	cases := []struct {
		from, to State
	}{
		{StateConnecting, StateConnected},
		{StateConnected, StateAuthenticated},
		{StateAuthenticated, StateActive},
		{StateActive, StatePaused},
		{StateActive, StateReconnecting},
		{StatePaused, StateActive},
		{StateReconnecting, StateActive},
		{StateActive, StateClosing},
		{StateClosing, StateClosed},
	}
	for _, tc := range cases {
		assert.True(t, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionRejectsIllegalEdges(t *testing.T) {
	cases := []struct {
		from, to State
	}{
		{StateConnecting, StateActive},
		{StateClosed, StateConnecting},
		{StateAuthenticated, StatePaused},
		{StateConnected, StateActive},
	}
	for _, tc := range cases {
		assert.False(t, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestErrIllegalTransitionMessage(t *testing.T) {
	err := &ErrIllegalTransition{From: StateConnecting, To: StateActive}
	assert.Contains(t, err.Error(), "CONNECTING")
	assert.Contains(t, err.Error(), "ACTIVE")
}

func TestAcceptsInboundOutboundSets(t *testing.T) {
	assert.True(t, acceptsInbound[StateActive])
	assert.True(t, acceptsInbound[StatePaused])
	assert.False(t, acceptsInbound[StateConnected])

	assert.True(t, acceptsOutbound[StateConnected])
	assert.True(t, acceptsOutbound[StateClosing])
	assert.False(t, acceptsOutbound[StateClosed])
}
