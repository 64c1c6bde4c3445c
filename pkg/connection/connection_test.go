package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionTransitionFollowsStateMachine(t *testing.T) {
	c := &Connection{state: StateConnecting, conversations: make(map[string]bool)}

	require.NoError(t, c.Transition(StateConnected))
	assert.Equal(t, StateConnected, c.State())

	err := c.Transition(StateActive)
	var illegal *ErrIllegalTransition
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StateConnected, illegal.From)
	assert.Equal(t, StateActive, illegal.To)
	assert.Equal(t, StateConnected, c.State(), "rejected transition must not mutate state")
}

func TestConnectionCanAcceptCanSendOutbound(t *testing.T) {
	c := &Connection{state: StateActive, conversations: make(map[string]bool)}
	assert.True(t, c.CanAcceptInbound())
	assert.True(t, c.CanSendOutbound())

	require.NoError(t, c.Transition(StateClosing))
	assert.False(t, c.CanAcceptInbound())
	assert.True(t, c.CanSendOutbound())
}

func TestConnectionBindUnbindConversation(t *testing.T) {
	c := &Connection{state: StateActive, conversations: make(map[string]bool)}
	c.BindConversation("conv-1")
	c.BindConversation("conv-2")
	assert.ElementsMatch(t, []string{"conv-1", "conv-2"}, c.BoundConversations())
	assert.True(t, c.isBoundTo("conv-1"))

	c.UnbindConversation("conv-1")
	assert.False(t, c.isBoundTo("conv-1"))
	assert.ElementsMatch(t, []string{"conv-2"}, c.BoundConversations())
}

func TestConnectionMissedPongCounter(t *testing.T) {
	c := &Connection{state: StateActive, conversations: make(map[string]bool)}
	assert.Equal(t, 1, c.RecordMissedPong())
	assert.Equal(t, 2, c.RecordMissedPong())
	c.ResetMissedPongs()
	assert.Equal(t, 1, c.RecordMissedPong())
}

func TestNewConnectionStartsConnecting(t *testing.T) {
	c := New("conn-1", "user-1", nil, context.Background())
	assert.Equal(t, StateConnecting, c.State())
	assert.Equal(t, "conn-1", c.ID)
	assert.Equal(t, "user-1", c.UserID)
	assert.NotNil(t, c.Context())
}
