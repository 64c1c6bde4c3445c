package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/codeready-toolchain/agenthost/pkg/router"
)

type fakeSender struct {
	acks          []string
	respAcks      []string
	flowAcks      []string
	chatInputs    []bool
	widgetUpdates []protocol.WidgetUpdatePayload
	errors        []string
}

func (f *fakeSender) SendMessageAck(connID, conversationID, messageID string) {
	f.acks = append(f.acks, messageID)
}
func (f *fakeSender) SendResponseAck(connID, conversationID, itemID, widgetID string) {
	f.respAcks = append(f.respAcks, itemID+":"+widgetID)
}
func (f *fakeSender) SendFlowAck(connID, conversationID string) {
	f.flowAcks = append(f.flowAcks, conversationID)
}
func (f *fakeSender) SendFlowChatInput(connID, conversationID string, enabled bool) {
	f.chatInputs = append(f.chatInputs, enabled)
}
func (f *fakeSender) SendWidgetUpdate(connID, conversationID string, payload protocol.WidgetUpdatePayload) {
	f.widgetUpdates = append(f.widgetUpdates, payload)
}
func (f *fakeSender) SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string) {
	f.errors = append(f.errors, code)
}

type fakeAgent struct {
	response string
	err      error
}

func (f *fakeAgent) Run(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext, userMessage, assistantMessageID string) (string, error) {
	return f.response, f.err
}

type fakeCommands struct {
	assistantID    string
	recordedItems  []string
	advancedTo     []int
	sendMessageErr error
}

func (f *fakeCommands) SendMessage(ctx context.Context, conversationID, userID, content string) (string, error) {
	if f.sendMessageErr != nil {
		return "", f.sendMessageErr
	}
	return f.assistantID, nil
}
func (f *fakeCommands) CompleteMessage(ctx context.Context, conversationID, assistantMessageID, finalContent string) error {
	return nil
}
func (f *fakeCommands) RecordItemResponse(ctx context.Context, conversationID string, item *ItemExecutionState) error {
	f.recordedItems = append(f.recordedItems, item.ItemID)
	return nil
}
func (f *fakeCommands) AdvanceTemplate(ctx context.Context, conversationID string, newItemIndex int) error {
	f.advancedTo = append(f.advancedTo, newItemIndex)
	return nil
}

type fakeTemplateRunner struct {
	started, advanced int
}

func (f *fakeTemplateRunner) Start(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext) {
	f.started++
}
func (f *fakeTemplateRunner) Advance(ctx context.Context, conn *connection.Connection, convCtx *ConversationContext) {
	f.advanced++
}

func testConn() *connection.Connection {
	return connection.New("conn-1", "user-1", nil, context.Background())
}

func TestHandleMessageSendHappyPath(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", false, false)
	require.NoError(t, convCtx.Transition(StateReady))
	registry.Put(convCtx)

	sender := &fakeSender{}
	agent := &fakeAgent{response: "final answer"}
	commands := &fakeCommands{assistantID: "assist-1"}
	h := NewHandlers(registry, sender, agent, commands, &fakeTemplateRunner{}, nil)

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessageSend(context.Background(), testConn(), msg))
	assert.Equal(t, StateReady, convCtx.State())
	assert.Len(t, sender.acks, 1)
	assert.Empty(t, sender.errors)
}

func TestHandleMessageSendRejectsWrongState(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", false, false)
	require.NoError(t, convCtx.Transition(StatePresenting))
	require.NoError(t, convCtx.Transition(StateSuspended))
	registry.Put(convCtx)

	sender := &fakeSender{}
	h := NewHandlers(registry, sender, &fakeAgent{}, &fakeCommands{}, &fakeTemplateRunner{}, nil)

	msg, err := protocol.New(protocol.TypeDataMessageSend, "conv-1", protocol.MessageSendPayload{Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessageSend(context.Background(), testConn(), msg))
	assert.Equal(t, StateSuspended, convCtx.State())
	require.Len(t, sender.errors, 1)
	assert.Equal(t, protocol.CodeInvalidState, sender.errors[0])
}

func TestHandleMessageSendUnknownConversationIsValidationError(t *testing.T) {
	registry := NewRegistry()
	h := NewHandlers(registry, &fakeSender{}, &fakeAgent{}, &fakeCommands{}, &fakeTemplateRunner{}, nil)

	msg, err := protocol.New(protocol.TypeDataMessageSend, "missing", protocol.MessageSendPayload{})
	require.NoError(t, err)

	err = h.HandleMessageSend(context.Background(), testConn(), msg)
	var verr *router.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestHandleResponseSubmitAdvancesOnCompletion(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(StatePresenting))
	require.NoError(t, convCtx.Transition(StateSuspended))
	item := NewItemExecutionState("item-1", 0, []string{"w1"}, false, false, time.Now())
	convCtx.BeginItem(item, 3)
	registry.Put(convCtx)

	sender := &fakeSender{}
	commands := &fakeCommands{}
	templates := &fakeTemplateRunner{}
	h := NewHandlers(registry, sender, &fakeAgent{}, commands, templates, nil)

	msg, err := protocol.New(protocol.TypeDataResponseSubmit, "conv-1", protocol.ResponseSubmitPayload{ItemID: "item-1", WidgetID: "w1", Value: "answer"})
	require.NoError(t, err)

	require.NoError(t, h.HandleResponseSubmit(context.Background(), testConn(), msg))
	assert.Len(t, sender.respAcks, 1)
	require.Len(t, commands.recordedItems, 1)
	assert.Equal(t, "item-1", commands.recordedItems[0])
	require.Len(t, commands.advancedTo, 1)
	assert.Equal(t, 1, commands.advancedTo[0])
	assert.Equal(t, 1, templates.advanced)
	assert.Nil(t, convCtx.CurrentItem())
}

func TestHandleResponseSubmitIgnoresLateSubmissionForSkippedItem(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", false, true)
	require.NoError(t, convCtx.Transition(StatePresenting))
	require.NoError(t, convCtx.Transition(StateSuspended))
	item := NewItemExecutionState("item-2", 1, []string{"w1"}, false, false, time.Now())
	convCtx.BeginItem(item, 3)
	registry.Put(convCtx)

	commands := &fakeCommands{}
	h := NewHandlers(registry, &fakeSender{}, &fakeAgent{}, commands, &fakeTemplateRunner{}, nil)

	msg, err := protocol.New(protocol.TypeDataResponseSubmit, "conv-1", protocol.ResponseSubmitPayload{ItemID: "item-1", WidgetID: "w1", Value: "late"})
	require.NoError(t, err)

	require.NoError(t, h.HandleResponseSubmit(context.Background(), testConn(), msg))
	assert.Empty(t, commands.recordedItems)
	assert.Equal(t, StateReady, convCtx.State())
}

func TestHandleResponseSubmitBatchWaitsForFinal(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(StatePresenting))
	require.NoError(t, convCtx.Transition(StateSuspended))
	item := NewItemExecutionState("item-1", 0, []string{"w1", "w2"}, false, false, time.Now())
	convCtx.BeginItem(item, 1)
	registry.Put(convCtx)

	commands := &fakeCommands{}
	h := NewHandlers(registry, &fakeSender{}, &fakeAgent{}, commands, &fakeTemplateRunner{}, nil)

	msg1, err := protocol.New(protocol.TypeDataResponseSubmit, "conv-1", protocol.ResponseSubmitPayload{ItemID: "item-1", WidgetID: "w1", Value: "a", Batch: true, BatchFinal: false})
	require.NoError(t, err)
	require.NoError(t, h.HandleResponseSubmit(context.Background(), testConn(), msg1))
	assert.Empty(t, commands.recordedItems)

	msg2, err := protocol.New(protocol.TypeDataResponseSubmit, "conv-1", protocol.ResponseSubmitPayload{ItemID: "item-1", WidgetID: "w2", Value: "b", Batch: true, BatchFinal: true})
	require.NoError(t, err)
	require.NoError(t, h.HandleResponseSubmit(context.Background(), testConn(), msg2))
	assert.Len(t, commands.recordedItems, 1)
}

func TestHandleFlowStartSpawnsTemplateRunnerWhenProactive(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(StateReady))
	registry.Put(convCtx)

	templates := &fakeTemplateRunner{}
	h := NewHandlers(registry, &fakeSender{}, &fakeAgent{}, &fakeCommands{}, templates, nil)

	msg, err := protocol.New(protocol.TypeControlFlowStart, "conv-1", nil)
	require.NoError(t, err)
	require.NoError(t, h.HandleFlow(context.Background(), testConn(), msg))

	assert.Equal(t, StatePresenting, convCtx.State())
	assert.Equal(t, 1, templates.started)
}

func TestHandleFlowStartEnablesChatInputWhenReactive(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", false, false)
	require.NoError(t, convCtx.Transition(StateReady))
	registry.Put(convCtx)

	sender := &fakeSender{}
	h := NewHandlers(registry, sender, &fakeAgent{}, &fakeCommands{}, &fakeTemplateRunner{}, nil)

	msg, err := protocol.New(protocol.TypeControlFlowStart, "conv-1", nil)
	require.NoError(t, err)
	require.NoError(t, h.HandleFlow(context.Background(), testConn(), msg))

	assert.Equal(t, StateReady, convCtx.State())
	require.Len(t, sender.chatInputs, 1)
	assert.True(t, sender.chatInputs[0])
}

func TestHandleFlowPauseAndResume(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(StateReady))
	registry.Put(convCtx)

	sender := &fakeSender{}
	templates := &fakeTemplateRunner{}
	h := NewHandlers(registry, sender, &fakeAgent{}, &fakeCommands{}, templates, nil)

	pauseMsg, err := protocol.New(protocol.TypeControlFlowPause, "conv-1", nil)
	require.NoError(t, err)
	require.NoError(t, h.HandleFlow(context.Background(), testConn(), pauseMsg))
	assert.Equal(t, StatePaused, convCtx.State())

	resumeMsg, err := protocol.New(protocol.TypeControlFlowResume, "conv-1", nil)
	require.NoError(t, err)
	require.NoError(t, h.HandleFlow(context.Background(), testConn(), resumeMsg))
	assert.Equal(t, StatePresenting, convCtx.State())
	assert.Equal(t, 1, templates.started)
}

func TestHandleFlowCancelClearsPendingMarkers(t *testing.T) {
	registry := NewRegistry()
	convCtx := NewConversationContext("conv-1", "user-1", false, false)
	require.NoError(t, convCtx.Transition(StateProcessing))
	convCtx.PendingWidgetID = "w1"
	convCtx.PendingToolCallID = "call-1"
	registry.Put(convCtx)

	h := NewHandlers(registry, &fakeSender{}, &fakeAgent{}, &fakeCommands{}, &fakeTemplateRunner{}, nil)

	msg, err := protocol.New(protocol.TypeControlFlowCancel, "conv-1", nil)
	require.NoError(t, err)
	require.NoError(t, h.HandleFlow(context.Background(), testConn(), msg))

	assert.Equal(t, StateReady, convCtx.State())
	assert.Empty(t, convCtx.PendingWidgetID)
	assert.Empty(t, convCtx.PendingToolCallID)
}
