package template

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/llm"
	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedWidget struct {
	payload protocol.WidgetRenderPayload
}

type fakeSender struct {
	configs       []protocol.ConversationConfigPayload
	itemContexts  []protocol.ItemContextPayload
	widgets       []recordedWidget
	widgetUpdates []protocol.WidgetUpdatePayload
	chunks        []protocol.ContentChunkPayload
	completes     []protocol.ContentCompletePayload
	chatInputs    []bool
	errors        []string
}

func (f *fakeSender) SendConversationConfig(connID, conversationID string, cfg protocol.ConversationConfigPayload) {
	f.configs = append(f.configs, cfg)
}

func (f *fakeSender) SendItemContext(connID, conversationID string, payload protocol.ItemContextPayload) {
	f.itemContexts = append(f.itemContexts, payload)
}

func (f *fakeSender) SendWidgetRender(connID, conversationID string, payload protocol.WidgetRenderPayload) {
	f.widgets = append(f.widgets, recordedWidget{payload: payload})
}

func (f *fakeSender) SendWidgetUpdate(connID, conversationID string, payload protocol.WidgetUpdatePayload) {
	f.widgetUpdates = append(f.widgetUpdates, payload)
}

func (f *fakeSender) SendContentChunk(connID, conversationID, messageID, content string, final bool) {
	f.chunks = append(f.chunks, protocol.ContentChunkPayload{MessageID: messageID, Content: content, Final: final})
}

func (f *fakeSender) SendContentComplete(connID, conversationID, messageID string, role protocol.ContentRole, fullContent string) {
	f.completes = append(f.completes, protocol.ContentCompletePayload{MessageID: messageID, Role: role, FullContent: fullContent})
}

func (f *fakeSender) SendFlowChatInput(connID, conversationID string, enabled bool) {
	f.chatInputs = append(f.chatInputs, enabled)
}

func (f *fakeSender) SendError(connID, conversationID string, category protocol.ErrorCategory, code string, retryable bool, detail string) {
	f.errors = append(f.errors, code)
}

type fakeSource struct {
	items []ItemDefinition
	err   error
}

func (f *fakeSource) ItemsForTemplate(ctx context.Context, templateID string) ([]ItemDefinition, error) {
	return f.items, f.err
}

type fakeProvider struct {
	chatResponse llm.Response
	chatErr      error
}

func (f *fakeProvider) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (<-chan llm.Chunk, <-chan error) {
	ch := make(chan llm.Chunk)
	errCh := make(chan error, 1)
	close(ch)
	errCh <- nil
	return ch, errCh
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	return f.chatResponse, f.chatErr
}

func testConn() *connection.Connection {
	return connection.New("conn-1", "user-1", nil, context.Background())
}

func TestRunnerStartRendersFirstItem(t *testing.T) {
	items := []ItemDefinition{
		{
			ID: "item-0",
			Contents: []ContentDefinition{
				{Kind: ContentStatic, Text: "hello there"},
				{Kind: ContentWidget, Widget: &WidgetDefinition{ID: "w1", Type: "multiple_choice", Stem: "pick one", Required: true, Options: []string{"a", "b"}}},
			},
		},
	}
	sender := &fakeSender{}
	runner := NewRunner(sender, &fakeSource{items: items}, &fakeProvider{}, nil)

	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))

	conn := testConn()
	runner.run(context.Background(), conn, convCtx, 0)

	require.Len(t, sender.configs, 1)
	assert.Equal(t, 1, sender.configs[0].TotalItems)
	require.Len(t, sender.itemContexts, 1)
	assert.Equal(t, "item-0", sender.itemContexts[0].ItemID)
	require.Len(t, sender.completes, 1)
	assert.Equal(t, "hello there", sender.completes[0].FullContent)
	require.Len(t, sender.widgets, 1)
	assert.Equal(t, "w1", sender.widgets[0].payload.WidgetID)
	assert.Equal(t, orchestrator.StateSuspended, convCtx.State())

	item := convCtx.CurrentItem()
	require.NotNil(t, item)
	assert.True(t, item.RequiredWidgetIDs["w1"])
}

func TestRunnerRendersConfirmationWidgetWhenRequired(t *testing.T) {
	items := []ItemDefinition{
		{ID: "item-0", RequireUserConfirmation: true, Contents: []ContentDefinition{{Kind: ContentStatic, Text: "x"}}},
	}
	sender := &fakeSender{}
	runner := NewRunner(sender, &fakeSource{items: items}, &fakeProvider{}, nil)
	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))

	runner.run(context.Background(), testConn(), convCtx, 0)

	require.Len(t, sender.widgets, 1)
	assert.Equal(t, "item-0-confirm", sender.widgets[0].payload.WidgetID)
	assert.Equal(t, protocol.WidgetConfirm, sender.widgets[0].payload.WidgetType)
}

func TestRunnerTemplatedWidgetNeverLeaksCorrectAnswer(t *testing.T) {
	items := []ItemDefinition{
		{
			ID: "item-0",
			Contents: []ContentDefinition{
				{Kind: ContentTemplated, Text: "generate a question about {{agent_name}}", Widget: &WidgetDefinition{ID: "w1", Type: "multiple_choice", Required: true}},
			},
		},
	}
	sender := &fakeSender{}
	provider := &fakeProvider{chatResponse: llm.Response{Content: `{"stem":"2+2?","options":["3","4"],"correctAnswer":"4"}`}}
	runner := NewRunner(sender, &fakeSource{items: items}, provider, nil)
	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))

	runner.run(context.Background(), testConn(), convCtx, 0)

	require.Len(t, sender.widgets, 1)
	assert.Equal(t, "2+2?", sender.widgets[0].payload.Stem)
	item := convCtx.CurrentItem()
	require.NotNil(t, item)
	assert.Equal(t, "4", item.WidgetConfigs["w1"])
}

func TestRunnerAdvanceCompletesConversationWhenItemsExhausted(t *testing.T) {
	sender := &fakeSender{}
	runner := NewRunner(sender, &fakeSource{items: []ItemDefinition{{ID: "only"}}}, &fakeProvider{}, nil)
	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))
	require.NoError(t, convCtx.Transition(orchestrator.StateSuspended))
	convCtx.BeginItem(orchestrator.NewItemExecutionState("only", 0, nil, false, false, convCtx.LastActivity), 1)

	runner.run(context.Background(), testConn(), convCtx, 1)

	assert.Equal(t, orchestrator.StateCompleted, convCtx.State())
}

func TestRunnerFailsItemOnSourceError(t *testing.T) {
	sender := &fakeSender{}
	runner := NewRunner(sender, &fakeSource{err: assertErr{}}, &fakeProvider{}, nil)
	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))

	runner.run(context.Background(), testConn(), convCtx, 0)

	assert.Equal(t, orchestrator.StateError, convCtx.State())
	require.Len(t, sender.errors, 1)
	assert.Equal(t, protocol.CodeItemLoadFailed, sender.errors[0])
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

type fakeCommands struct {
	mu         sync.Mutex
	recorded   []*orchestrator.ItemExecutionState
	advancedTo []int
}

func (f *fakeCommands) RecordItemResponse(ctx context.Context, conversationID string, item *orchestrator.ItemExecutionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, item)
	return nil
}

func (f *fakeCommands) AdvanceTemplate(ctx context.Context, conversationID string, newItemIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advancedTo = append(f.advancedTo, newItemIndex)
	return nil
}

func TestRunnerForceAdvancesWhenTimeLimitElapsesUnanswered(t *testing.T) {
	items := []ItemDefinition{
		{
			ID:               "item-0",
			TimeLimitSeconds: 1,
			Contents: []ContentDefinition{
				{Kind: ContentWidget, Widget: &WidgetDefinition{ID: "w1", Type: "text", Required: true}},
			},
		},
		{ID: "item-1"},
	}
	sender := &fakeSender{}
	commands := &fakeCommands{}
	runner := NewRunner(sender, &fakeSource{items: items}, &fakeProvider{}, commands)
	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))

	runner.run(context.Background(), testConn(), convCtx, 0)
	require.Equal(t, orchestrator.StateSuspended, convCtx.State())

	require.Eventually(t, func() bool {
		commands.mu.Lock()
		defer commands.mu.Unlock()
		return len(commands.advancedTo) == 1
	}, 2*time.Second, 10*time.Millisecond)

	commands.mu.Lock()
	assert.Equal(t, []int{1}, commands.advancedTo)
	commands.mu.Unlock()
}

func TestRunnerTimeoutNeverFiresAfterNormalCompletion(t *testing.T) {
	items := []ItemDefinition{{ID: "item-0", TimeLimitSeconds: 1}}
	sender := &fakeSender{}
	commands := &fakeCommands{}
	runner := NewRunner(sender, &fakeSource{items: items}, &fakeProvider{}, commands)
	convCtx := orchestrator.NewConversationContext("conv-1", "user-1", true, true)
	require.NoError(t, convCtx.Transition(orchestrator.StatePresenting))

	runner.run(context.Background(), testConn(), convCtx, 0)

	item := convCtx.CurrentItem()
	require.NotNil(t, item)
	item.Complete(time.Now())

	time.Sleep(1500 * time.Millisecond)
	commands.mu.Lock()
	defer commands.mu.Unlock()
	assert.Empty(t, commands.advancedTo)
}
