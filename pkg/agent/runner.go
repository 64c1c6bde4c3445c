package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/llm"
	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
)

// SystemPromptBuilder builds the system turn for a conversation's agent
// definition. Kept as a function value rather than an interface since it
// has exactly one caller-supplied behavior.
type SystemPromptBuilder func(convCtx *orchestrator.ConversationContext) string

// DefaultSystemPrompt is used when no SystemPromptBuilder is supplied.
func DefaultSystemPrompt(convCtx *orchestrator.ConversationContext) string {
	if convCtx.DefinitionName == "" {
		return "You are a helpful assistant."
	}
	return fmt.Sprintf("You are %s, a helpful assistant.", convCtx.DefinitionName)
}

// Runner implements orchestrator.AgentRunner, driving one ReAct loop per
// data.message.send turn and translating its event stream into wire
// frames through Sender.
type Runner struct {
	provider      llm.Provider
	tools         ToolExecutor
	sender        Sender
	config        Config
	systemPrompt  SystemPromptBuilder
}

// NewRunner wires a Runner to its dependencies. tools may be nil when no
// tool service is configured for a deployment — the loop then offers no
// tools and every turn completes in one iteration.
func NewRunner(provider llm.Provider, tools ToolExecutor, sender Sender, config Config, systemPrompt SystemPromptBuilder) *Runner {
	if systemPrompt == nil {
		systemPrompt = DefaultSystemPrompt
	}
	return &Runner{provider: provider, tools: tools, sender: sender, config: config, systemPrompt: systemPrompt}
}

// Run implements orchestrator.AgentRunner.
func (r *Runner) Run(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext, userMessage, assistantMessageID string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: r.systemPrompt(convCtx)},
		{Role: llm.RoleUser, Content: userMessage},
	}

	var toolDefs []llm.ToolDefinition
	if r.tools != nil {
		defs, err := r.tools.ListTools(ctx)
		if err != nil {
			return "", fmt.Errorf("listing tools: %w", err)
		}
		toolDefs = defs
	}

	connID, conversationID := conn.ID, convCtx.ConversationID

	emit := func(evt Event) {
		switch evt.Kind {
		case EventLLMResponseChunk:
			r.sender.SendContentChunk(connID, conversationID, assistantMessageID, evt.Text, false)
		case EventRunCompleted:
			r.sender.SendContentComplete(connID, conversationID, assistantMessageID, protocol.RoleAssistant, evt.Text)
		case EventToolExecutionStarted:
			r.sender.SendToolCall(connID, conversationID, evt.ToolCallID, evt.ToolName, evt.ToolArgs)
		case EventToolExecutionComplete:
			r.sender.SendToolResult(connID, conversationID, evt.ToolCallID, true, evt.ToolResult, "")
		case EventToolExecutionFailed:
			msg := ""
			if evt.Err != nil {
				msg = evt.Err.Error()
			}
			r.sender.SendToolResult(connID, conversationID, evt.ToolCallID, false, nil, msg)
		}
	}

	return Run(ctx, r.provider, r.tools, r.config, messages, toolDefs, emit)
}
