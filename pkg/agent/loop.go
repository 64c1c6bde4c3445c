// Package agent implements the ReAct tool-calling loop (spec §4.10): the
// model alternates between generating text and requesting tool calls
// until it produces a final answer with no further tool calls, subject to
// bounded iterations, bounded tool calls per iteration, a wall-clock
// timeout, and a retry-on-error policy (spec §6).
//
// Grounded on pkg/agent/controller/iterating.go's iteration loop shape
// (per-iteration LLM call, tool-call detection, completion-on-no-tool-calls)
// generalized from the teacher's DB/timeline-backed bookkeeping to the
// spec's plain event stream; the teacher's forced-conclusion-past-the-cap
// behavior is NOT carried over — spec §4.10 requires RUN_FAILED with
// reason max_iterations_exceeded instead (see ErrMaxIterationsExceeded).
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/agenthost/pkg/llm"
)

// ErrMaxRetriesExceeded is returned when an LLM call keeps failing past
// config.MaxRetries.
var ErrMaxRetriesExceeded = errors.New("agent: max retries exceeded")

// ErrMaxIterationsExceeded is the RUN_FAILED reason (spec §4.10) when the
// loop exhausts config.MaxIterations without the model settling on a
// tool-call-free final answer.
var ErrMaxIterationsExceeded = errors.New("max_iterations_exceeded")

// Run drives one ReAct loop to completion. messages is the full
// conversation seed (system + user turns); toolDefs is the tool catalog
// offered to the model. emit is called synchronously for every loop event,
// in order — callers translate events to wire frames or collect them in
// tests.
func Run(ctx context.Context, provider llm.Provider, tools ToolExecutor, config Config, messages []llm.Message, toolDefs []llm.ToolDefinition, emit func(Event)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	emit(Event{Kind: EventRunStarted})

	for iteration := 1; iteration <= config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			emit(Event{Kind: EventRunFailed, Iteration: iteration, Err: err})
			return "", err
		}

		emit(Event{Kind: EventIterationStarted, Iteration: iteration})

		text, toolCalls, err := callStreamWithRetry(ctx, provider, config, messages, toolDefs, iteration, emit)
		if err != nil {
			emit(Event{Kind: EventRunFailed, Iteration: iteration, Err: err})
			return "", err
		}

		emit(Event{Kind: EventLLMResponseCompleted, Iteration: iteration, Text: text})

		if len(toolCalls) == 0 {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: text})
			emit(Event{Kind: EventMessageAdded, Iteration: iteration, Text: text})
			emit(Event{Kind: EventRunCompleted, Iteration: iteration, Text: text})
			return text, nil
		}

		if len(toolCalls) > config.MaxToolCallsPerIteration {
			toolCalls = toolCalls[:config.MaxToolCallsPerIteration]
		}
		emit(Event{Kind: EventToolCallsDetected, Iteration: iteration, Text: text})

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: toolCalls})

		for _, tc := range toolCalls {
			if err := ctx.Err(); err != nil {
				emit(Event{Kind: EventRunFailed, Iteration: iteration, Err: err})
				return "", err
			}

			emit(Event{Kind: EventToolExecutionStarted, Iteration: iteration, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: tc.Arguments})

			result, callErr := callToolWithRetry(ctx, tools, config, tc)

			var content string
			if callErr != nil || !result.Success {
				errMsg := result.Error
				if callErr != nil {
					errMsg = callErr.Error()
				}
				emit(Event{Kind: EventToolExecutionFailed, Iteration: iteration, ToolCallID: tc.ID, ToolName: tc.Name, Err: fmt.Errorf("%s", errMsg)})
				content = errMsg
				if config.StopOnError {
					emit(Event{Kind: EventRunFailed, Iteration: iteration, Err: errors.New(errMsg)})
					return "", fmt.Errorf("tool %q failed: %s", tc.Name, errMsg)
				}
			} else {
				emit(Event{Kind: EventToolExecutionComplete, Iteration: iteration, ToolCallID: tc.ID, ToolName: tc.Name, ToolResult: result.Result, ToolSuccess: true})
				content = resultToString(result.Result)
			}

			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: tc.ID, Name: tc.Name})
			emit(Event{Kind: EventMessageAdded, Iteration: iteration, Text: content})
		}

		emit(Event{Kind: EventIterationCompleted, Iteration: iteration})
	}

	emit(Event{Kind: EventRunFailed, Iteration: config.MaxIterations, Err: ErrMaxIterationsExceeded})
	return "", ErrMaxIterationsExceeded
}

// callStreamWithRetry calls provider.ChatStream, retrying up to
// config.MaxRetries times on error when config.RetryOnError is set (spec
// §6 `agentRetryOnError`/`agentMaxRetries`).
func callStreamWithRetry(ctx context.Context, provider llm.Provider, config Config, messages []llm.Message, toolDefs []llm.ToolDefinition, iteration int, emit func(Event)) (string, []llm.ToolCall, error) {
	attempts := 1
	if config.RetryOnError {
		attempts += config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		emit(Event{Kind: EventLLMRequestStarted, Iteration: iteration})

		var text string
		var toolCalls []llm.ToolCall

		chunks, errCh := provider.ChatStream(ctx, messages, toolDefs)
		for chunk := range chunks {
			if chunk.Text != "" {
				text += chunk.Text
				emit(Event{Kind: EventLLMResponseChunk, Iteration: iteration, Text: chunk.Text})
			}
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
		}

		if err := <-errCh; err != nil {
			lastErr = err
			continue
		}
		return text, toolCalls, nil
	}
	return "", nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

// callToolWithRetry calls a single tool, retrying per the same policy.
func callToolWithRetry(ctx context.Context, tools ToolExecutor, config Config, tc llm.ToolCall) (ToolResult, error) {
	if tools == nil {
		return ToolResult{Success: false, Error: "no tool executor configured"}, nil
	}

	attempts := 1
	if config.RetryOnError {
		attempts += config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := tools.Call(ctx, tc.Name, tc.Arguments)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return ToolResult{}, lastErr
}

func resultToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
