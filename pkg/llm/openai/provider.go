// Package openai implements pkg/llm.Provider against an OpenAI-compatible
// chat completions API (spec §6's LlmProvider, left unspecified as to
// transport). Grounded on haasonsaas-nexus's
// internal/agent/providers/openai.go: same client library, same
// streaming-delta tool-call accumulation strategy, generalized from that
// repo's internal agent.CompletionChunk vocabulary to pkg/llm's Chunk/
// Message/ToolCall types.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/agenthost/pkg/llm"
)

// Provider implements llm.Provider against the OpenAI chat completions API.
type Provider struct {
	client *openai.Client
	model  string
}

// New builds a Provider. baseURL, when non-empty, points the client at an
// OpenAI-compatible endpoint other than api.openai.com (local model
// gateways, Azure-style proxies).
func New(apiKey, baseURL, model string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model}
}

var _ llm.Provider = (*Provider)(nil)

// ChatStream implements llm.Provider.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (<-chan llm.Chunk, <-chan error) {
	chunks := make(chan llm.Chunk)
	errs := make(chan error, 1)

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		close(chunks)
		errs <- fmt.Errorf("openai: create stream: %w", err)
		close(errs)
		return chunks, errs
	}

	go func() {
		defer close(chunks)
		defer close(errs)
		defer stream.Close()

		pending := map[int]*llm.ToolCall{}
		order := make([]int, 0, 1)

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				flushToolCalls(chunks, pending, order)
				return
			}
			if err != nil {
				errs <- fmt.Errorf("openai: stream recv: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			choice := resp.Choices[0]
			if choice.Delta.Content != "" {
				chunks <- llm.Chunk{Text: choice.Delta.Content}
			}

			for _, tc := range choice.Delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				if pending[index] == nil {
					pending[index] = &llm.ToolCall{}
					order = append(order, index)
				}
				if tc.ID != "" {
					pending[index].ID = tc.ID
				}
				if tc.Function.Name != "" {
					pending[index].Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					pending[index].Arguments += tc.Function.Arguments
				}
			}

			if choice.FinishReason == openai.FinishReasonToolCalls {
				flushToolCalls(chunks, pending, order)
				pending = map[int]*llm.ToolCall{}
				order = order[:0]
			}
		}
	}()

	return chunks, errs
}

func flushToolCalls(chunks chan<- llm.Chunk, pending map[int]*llm.ToolCall, order []int) {
	for _, index := range order {
		tc := pending[index]
		if tc != nil && tc.ID != "" && tc.Name != "" {
			chunks <- llm.Chunk{ToolCall: tc}
		}
	}
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, errors.New("openai: empty choices in response")
	}
	return llm.Response{Content: resp.Choices[0].Message.Content}, nil
}

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			oaiMsg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				oaiMsg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
		}
		out = append(out, oaiMsg)
	}
	return out
}

func toOpenAITools(tools []llm.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}
