// Package toolexec implements C12: the HTTP client that calls the remote
// tools service on the agent loop's behalf (spec §4.11, §6).
//
// Grounded on pkg/mcp/client.go's per-call context-timeout discipline and
// pkg/mcp/executor.go's "return failure as ToolResult content, not as a Go
// error" convention (MCP-style), adapted from an MCP session to a plain
// bearer-token HTTP call.
package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/agent"
	"github.com/codeready-toolchain/agenthost/pkg/llm"
)

// TokenSource resolves the bearer token to forward for a given tool name.
// Implemented by C3 (pkg/tokenexchange) in the wired deployment.
type TokenSource interface {
	TokenForTool(ctx context.Context, toolName string) (string, error)
}

// Config configures the HTTP client.
type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	CallTimeout time.Duration
}

// DefaultConfig returns sane defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		HTTPClient:  http.DefaultClient,
		CallTimeout: 10 * time.Second,
	}
}

// Executor implements agent.ToolExecutor against the remote tools service.
type Executor struct {
	cfg    Config
	tokens TokenSource
}

// Compile-time check that Executor implements agent.ToolExecutor.
var _ agent.ToolExecutor = (*Executor)(nil)

// New wires an Executor. tokens may be nil — every call then fails
// immediately with the no-token short circuit (spec §4.11).
func New(cfg Config, tokens TokenSource) *Executor {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &Executor{cfg: cfg, tokens: tokens}
}

type listToolsResponse struct {
	Data []toolDescriptor `json:"data"`
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListTools implements agent.ToolExecutor.
func (e *Executor) ListTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	if e.cfg.BaseURL == "" {
		return nil, nil
	}

	token, err := e.tokenFor(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("resolving tools-service token: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL+"/api/agent/tools", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing tools: unexpected status %d", resp.StatusCode)
	}

	var out listToolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding tool list: %w", err)
	}

	defs := make([]llm.ToolDefinition, 0, len(out.Data))
	for _, d := range out.Data {
		defs = append(defs, llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.InputSchema})
	}
	return defs, nil
}

type callRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type callResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Call implements agent.ToolExecutor. Both business failures (the service
// responds with success:false) and transport failures (connect refused,
// timeout, 5xx) are surfaced identically: a ToolResult with Success=false
// and Error set, never a Go error — the caller (the ReAct loop) treats
// both the same way (spec §4.11).
func (e *Executor) Call(ctx context.Context, name, argumentsJSON string) (agent.ToolResult, error) {
	if e.cfg.BaseURL == "" {
		return agent.ToolResult{Success: false, Error: "tool executor not configured"}, nil
	}

	token, err := e.tokenFor(ctx, name)
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("no token available for tool %q: %s", name, err)}, nil
	}

	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	if argumentsJSON == "" {
		argumentsJSON = "{}"
	}

	body, err := json.Marshal(callRequest{Name: name, Arguments: json.RawMessage(argumentsJSON)})
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("encoding arguments: %s", err), ExecutionTimeMs: elapsed()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/api/agent/tools/call", bytes.NewReader(body))
	if err != nil {
		return agent.ToolResult{Success: false, Error: err.Error(), ExecutionTimeMs: elapsed()}, nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("calling tool %q: %s", name, err), ExecutionTimeMs: elapsed()}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("reading tool response: %s", err), ExecutionTimeMs: elapsed()}, nil
	}

	if resp.StatusCode >= 500 {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("tool service returned %d: %s", resp.StatusCode, string(raw)), ExecutionTimeMs: elapsed()}, nil
	}

	var out callResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return agent.ToolResult{Success: false, Error: fmt.Sprintf("decoding tool response: %s", err), ExecutionTimeMs: elapsed()}, nil
	}
	if !out.Success {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "tool call failed"
		}
		return agent.ToolResult{Success: false, Error: errMsg, ExecutionTimeMs: elapsed()}, nil
	}

	return agent.ToolResult{Success: true, Result: out.Result, ExecutionTimeMs: elapsed()}, nil
}

func (e *Executor) tokenFor(ctx context.Context, toolName string) (string, error) {
	if e.tokens == nil {
		return "", fmt.Errorf("no token source configured")
	}
	return e.tokens.TokenForTool(ctx, toolName)
}
