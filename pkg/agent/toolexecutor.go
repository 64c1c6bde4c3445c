package agent

import (
	"context"

	"github.com/codeready-toolchain/agenthost/pkg/llm"
)

// ToolResult is the outcome of a single tool invocation, collapsing the
// transport-failure and business-failure cases C12 distinguishes into one
// shape the loop can append to the conversation uniformly (spec §4.11).
type ToolResult struct {
	Success         bool
	Result          any
	Error           string
	ExecutionTimeMs int64
}

// ToolExecutor is the subset of C12 the loop needs. Kept local to avoid
// this package importing pkg/toolexec directly.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]llm.ToolDefinition, error)
	Call(ctx context.Context, name, argumentsJSON string) (ToolResult, error)
}
