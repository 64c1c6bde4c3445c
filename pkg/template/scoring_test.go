package template

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/llm"
	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorerMarksCorrectWhenLastLineSaysCorrect(t *testing.T) {
	provider := &fakeProvider{chatResponse: llm.Response{Content: "Nice reasoning.\nCORRECT"}}
	scorer := NewScorer(provider)

	item := orchestrator.NewItemExecutionState("item-0", 0, []string{"w1"}, false, true, time.Now())
	item.RecordResponse("w1", "4")
	item.WidgetConfigs = map[string]any{"w1": "4"}

	result, err := scorer.Score(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, 1.0, result.Score)
}

func TestScorerMarksIncorrectWhenVerdictMissing(t *testing.T) {
	provider := &fakeProvider{chatResponse: llm.Response{Content: "not sure"}}
	scorer := NewScorer(provider)

	item := orchestrator.NewItemExecutionState("item-0", 0, []string{"w1"}, false, true, time.Now())

	result, err := scorer.Score(context.Background(), item)
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, 0.0, result.Score)
}
