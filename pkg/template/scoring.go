package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/agenthost/pkg/llm"
	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
)

// scoringSystemPrompt instructs the LLM to grade the user's responses
// against the stored correct answers and explain its reasoning, ending
// with a standalone verdict line the Scorer can parse deterministically
// (grounded on the teacher's last-line-extraction idiom, pkg/agent/controller/scoring.go).
const scoringSystemPrompt = "You are grading a single conversation item. " +
	"End your response with exactly one line: CORRECT or INCORRECT."

// Scorer implements orchestrator.Scorer using an LLM call per item. It is
// stateless: every field it needs comes from the ItemExecutionState.
type Scorer struct {
	llm llm.Provider
}

// NewScorer wires a Scorer to an LLM provider.
func NewScorer(provider llm.Provider) *Scorer {
	return &Scorer{llm: provider}
}

// Score implements orchestrator.Scorer (spec §4.9 step 6). When the item
// has no recorded correct answer (the templated-content JSON fallback
// left CorrectAnswer unset, spec §9 open question), scoring proceeds with
// "no canonical answer" rather than failing.
func (s *Scorer) Score(ctx context.Context, item *orchestrator.ItemExecutionState) (*orchestrator.ScoringResult, error) {
	prompt := s.buildPrompt(item)

	resp, err := s.llm.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: scoringSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("scoring LLM call: %w", err)
	}

	isCorrect := extractVerdict(resp.Content)
	score := 0.0
	if isCorrect {
		score = 1.0
	}

	return &orchestrator.ScoringResult{
		IsCorrect: isCorrect,
		Score:     score,
		MaxScore:  1.0,
		Feedback:  strings.TrimSpace(resp.Content),
	}, nil
}

func (s *Scorer) buildPrompt(item *orchestrator.ItemExecutionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Item %q responses:\n", item.ItemID)
	for widgetID, value := range item.WidgetResponses {
		fmt.Fprintf(&b, "- %s: %v (expected: %v)\n", widgetID, value, item.WidgetConfigs[widgetID])
	}
	return b.String()
}

// extractVerdict parses the last non-empty line of text for CORRECT vs
// INCORRECT, defaulting to incorrect if neither appears (grounded on
// pkg/agent/controller/scoring.go's last-line extraction).
func extractVerdict(text string) bool {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.ToUpper(strings.TrimSpace(lines[i]))
		if line == "" {
			continue
		}
		return strings.Contains(line, "CORRECT") && !strings.Contains(line, "INCORRECT")
	}
	return false
}
