package template

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/codeready-toolchain/agenthost/pkg/connection"
	"github.com/codeready-toolchain/agenthost/pkg/llm"
	"github.com/codeready-toolchain/agenthost/pkg/orchestrator"
	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/google/uuid"
)

// chunkSize is the default content-chunking width (spec §4.12).
const chunkSize = 50

// Runner drives proactive conversations through their items (spec §4.9).
// It implements orchestrator.TemplateRunner and orchestrator.Scorer.
type Runner struct {
	sender   Sender
	source   DefinitionSource
	llm      llm.Provider
	scorer   *Scorer
	commands Commands
}

// NewRunner wires a template runner to its dependencies. commands may be
// nil in tests that never configure a timeLimitSeconds item.
func NewRunner(sender Sender, source DefinitionSource, provider llm.Provider, commands Commands) *Runner {
	r := &Runner{sender: sender, source: source, llm: provider, commands: commands}
	r.scorer = NewScorer(provider)
	return r
}

// Start implements orchestrator.TemplateRunner. It sends the conversation
// config and presents the first item, running in its own goroutine so the
// calling handler (and the router) never block on item rendering (spec §5,
// §9 "coroutine-heavy control flow").
func (r *Runner) Start(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext) {
	go r.run(ctx, conn, convCtx, 0)
}

// Advance implements orchestrator.TemplateRunner. It is called after the
// current item completes and moves to the next one.
func (r *Runner) Advance(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext) {
	go r.run(ctx, conn, convCtx, convCtx.CurrentItemIndex+1)
}

func (r *Runner) run(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext, index int) {
	items, err := r.source.ItemsForTemplate(ctx, convCtx.TemplateID)
	if err != nil {
		r.failItem(conn, convCtx, fmt.Errorf("loading template items: %w", err))
		return
	}

	if index == 0 {
		cfg := convCtx.TemplateConfig
		if cfg.ShuffleItems {
			convCtx.ItemOrder = shuffledOrder(len(items))
		}
		r.sender.SendConversationConfig(conn.ID, convCtx.ConversationID, protocol.ConversationConfigPayload{
			IsProactive:              convCtx.IsProactive,
			HasTemplate:              convCtx.HasTemplate,
			AllowNavigation:          cfg.AllowNavigation,
			AllowBackwardNavigation:  cfg.AllowBackwardNavigation,
			EnableChatInputInitially: cfg.EnableChatInputInitially,
			DisplayProgressIndicator: cfg.DisplayProgressIndicator,
			DisplayFinalScoreReport:  cfg.DisplayFinalScoreReport,
			ShuffleItems:             cfg.ShuffleItems,
			ContinueAfterCompletion:  cfg.ContinueAfterCompletion,
			TotalItems:               len(items),
		})
	} else if err := convCtx.Transition(orchestrator.StatePresenting); err != nil {
		r.failItem(conn, convCtx, err)
		return
	}

	items = applyItemOrder(items, convCtx.ItemOrder)

	if index >= len(items) {
		r.finish(conn, convCtx)
		return
	}

	r.presentItem(ctx, conn, convCtx, items[index], index, len(items))
}

// shuffledOrder returns a random permutation of 0..n-1 (spec §3
// shuffleItems), fixed once per conversation and reapplied on every later
// run() call so item indices stay stable across Advance invocations.
func shuffledOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rand.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// applyItemOrder reorders items per order; a nil order (no shuffle
// configured) is a no-op.
func applyItemOrder(items []ItemDefinition, order []int) []ItemDefinition {
	if order == nil {
		return items
	}
	reordered := make([]ItemDefinition, len(order))
	for i, src := range order {
		reordered[i] = items[src]
	}
	return reordered
}

func (r *Runner) presentItem(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext, item ItemDefinition, index, total int) {
	state := orchestrator.NewItemExecutionState(item.ID, index, requiredWidgetIDs(item), item.RequireUserConfirmation, item.ProvideFeedback, time.Now())
	state.RevealCorrectAnswer = item.RevealCorrectAnswer
	convCtx.BeginItem(state, total)

	confirmationText := item.ConfirmationButtonText
	if confirmationText == "" {
		confirmationText = "Submit"
	}
	r.sender.SendItemContext(conn.ID, convCtx.ConversationID, protocol.ItemContextPayload{
		ItemID:                  item.ID,
		ItemIndex:               index,
		Total:                   total,
		EnableChatInput:         item.EnableChatInput,
		TimeLimitSeconds:        item.TimeLimitSeconds,
		ShowRemainingTime:       item.TimeLimitSeconds > 0,
		RequireUserConfirmation: item.RequireUserConfirmation,
		ConfirmationButtonText:  confirmationText,
	})

	if item.TimeLimitSeconds > 0 {
		go r.raceTimeout(ctx, conn, convCtx, state, time.Duration(item.TimeLimitSeconds)*time.Second)
	}

	values := placeholderValues{
		UserID:         convCtx.UserID,
		ConversationID: convCtx.ConversationID,
		AgentName:      convCtx.DefinitionName,
		CurrentItem:    index + 1,
		TotalItems:     total,
		Now:            time.Now(),
	}

	for _, content := range item.Contents {
		if err := r.renderContent(ctx, conn, convCtx, state, content, values, item.IncludeConversationContext); err != nil {
			r.failItem(conn, convCtx, err)
			return
		}
	}

	if item.RequireUserConfirmation {
		r.sender.SendWidgetRender(conn.ID, convCtx.ConversationID, protocol.WidgetRenderPayload{
			ItemID:     item.ID,
			WidgetID:   item.ID + "-confirm",
			WidgetType: protocol.WidgetConfirm,
			Stem:       "Confirm to continue",
			Required:   true,
		})
	}

	if err := convCtx.Transition(orchestrator.StateSuspended); err != nil {
		r.failItem(conn, convCtx, err)
	}
}

// raceTimeout enforces an item's timeLimitSeconds (spec §3, §5): it races
// the widget-completion signal against a wall clock, mirroring
// pkg/queue/worker.go's stop-channel-vs-timer select idiom. Whichever
// fires first wins; state.Done() is idempotent so a completion that lands
// right as the timer fires is never double-processed.
func (r *Runner) raceTimeout(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext, state *orchestrator.ItemExecutionState, limit time.Duration) {
	select {
	case <-state.Done():
		return
	case <-ctx.Done():
		return
	case <-time.After(limit):
	}
	r.forceAdvance(ctx, conn, convCtx, state)
}

// forceAdvance implements the default timeout behavior (spec §5): force
// advance with whatever responses — possibly none — the client submitted
// before the deadline.
func (r *Runner) forceAdvance(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext, state *orchestrator.ItemExecutionState) {
	if convCtx.CurrentItem() != state || state.IsCompleted() {
		return // already advanced through the normal completion path
	}
	state.Complete(time.Now())

	if state.ProvideFeedback && r.scorer != nil {
		if result, err := r.scorer.Score(ctx, state); err == nil {
			state.ScoringResult = result
		}
	}
	r.sendWidgetUpdates(conn, convCtx, state)

	if r.commands != nil {
		if err := r.commands.RecordItemResponse(ctx, convCtx.ConversationID, state); err != nil {
			r.failItem(conn, convCtx, err)
			return
		}
		if err := r.commands.AdvanceTemplate(ctx, convCtx.ConversationID, state.ItemIndex+1); err != nil {
			r.failItem(conn, convCtx, err)
			return
		}
	}
	convCtx.EndItem()

	if convCtx.IsProactive {
		r.Advance(ctx, conn, convCtx)
	} else if err := convCtx.Transition(orchestrator.StateReady); err != nil {
		slog.Error("template runner: cannot return to ready after item timeout", "conversation_id", convCtx.ConversationID, "error", err)
	}
}

// sendWidgetUpdates emits control.widget.update for every required widget
// once an item scores, carrying feedback and — only when the item's
// revealCorrectAnswer flag is set — the correct answer (spec §3, §4.9
// step 6).
func (r *Runner) sendWidgetUpdates(conn *connection.Connection, convCtx *orchestrator.ConversationContext, state *orchestrator.ItemExecutionState) {
	if state.ScoringResult == nil && !state.RevealCorrectAnswer {
		return
	}
	for widgetID := range state.RequiredWidgetIDs {
		update := protocol.WidgetUpdatePayload{ItemID: state.ItemID, WidgetID: widgetID}
		if state.ScoringResult != nil {
			update.IsCorrect = state.ScoringResult.IsCorrect
			update.Score = state.ScoringResult.Score
			update.MaxScore = state.ScoringResult.MaxScore
			update.Feedback = state.ScoringResult.Feedback
		}
		if state.RevealCorrectAnswer {
			update.CorrectAnswer = state.WidgetConfigs[widgetID]
		}
		r.sender.SendWidgetUpdate(conn.ID, convCtx.ConversationID, update)
	}
}

func (r *Runner) renderContent(ctx context.Context, conn *connection.Connection, convCtx *orchestrator.ConversationContext, state *orchestrator.ItemExecutionState, content ContentDefinition, values placeholderValues, includeConversationContext bool) error {
	switch content.Kind {
	case ContentStatic:
		r.sendTextBlock(conn, convCtx, content.Text)
		return nil
	case ContentWidget:
		return r.renderWidget(conn, convCtx, state, content.Widget, content.Widget.Stem)
	case ContentTemplated:
		prompt := content.Text
		if includeConversationContext {
			// conversation_item.py's include_conversation_context=True path:
			// the item is generated with the running conversation's identity
			// substituted in; False has the LLM generate it independently.
			prompt = substitute(content.Text, values)
		}
		resp, err := r.llm.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
		if err != nil {
			return fmt.Errorf("templated content LLM call: %w", err)
		}
		if content.Widget == nil {
			r.sendTextBlock(conn, convCtx, resp.Content)
			return nil
		}
		rendered := parseTemplatedRender(resp.Content)
		widget := *content.Widget
		widget.Stem = rendered.Stem
		if len(rendered.Options) > 0 {
			widget.Options = rendered.Options
		}
		if rendered.CorrectAnswer != nil {
			widget.CorrectAnswer = rendered.CorrectAnswer
		}
		return r.renderWidget(conn, convCtx, state, &widget, widget.Stem)
	default:
		return fmt.Errorf("unknown content kind %q", content.Kind)
	}
}

func (r *Runner) renderWidget(conn *connection.Connection, convCtx *orchestrator.ConversationContext, state *orchestrator.ItemExecutionState, widget *WidgetDefinition, stem string) error {
	if state.WidgetConfigs == nil {
		state.WidgetConfigs = map[string]any{}
	}
	state.WidgetConfigs[widget.ID] = widget.CorrectAnswer

	r.sender.SendWidgetRender(conn.ID, convCtx.ConversationID, protocol.WidgetRenderPayload{
		ItemID:           state.ItemID,
		WidgetID:         widget.ID,
		WidgetType:       protocol.WidgetType(widget.Type),
		Stem:             stem,
		Options:          widget.Options,
		Required:         widget.Required,
		Skippable:        widget.Skippable,
		ShowUserResponse: widget.ShowUserResponse,
		Layout:           widget.Layout,
		Constraints: protocol.WidgetConstraints{
			Min:       widget.MinValue,
			Max:       widget.MaxValue,
			MaxLength: widget.MaxLength,
		},
	})
	return nil
}

// sendTextBlock streams static or generated text as content.chunk/complete
// frames (spec §4.12).
func (r *Runner) sendTextBlock(conn *connection.Connection, convCtx *orchestrator.ConversationContext, text string) {
	messageID := uuid.NewString()
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		r.sender.SendContentChunk(conn.ID, convCtx.ConversationID, messageID, text[i:end], end == len(text))
	}
	if text == "" {
		r.sender.SendContentChunk(conn.ID, convCtx.ConversationID, messageID, "", true)
	}
	r.sender.SendContentComplete(conn.ID, convCtx.ConversationID, messageID, protocol.RoleAssistant, text)
}

func (r *Runner) finish(conn *connection.Connection, convCtx *orchestrator.ConversationContext) {
	if convCtx.TemplateConfig.DisplayFinalScoreReport {
		r.sendTextBlock(conn, convCtx, "Conversation complete.")
	}
	if err := convCtx.Transition(orchestrator.StateCompleted); err != nil {
		slog.Error("template runner: cannot complete conversation", "conversation_id", convCtx.ConversationID, "error", err)
	}
}

// failItem implements the ITEM_LOAD_FAILED failure policy (spec §7): the
// runner halts and does not advance.
func (r *Runner) failItem(conn *connection.Connection, convCtx *orchestrator.ConversationContext, err error) {
	convCtx.ForceError()
	r.sender.SendError(conn.ID, convCtx.ConversationID, protocol.CategoryBusiness, protocol.CodeItemLoadFailed, true, strings.TrimSpace(err.Error()))
}
