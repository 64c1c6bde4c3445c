// Package template implements the template runner (spec §4.9): the
// background driver of a proactive conversation, walking a fixed sequence
// of items, rendering their contents, and awaiting the widget responses
// the receive task records on the shared ConversationContext.
package template

import "context"

// ContentKind distinguishes the three kinds of item content (spec §4.9).
type ContentKind string

// Content kinds.
const (
	ContentStatic    ContentKind = "static"
	ContentTemplated ContentKind = "templated"
	ContentWidget    ContentKind = "widget"
)

// WidgetDefinition is the authoring-time description of a widget; the
// runner renders it into a protocol.WidgetRenderPayload and strips
// CorrectAnswer before it ever reaches the sender (spec §8 invariant).
type WidgetDefinition struct {
	ID               string
	Type             string
	Stem             string
	Options          []string
	Required         bool
	Skippable        bool
	ShowUserResponse bool
	Layout           string
	MinValue         *float64
	MaxValue         *float64
	MaxLength        *int
	CorrectAnswer    any
}

// ContentDefinition is one piece of an item: static text, LLM-templated
// text, or a widget.
type ContentDefinition struct {
	Kind   ContentKind
	Text   string // raw text (static) or template string with {{placeholders}} (templated)
	Widget *WidgetDefinition
}

// ItemDefinition is one step of a conversation template (spec §3). The
// authoring-time flags mirror domain/models/conversation_item.py's
// ConversationItem dataclass field-for-field.
type ItemDefinition struct {
	ID       string
	Contents []ContentDefinition

	EnableChatInput bool

	// TimeLimitSeconds races the widget-completion signal against a wall
	// clock (spec §5); zero means no limit (conversation_item.py's
	// has_time_limit/is_timed properties).
	TimeLimitSeconds int

	RequireUserConfirmation bool
	ConfirmationButtonText  string

	ProvideFeedback     bool
	RevealCorrectAnswer bool

	// IncludeConversationContext controls whether templated content has its
	// {{placeholders}} substituted with the running conversation's values
	// before the LLM call; when false the text is sent as authored. The
	// conversation history is not sent either way.
	IncludeConversationContext bool
}

// DefinitionSource loads the ordered items of a template. Implemented by
// C14 (repository); kept as a narrow local interface so this package does
// not import the repository package, which itself imports this one.
type DefinitionSource interface {
	ItemsForTemplate(ctx context.Context, templateID string) ([]ItemDefinition, error)
}

// requiredWidgetIDs scans an item's contents for required widgets (spec
// §4.9 step 1).
func requiredWidgetIDs(item ItemDefinition) []string {
	var ids []string
	for _, c := range item.Contents {
		if c.Kind == ContentWidget && c.Widget != nil && c.Widget.Required {
			ids = append(ids, c.Widget.ID)
		}
	}
	return ids
}
