package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MessageRecord holds the schema definition for the MessageRecord entity:
// the persisted LLM conversation history for a conversation (spec §6
// "ordered message log").
type MessageRecord struct {
	ent.Schema
}

// Fields of the MessageRecord.
func (MessageRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("message_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),

		field.Int("sequence_number").
			Comment("Conversation-scoped order"),
		field.Enum("role").
			Values("system", "user", "assistant", "tool"),
		field.Text("content"),

		field.JSON("tool_calls", []map[string]interface{}{}).
			Optional().
			Comment("For assistant messages: [{id, name, arguments}]"),
		field.String("tool_call_id").
			Optional().
			Nillable().
			Comment("For tool messages: links result to the originating call"),
		field.String("tool_name").
			Optional().
			Nillable(),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the MessageRecord.
func (MessageRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", ConversationAggregate.Type).
			Ref("messages").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the MessageRecord.
func (MessageRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "sequence_number"),
	}
}
