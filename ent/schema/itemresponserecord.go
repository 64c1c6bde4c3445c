package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ItemResponseRecord holds the schema definition for the
// ItemResponseRecord entity: one template item's recorded widget
// responses and score, once it completes (spec §4.9, §6
// RecordItemResponseCommand).
type ItemResponseRecord struct {
	ent.Schema
}

// Fields of the ItemResponseRecord.
func (ItemResponseRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("item_response_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.String("item_id").
			Immutable(),
		field.Int("item_index").
			Comment("Position in the template"),

		field.JSON("widget_responses", map[string]interface{}{}).
			Comment("widgetId -> submitted value"),
		field.Bool("user_confirmed").
			Default(false),
		field.Bool("is_correct").
			Optional().
			Nillable().
			Comment("Set by the scorer; null if not scored"),
		field.Text("feedback").
			Optional().
			Nillable(),
		field.Int("response_time_ms").
			Optional().
			Nillable(),

		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the ItemResponseRecord.
func (ItemResponseRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", ConversationAggregate.Type).
			Ref("item_responses").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ItemResponseRecord.
func (ItemResponseRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "item_index").
			Unique(),
	}
}
