package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationScoreRecord holds the schema definition for the
// ConversationScoreRecord entity: the aggregated per-item score shown as
// the final score report when displayFinalScoreReport is enabled
// (spec §4.9, control.conversation.config.displayFinalScoreReport).
type ConversationScoreRecord struct {
	ent.Schema
}

// Fields of the ConversationScoreRecord.
func (ConversationScoreRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("score_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Unique().
			Immutable(),

		field.Int("correct_count").
			Default(0),
		field.Int("total_count").
			Default(0),
		field.Text("summary").
			Optional().
			Nillable().
			Comment("Final score report content sent to the client"),

		field.Time("computed_at").
			Default(time.Now),
	}
}

// Edges of the ConversationScoreRecord.
func (ConversationScoreRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", ConversationAggregate.Type).
			Ref("score").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ConversationScoreRecord.
func (ConversationScoreRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id").
			Unique(),
	}
}
