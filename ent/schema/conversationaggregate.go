package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationAggregate holds the schema definition for the
// ConversationAggregate entity: the root record a conversation's messages,
// item responses, tool calls, and score all hang off (spec §4 GLOSSARY
// "Conversation").
type ConversationAggregate struct {
	ent.Schema
}

// Fields of the ConversationAggregate.
func (ConversationAggregate) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("conversation_id").
			Unique().
			Immutable(),
		field.String("owner_user_id").
			Immutable().
			Comment("Subject claim of the authenticating JWT"),
		field.String("definition_id").
			Optional().
			Nillable().
			Comment("Agent definition (live lookup, no snapshot)"),
		field.String("template_id").
			Optional().
			Nillable().
			Comment("Proactive template, if any (live lookup, no snapshot)"),
		field.Bool("is_proactive").
			Default(false),
		field.Int("current_item_index").
			Default(0).
			Comment("Progress into the template, if proactive"),
		field.Enum("status").
			Values("initializing", "ready", "processing", "presenting", "suspended", "paused", "completed", "error").
			Default("initializing"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("last_interaction_at").
			Optional().
			Nillable().
			Comment("For orphan/resume detection"),
		field.Int("version").
			Default(1).
			Comment("Optimistic concurrency token (spec §6)"),
	}
}

// Edges of the ConversationAggregate.
func (ConversationAggregate) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("messages", MessageRecord.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("item_responses", ItemResponseRecord.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("tool_executions", ToolExecutionRecord.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("audit_events", AuditEventRecord.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("score", ConversationScoreRecord.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ConversationAggregate.
func (ConversationAggregate) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("owner_user_id"),
		index.Fields("definition_id"),
		index.Fields("template_id"),
		index.Fields("status"),
	}
}

// Annotations for PostgreSQL-specific features.
func (ConversationAggregate) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
