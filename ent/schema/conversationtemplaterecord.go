package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationTemplateRecord holds the schema definition for the
// ConversationTemplateRecord entity: a proactive conversation's ordered
// item sequence (spec §4.9). Referenced by ConversationAggregate.template_id
// as a live lookup, not an edge — matching the teacher's own
// chain_id/definition_id convention of pointing at reference data by id
// rather than snapshotting it onto the conversation.
type ConversationTemplateRecord struct {
	ent.Schema
}

// Fields of the ConversationTemplateRecord.
func (ConversationTemplateRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("template_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.JSON("items", []map[string]interface{}{}).
			Comment("Ordered item definitions: [{id, contents, requireUserConfirmation, provideFeedback}]"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Int("version").
			Default(1).
			Comment("Optimistic concurrency token"),
	}
}

// Indexes of the ConversationTemplateRecord.
func (ConversationTemplateRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name"),
	}
}
