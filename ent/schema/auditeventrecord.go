package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AuditEventRecord holds the schema definition for the AuditEventRecord
// entity: client-submitted audit telemetry for a conversation
// (spec §4.1 data.audit.events, rate-limited per §4.4).
type AuditEventRecord struct {
	ent.Schema
}

// Fields of the AuditEventRecord.
func (AuditEventRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("audit_event_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),

		field.Int("sequence_number").
			Comment("Order in the conversation's audit trail"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),

		field.String("event_type").
			Comment("Client-defined category, e.g. 'widget_viewed', 'tab_blurred'"),
		field.JSON("payload", map[string]interface{}{}).
			Optional().
			Comment("Client-supplied event detail, not interpreted server-side"),
	}
}

// Edges of the AuditEventRecord.
func (AuditEventRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", ConversationAggregate.Type).
			Ref("audit_events").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the AuditEventRecord.
func (AuditEventRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "sequence_number"),
	}
}
