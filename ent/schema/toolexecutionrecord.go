package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ToolExecutionRecord holds the schema definition for the
// ToolExecutionRecord entity: one ReAct tool call's full request/response
// detail, for replay and debugging (spec §4.10/§4.11
// ToolExecutionResult{success,result?|error,executionTimeMs}).
type ToolExecutionRecord struct {
	ent.Schema
}

// Fields of the ToolExecutionRecord.
func (ToolExecutionRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("tool_execution_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.String("call_id").
			Immutable().
			Comment("Matches the LLM's tool_call id"),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),

		field.String("tool_name"),
		field.JSON("arguments", map[string]interface{}{}).
			Optional(),
		field.JSON("result", map[string]interface{}{}).
			Optional(),
		field.Bool("success"),
		field.String("error_message").
			Optional().
			Nillable().
			Comment("null = success, not-null = business or transport failure"),
		field.Int64("duration_ms").
			Optional().
			Nillable(),
	}
}

// Edges of the ToolExecutionRecord.
func (ToolExecutionRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", ConversationAggregate.Type).
			Ref("tool_executions").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ToolExecutionRecord.
func (ToolExecutionRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "created_at"),
	}
}
