package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentDefinitionRecord holds the schema definition for the
// AgentDefinitionRecord entity: a reusable ReAct agent configuration
// (system prompt, bounds, allowed tools) a conversation's definition_id
// points at (spec §4.10, §6 configuration table).
type AgentDefinitionRecord struct {
	ent.Schema
}

// Fields of the AgentDefinitionRecord.
func (AgentDefinitionRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("definition_id").
			Unique().
			Immutable(),
		field.String("name").
			Comment("e.g., 'kubernetes-triage', 'release-notes'"),
		field.Text("system_prompt"),
		field.JSON("allowed_tool_names", []string{}).
			Optional().
			Comment("Empty/nil means every tool the executor lists"),

		field.Int("max_iterations").
			Optional().
			Nillable(),
		field.Int("max_tool_calls_per_iteration").
			Optional().
			Nillable(),
		field.Int("timeout_seconds").
			Optional().
			Nillable(),
		field.Bool("stop_on_error").
			Optional().
			Nillable(),

		field.Int("version").
			Default(1).
			Comment("Optimistic concurrency token"),
	}
}

// Indexes of the AgentDefinitionRecord.
func (AgentDefinitionRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name"),
	}
}
