package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AccessPolicyRecord holds the schema definition for the
// AccessPolicyRecord entity: one access.Policy document the resolver
// evaluates against caller claims (spec §4.5). Standalone reference data,
// not edged to any conversation — mirrors how policies are administered
// independently of any single conversation.
type AccessPolicyRecord struct {
	ent.Schema
}

// Fields of the AccessPolicyRecord.
func (AccessPolicyRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("policy_id").
			Unique().
			Immutable(),
		field.Int("priority").
			Default(0).
			Comment("Higher evaluates first"),
		field.JSON("claim_matchers", []map[string]interface{}{}).
			Comment("[{jsonPath, operator, value}]"),
		field.JSON("allowed_group_ids", []string{}),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Int("version").
			Default(1).
			Comment("Optimistic concurrency token"),
	}
}

// Indexes of the AccessPolicyRecord.
func (AccessPolicyRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("priority"),
	}
}
