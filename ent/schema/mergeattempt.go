package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MergeAttempt holds the schema definition for the MergeAttempt entity,
// recorded by the Merge Coordinator (C9) for every convergence.
type MergeAttempt struct {
	ent.Schema
}

// Fields of the MergeAttempt.
func (MergeAttempt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("merge_attempt_id").
			Unique().
			Immutable(),
		field.String("task_id").
			Comment("The convergence task for the parent"),
		field.String("ticket_id"),
		field.JSON("source_task_ids", []string{}),
		field.JSON("incoming_branches", []string{}),
		field.String("target_branch"),
		field.JSON("merge_order", []string{}).
			Optional(),
		field.JSON("conflict_scores", map[string]int{}).
			Optional(),
		field.Enum("status").
			Values("pending", "dry_run", "merging", "succeeded", "failed").
			Default("pending"),
		field.Int("llm_invocations").
			Default(0),
		field.Int("tokens").
			Default(0),
		field.Float("cost_usd").
			Default(0),
		field.JSON("resolution_log", []map[string]interface{}{}).
			Optional(),
		field.String("outcome").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the MergeAttempt.
func (MergeAttempt) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("ticket", Ticket.Type).
			Ref("merge_attempts").
			Field("ticket_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the MergeAttempt.
func (MergeAttempt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("ticket_id"),
		index.Fields("status"),
	}
}
