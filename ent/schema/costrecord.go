package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CostRecord holds the schema definition for the CostRecord entity —
// append-only, produced per LLM call by the Cost Accountant (C10).
type CostRecord struct {
	ent.Schema
}

// Fields of the CostRecord.
func (CostRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("cost_record_id").
			Unique().
			Immutable(),
		field.String("task_id").
			Immutable(),
		field.String("agent_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("provider").
			Immutable(),
		field.String("model").
			Immutable(),
		field.Int("prompt_tokens").
			Immutable(),
		field.Int("completion_tokens").
			Immutable(),
		field.Float("prompt_cost_usd").
			Immutable(),
		field.Float("completion_cost_usd").
			Immutable(),
		field.Float("total_cost_usd").
			Immutable(),
		field.String("sandbox_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("billing_account_id").
			Optional().
			Nillable().
			Immutable(),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the CostRecord.
func (CostRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("task", Task.Type).
			Ref("cost_records").
			Field("task_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the CostRecord.
func (CostRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("task_id"),
		index.Fields("agent_id"),
		index.Fields("billing_account_id", "timestamp"),
	}
}
