package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentBaseline holds rolling per-(agent_type, phase) statistics owned by
// the anomaly engine (C3).
type AgentBaseline struct {
	ent.Schema
}

// Fields of the AgentBaseline.
func (AgentBaseline) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("baseline_id").
			Unique().
			Immutable(),
		field.String("agent_id").
			Optional().
			Nillable(),
		field.String("agent_type"),
		field.String("phase"),
		field.Float("latency_mean_ms").
			Default(0),
		field.Float("latency_stddev_ms").
			Default(0),
		field.Float("error_rate").
			Default(0),
		field.Float("cpu_baseline").
			Default(0),
		field.Float("mem_baseline").
			Default(0),
		field.Int("sample_count").
			Default(0),
	}
}

// Edges of the AgentBaseline.
func (AgentBaseline) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("agent", Agent.Type).
			Ref("baselines").
			Field("agent_id").
			Unique(),
	}
}

// Indexes of the AgentBaseline.
func (AgentBaseline) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_type", "phase").
			Unique(),
	}
}
