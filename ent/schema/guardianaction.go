package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// GuardianAction holds the schema definition for the GuardianAction /
// WatchdogAction entity — recorded by the Guardian (C8) for every
// remediation it executes or proposes.
type GuardianAction struct {
	ent.Schema
}

// Fields of the GuardianAction.
func (GuardianAction) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("guardian_action_id").
			Unique().
			Immutable(),
		field.Enum("action_type").
			Values("nudge", "pause_agent", "resize_resources", "restart_sandbox", "terminate_agent").
			Immutable(),
		field.String("target_agent_id").
			Immutable(),
		field.Int("authority_level").
			Immutable().
			Comment("nudge=0 < pause_agent=1 < resize_resources=2 < restart_sandbox=3 < terminate_agent=4"),
		field.Text("reason").
			Immutable(),
		field.String("initiator").
			Immutable().
			Comment("e.g. anomaly-engine, cost-accountant, operator:<id>"),
		field.String("approved_by").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("proposed", "pending_review", "approved", "rejected", "timed_out", "executed", "reverted").
			Default("proposed"),
		field.JSON("audit_log", []map[string]interface{}{}).
			Optional(),
		field.Time("executed_at").
			Optional().
			Nillable(),
		field.Time("reverted_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the GuardianAction.
func (GuardianAction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("agent", Agent.Type).
			Ref("guardian_actions").
			Field("target_agent_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the GuardianAction.
func (GuardianAction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("target_agent_id"),
		index.Fields("status"),
	}
}
