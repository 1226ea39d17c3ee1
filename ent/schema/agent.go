package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Agent holds the schema definition for the Agent entity — the lifecycle
// state machine driven by the heartbeat & anomaly engine (C3) and the
// guardian (C8).
type Agent struct {
	ent.Schema
}

// Fields of the Agent.
func (Agent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("agent_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("agent_type").
			Comment("Paired with phase to key AgentBaseline rows"),
		field.Enum("status").
			Values("SPAWNING", "IDLE", "RUNNING", "DEGRADED", "FAILED", "QUARANTINED", "TERMINATED").
			Default("SPAWNING"),
		field.JSON("capabilities", []string{}).
			Optional(),
		field.Int("capacity").
			Default(1),
		field.JSON("health_metrics", map[string]interface{}{}).
			Optional().
			Comment("Latest raw vitals: latency_ms, error_rate, cpu, mem"),
		field.Float("anomaly_score").
			Default(0),
		field.Int("consecutive_anomalous_readings").
			Default(0),
		field.Int64("sequence_number").
			Default(0).
			Comment("Last accepted heartbeat sequence number"),
		field.Int("consecutive_missed_heartbeats").
			Default(0),
		field.String("crypto_public_key").
			Optional().
			Nillable(),
		field.JSON("metadata", map[string]interface{}{}).
			Optional(),
		field.Bool("kept_alive_for_validation").
			Default(false).
			Comment("Bypasses capacity accounting on re-entry to IDLE, see DESIGN.md Open Question"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Agent.
func (Agent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("baselines", AgentBaseline.Type),
		edge.To("guardian_actions", GuardianAction.Type),
	}
}

// Indexes of the Agent.
func (Agent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("agent_type"),
	}
}
