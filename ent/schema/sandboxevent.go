package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SandboxEvent holds the schema definition for the SandboxEvent entity —
// the append-only stream published by the Sandbox Worker (C6) and fanned
// out by the Event Bus (C1).
type SandboxEvent struct {
	ent.Schema
}

// Fields of the SandboxEvent.
func (SandboxEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable().
			Comment("Caller-supplied, used for at-least-once dedup"),
		field.String("sandbox_id").
			Immutable(),
		field.String("event_type").
			Immutable().
			Comment("Dotted namespace, e.g. agent.tool_use"),
		field.JSON("event_data", map[string]interface{}{}).
			Immutable(),
		field.Enum("source").
			Values("agent", "worker", "system").
			Immutable(),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
		field.String("spec_id").
			Optional().
			Nillable().
			Immutable(),
		field.String("task_id").
			Optional().
			Nillable().
			Immutable(),
	}
}

// Indexes of the SandboxEvent.
func (SandboxEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("sandbox_id", "timestamp"),
		index.Fields("event_type"),
		index.Fields("sandbox_id", "id").
			Unique(),
	}
}
