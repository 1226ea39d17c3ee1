package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Heartbeat holds the schema definition for the Heartbeat entity.
// Ephemeral in the sense that it is collapsed into Agent state by the
// anomaly engine (C3); persisted here only as a short-retention audit
// trail (see pkg/cleanup for the retention sweep).
type Heartbeat struct {
	ent.Schema
}

// Fields of the Heartbeat.
func (Heartbeat) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("heartbeat_id").
			Unique().
			Immutable(),
		field.String("agent_id").
			Immutable(),
		field.Time("timestamp").
			Default(time.Now).
			Immutable(),
		field.Int64("sequence_number").
			Immutable(),
		field.String("status").
			Immutable(),
		field.String("current_task").
			Optional().
			Nillable().
			Immutable(),
		field.JSON("metrics", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.String("checksum").
			Immutable(),
		field.Bool("accepted").
			Comment("False when replayed, corrupt, or out-of-sequence"),
	}
}

// Indexes of the Heartbeat.
func (Heartbeat) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_id", "sequence_number"),
		index.Fields("timestamp"),
	}
}
