package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SandboxResourceAllocation holds the schema definition for the
// SandboxResourceAllocation entity — cpu/memory/disk envelope requested
// and resized by the Orchestrator Worker (C5) and the Guardian's
// resize_resources action (C8), version-guarded like Task.
type SandboxResourceAllocation struct {
	ent.Schema
}

// Fields of the SandboxResourceAllocation.
func (SandboxResourceAllocation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("allocation_id").
			Unique().
			Immutable(),
		field.String("sandbox_id").
			Unique().
			Immutable(),
		field.Float("cpu_current"),
		field.Int64("memory_current_bytes"),
		field.Int64("disk_current_bytes"),
		field.Float("cpu_pending").
			Optional().
			Nillable(),
		field.Int64("memory_pending_bytes").
			Optional().
			Nillable(),
		field.Int64("disk_pending_bytes").
			Optional().
			Nillable(),
		field.Int("version").
			Default(1),
		field.String("updated_by").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the SandboxResourceAllocation.
func (SandboxResourceAllocation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("sandbox_id").
			Unique(),
	}
}
