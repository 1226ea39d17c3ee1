package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Task holds the schema definition for the Task entity — the executable
// decomposition of a Ticket, owned and advanced by the scheduler (C4)
// and the orchestrator/sandbox workers (C5/C6).
type Task struct {
	ent.Schema
}

// Fields of the Task.
func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("task_id").
			Unique().
			Immutable(),
		field.String("ticket_id"),
		field.Enum("status").
			Values("pending", "assigned", "running", "succeeded", "failed", "canceled").
			Default("pending"),
		field.Float("priority_base").
			Default(0),
		field.Float("score").
			Default(0).
			Comment("Computed by the scheduler; recomputed on admission and dependency change"),
		field.Time("deadline").
			Optional().
			Nillable(),
		field.Int("retry_count").
			Default(0),
		field.Int("max_retries").
			Default(3),
		field.Int("timeout_seconds").
			Default(3600),
		field.JSON("required_capabilities", []string{}).
			Optional().
			Comment("Empty means any agent satisfies matching"),
		field.JSON("dependencies", []string{}).
			Optional().
			Comment("Task ids that must reach succeeded (blocked_by)"),
		field.String("parent_task_id").
			Optional().
			Nillable(),
		field.JSON("owned_files", []string{}).
			Optional().
			Comment("Glob patterns; must be disjoint across concurrently-running siblings"),
		field.JSON("synthesis_context", map[string]interface{}{}).
			Optional(),
		field.String("sandbox_id").
			Optional().
			Nillable(),
		field.String("assigned_agent_id").
			Optional().
			Nillable(),
		field.String("conversation_id").
			Optional().
			Nillable().
			Comment("Bound by POST /conversations/register once the sandbox worker opens a coding-agent session"),
		field.JSON("execution_config", map[string]interface{}{}).
			Optional().
			Comment("Sandbox worker configuration envelope, see codingagent/sandboxworker config"),
		field.String("persistence_dir").
			Optional().
			Nillable(),
		field.Bytes("embedding").
			Optional().
			Nillable().
			Comment("Serialized float32 vector; hinted search only, never authoritative"),
		field.String("failure_reason").
			Optional().
			Nillable(),
		field.Int("version").
			Default(1),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Task.
func (Task) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("ticket", Ticket.Type).
			Ref("tasks").
			Field("ticket_id").
			Unique().
			Required().
			Immutable(),
		edge.To("cost_records", CostRecord.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Task.
func (Task) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("ticket_id"),
		index.Fields("parent_task_id"),
		index.Fields("sandbox_id"),
		index.Fields("status", "score"),
		index.Fields("status", "created_at"),
	}
}
