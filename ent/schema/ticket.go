package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Ticket holds the schema definition for the Ticket entity.
// A human-facing unit of work, created by users or by spec completion,
// mutated through the ticket state machine.
type Ticket struct {
	ent.Schema
}

// Fields of the Ticket.
func (Ticket) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("ticket_id").
			Unique().
			Immutable(),
		field.String("title"),
		field.Text("description").
			Comment("Full-text searchable"),
		field.Enum("phase").
			Values("backlog", "planned", "in_progress", "review", "done", "archived").
			Default("backlog"),
		field.Enum("status").
			Values("open", "blocked", "closed").
			Default("open"),
		field.Enum("approval_status").
			Values("pending", "approved", "rejected").
			Default("pending").
			Comment("Gates scheduler admission per the dependency-gating rule"),
		field.Int("priority").
			Default(0),
		field.Time("deadline").
			Optional().
			Nillable(),
		field.Bool("is_blocked").
			Default(false),
		field.String("blocked_reason").
			Optional().
			Nillable(),
		field.String("owner_user_id").
			Optional().
			Nillable(),
		field.String("project_id").
			Optional().
			Nillable(),
		field.JSON("blocked_by", []string{}).
			Optional().
			Comment("Ticket ids this ticket depends on"),
		field.JSON("blocks", []string{}).
			Optional().
			Comment("Ticket ids that depend on this ticket"),
		field.String("spec_id").
			Optional().
			Nillable(),
		field.Int("version").
			Default(1).
			Comment("Optimistic lock counter"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Ticket.
func (Ticket) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("tasks", Task.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.From("spec", Spec.Type).
			Ref("tickets").
			Field("spec_id").
			Unique(),
		edge.To("merge_attempts", MergeAttempt.Type),
	}
}

// Indexes of the Ticket.
func (Ticket) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("phase"),
		index.Fields("approval_status"),
		index.Fields("project_id"),
		index.Fields("spec_id"),
	}
}

// Annotations — GIN full-text index on description is created via a
// migration hook in pkg/database.
func (Ticket) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
