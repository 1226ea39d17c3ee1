package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Spec holds the schema definition for the Spec entity, advanced by the
// five-phase state machine (C7): explore, requirements, design, tasks, sync.
type Spec struct {
	ent.Schema
}

// Fields of the Spec.
func (Spec) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("spec_id").
			Unique().
			Immutable(),
		field.String("title"),
		field.Text("description"),
		field.Enum("current_phase").
			Values("explore", "requirements", "design", "tasks", "sync", "complete").
			Default("explore"),
		field.JSON("phase_data", map[string]interface{}{}).
			Optional().
			Comment("Map phase -> accumulated context; frozen once the next phase begins"),
		field.JSON("session_transcripts", map[string]string{}).
			Optional().
			Comment("Map phase -> base64 transcript blob"),
		field.JSON("phase_attempts", map[string]int{}).
			Optional(),
		field.Time("last_checkpoint_at").
			Optional().
			Nillable(),
		field.String("last_error").
			Optional().
			Nillable(),
		field.String("share_token").
			Optional().
			Nillable().
			Unique(),
		field.Bool("archived").
			Default(false),
		field.String("owner_user_id").
			Optional().
			Nillable(),
		field.String("output_dir").
			Optional().
			Nillable().
			Comment("Artifact filesystem root, see §6.4"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Spec.
func (Spec) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("tickets", Ticket.Type).
			Annotations(entsql.OnDelete(entsql.SetNull)),
	}
}

// Indexes of the Spec.
func (Spec) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("current_phase"),
		index.Fields("archived"),
		index.Fields("owner_user_id"),
	}
}
