package eventbus

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/ent/sandboxevent"
	"github.com/forgekit/autoforge/pkg/store"
)

// SandboxEventSink persists sandbox-origin envelopes as SandboxEvent rows.
// Envelopes for other entity types are accepted but not persisted here —
// task/ticket/agent/spec lifecycle changes are already durable in their own
// versioned rows (§4.2), so the bus's replay guarantee for those entities is
// the entity row itself, not a separate log.
type SandboxEventSink struct {
	store  *store.Store
	source string // "worker" or "system" — this process's role when it has no agent-supplied source
}

// NewSandboxEventSink creates a Sink that appends sandbox envelopes through st.
func NewSandboxEventSink(st *store.Store, source string) *SandboxEventSink {
	return &SandboxEventSink{store: st, source: source}
}

// Persist implements Sink.
func (s *SandboxEventSink) Persist(env Envelope) error {
	if env.EntityType != "sandbox" {
		return nil
	}

	id, _ := env.Payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	src, _ := env.Payload["source"].(string)
	if src == "" {
		src = s.source
	}

	var specID, taskID *string
	if v, ok := env.Payload["spec_id"].(string); ok && v != "" {
		specID = &v
	}
	if v, ok := env.Payload["task_id"].(string); ok && v != "" {
		taskID = &v
	}

	_, err := s.store.AppendEvent(context.Background(), id, env.EntityID, env.EventType, env.Payload, sandboxevent.Source(src), specID, taskID)
	return err
}
