package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/sandboxevent"
)

// AppendEvent inserts a sandbox event. Duplicate (sandbox_id, id) pairs —
// an at-least-once redelivery from the sandbox worker's stream — return the
// already-stored row instead of erroring, so publishers can retry freely.
func (s *Store) AppendEvent(ctx context.Context, id, sandboxID, eventType string, data map[string]interface{}, source sandboxevent.Source, specID, taskID *string) (*ent.SandboxEvent, error) {
	create := s.db.SandboxEvent.Create().
		SetID(id).
		SetSandboxID(sandboxID).
		SetEventType(eventType).
		SetEventData(data).
		SetSource(source)
	if specID != nil {
		create = create.SetSpecID(*specID)
	}
	if taskID != nil {
		create = create.SetTaskID(*taskID)
	}

	evt, err := create.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			existing, getErr := s.db.SandboxEvent.Query().
				Where(sandboxevent.SandboxIDEQ(sandboxID), sandboxevent.IDEQ(id)).
				Only(ctx)
			if getErr != nil {
				return nil, fmt.Errorf("reload deduped sandbox event: %w", getErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("append sandbox event: %w", err)
	}
	return evt, nil
}

// ListBySandbox returns events for a sandbox ordered oldest-first, the
// Event Bus's replay source for clients that reconnect with a cursor.
func (s *Store) ListEventsBySandbox(ctx context.Context, sandboxID string, since time.Time, limit int) ([]*ent.SandboxEvent, error) {
	evts, err := s.db.SandboxEvent.Query().
		Where(sandboxevent.SandboxIDEQ(sandboxID), sandboxevent.TimestampGT(since)).
		Order(ent.Asc(sandboxevent.FieldTimestamp)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sandbox events: %w", err)
	}
	return evts, nil
}

// DeleteEventsOlderThan purges sandbox events past the event-stream
// retention TTL.
func (s *Store) DeleteEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.db.SandboxEvent.Delete().
		Where(sandboxevent.TimestampLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete old sandbox events: %w", err)
	}
	return n, nil
}
