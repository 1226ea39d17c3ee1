package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/heartbeat"
)

// RecordHeartbeat appends a heartbeat row. Rejected heartbeats (replayed,
// corrupt, or out-of-sequence) are still persisted with accepted=false for
// the audit trail.
func (s *Store) RecordHeartbeat(ctx context.Context, id, agentID string, sequence int64, status, checksum string, currentTask *string, metrics map[string]interface{}, accepted bool) (*ent.Heartbeat, error) {
	create := s.db.Heartbeat.Create().
		SetID(id).
		SetAgentID(agentID).
		SetSequenceNumber(sequence).
		SetStatus(status).
		SetChecksum(checksum).
		SetAccepted(accepted)
	if currentTask != nil {
		create = create.SetCurrentTask(*currentTask)
	}
	if metrics != nil {
		create = create.SetMetrics(metrics)
	}
	h, err := create.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("record heartbeat: %w", err)
	}
	return h, nil
}

// LastAccepted returns the most recent accepted heartbeat for an agent,
// used to validate the sequence-number monotonicity invariant.
func (s *Store) LastAccepted(ctx context.Context, agentID string) (*ent.Heartbeat, error) {
	h, err := s.db.Heartbeat.Query().
		Where(heartbeat.AgentIDEQ(agentID), heartbeat.AcceptedEQ(true)).
		Order(ent.Desc(heartbeat.FieldSequenceNumber)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last accepted heartbeat: %w", err)
	}
	return h, nil
}

// DeleteOlderThan purges heartbeat rows older than the retention cutoff and
// reports how many were removed.
func (s *Store) DeleteHeartbeatsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.db.Heartbeat.Delete().
		Where(heartbeat.TimestampLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete old heartbeats: %w", err)
	}
	return n, nil
}
