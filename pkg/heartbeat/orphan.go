package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgekit/autoforge/ent/agent"
)

// RunOrphanSweep periodically scans active agents for heartbeat timeouts
// that Accept's sequence-gap detection cannot catch on its own — an agent
// that stops sending heartbeats entirely never triggers a gap computation,
// since there is no new heartbeat to compute one from.
func (e *Engine) RunOrphanSweep(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.OrphanDetectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.sweepOnce(ctx); err != nil {
				slog.Error("heartbeat orphan sweep failed", "error", err)
			}
		}
	}
}

func (e *Engine) sweepOnce(ctx context.Context) error {
	agents, err := e.store.ListActiveAgents(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(-e.cfg.Interval)
	for _, a := range agents {
		last, err := e.store.LastAccepted(ctx, a.ID)
		if err != nil {
			slog.Error("orphan sweep: load last heartbeat failed", "agent_id", a.ID, "error", err)
			continue
		}
		lastSeen := a.CreatedAt
		if last != nil {
			lastSeen = last.Timestamp
		}
		if lastSeen.After(deadline) {
			continue
		}

		missed, err := e.store.IncrementMissedHeartbeats(ctx, a.ID)
		if err != nil {
			slog.Error("orphan sweep: increment missed heartbeats failed", "agent_id", a.ID, "error", err)
			continue
		}

		b := e.bandFor(missed)
		if err := e.escalate(ctx, a.ID, a.Status, b, "orphan sweep: no heartbeat since "+lastSeen.Format(time.RFC3339)); err != nil {
			slog.Error("orphan sweep escalation failed", "agent_id", a.ID, "error", err)
		}
	}
	return e.sweepFailureGrace(ctx)
}

// sweepFailureGrace moves FAILED agents to QUARANTINED once they have sat
// past FailureGraceWindow, giving the Guardian or an operator a window to
// intervene before the automatic move. Only an explicit guardian
// terminate_agent action moves an agent on from QUARANTINED.
func (e *Engine) sweepFailureGrace(ctx context.Context) error {
	failed, err := e.store.ListFailedAgents(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(-e.cfg.FailureGraceWindow)
	for _, a := range failed {
		if a.UpdatedAt.After(deadline) {
			continue
		}
		if err := e.transition(ctx, a.ID, agent.StatusFAILED, agent.StatusQUARANTINED); err != nil {
			slog.Error("failure grace sweep: quarantine failed", "agent_id", a.ID, "error", err)
		}
	}
	return nil
}
