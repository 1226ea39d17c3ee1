package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/pkg/apperrors"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/store"
)

// Engine is the Heartbeat & Anomaly Engine (C3): it accepts vitals from
// agents, advances their sequence/anomaly state, and drives the lifecycle
// state machine's escalation ladder.
type Engine struct {
	store *store.Store
	cfg   *config.HeartbeatConfig

	mu          sync.Mutex
	corruptions map[string]int
}

// New creates an Engine backed by st, using cfg's thresholds.
func New(st *store.Store, cfg *config.HeartbeatConfig) *Engine {
	if cfg == nil {
		cfg = config.DefaultHeartbeatConfig()
	}
	return &Engine{store: st, cfg: cfg, corruptions: make(map[string]int)}
}

// band is a rung on the escalation ladder; a higher value always wins when
// more than one signal (missed heartbeats, anomaly streak) fires at once.
type band int

const (
	bandNone band = iota
	bandWarn
	bandDegraded
	bandGuardian
	bandFailed
)

func (e *Engine) bandFor(count int) band {
	switch {
	case count >= e.cfg.FailedThreshold:
		return bandFailed
	case count >= e.cfg.GuardianThreshold:
		return bandGuardian
	case count >= e.cfg.DegradedThreshold:
		return bandDegraded
	case count >= e.cfg.WarnThreshold:
		return bandWarn
	default:
		return bandNone
	}
}

// Accept processes one heartbeat per the protocol in §4.3: checksum verify,
// replay detection, gap accounting, baseline update, escalation, and an
// acknowledgment reply.
func (e *Engine) Accept(ctx context.Context, v Vitals, phase string) (*Ack, error) {
	now := time.Now()

	if !verifyChecksum(v) {
		e.recordCorruption(v.AgentID)
		return nil, fmt.Errorf("heartbeat checksum mismatch for agent %s, sequence %d", v.AgentID, v.Sequence)
	}

	last, err := e.store.LastAccepted(ctx, v.AgentID)
	if err != nil {
		return nil, fmt.Errorf("load last accepted heartbeat: %w", err)
	}
	var lastAccepted int64
	if last != nil {
		lastAccepted = last.SequenceNumber
	}

	if v.Sequence <= lastAccepted {
		if _, err := e.store.RecordHeartbeat(ctx, uuid.NewString(), v.AgentID, v.Sequence, v.Status, v.Checksum, v.CurrentTask, v.Metrics, false); err != nil {
			return nil, fmt.Errorf("record replayed heartbeat: %w", err)
		}
		return &Ack{AgentID: v.AgentID, Sequence: v.Sequence, Timestamp: now, Received: true, Message: "replay, not applied"}, nil
	}

	a, err := e.store.GetAgent(ctx, v.AgentID)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}

	gap := v.Sequence - (lastAccepted + 1)
	missed := a.ConsecutiveMissedHeartbeats
	if gap > 0 {
		for i := int64(0); i < gap; i++ {
			if missed, err = e.store.IncrementMissedHeartbeats(ctx, v.AgentID); err != nil {
				return nil, fmt.Errorf("record missed heartbeats: %w", err)
			}
		}
	}

	if phase == "" {
		phase = "default"
	}
	baseline, err := e.store.GetBaseline(ctx, a.AgentType, phase)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	m := extractMetrics(v.Metrics)
	score := ComputeAnomalyScore(v.Metrics, baseline, e.cfg.AnomalyComponentCap)

	consecutiveAnomalous := 0
	if score >= e.cfg.QuarantineAnomalyThreshold {
		consecutiveAnomalous = a.ConsecutiveAnomalousReadings + 1
	}

	if err := e.store.ApplyHeartbeat(ctx, v.AgentID, v.Sequence, v.Metrics, score, consecutiveAnomalous); err != nil {
		return nil, fmt.Errorf("apply heartbeat: %w", err)
	}
	if err := e.store.UpsertBaseline(ctx, a.AgentType, phase, m.latencyMS, m.errorRate, m.cpu, m.mem); err != nil {
		return nil, fmt.Errorf("update baseline: %w", err)
	}
	if _, err := e.store.RecordHeartbeat(ctx, uuid.NewString(), v.AgentID, v.Sequence, v.Status, v.Checksum, v.CurrentTask, v.Metrics, true); err != nil {
		return nil, fmt.Errorf("record heartbeat: %w", err)
	}

	missedBand := e.bandFor(missed)
	anomalyBand := bandNone
	if score >= e.cfg.QuarantineAnomalyThreshold {
		anomalyBand = e.bandFor(consecutiveAnomalous)
	}

	reason := fmt.Sprintf("missed=%d anomaly_score=%.3f consecutive_anomalous=%d", missed, score, consecutiveAnomalous)
	if err := e.escalate(ctx, a.ID, a.Status, maxBand(missedBand, anomalyBand), reason); err != nil {
		slog.Error("heartbeat escalation failed", "agent_id", v.AgentID, "error", err)
	}

	return &Ack{AgentID: v.AgentID, Sequence: v.Sequence, Timestamp: now, Received: true}, nil
}

func maxBand(a, b band) band {
	if a > b {
		return a
	}
	return b
}

// escalate applies the ladder's action for the fired band, validating the
// state transition before persisting it. An illegal transition (e.g. the
// agent is already TERMINATED) is logged and skipped rather than treated as
// a heartbeat failure.
func (e *Engine) escalate(ctx context.Context, agentID string, current agent.Status, b band, reason string) error {
	switch b {
	case bandNone:
		return nil
	case bandWarn:
		slog.Warn("agent heartbeat degradation", "agent_id", agentID, "reason", reason)
		return nil
	case bandDegraded:
		return e.transition(ctx, agentID, current, agent.StatusDEGRADED)
	case bandGuardian:
		if err := e.transition(ctx, agentID, current, agent.StatusDEGRADED); err != nil {
			slog.Warn("could not mark agent degraded before guardian escalation", "agent_id", agentID, "error", err)
		}
		_, err := e.store.ProposeGuardianAction(ctx, uuid.NewString(), guardianaction.ActionTypeRestartSandbox, agentID, 3, reason, "heartbeat-engine")
		return err
	case bandFailed:
		return e.transition(ctx, agentID, current, agent.StatusFAILED)
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, agentID string, from, to agent.Status) error {
	if from == to {
		return nil
	}
	if err := ValidateTransition(agentID, from, to); err != nil {
		return err
	}
	return e.store.TransitionAgentStatus(ctx, agentID, to)
}

func (e *Engine) recordCorruption(agentID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.corruptions[agentID]++
	n := e.corruptions[agentID]
	slog.Warn("heartbeat checksum corruption", "agent_id", agentID, "corruption_count", n)
	return n
}
