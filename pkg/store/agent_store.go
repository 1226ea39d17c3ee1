package store

import (
	"context"
	"fmt"
	"math"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/ent/agentbaseline"
	"github.com/forgekit/autoforge/pkg/apperrors"
	"github.com/google/uuid"
)

// GetAgent fetches an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*ent.Agent, error) {
	a, err := s.db.Agent.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("agent", id)
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListIdleAgents returns IDLE agents eligible for a new assignment.
// Capability matching against required_capabilities happens in application
// code (the JSON column isn't indexed for array-containment queries),
// against the scheduler's CapabilityRegistry. Agents flagged
// kept_alive_for_validation are excluded: they re-entered IDLE held for
// human/guardian inspection and bypass capacity accounting until that flag
// is cleared, so they must not be handed a new task in the meantime.
func (s *Store) ListIdleAgents(ctx context.Context) ([]*ent.Agent, error) {
	agents, err := s.db.Agent.Query().
		Where(agent.StatusEQ(agent.StatusIDLE), agent.KeptAliveForValidationEQ(false)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list idle agents: %w", err)
	}
	return agents, nil
}

// TransitionStatus moves an agent to a new lifecycle status. Callers are
// responsible for checking the transition is legal per the lifecycle state
// machine before calling this.
func (s *Store) TransitionAgentStatus(ctx context.Context, id string, newStatus agent.Status) error {
	if err := s.db.Agent.UpdateOneID(id).SetStatus(newStatus).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("agent", id)
		}
		return fmt.Errorf("transition agent status: %w", err)
	}
	return nil
}

// ApplyHeartbeat folds an accepted heartbeat's vitals into the agent row:
// advances the sequence number, resets the missed-heartbeat counter, and
// records the freshest anomaly score computed by the caller.
func (s *Store) ApplyHeartbeat(ctx context.Context, agentID string, sequence int64, healthMetrics map[string]interface{}, anomalyScore float64, consecutiveAnomalous int) error {
	update := s.db.Agent.UpdateOneID(agentID).
		SetSequenceNumber(sequence).
		SetConsecutiveMissedHeartbeats(0).
		SetHealthMetrics(healthMetrics).
		SetAnomalyScore(anomalyScore).
		SetConsecutiveAnomalousReadings(consecutiveAnomalous)
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("agent", agentID)
		}
		return fmt.Errorf("apply heartbeat: %w", err)
	}
	return nil
}

// IncrementMissedHeartbeats bumps an agent's missed-heartbeat counter and
// returns the new count, used by the orphan-detection sweep.
func (s *Store) IncrementMissedHeartbeats(ctx context.Context, agentID string) (int, error) {
	a, err := s.db.Agent.Get(ctx, agentID)
	if err != nil {
		if ent.IsNotFound(err) {
			return 0, apperrors.NewNotFoundError("agent", agentID)
		}
		return 0, fmt.Errorf("get agent for missed-heartbeat increment: %w", err)
	}
	a, err = a.Update().AddConsecutiveMissedHeartbeats(1).Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("increment missed heartbeats: %w", err)
	}
	return a.ConsecutiveMissedHeartbeats, nil
}

// ListFailedAgents returns agents currently in FAILED, the failure-grace
// sweep's input for promoting agents to QUARANTINED.
func (s *Store) ListFailedAgents(ctx context.Context) ([]*ent.Agent, error) {
	agents, err := s.db.Agent.Query().
		Where(agent.StatusEQ(agent.StatusFAILED)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list failed agents: %w", err)
	}
	return agents, nil
}

// ListStaleAgents returns non-terminal agents whose sequence number has not
// advanced since lastSeenSequence, the orphan-detection sweep's input.
func (s *Store) ListActiveAgents(ctx context.Context) ([]*ent.Agent, error) {
	agents, err := s.db.Agent.Query().
		Where(agent.StatusIn(agent.StatusIDLE, agent.StatusRUNNING, agent.StatusDEGRADED)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	return agents, nil
}

// GetBaseline fetches the rolling baseline for an (agent_type, phase) pair.
func (s *Store) GetBaseline(ctx context.Context, agentType, phase string) (*ent.AgentBaseline, error) {
	b, err := s.db.AgentBaseline.Query().
		Where(agentbaseline.AgentType(agentType), agentbaseline.Phase(phase)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("agent_baseline", agentType+"/"+phase)
		}
		return nil, fmt.Errorf("get agent baseline: %w", err)
	}
	return b, nil
}

// UpsertBaseline folds a new sample's latency/error-rate/resource readings
// into the rolling baseline using incremental mean/variance accumulation,
// so the anomaly engine never needs to replay full history.
func (s *Store) UpsertBaseline(ctx context.Context, agentType, phase string, latencyMS, errSample, cpu, mem float64) error {
	existing, err := s.db.AgentBaseline.Query().
		Where(agentbaseline.AgentType(agentType), agentbaseline.Phase(phase)).
		Only(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return fmt.Errorf("query baseline for upsert: %w", err)
	}

	if ent.IsNotFound(err) {
		_, createErr := s.db.AgentBaseline.Create().
			SetID(uuid.NewString()).
			SetAgentType(agentType).
			SetPhase(phase).
			SetLatencyMeanMs(latencyMS).
			SetLatencyStddevMs(0).
			SetErrorRate(errSample).
			SetCPUBaseline(cpu).
			SetMemBaseline(mem).
			SetSampleCount(1).
			Save(ctx)
		if createErr != nil {
			return fmt.Errorf("create baseline: %w", createErr)
		}
		return nil
	}

	n := existing.SampleCount + 1
	newMean := existing.LatencyMeanMs + (latencyMS-existing.LatencyMeanMs)/float64(n)
	delta := latencyMS - existing.LatencyMeanMs
	delta2 := latencyMS - newMean
	newVarianceSum := existing.LatencyStddevMs*existing.LatencyStddevMs*float64(existing.SampleCount) + delta*delta2
	newStddev := 0.0
	if n > 1 && newVarianceSum > 0 {
		newStddev = math.Sqrt(newVarianceSum / float64(n))
	}
	newErrRate := existing.ErrorRate + (errSample-existing.ErrorRate)/float64(n)
	newCPU := existing.CPUBaseline + (cpu-existing.CPUBaseline)/float64(n)
	newMem := existing.MemBaseline + (mem-existing.MemBaseline)/float64(n)

	_, err = existing.Update().
		SetLatencyMeanMs(newMean).
		SetLatencyStddevMs(newStddev).
		SetErrorRate(newErrRate).
		SetCPUBaseline(newCPU).
		SetMemBaseline(newMem).
		SetSampleCount(n).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("update baseline: %w", err)
	}
	return nil
}
