package guardian

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent/agent"
)

// SandboxRestarter is the narrow capability the Guardian needs from the
// Sandbox Worker runtime to carry out restart_sandbox. Wired by the
// orchestrator worker once a sandbox provider is attached; nil-safe so the
// Guardian can run standalone (e.g. in tests) without one.
type SandboxRestarter interface {
	RestartSandbox(ctx context.Context, agentID string) error
}

// canQuarantine mirrors the subset of the agent lifecycle table (§4.3) that
// leads into QUARANTINED — every non-terminal state except SPAWNING, which
// has no vitals yet to act on.
func canQuarantine(from agent.Status) bool {
	switch from {
	case agent.StatusIDLE, agent.StatusRUNNING, agent.StatusDEGRADED, agent.StatusFAILED:
		return true
	default:
		return false
	}
}

// canTerminate mirrors the lifecycle table's edges into TERMINATED: from
// IDLE, FAILED, or QUARANTINED, but never directly from RUNNING or
// DEGRADED — those must be quarantined first.
func canTerminate(from agent.Status) bool {
	switch from {
	case agent.StatusIDLE, agent.StatusFAILED, agent.StatusQUARANTINED:
		return true
	default:
		return false
	}
}

// pauseAgent quarantines the target agent, pulling it out of the scheduler's
// idle pool until a human or a later Guardian action restores it.
func (g *Guardian) pauseAgent(ctx context.Context, agentID string) error {
	a, err := g.store.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load agent for pause: %w", err)
	}
	if a.Status == agent.StatusQUARANTINED {
		return nil
	}
	if !canQuarantine(a.Status) {
		return fmt.Errorf("agent %s: cannot pause (quarantine) from status %s", agentID, a.Status)
	}
	return g.store.TransitionAgentStatus(ctx, agentID, agent.StatusQUARANTINED)
}

// terminateAgent moves the target agent to TERMINATED, its only exit from
// the lifecycle.
func (g *Guardian) terminateAgent(ctx context.Context, agentID string) error {
	a, err := g.store.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Errorf("load agent for termination: %w", err)
	}
	if !canTerminate(a.Status) {
		return fmt.Errorf("agent %s: cannot terminate from status %s", agentID, a.Status)
	}
	return g.store.TransitionAgentStatus(ctx, agentID, agent.StatusTERMINATED)
}

// restartSandbox delegates to the injected SandboxRestarter. With none
// attached, it only records the audit trail entry — restart is deferred
// until an operator or the orchestrator worker handles it out of band.
func (g *Guardian) restartSandbox(ctx context.Context, agentID string) error {
	if g.restarter == nil {
		return nil
	}
	return g.restarter.RestartSandbox(ctx, agentID)
}

// resizeResources has no concrete target allocation attached to a
// GuardianAction (it only names the agent, not a cpu/mem delta), so
// executing it means flagging the agent for an operator-directed resize
// rather than computing one itself. A future authority_level below
// terminate_agent could carry an explicit SandboxResourceAllocation
// proposal; until then this is a no-op that still gets audited.
func (g *Guardian) resizeResources(ctx context.Context, agentID string) error {
	return nil
}
