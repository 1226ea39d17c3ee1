package guardian

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/ent/guardianaction"
)

// HandleCostPressure implements §4.8's cost-based intervention: when a
// budget scope crosses its limit, pause_agent is proposed for every running
// task's agent in that scope. Crossing only alert_threshold (not the limit)
// is the Cost Accountant's concern — it emits the cost_pressure event, this
// only reacts to it.
func (g *Guardian) HandleCostPressure(ctx context.Context, scopeType budget.ScopeType, scopeID, reason string) error {
	tasks, err := g.store.ListRunningTasksForScope(ctx, scopeType, scopeID)
	if err != nil {
		return fmt.Errorf("list running tasks for cost-pressure scope %s/%s: %w", scopeType, scopeID, err)
	}
	for _, t := range tasks {
		if t.AssignedAgentID == nil {
			continue
		}
		if _, err := g.Propose(ctx, guardianaction.ActionTypePauseAgent, *t.AssignedAgentID, reason, "cost-accountant"); err != nil {
			slog.Error("propose cost-pressure pause failed", "task_id", t.ID, "agent_id", *t.AssignedAgentID, "error", err)
		}
	}
	return nil
}
