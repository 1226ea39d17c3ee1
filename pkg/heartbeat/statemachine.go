package heartbeat

import (
	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// transitions enumerates every legal outward move in the agent lifecycle.
// SPAWNING is the entry state; TERMINATED has no outward edges.
var transitions = map[agent.Status][]agent.Status{
	agent.StatusSPAWNING:   {agent.StatusIDLE, agent.StatusFAILED, agent.StatusTERMINATED},
	agent.StatusIDLE:       {agent.StatusRUNNING, agent.StatusDEGRADED, agent.StatusQUARANTINED, agent.StatusTERMINATED},
	agent.StatusRUNNING:    {agent.StatusIDLE, agent.StatusFAILED, agent.StatusDEGRADED, agent.StatusQUARANTINED},
	agent.StatusDEGRADED:   {agent.StatusIDLE, agent.StatusFAILED, agent.StatusQUARANTINED, agent.StatusTERMINATED},
	agent.StatusFAILED:     {agent.StatusQUARANTINED, agent.StatusTERMINATED},
	agent.StatusQUARANTINED: {agent.StatusIDLE, agent.StatusTERMINATED},
	agent.StatusTERMINATED: {},
}

// ValidateTransition reports whether moving an agent from `from` to `to` is
// legal. It never mutates anything; callers only persist the move after this
// returns nil.
func ValidateTransition(agentID string, from, to agent.Status) error {
	if from == to {
		return nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return apperrors.NewInvalidTransitionError("agent", agentID, string(from), string(to))
}
