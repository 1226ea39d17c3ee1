package guardian

import (
	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/pkg/config"
)

// ladder orders the five action types from least to most invasive, matching
// the authority_level values GuardianAction rows are created with.
var ladder = []guardianaction.ActionType{
	guardianaction.ActionTypeNudge,
	guardianaction.ActionTypePauseAgent,
	guardianaction.ActionTypeResizeResources,
	guardianaction.ActionTypeRestartSandbox,
	guardianaction.ActionTypeTerminateAgent,
}

// authorityFor returns an action type's position on the ladder as its
// authority_level.
func authorityFor(actionType guardianaction.ActionType) config.AuthorityLevel {
	for i, a := range ladder {
		if a == actionType {
			return config.AuthorityLevel(i)
		}
	}
	return config.AuthorityTerminateAgent
}

// escalated returns the next rung up the ladder from actionType, capped at
// terminate_agent — used when a proposed action times out waiting for
// approval and the incident is re-queued at elevated severity.
func escalated(actionType guardianaction.ActionType) guardianaction.ActionType {
	for i, a := range ladder {
		if a == actionType && i+1 < len(ladder) {
			return ladder[i+1]
		}
	}
	return guardianaction.ActionTypeTerminateAgent
}
