package guardian

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/pkg/config"
)

func TestAuthorityFor_MatchesLadderOrder(t *testing.T) {
	assert.Equal(t, config.AuthorityNudge, authorityFor(guardianaction.ActionTypeNudge))
	assert.Equal(t, config.AuthorityPauseAgent, authorityFor(guardianaction.ActionTypePauseAgent))
	assert.Equal(t, config.AuthorityResizeResources, authorityFor(guardianaction.ActionTypeResizeResources))
	assert.Equal(t, config.AuthorityRestartSandbox, authorityFor(guardianaction.ActionTypeRestartSandbox))
	assert.Equal(t, config.AuthorityTerminateAgent, authorityFor(guardianaction.ActionTypeTerminateAgent))
}

func TestEscalated_StepsUpOneRung(t *testing.T) {
	assert.Equal(t, guardianaction.ActionTypePauseAgent, escalated(guardianaction.ActionTypeNudge))
	assert.Equal(t, guardianaction.ActionTypeRestartSandbox, escalated(guardianaction.ActionTypeResizeResources))
}

func TestEscalated_CapsAtTerminateAgent(t *testing.T) {
	assert.Equal(t, guardianaction.ActionTypeTerminateAgent, escalated(guardianaction.ActionTypeTerminateAgent))
}
