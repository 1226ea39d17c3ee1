package heartbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

func TestValidateTransition_LegalMoves(t *testing.T) {
	cases := []struct{ from, to agent.Status }{
		{agent.StatusSPAWNING, agent.StatusIDLE},
		{agent.StatusSPAWNING, agent.StatusFAILED},
		{agent.StatusSPAWNING, agent.StatusTERMINATED},
		{agent.StatusIDLE, agent.StatusRUNNING},
		{agent.StatusIDLE, agent.StatusDEGRADED},
		{agent.StatusIDLE, agent.StatusQUARANTINED},
		{agent.StatusRUNNING, agent.StatusIDLE},
		{agent.StatusRUNNING, agent.StatusFAILED},
		{agent.StatusDEGRADED, agent.StatusIDLE},
		{agent.StatusDEGRADED, agent.StatusTERMINATED},
		{agent.StatusFAILED, agent.StatusQUARANTINED},
		{agent.StatusQUARANTINED, agent.StatusIDLE},
		{agent.StatusQUARANTINED, agent.StatusTERMINATED},
	}
	for _, c := range cases {
		assert.NoError(t, ValidateTransition("a-1", c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidateTransition_IllegalMoves(t *testing.T) {
	cases := []struct{ from, to agent.Status }{
		{agent.StatusTERMINATED, agent.StatusIDLE},
		{agent.StatusFAILED, agent.StatusIDLE},
		{agent.StatusFAILED, agent.StatusRUNNING},
		{agent.StatusQUARANTINED, agent.StatusRUNNING},
		{agent.StatusSPAWNING, agent.StatusRUNNING},
	}
	for _, c := range cases {
		err := ValidateTransition("a-1", c.from, c.to)
		require.Error(t, err, "%s -> %s should be rejected", c.from, c.to)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	}
}

func TestValidateTransition_SameStateIsNoOp(t *testing.T) {
	assert.NoError(t, ValidateTransition("a-1", agent.StatusIDLE, agent.StatusIDLE))
}

func TestValidateTransition_TerminatedHasNoOutwardEdges(t *testing.T) {
	for _, to := range []agent.Status{agent.StatusIDLE, agent.StatusRUNNING, agent.StatusDEGRADED, agent.StatusFAILED, agent.StatusQUARANTINED} {
		err := ValidateTransition("a-1", agent.StatusTERMINATED, to)
		require.Error(t, err)
	}
}
