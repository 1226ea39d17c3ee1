package guardian

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/store"
	testdb "github.com/forgekit/autoforge/test/database"
)

func TestHandleCostPressure_ProposesPauseForRunningAgentScopeTasks(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	ticketID := uuid.New().String()
	_, err := client.Ticket.Create().
		SetID(ticketID).
		SetTitle("t").
		SetDescription("d").
		Save(context.Background())
	require.NoError(t, err)

	agentID := uuid.New().String()
	_, err = client.Agent.Create().
		SetID(agentID).
		SetName("worker").
		SetAgentType("coding-agent").
		SetStatus(agent.StatusRUNNING).
		Save(context.Background())
	require.NoError(t, err)

	taskID := uuid.New().String()
	_, err = client.Task.Create().
		SetID(taskID).
		SetTicketID(ticketID).
		SetStatus(task.StatusRunning).
		SetAssignedAgentID(agentID).
		Save(context.Background())
	require.NoError(t, err)

	err = g.HandleCostPressure(context.Background(), budget.ScopeTypeAgent, agentID, "budget exceeded")
	require.NoError(t, err)

	count, err := st.CountRecentActionsForAgent(context.Background(), agentID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	proposed, err := st.ListProposed(context.Background())
	require.NoError(t, err)
	require.Len(t, proposed, 1)
	assert.Equal(t, guardianaction.ActionTypePauseAgent, proposed[0].ActionType)
}
