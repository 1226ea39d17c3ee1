package guardian

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/database"
	"github.com/forgekit/autoforge/pkg/store"
	testdb "github.com/forgekit/autoforge/test/database"
)

func newGuardianTestAgent(t *testing.T, client *database.Client, status agent.Status) string {
	t.Helper()
	id := uuid.New().String()
	_, err := client.Agent.Create().
		SetID(id).
		SetName("worker-" + id[:8]).
		SetAgentType("coding-agent").
		SetStatus(status).
		Save(context.Background())
	require.NoError(t, err)
	return id
}

func TestPropose_RateLimitedAfterMaxActionsPerHour(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	cfg := config.DefaultGuardianConfig()
	cfg.MaxActionsPerAgentPerHour = 2
	g := New(st, cfg, nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusIDLE)

	_, err := g.Propose(context.Background(), guardianaction.ActionTypeNudge, agentID, "r1", "test")
	require.NoError(t, err)
	_, err = g.Propose(context.Background(), guardianaction.ActionTypeNudge, agentID, "r2", "test")
	require.NoError(t, err)

	_, err = g.Propose(context.Background(), guardianaction.ActionTypeNudge, agentID, "r3", "test")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestProcessProposed_AutoExecutesAtOrBelowAutoAuthority(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusIDLE)
	action, err := g.Propose(context.Background(), guardianaction.ActionTypeNudge, agentID, "low authority", "test")
	require.NoError(t, err)

	require.NoError(t, g.ProcessProposed(context.Background()))

	reloaded, err := st.GetGuardianAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, guardianaction.StatusExecuted, reloaded.Status)
}

func TestProcessProposed_RoutesAboveAutoAuthorityToPendingReview(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusQUARANTINED)
	action, err := g.Propose(context.Background(), guardianaction.ActionTypeTerminateAgent, agentID, "needs human", "test")
	require.NoError(t, err)

	require.NoError(t, g.ProcessProposed(context.Background()))

	reloaded, err := st.GetGuardianAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, guardianaction.StatusPendingReview, reloaded.Status)
}

func TestExecute_PauseAgentQuarantinesFromRunning(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusRUNNING)
	action, err := g.Propose(context.Background(), guardianaction.ActionTypePauseAgent, agentID, "misbehaving", "test")
	require.NoError(t, err)

	require.NoError(t, g.Execute(context.Background(), action))

	a, err := st.GetAgent(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusQUARANTINED, a.Status)
}

func TestExecute_TerminateFromRunningFailsAndLeavesActionUnexecuted(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusRUNNING)
	action, err := g.Propose(context.Background(), guardianaction.ActionTypeTerminateAgent, agentID, "bad", "test")
	require.NoError(t, err)

	err = g.Execute(context.Background(), action)
	assert.Error(t, err)

	reloaded, err := st.GetGuardianAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, guardianaction.StatusProposed, reloaded.Status)
}

func TestApprove_ExecutesAfterApproval(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusIDLE)
	action, err := g.Propose(context.Background(), guardianaction.ActionTypePauseAgent, agentID, "cost pressure", "test")
	require.NoError(t, err)

	require.NoError(t, g.Approve(context.Background(), action.ID, "operator-1"))

	reloaded, err := st.GetGuardianAction(context.Background(), action.ID)
	require.NoError(t, err)
	assert.Equal(t, guardianaction.StatusExecuted, reloaded.Status)
	require.NotNil(t, reloaded.ApprovedBy)
	assert.Equal(t, "operator-1", *reloaded.ApprovedBy)

	a, err := st.GetAgent(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusQUARANTINED, a.Status)
}

func TestReject_NeverExecutes(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	g := New(st, config.DefaultGuardianConfig(), nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusIDLE)
	action, err := g.Propose(context.Background(), guardianaction.ActionTypePauseAgent, agentID, "false alarm", "test")
	require.NoError(t, err)

	require.NoError(t, g.Reject(context.Background(), action.ID, "operator-1"))

	a, err := st.GetAgent(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusIDLE, a.Status, "rejected action must never mutate agent state")
}

func TestSweepTimeouts_EscalatesExpiredPendingReview(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	cfg := config.DefaultGuardianConfig()
	cfg.ApprovalTimeout = time.Minute
	g := New(st, cfg, nil, nil, nil)

	agentID := newGuardianTestAgent(t, client, agent.StatusQUARANTINED)
	id := uuid.New().String()
	_, err := client.GuardianAction.Create().
		SetID(id).
		SetActionType(guardianaction.ActionTypeTerminateAgent).
		SetTargetAgentID(agentID).
		SetAuthorityLevel(4).
		SetReason("stuck").
		SetInitiator("test").
		SetStatus(guardianaction.StatusPendingReview).
		SetCreatedAt(time.Now().Add(-2 * time.Hour)).
		Save(context.Background())
	require.NoError(t, err)

	require.NoError(t, g.SweepTimeouts(context.Background()))

	reloaded, err := st.GetGuardianAction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, guardianaction.StatusTimedOut, reloaded.Status)

	proposed, err := st.ListProposed(context.Background())
	require.NoError(t, err)
	require.Len(t, proposed, 1)
	assert.Equal(t, guardianaction.ActionTypeTerminateAgent, proposed[0].ActionType, "terminate_agent is already the top rung")
}
