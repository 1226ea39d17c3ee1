package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/pkg/apperrors"
	testdb "github.com/forgekit/autoforge/test/database"
)

func newStoreTestAgent(t *testing.T, s *Store, status agent.Status, keptAlive bool) string {
	t.Helper()
	id := uuid.New().String()
	_, err := s.db.Agent.Create().
		SetID(id).
		SetName("worker-" + id[:8]).
		SetAgentType("coding-agent").
		SetStatus(status).
		SetKeptAliveForValidation(keptAlive).
		Save(context.Background())
	require.NoError(t, err)
	return id
}

func TestGetAgent_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.GetAgent(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// TestListIdleAgents_ExcludesKeptAliveForValidation covers review comment 2:
// an agent held IDLE for human/guardian inspection must not be handed a new
// assignment until the flag clears.
func TestListIdleAgents_ExcludesKeptAliveForValidation(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	normalID := newStoreTestAgent(t, s, agent.StatusIDLE, false)
	newStoreTestAgent(t, s, agent.StatusIDLE, true)
	newStoreTestAgent(t, s, agent.StatusRUNNING, false)

	agents, err := s.ListIdleAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, normalID, agents[0].ID)
}

func TestTransitionAgentStatus(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestAgent(t, s, agent.StatusIDLE, false)

	require.NoError(t, s.TransitionAgentStatus(context.Background(), id, agent.StatusRUNNING))
	a, err := s.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusRUNNING, a.Status)
}

func TestTransitionAgentStatus_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.TransitionAgentStatus(context.Background(), "missing", agent.StatusRUNNING)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApplyHeartbeat(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestAgent(t, s, agent.StatusRUNNING, false)

	require.NoError(t, s.ApplyHeartbeat(context.Background(), id, 5, map[string]interface{}{"cpu": 0.2}, 0.1, 0))
	a, err := s.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 5, a.SequenceNumber)
	assert.Equal(t, 0, a.ConsecutiveMissedHeartbeats)
	assert.InDelta(t, 0.1, a.AnomalyScore, 0.0001)
}

func TestApplyHeartbeat_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.ApplyHeartbeat(context.Background(), "missing", 1, nil, 0, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIncrementMissedHeartbeats(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestAgent(t, s, agent.StatusRUNNING, false)

	n, err := s.IncrementMissedHeartbeats(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementMissedHeartbeats(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIncrementMissedHeartbeats_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.IncrementMissedHeartbeats(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListFailedAgents(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	failedID := newStoreTestAgent(t, s, agent.StatusFAILED, false)
	newStoreTestAgent(t, s, agent.StatusIDLE, false)

	agents, err := s.ListFailedAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, failedID, agents[0].ID)
}

func TestListActiveAgents(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	idleID := newStoreTestAgent(t, s, agent.StatusIDLE, false)
	runningID := newStoreTestAgent(t, s, agent.StatusRUNNING, false)
	newStoreTestAgent(t, s, agent.StatusFAILED, false)

	agents, err := s.ListActiveAgents(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	assert.ElementsMatch(t, []string{idleID, runningID}, ids)
}

func TestGetBaseline_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.GetBaseline(context.Background(), "coding-agent", "implement")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpsertBaseline_CreatesThenAccumulates(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	require.NoError(t, s.UpsertBaseline(context.Background(), "coding-agent", "implement", 100, 0, 0.1, 0.2))
	b, err := s.GetBaseline(context.Background(), "coding-agent", "implement")
	require.NoError(t, err)
	assert.Equal(t, 1, b.SampleCount)
	assert.InDelta(t, 100, b.LatencyMeanMs, 0.001)

	require.NoError(t, s.UpsertBaseline(context.Background(), "coding-agent", "implement", 200, 0, 0.1, 0.2))
	b, err = s.GetBaseline(context.Background(), "coding-agent", "implement")
	require.NoError(t, err)
	assert.Equal(t, 2, b.SampleCount)
	assert.InDelta(t, 150, b.LatencyMeanMs, 0.001)
}
