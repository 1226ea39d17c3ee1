package heartbeat

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/database"
	"github.com/forgekit/autoforge/pkg/store"
	testdb "github.com/forgekit/autoforge/test/database"
)

func newTestAgent(t *testing.T, client *database.Client, status agent.Status) string {
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

func sendVitals(t *testing.T, eng *Engine, agentID string, seq int64, status string) *Ack {
	t.Helper()
	metrics := map[string]interface{}{"latency_ms": 50.0, "error_rate": 0.0, "cpu": 0.2, "mem": 0.2}
	v := Vitals{AgentID: agentID, Sequence: seq, Status: status, Metrics: metrics}
	v.Checksum = Checksum(v.AgentID, v.Sequence, v.Status, v.Metrics)
	ack, err := eng.Accept(context.Background(), v, "default")
	require.NoError(t, err)
	return ack
}

func TestEngine_AcceptsInSequenceHeartbeats(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	eng := New(st, config.DefaultHeartbeatConfig())

	id := newTestAgent(t, client, agent.StatusIDLE)

	ack := sendVitals(t, eng, id, 1, "IDLE")
	assert.True(t, ack.Received)

	a, err := st.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, a.SequenceNumber)
	assert.Equal(t, 0, a.ConsecutiveMissedHeartbeats)
}

func TestEngine_ReplayIsAcknowledgedNotApplied(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	eng := New(st, config.DefaultHeartbeatConfig())

	id := newTestAgent(t, client, agent.StatusIDLE)
	sendVitals(t, eng, id, 1, "IDLE")
	sendVitals(t, eng, id, 2, "IDLE")

	ack := sendVitals(t, eng, id, 1, "IDLE")
	assert.True(t, ack.Received)
	assert.Contains(t, ack.Message, "replay")

	a, err := st.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 2, a.SequenceNumber, "replay must not roll the sequence back")
}

func TestEngine_CorruptChecksumIsRejected(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	eng := New(st, config.DefaultHeartbeatConfig())

	id := newTestAgent(t, client, agent.StatusIDLE)
	v := Vitals{AgentID: id, Sequence: 1, Status: "IDLE", Metrics: map[string]interface{}{"latency_ms": 10.0}, Checksum: "not-a-real-checksum"}

	_, err := eng.Accept(context.Background(), v, "default")
	require.Error(t, err)

	a, err := st.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.EqualValues(t, 0, a.SequenceNumber, "corrupt heartbeat must not be applied")
}

func TestEngine_SequenceGapEscalatesToDegraded(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	cfg := config.DefaultHeartbeatConfig()
	eng := New(st, cfg)

	id := newTestAgent(t, client, agent.StatusIDLE)
	// Jump straight to sequence 3: last_expected was 1, so gap=2, which lands
	// in the 2-3 missed band and should mark the agent DEGRADED.
	sendVitals(t, eng, id, 3, "IDLE")

	a, err := st.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusDEGRADED, a.Status)
}

func TestEngine_LargeGapEscalatesToGuardian(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	cfg := config.DefaultHeartbeatConfig()
	eng := New(st, cfg)

	id := newTestAgent(t, client, agent.StatusIDLE)
	// last_expected=1, sequence=5 -> gap=4, which is within the
	// guardian-escalation band (4-5).
	sendVitals(t, eng, id, 5, "IDLE")

	actions, err := st.ListPendingReview(context.Background())
	require.NoError(t, err)
	_ = actions // proposed actions start in "proposed", not pending_review

	a, err := st.GetAgent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, agent.StatusDEGRADED, a.Status)

	n, err := st.CountRecentActionsForAgent(context.Background(), id, a.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
