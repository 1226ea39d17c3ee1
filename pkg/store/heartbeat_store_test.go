package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/forgekit/autoforge/test/database"
)

func TestRecordHeartbeat_AcceptedAndRejected(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	accepted, err := s.RecordHeartbeat(context.Background(), uuid.New().String(), "agent-1", 1, "running", "chk1", nil, nil, true)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	rejected, err := s.RecordHeartbeat(context.Background(), uuid.New().String(), "agent-1", 1, "running", "chk1", nil, nil, false)
	require.NoError(t, err)
	assert.False(t, rejected.Accepted)
}

func TestLastAccepted_ReturnsHighestSequence(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.RecordHeartbeat(context.Background(), uuid.New().String(), "agent-1", 1, "running", "chk1", nil, nil, true)
	require.NoError(t, err)
	_, err = s.RecordHeartbeat(context.Background(), uuid.New().String(), "agent-1", 3, "running", "chk3", nil, nil, true)
	require.NoError(t, err)
	_, err = s.RecordHeartbeat(context.Background(), uuid.New().String(), "agent-1", 2, "running", "chk2", nil, nil, false)
	require.NoError(t, err)

	h, err := s.LastAccepted(context.Background(), "agent-1")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.EqualValues(t, 3, h.SequenceNumber)
}

func TestLastAccepted_NoneReturnsNilNoError(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	h, err := s.LastAccepted(context.Background(), "no-such-agent")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestDeleteHeartbeatsOlderThan(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	h, err := s.RecordHeartbeat(context.Background(), uuid.New().String(), "agent-1", 1, "running", "chk1", nil, nil, true)
	require.NoError(t, err)
	_, err = client.Heartbeat.UpdateOneID(h.ID).SetTimestamp(time.Now().Add(-48 * time.Hour)).Save(context.Background())
	require.NoError(t, err)

	n, err := s.DeleteHeartbeatsOlderThan(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
