package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/mergeattempt"
	"github.com/forgekit/autoforge/pkg/apperrors"
	testdb "github.com/forgekit/autoforge/test/database"
)

func newStoreTestMergeAttempt(t *testing.T, s *Store) string {
	t.Helper()
	ticketID := newStoreTestTicket(t, s, true, false)
	id := uuid.New().String()
	_, err := s.CreateMergeAttempt(context.Background(), id, "convergence-task", ticketID,
		"main", []string{"task-a", "task-b"}, []string{"branch-a", "branch-b"})
	require.NoError(t, err)
	return id
}

func TestCreateMergeAttempt(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	id := newStoreTestMergeAttempt(t, s)
	a, err := client.MergeAttempt.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mergeattempt.StatusPending, a.Status)
}

func TestAdvanceMergeAttempt_SucceededSetsCompletedAt(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestMergeAttempt(t, s)

	require.NoError(t, s.AdvanceMergeAttempt(context.Background(), id, mergeattempt.StatusSucceeded, []string{"task-a", "task-b"}))

	a, err := client.MergeAttempt.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mergeattempt.StatusSucceeded, a.Status)
	require.NotNil(t, a.CompletedAt)
	assert.Equal(t, []string{"task-a", "task-b"}, a.MergeOrder)
}

func TestAdvanceMergeAttempt_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.AdvanceMergeAttempt(context.Background(), "missing", mergeattempt.StatusDryRun, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordConflictScores(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestMergeAttempt(t, s)

	require.NoError(t, s.RecordConflictScores(context.Background(), id, map[string]int{"task-a|task-b": 3}))

	a, err := client.MergeAttempt.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, a.ConflictScores["task-a|task-b"])
}

func TestRecordConflictScores_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.RecordConflictScores(context.Background(), "missing", map[string]int{"x": 1})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAccumulateMergeCost(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestMergeAttempt(t, s)

	a, err := s.AccumulateMergeCost(context.Background(), id, 1000, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, a.LlmInvocations)
	assert.Equal(t, 1000, a.Tokens)
	assert.InDelta(t, 0.5, a.CostUSD, 0.0001)

	a, err = s.AccumulateMergeCost(context.Background(), id, 500, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 2, a.LlmInvocations)
	assert.Equal(t, 1500, a.Tokens)
	assert.InDelta(t, 0.75, a.CostUSD, 0.0001)
}

func TestAccumulateMergeCost_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.AccumulateMergeCost(context.Background(), "missing", 100, 0.1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAppendResolutionStep(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestMergeAttempt(t, s)

	require.NoError(t, s.AppendResolutionStep(context.Background(), id, map[string]interface{}{"file": "a.go", "decision": "keep-ours"}))
	require.NoError(t, s.AppendResolutionStep(context.Background(), id, map[string]interface{}{"file": "b.go", "decision": "keep-theirs"}))

	a, err := client.MergeAttempt.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, a.ResolutionLog, 2)
	assert.Equal(t, "a.go", a.ResolutionLog[0]["file"])
}

func TestAppendResolutionStep_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.AppendResolutionStep(context.Background(), "missing", map[string]interface{}{"file": "a.go"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
