package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/spec"
	"github.com/forgekit/autoforge/pkg/apperrors"
	testdb "github.com/forgekit/autoforge/test/database"
)

func newStoreTestSpec(t *testing.T, s *Store, shareToken string) string {
	t.Helper()
	id := uuid.New().String()
	create := s.db.Spec.Create().
		SetID(id).
		SetTitle("test spec").
		SetDescription("fixture")
	if shareToken != "" {
		create = create.SetShareToken(shareToken)
	}
	_, err := create.Save(context.Background())
	require.NoError(t, err)
	return id
}

func TestGetSpec_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.GetSpec(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetSpecByShareToken(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestSpec(t, s, "tok-123")

	sp, err := s.GetSpecByShareToken(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, id, sp.ID)
}

func TestGetSpecByShareToken_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.GetSpecByShareToken(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAdvancePhase(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestSpec(t, s, "")

	require.NoError(t, s.AdvancePhase(context.Background(), id, spec.CurrentPhaseRequirements, map[string]interface{}{"explore": "summary"}))

	sp, err := s.GetSpec(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, spec.CurrentPhaseRequirements, sp.CurrentPhase)
	assert.Equal(t, "summary", sp.PhaseData["explore"])
	require.NotNil(t, sp.LastCheckpointAt)
}

func TestAdvancePhase_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.AdvancePhase(context.Background(), "missing", spec.CurrentPhaseDesign, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordPhaseFailure_IncrementsCounter(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestSpec(t, s, "")

	n, err := s.RecordPhaseFailure(context.Background(), id, "design", "evaluator rejected output")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RecordPhaseFailure(context.Background(), id, "design", "evaluator rejected output again")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sp, err := s.GetSpec(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "evaluator rejected output again", *sp.LastError)
}

func TestRecordPhaseFailure_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	_, err := s.RecordPhaseFailure(context.Background(), "missing", "design", "err")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordSyncSummary_MergesPhaseDataAndStoresTranscript(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestSpec(t, s, "")
	require.NoError(t, s.AdvancePhase(context.Background(), id, spec.CurrentPhaseTasks, map[string]interface{}{"design": "plan"}))

	require.NoError(t, s.RecordSyncSummary(context.Background(), id, "tasks", map[string]interface{}{"tasks": "list"}, "dGVzdA=="))

	sp, err := s.GetSpec(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "plan", sp.PhaseData["design"])
	assert.Equal(t, "list", sp.PhaseData["tasks"])
	assert.Equal(t, "dGVzdA==", sp.SessionTranscripts["tasks"])
}

func TestArchiveSpec(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestSpec(t, s, "")

	require.NoError(t, s.ArchiveSpec(context.Background(), id))
	sp, err := s.GetSpec(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sp.Archived)
}

func TestArchiveSpec_NotFound(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)

	err := s.ArchiveSpec(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListArchivableSpecs(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := newStoreTestSpec(t, s, "")
	_, err := client.Spec.UpdateOneID(id).
		SetCurrentPhase(spec.CurrentPhaseComplete).
		SetUpdatedAt(time.Now().Add(-72 * time.Hour)).
		Save(context.Background())
	require.NoError(t, err)
	newStoreTestSpec(t, s, "") // still in-progress, not archivable

	specs, err := s.ListArchivableSpecs(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, id, specs[0].ID)
}

func TestSearchSpecs(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := New(client)
	id := uuid.New().String()
	_, err := client.Spec.Create().
		SetID(id).
		SetTitle("Billing reconciliation agent").
		SetDescription("unrelated").
		Save(context.Background())
	require.NoError(t, err)

	results, err := s.SearchSpecs(context.Background(), "billing reconciliation", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)

	none, err := s.SearchSpecs(context.Background(), "nonexistent phrase xyz", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
