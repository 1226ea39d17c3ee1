package merge

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/mergeattempt"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/store"
	testdb "github.com/forgekit/autoforge/test/database"
)

type fakeChangesetSource struct {
	base       map[string]string
	changesets map[string]BranchChangeset
}

func (f *fakeChangesetSource) MergeBase(ctx context.Context, ticketID string) (map[string]string, error) {
	return f.base, nil
}

func (f *fakeChangesetSource) BranchChangesets(ctx context.Context, sourceTaskIDs []string) ([]BranchChangeset, error) {
	out := make([]BranchChangeset, 0, len(sourceTaskIDs))
	for _, id := range sourceTaskIDs {
		out = append(out, f.changesets[id])
	}
	return out, nil
}

type fakeResolver struct {
	resolved bool
	content  string
}

func (f *fakeResolver) Resolve(ctx context.Context, conflict Conflict) (Resolution, error) {
	return Resolution{ResolvedContent: f.content, TokensUsed: 10, CostUSD: 0.01, Resolved: f.resolved}, nil
}

func TestConverge_MergesDisjointChangesWithoutResolver(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)

	ticketID := uuid.New().String()
	_, err := client.Ticket.Create().SetID(ticketID).SetTitle("t").SetDescription("d").Save(context.Background())
	require.NoError(t, err)

	parentID := uuid.New().String()
	_, err = client.Task.Create().SetID(parentID).SetTicketID(ticketID).Save(context.Background())
	require.NoError(t, err)

	child1 := uuid.New().String()
	_, err = client.Task.Create().SetID(child1).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	child2 := uuid.New().String()
	_, err = client.Task.Create().SetID(child2).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	source := &fakeChangesetSource{
		base: map[string]string{
			"a.go": "line1\nline2\nline3\n",
			"b.go": "line1\nline2\nline3\n",
		},
		changesets: map[string]BranchChangeset{
			child1: {TaskID: child1, Branch: "task/" + child1, Files: []FileChange{{Path: "a.go", Content: "CHANGED\nline2\nline3\n"}}},
			child2: {TaskID: child2, Branch: "task/" + child2, Files: []FileChange{{Path: "b.go", Content: "line1\nline2\nCHANGED\n"}}},
		},
	}

	coordinator := New(st, source, nil, config.DefaultMergeConfig())
	err = coordinator.Converge(context.Background(), parentID, ticketID)
	require.NoError(t, err)

	attempts, err := client.MergeAttempt.Query().All(context.Background())
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, mergeattempt.StatusSucceeded, attempts[0].Status)
	assert.Len(t, attempts[0].MergeOrder, 2)
}

func TestConverge_EscalatesWhenNoResolverAndConflictExists(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)

	ticketID := uuid.New().String()
	_, err := client.Ticket.Create().SetID(ticketID).SetTitle("t").SetDescription("d").Save(context.Background())
	require.NoError(t, err)

	parentID := uuid.New().String()
	_, err = client.Task.Create().SetID(parentID).SetTicketID(ticketID).Save(context.Background())
	require.NoError(t, err)

	child1 := uuid.New().String()
	_, err = client.Task.Create().SetID(child1).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	child2 := uuid.New().String()
	_, err = client.Task.Create().SetID(child2).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	source := &fakeChangesetSource{
		base: map[string]string{"a.go": "line1\nline2\nline3\n"},
		changesets: map[string]BranchChangeset{
			child1: {TaskID: child1, Branch: "task/" + child1, Files: []FileChange{{Path: "a.go", Content: "line1\nFIRST\nline3\n"}}},
			child2: {TaskID: child2, Branch: "task/" + child2, Files: []FileChange{{Path: "a.go", Content: "line1\nSECOND\nline3\n"}}},
		},
	}

	cfg := config.DefaultMergeConfig()
	cfg.ConflictScoreEscalationThreshold = 1
	coordinator := New(st, source, nil, cfg)
	err = coordinator.Converge(context.Background(), parentID, ticketID)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no resolver configured")

	attempts, err := client.MergeAttempt.Query().All(context.Background())
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, mergeattempt.StatusFailed, attempts[0].Status)
}

func TestConverge_EscalatesToHumanWhenConflictScoreExceedsThreshold(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)

	ticketID := uuid.New().String()
	_, err := client.Ticket.Create().SetID(ticketID).SetTitle("t").SetDescription("d").Save(context.Background())
	require.NoError(t, err)

	parentID := uuid.New().String()
	_, err = client.Task.Create().SetID(parentID).SetTicketID(ticketID).Save(context.Background())
	require.NoError(t, err)

	child1 := uuid.New().String()
	_, err = client.Task.Create().SetID(child1).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	child2 := uuid.New().String()
	_, err = client.Task.Create().SetID(child2).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	source := &fakeChangesetSource{
		base: map[string]string{"a.go": "line1\nline2\nline3\n"},
		changesets: map[string]BranchChangeset{
			child1: {TaskID: child1, Branch: "task/" + child1, Files: []FileChange{{Path: "a.go", Content: "line1\nFIRST\nline3\n"}}},
			child2: {TaskID: child2, Branch: "task/" + child2, Files: []FileChange{{Path: "a.go", Content: "line1\nSECOND\nline3\n"}}},
		},
	}

	cfg := config.DefaultMergeConfig()
	cfg.ConflictScoreEscalationThreshold = 0
	coordinator := New(st, source, &fakeResolver{resolved: true, content: "line1\nMERGED\nline3\n"}, cfg)
	err = coordinator.Converge(context.Background(), parentID, ticketID)
	require.Error(t, err)
	assert.ErrorContains(t, err, "escalating to human review")
}

func TestConverge_ResolvesConflictWithResolver(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)

	ticketID := uuid.New().String()
	_, err := client.Ticket.Create().SetID(ticketID).SetTitle("t").SetDescription("d").Save(context.Background())
	require.NoError(t, err)

	parentID := uuid.New().String()
	_, err = client.Task.Create().SetID(parentID).SetTicketID(ticketID).Save(context.Background())
	require.NoError(t, err)

	child1 := uuid.New().String()
	_, err = client.Task.Create().SetID(child1).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	child2 := uuid.New().String()
	_, err = client.Task.Create().SetID(child2).SetTicketID(ticketID).SetParentTaskID(parentID).SetStatus(task.StatusSucceeded).Save(context.Background())
	require.NoError(t, err)

	source := &fakeChangesetSource{
		base: map[string]string{"a.go": "line1\nline2\nline3\n"},
		changesets: map[string]BranchChangeset{
			child1: {TaskID: child1, Branch: "task/" + child1, Files: []FileChange{{Path: "a.go", Content: "line1\nFIRST\nline3\n"}}},
			child2: {TaskID: child2, Branch: "task/" + child2, Files: []FileChange{{Path: "a.go", Content: "line1\nSECOND\nline3\n"}}},
		},
	}

	cfg := config.DefaultMergeConfig()
	cfg.ConflictScoreEscalationThreshold = 1
	coordinator := New(st, source, &fakeResolver{resolved: true, content: "line1\nMERGED\nline3\n"}, cfg)
	err = coordinator.Converge(context.Background(), parentID, ticketID)
	require.NoError(t, err)

	attempts, err := client.MergeAttempt.Query().All(context.Background())
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, mergeattempt.StatusSucceeded, attempts[0].Status)
	assert.Equal(t, 1, attempts[0].LlmInvocations)
	assert.Len(t, attempts[0].ResolutionLog, 1)
}
