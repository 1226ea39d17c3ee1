package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/store"
	testdb "github.com/forgekit/autoforge/test/database"
)

func TestHandleFailure_RetryableRequeuesToPending(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	sched := New(st, config.DefaultScoreWeights())

	ticketID := newTicket(t, client, true, false)
	taskID := newTask(t, client, ticketID, withStatus(task.StatusRunning))

	err := sched.HandleFailure(context.Background(), taskID, true, "transient error")
	require.NoError(t, err)

	reloaded, err := st.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.RetryCount)
}

func TestHandleFailure_ExhaustedRetriesTerminatesTask(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	sched := New(st, config.DefaultScoreWeights())

	ticketID := newTicket(t, client, true, false)
	taskID := newTask(t, client, ticketID, withStatus(task.StatusRunning))
	_, err := client.Task.UpdateOneID(taskID).SetRetryCount(3).SetMaxRetries(3).Save(context.Background())
	require.NoError(t, err)

	err = sched.HandleFailure(context.Background(), taskID, true, "still failing")
	require.NoError(t, err)

	reloaded, err := st.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, reloaded.Status)
}

func TestHandleFailure_NonRetryablePropagatesToDependents(t *testing.T) {
	client := testdb.NewTestClient(t)
	st := store.New(client)
	sched := New(st, config.DefaultScoreWeights())

	ticketID := newTicket(t, client, true, false)
	upstream := newTask(t, client, ticketID, withStatus(task.StatusRunning))
	downstream := newTask(t, client, ticketID, withDependencies(upstream))
	grandchild := newTask(t, client, ticketID, withDependencies(downstream))

	err := sched.HandleFailure(context.Background(), upstream, false, "fatal")
	require.NoError(t, err)

	up, err := st.GetTask(context.Background(), upstream)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, up.Status)
	assert.Equal(t, "fatal", *up.FailureReason)

	down, err := st.GetTask(context.Background(), downstream)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, down.Status)
	assert.Equal(t, "upstream_failed", *down.FailureReason)

	gc, err := st.GetTask(context.Background(), grandchild)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, gc.Status, "failure cascades transitively")
}
