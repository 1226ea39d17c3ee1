package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent/agent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/ent/ticket"
	"github.com/forgekit/autoforge/pkg/database"
)

func newTicket(t *testing.T, client *database.Client, approved bool, blocked bool) string {
	t.Helper()
	id := uuid.New().String()
	approval := ticket.ApprovalStatusPending
	if approved {
		approval = ticket.ApprovalStatusApproved
	}
	_, err := client.Ticket.Create().
		SetID(id).
		SetTitle("test ticket").
		SetDescription("fixture").
		SetApprovalStatus(approval).
		SetIsBlocked(blocked).
		Save(context.Background())
	require.NoError(t, err)
	return id
}

func newAgentWithCapabilities(t *testing.T, client *database.Client, caps []string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := client.Agent.Create().
		SetID(id).
		SetName("worker-" + id[:8]).
		SetAgentType("coding-agent").
		SetStatus(agent.StatusIDLE).
		SetCapabilities(caps).
		Save(context.Background())
	require.NoError(t, err)
	return id
}

type taskOpt func(*taskOpts)

type taskOpts struct {
	status       task.Status
	capabilities []string
	dependencies []string
	parentID     *string
	priority     float64
	ownedFiles   []string
}

func withCapabilities(caps ...string) taskOpt {
	return func(o *taskOpts) { o.capabilities = caps }
}

func withDependencies(deps ...string) taskOpt {
	return func(o *taskOpts) { o.dependencies = deps }
}

func withParent(id string) taskOpt {
	return func(o *taskOpts) { o.parentID = &id }
}

func withStatus(s task.Status) taskOpt {
	return func(o *taskOpts) { o.status = s }
}

func withOwnedFiles(patterns ...string) taskOpt {
	return func(o *taskOpts) { o.ownedFiles = patterns }
}

func newTask(t *testing.T, client *database.Client, ticketID string, opts ...taskOpt) string {
	t.Helper()
	o := taskOpts{status: task.StatusPending}
	for _, apply := range opts {
		apply(&o)
	}
	id := uuid.New().String()
	create := client.Task.Create().
		SetID(id).
		SetTicketID(ticketID).
		SetStatus(o.status).
		SetRequiredCapabilities(o.capabilities).
		SetDependencies(o.dependencies).
		SetOwnedFiles(o.ownedFiles)
	if o.parentID != nil {
		create = create.SetParentTaskID(*o.parentID)
	}
	_, err := create.Save(context.Background())
	require.NoError(t, err)
	return id
}

func newBudget(t *testing.T, client *database.Client, scopeType budget.ScopeType, scopeID string, limit, spent, reserved float64) {
	t.Helper()
	_, err := client.Budget.Create().
		SetID(uuid.New().String()).
		SetScopeType(scopeType).
		SetScopeID(scopeID).
		SetLimitUSD(limit).
		SetSpentUSD(spent).
		SetReservedUSD(reserved).
		Save(context.Background())
	require.NoError(t, err)
}
