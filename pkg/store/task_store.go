package store

import (
	"context"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/ent/ticket"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*ent.Task, error) {
	t, err := s.db.Task.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("task", id)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListReadyTasks returns pending tasks whose dependencies have all succeeded,
// ordered by score descending — the candidate pool the scheduler scores and
// admits from. Dependency satisfaction is checked in admitted application
// code, not in this query, since task.dependencies is a JSON array.
func (s *Store) ListReadyTasks(ctx context.Context, limit int) ([]*ent.Task, error) {
	ts, err := s.db.Task.Query().
		Where(task.StatusEQ(task.StatusPending)).
		Order(ent.Desc(task.FieldScore), ent.Asc(task.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ready tasks: %w", err)
	}
	return ts, nil
}

// ClaimNextTask atomically claims the highest-scored pending task for the
// given agent using SELECT ... FOR UPDATE SKIP LOCKED, so concurrent
// scheduler workers never double-assign the same task.
func (s *Store) ClaimNextTask(ctx context.Context, agentID string, requiredCapabilities []string) (*ent.Task, error) {
	tx, err := s.db.Task.Client().Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.Task.Query().
		Where(task.StatusEQ(task.StatusPending)).
		Order(ent.Desc(task.FieldScore), ent.Asc(task.FieldCreatedAt)).
		Limit(1).
		ForUpdate(entsql.WithLockAction(entsql.SkipLocked))

	t, err := q.First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.ErrCapacityExhausted
		}
		return nil, fmt.Errorf("query claimable task: %w", err)
	}

	t, err = t.Update().
		SetStatus(task.StatusAssigned).
		SetAssignedAgentID(agentID).
		AddVersion(1).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return t, nil
}

// ClaimTaskForAgent assigns a specific pending task to a specific agent
// under an optimistic version check, used by the scheduler once it has
// picked both a task and a capability-matching IDLE agent. Returns
// apperrors.ErrVersionConflict if another scheduler pass claimed the task
// first.
func (s *Store) ClaimTaskForAgent(ctx context.Context, taskID, agentID string, expectedVersion int) (*ent.Task, error) {
	n, err := s.db.Task.Update().
		Where(task.IDEQ(taskID), task.VersionEQ(expectedVersion), task.StatusEQ(task.StatusPending)).
		SetStatus(task.StatusAssigned).
		SetAssignedAgentID(agentID).
		AddVersion(1).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim task for agent: %w", err)
	}
	if n == 0 {
		current, getErr := s.db.Task.Get(ctx, taskID)
		if getErr != nil {
			if ent.IsNotFound(getErr) {
				return nil, apperrors.NewNotFoundError("task", taskID)
			}
			return nil, fmt.Errorf("reload task after claim miss: %w", getErr)
		}
		return nil, apperrors.NewVersionConflictError("task", taskID, expectedVersion, current.Version)
	}
	return s.db.Task.Get(ctx, taskID)
}

// UpdateTaskStatusCAS transitions a task's status under an optimistic
// version check. Returns apperrors.ErrVersionConflict if expectedVersion no
// longer matches the stored row (another writer advanced it first).
func (s *Store) UpdateTaskStatusCAS(ctx context.Context, id string, expectedVersion int, newStatus task.Status, failureReason *string) (*ent.Task, error) {
	update := s.db.Task.Update().
		Where(task.IDEQ(id), task.VersionEQ(expectedVersion)).
		SetStatus(newStatus).
		AddVersion(1)
	if failureReason != nil {
		update = update.SetFailureReason(*failureReason)
	}

	n, err := update.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	if n == 0 {
		current, getErr := s.db.Task.Get(ctx, id)
		if getErr != nil {
			if ent.IsNotFound(getErr) {
				return nil, apperrors.NewNotFoundError("task", id)
			}
			return nil, fmt.Errorf("reload task after CAS miss: %w", getErr)
		}
		return nil, apperrors.NewVersionConflictError("task", id, expectedVersion, current.Version)
	}
	return s.db.Task.Get(ctx, id)
}

// AssignSandbox records the sandbox a running task is executing in.
func (s *Store) AssignSandbox(ctx context.Context, taskID, sandboxID string) error {
	err := s.db.Task.UpdateOneID(taskID).
		SetSandboxID(sandboxID).
		SetStatus(task.StatusRunning).
		AddVersion(1).
		Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("task", taskID)
		}
		return fmt.Errorf("assign sandbox: %w", err)
	}
	return nil
}

// IncrementRetry bumps a task's retry_count and returns it to pending,
// clearing its sandbox/agent assignment so the scheduler re-admits it.
func (s *Store) IncrementRetry(ctx context.Context, taskID string) (*ent.Task, error) {
	t, err := s.db.Task.Get(ctx, taskID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("task", taskID)
		}
		return nil, fmt.Errorf("get task for retry: %w", err)
	}
	t, err = t.Update().
		SetStatus(task.StatusPending).
		AddRetryCount(1).
		AddVersion(1).
		ClearSandboxID().
		ClearAssignedAgentID().
		ClearConversationID().
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("increment retry: %w", err)
	}
	return t, nil
}

// RegisterConversation binds the coding-agent conversation id a sandbox
// worker opened for a task, the POST /conversations/register handler's
// persistence (§6.1). taskID and sandboxID are cross-checked against the
// row so a register call can't attach to the wrong task after a retry
// reassigned the sandbox.
func (s *Store) RegisterConversation(ctx context.Context, taskID, sandboxID, conversationID string) error {
	n, err := s.db.Task.Update().
		Where(task.IDEQ(taskID), task.SandboxIDEQ(sandboxID)).
		SetConversationID(conversationID).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("register conversation: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("task", taskID)
	}
	return nil
}

// ListByTicket returns all tasks belonging to a ticket, in creation order.
func (s *Store) ListTasksByTicket(ctx context.Context, ticketID string) ([]*ent.Task, error) {
	ts, err := s.db.Task.Query().
		Where(task.TicketIDEQ(ticketID)).
		Order(ent.Asc(task.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks by ticket: %w", err)
	}
	return ts, nil
}

// CountRunningForAgent reports how many tasks an agent is currently
// executing, used by the scheduler to respect AgentTemplateConfig.Capacity.
func (s *Store) CountRunningForAgent(ctx context.Context, agentID string) (int, error) {
	n, err := s.db.Task.Query().
		Where(task.AssignedAgentIDEQ(agentID), task.StatusEQ(task.StatusRunning)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count running tasks for agent: %w", err)
	}
	return n, nil
}

// CountDownstreamBlocked counts non-terminal tasks whose dependencies list
// includes taskID — the scheduler's downstream_blocked_count scoring input.
// dependencies is an unindexed JSON array, so membership is checked in
// application code against the small non-terminal working set rather than
// in SQL, mirroring ListIdleAgents' capability-matching note.
func (s *Store) CountDownstreamBlocked(ctx context.Context, taskID string) (int, error) {
	candidates, err := s.db.Task.Query().
		Where(task.StatusIn(task.StatusPending, task.StatusAssigned)).
		All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list candidate downstream tasks: %w", err)
	}
	count := 0
	for _, c := range candidates {
		for _, dep := range c.Dependencies {
			if dep == taskID {
				count++
				break
			}
		}
	}
	return count, nil
}

// ListSiblingTasks returns every task sharing parentTaskID, the convergence
// check's input for deciding when to emit merge_required.
func (s *Store) ListSiblingTasks(ctx context.Context, parentTaskID string) ([]*ent.Task, error) {
	ts, err := s.db.Task.Query().
		Where(task.ParentTaskIDEQ(parentTaskID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sibling tasks: %w", err)
	}
	return ts, nil
}

// ListDependents returns non-terminal tasks whose dependencies list includes
// taskID, the scheduler's failure-cascade input.
func (s *Store) ListDependents(ctx context.Context, taskID string) ([]*ent.Task, error) {
	candidates, err := s.db.Task.Query().
		Where(task.StatusIn(task.StatusPending, task.StatusAssigned)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dependent candidates: %w", err)
	}
	var dependents []*ent.Task
	for _, c := range candidates {
		for _, dep := range c.Dependencies {
			if dep == taskID {
				dependents = append(dependents, c)
				break
			}
		}
	}
	return dependents, nil
}

// ListRunningTasksForScope returns the running tasks the Guardian's
// cost-pressure intervention should pause for a budget scope: the task
// itself for task scope, an agent's running tasks for agent scope, or
// every running task under a project's tickets for project scope. Account
// scope has no task-level membership and always returns empty — the
// accountant meters it, but pausing has nothing concrete to act on.
func (s *Store) ListRunningTasksForScope(ctx context.Context, scopeType budget.ScopeType, scopeID string) ([]*ent.Task, error) {
	switch scopeType {
	case budget.ScopeTypeTask:
		t, err := s.GetTask(ctx, scopeID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if t.Status != task.StatusRunning {
			return nil, nil
		}
		return []*ent.Task{t}, nil
	case budget.ScopeTypeAgent:
		ts, err := s.db.Task.Query().
			Where(task.StatusEQ(task.StatusRunning), task.AssignedAgentIDEQ(scopeID)).
			All(ctx)
		if err != nil {
			return nil, fmt.Errorf("list running tasks for agent scope: %w", err)
		}
		return ts, nil
	case budget.ScopeTypeProject:
		ticketIDs, err := s.db.Ticket.Query().
			Where(ticket.ProjectIDEQ(scopeID)).
			IDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tickets for project scope: %w", err)
		}
		if len(ticketIDs) == 0 {
			return nil, nil
		}
		ts, err := s.db.Task.Query().
			Where(task.StatusEQ(task.StatusRunning), task.TicketIDIn(ticketIDs...)).
			All(ctx)
		if err != nil {
			return nil, fmt.Errorf("list running tasks for project scope: %w", err)
		}
		return ts, nil
	default:
		return nil, nil
	}
}

// TouchScore recomputes and persists a task's score without bumping version,
// since scoring is advisory and not part of the state machine's invariants.
func (s *Store) TouchScore(ctx context.Context, taskID string, score float64) error {
	err := s.db.Task.UpdateOneID(taskID).SetScore(score).Exec(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("task", taskID)
		}
		return fmt.Errorf("touch score: %w", err)
	}
	return nil
}
