package scheduler

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent/task"
)

// upstreamFailedReason is the fixed failure_reason a downstream task gets
// when a task it depends on terminally fails.
const upstreamFailedReason = "upstream_failed"

// HandleFailure applies the failure semantics of §4.4: a retryable failure
// under max_retries returns the task to pending; otherwise the task becomes
// terminal failed and the failure cascades to every non-terminal task that
// depends on it.
func (s *Scheduler) HandleFailure(ctx context.Context, taskID string, retryable bool, reason string) error {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load failing task: %w", err)
	}

	if retryable && t.RetryCount < t.MaxRetries {
		if _, err := s.store.IncrementRetry(ctx, taskID); err != nil {
			return fmt.Errorf("requeue task for retry: %w", err)
		}
		return nil
	}

	if _, err := s.store.UpdateTaskStatusCAS(ctx, taskID, t.Version, task.StatusFailed, &reason); err != nil {
		return fmt.Errorf("mark task terminally failed: %w", err)
	}
	return s.propagateFailure(ctx, taskID)
}

// propagateFailure marks every non-terminal task that lists taskID among
// its dependencies as failed(upstream_failed), cascading transitively.
func (s *Scheduler) propagateFailure(ctx context.Context, taskID string) error {
	downstream, err := s.store.ListDependents(ctx, taskID)
	if err != nil {
		return err
	}
	reason := upstreamFailedReason
	for _, dep := range downstream {
		if _, err := s.store.UpdateTaskStatusCAS(ctx, dep.ID, dep.Version, task.StatusFailed, &reason); err != nil {
			return fmt.Errorf("propagate upstream failure to %s: %w", dep.ID, err)
		}
		if err := s.propagateFailure(ctx, dep.ID); err != nil {
			return err
		}
	}
	return nil
}
