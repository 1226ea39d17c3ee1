package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/pkg/eventbus"
)

// CheckConvergence is called after a task transitions to succeeded. If
// every sibling sharing its parent_task_id has also reached succeeded, it
// publishes a merge_required event for the ticket's convergence task so the
// Merge Coordinator (§4.9) can take over. No-op for tasks without a parent
// or when a sibling has not yet finished.
func (s *Scheduler) CheckConvergence(ctx context.Context, bus *eventbus.Bus, t *ent.Task) error {
	if t.ParentTaskID == nil {
		return nil
	}
	siblings, err := s.store.ListSiblingTasks(ctx, *t.ParentTaskID)
	if err != nil {
		return fmt.Errorf("list siblings for convergence check: %w", err)
	}
	for _, sib := range siblings {
		if sib.Status != task.StatusSucceeded {
			return nil
		}
	}
	if bus == nil {
		return nil
	}
	return bus.Publish(eventbus.Envelope{
		EventType:  "merge_required",
		EntityType: "task",
		EntityID:   *t.ParentTaskID,
		Payload: map[string]interface{}{
			"parent_task_id": *t.ParentTaskID,
			"ticket_id":      t.TicketID,
		},
		At: time.Now(),
	})
}
