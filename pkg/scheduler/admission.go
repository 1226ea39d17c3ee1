package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/ent/task"
	"github.com/forgekit/autoforge/ent/ticket"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// admission is the outcome of evaluating one candidate task: either it may
// run now against a specific idle agent, or it is skipped this cycle with a
// reason recorded for observability.
type admission struct {
	ok      bool
	agentID string
	reason  string
}

// evaluate runs the four admission checks of §4.4 in order, short-circuiting
// on the first failure: (a) all blocked_by succeeded, (b) required
// capabilities satisfied by an IDLE agent, (c) budget scope remaining > 0,
// (d) the owning ticket is unblocked and approved.
func (s *Scheduler) evaluate(ctx context.Context, t *ent.Task) (admission, error) {
	for _, depID := range t.Dependencies {
		dep, err := s.store.GetTask(ctx, depID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return admission{reason: fmt.Sprintf("dependency %s not found", depID)}, nil
			}
			return admission{}, fmt.Errorf("check dependency %s: %w", depID, err)
		}
		if dep.Status != task.StatusSucceeded {
			return admission{reason: fmt.Sprintf("dependency %s not succeeded (status=%s)", depID, dep.Status)}, nil
		}
	}

	disjoint, reason, err := s.ownedFilesDisjointFromRunningSiblings(ctx, t)
	if err != nil {
		return admission{}, fmt.Errorf("check owned_files disjointness: %w", err)
	}
	if !disjoint {
		return admission{reason: reason}, nil
	}

	agentID, ok, err := s.pickIdleAgent(ctx, t.RequiredCapabilities)
	if err != nil {
		return admission{}, fmt.Errorf("match idle agent: %w", err)
	}
	if !ok {
		return admission{reason: "no IDLE agent satisfies required_capabilities"}, nil
	}

	hasRemaining, err := s.budgetHasRemaining(ctx, t)
	if err != nil {
		return admission{}, fmt.Errorf("check budget: %w", err)
	}
	if !hasRemaining {
		return admission{reason: "budget scope exhausted"}, nil
	}

	tk, err := s.store.GetTicket(ctx, t.TicketID)
	if err != nil {
		return admission{}, fmt.Errorf("load owning ticket: %w", err)
	}
	if tk.IsBlocked {
		return admission{reason: "ticket is_blocked"}, nil
	}
	if tk.ApprovalStatus != ticket.ApprovalStatusApproved {
		return admission{reason: "ticket not approved"}, nil
	}

	return admission{ok: true, agentID: agentID}, nil
}

// ownedFilesDisjointFromRunningSiblings enforces invariant 7 / property 4:
// owned_files of two concurrently-running siblings of the same parent task
// must be pairwise disjoint at task start. A task with no parent or no
// owned_files has nothing to conflict over. This checks pattern overlap
// syntactically rather than expanding globs against the actual workspace
// tree — the scheduler has no filesystem access, and a sibling's workspace
// snapshot may not exist yet at admission time.
func (s *Scheduler) ownedFilesDisjointFromRunningSiblings(ctx context.Context, t *ent.Task) (bool, string, error) {
	if t.ParentTaskID == nil || len(t.OwnedFiles) == 0 {
		return true, "", nil
	}

	siblings, err := s.store.ListSiblingTasks(ctx, *t.ParentTaskID)
	if err != nil {
		return false, "", fmt.Errorf("list sibling tasks: %w", err)
	}

	for _, sib := range siblings {
		if sib.ID == t.ID || sib.Status != task.StatusRunning {
			continue
		}
		if pattern, overlap := ownedFilesOverlap(t.OwnedFiles, sib.OwnedFiles); overlap {
			return false, fmt.Sprintf("owned_files %q conflicts with running sibling %s", pattern, sib.ID), nil
		}
	}
	return true, "", nil
}

// ownedFilesOverlap reports whether any pattern in a could match the same
// path as any pattern in b, checking literal equality and glob matching in
// both directions (one pattern may be a literal path the other's glob
// would expand to match).
func ownedFilesOverlap(a, b []string) (string, bool) {
	for _, pa := range a {
		for _, pb := range b {
			if pa == pb {
				return pa, true
			}
			if ok, _ := filepath.Match(pa, pb); ok {
				return pa, true
			}
			if ok, _ := filepath.Match(pb, pa); ok {
				return pa, true
			}
		}
	}
	return "", false
}

// pickIdleAgent returns the first IDLE agent whose capabilities are a
// superset of required, or ok=false if none qualifies.
func (s *Scheduler) pickIdleAgent(ctx context.Context, required []string) (string, bool, error) {
	agents, err := s.store.ListIdleAgents(ctx)
	if err != nil {
		return "", false, err
	}
	for _, a := range agents {
		if hasAllCapabilities(a.Capabilities, required) {
			return a.ID, true, nil
		}
	}
	return "", false, nil
}

func hasAllCapabilities(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// budgetHasRemaining checks the task-scoped budget first, falling back to
// the ticket's project scope. A task with no budget configured at either
// scope is treated as unconstrained (admitted).
func (s *Scheduler) budgetHasRemaining(ctx context.Context, t *ent.Task) (bool, error) {
	b, err := s.store.GetBudget(ctx, budget.ScopeTypeTask, t.ID)
	if err == nil {
		return remaining(b) > 0, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return false, err
	}

	tk, err := s.store.GetTicket(ctx, t.TicketID)
	if err != nil {
		return false, err
	}
	if tk.ProjectID == nil {
		return true, nil
	}
	b, err = s.store.GetBudget(ctx, budget.ScopeTypeProject, *tk.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return remaining(b) > 0, nil
}

func remaining(b *ent.Budget) float64 {
	return b.LimitUSD - (b.SpentUSD + b.ReservedUSD)
}
