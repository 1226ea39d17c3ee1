package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/mergeattempt"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// CreateMergeAttempt opens a new convergence attempt for a ticket's sibling
// tasks.
func (s *Store) CreateMergeAttempt(ctx context.Context, id, taskID, ticketID, targetBranch string, sourceTaskIDs, incomingBranches []string) (*ent.MergeAttempt, error) {
	a, err := s.db.MergeAttempt.Create().
		SetID(id).
		SetTaskID(taskID).
		SetTicketID(ticketID).
		SetTargetBranch(targetBranch).
		SetSourceTaskIDs(sourceTaskIDs).
		SetIncomingBranches(incomingBranches).
		SetStatus(mergeattempt.StatusPending).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("create merge attempt: %w", err)
	}
	return a, nil
}

// AdvanceMergeAttempt moves an attempt through pending -> dry_run ->
// merging -> succeeded/failed, optionally recording the merge order once
// the conflict graph has been topologically sorted.
func (s *Store) AdvanceMergeAttempt(ctx context.Context, id string, status mergeattempt.Status, mergeOrder []string) error {
	update := s.db.MergeAttempt.UpdateOneID(id).SetStatus(status)
	if mergeOrder != nil {
		update = update.SetMergeOrder(mergeOrder)
	}
	if status == mergeattempt.StatusSucceeded || status == mergeattempt.StatusFailed {
		update = update.SetCompletedAt(time.Now())
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("merge_attempt", id)
		}
		return fmt.Errorf("advance merge attempt: %w", err)
	}
	return nil
}

// RecordConflictScores stores the pairwise conflict-likelihood scores used
// to decide merge order and whether escalation is required.
func (s *Store) RecordConflictScores(ctx context.Context, id string, scores map[string]int) error {
	if err := s.db.MergeAttempt.UpdateOneID(id).SetConflictScores(scores).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("merge_attempt", id)
		}
		return fmt.Errorf("record conflict scores: %w", err)
	}
	return nil
}

// AccumulateMergeCost adds an LLM invocation's token/cost usage to a merge
// attempt's running totals, enforcing MergeConfig's per-attempt caps.
func (s *Store) AccumulateMergeCost(ctx context.Context, id string, tokens int, costUSD float64) (*ent.MergeAttempt, error) {
	a, err := s.db.MergeAttempt.UpdateOneID(id).
		AddLlmInvocations(1).
		AddTokens(tokens).
		AddCostUSD(costUSD).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("merge_attempt", id)
		}
		return nil, fmt.Errorf("accumulate merge cost: %w", err)
	}
	return a, nil
}

// AppendResolutionStep appends one entry to a merge attempt's
// resolution_log, recording what the conflict-resolution agent decided for
// one conflicting hunk.
func (s *Store) AppendResolutionStep(ctx context.Context, id string, step map[string]interface{}) error {
	a, err := s.db.MergeAttempt.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("merge_attempt", id)
		}
		return fmt.Errorf("get merge attempt: %w", err)
	}
	log := append(a.ResolutionLog, step)
	if err := a.Update().SetResolutionLog(log).Exec(ctx); err != nil {
		return fmt.Errorf("append resolution step: %w", err)
	}
	return nil
}
