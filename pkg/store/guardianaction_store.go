package store

import (
	"context"
	"fmt"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// ProposeGuardianAction records a remediation proposal before it is
// auto-executed or routed to human approval.
func (s *Store) ProposeGuardianAction(ctx context.Context, id string, actionType guardianaction.ActionType, targetAgentID string, authorityLevel int, reason, initiator string) (*ent.GuardianAction, error) {
	a, err := s.db.GuardianAction.Create().
		SetID(id).
		SetActionType(actionType).
		SetTargetAgentID(targetAgentID).
		SetAuthorityLevel(authorityLevel).
		SetReason(reason).
		SetInitiator(initiator).
		SetStatus(guardianaction.StatusProposed).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("propose guardian action: %w", err)
	}
	return a, nil
}

// TransitionGuardianAction moves an action through its approval/execution
// lifecycle (proposed -> pending_review -> approved/rejected/timed_out ->
// executed -> reverted).
func (s *Store) TransitionGuardianAction(ctx context.Context, id string, newStatus guardianaction.Status, approvedBy *string) error {
	update := s.db.GuardianAction.UpdateOneID(id).SetStatus(newStatus)
	if approvedBy != nil {
		update = update.SetApprovedBy(*approvedBy)
	}
	switch newStatus {
	case guardianaction.StatusExecuted:
		update = update.SetExecutedAt(time.Now())
	case guardianaction.StatusReverted:
		update = update.SetRevertedAt(time.Now())
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("guardian_action", id)
		}
		return fmt.Errorf("transition guardian action: %w", err)
	}
	return nil
}

// CountRecentActionsForAgent reports how many guardian actions have been
// taken against an agent since `since`, enforcing
// GuardianConfig.MaxActionsPerAgentPerHour.
func (s *Store) CountRecentActionsForAgent(ctx context.Context, agentID string, since time.Time) (int, error) {
	n, err := s.db.GuardianAction.Query().
		Where(guardianaction.TargetAgentIDEQ(agentID), guardianaction.CreatedAtGTE(since)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recent guardian actions: %w", err)
	}
	return n, nil
}

// ListPendingReview returns actions awaiting a human approval decision.
func (s *Store) ListPendingReview(ctx context.Context) ([]*ent.GuardianAction, error) {
	actions, err := s.db.GuardianAction.Query().
		Where(guardianaction.StatusEQ(guardianaction.StatusPendingReview)).
		Order(ent.Asc(guardianaction.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending-review guardian actions: %w", err)
	}
	return actions, nil
}

// ListProposed returns actions still awaiting the Guardian's
// authority-level routing decision (auto-execute vs. pending_review).
func (s *Store) ListProposed(ctx context.Context) ([]*ent.GuardianAction, error) {
	actions, err := s.db.GuardianAction.Query().
		Where(guardianaction.StatusEQ(guardianaction.StatusProposed)).
		Order(ent.Asc(guardianaction.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proposed guardian actions: %w", err)
	}
	return actions, nil
}

// GetGuardianAction fetches a guardian action by id.
func (s *Store) GetGuardianAction(ctx context.Context, id string) (*ent.GuardianAction, error) {
	a, err := s.db.GuardianAction.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("guardian_action", id)
		}
		return nil, fmt.Errorf("get guardian action: %w", err)
	}
	return a, nil
}
