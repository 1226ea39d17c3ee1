package store

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// GetBudget fetches the budget row for a scope.
func (s *Store) GetBudget(ctx context.Context, scopeType budget.ScopeType, scopeID string) (*ent.Budget, error) {
	b, err := s.db.Budget.Query().
		Where(budget.ScopeTypeEQ(scopeType), budget.ScopeIDEQ(scopeID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("budget", string(scopeType)+"/"+scopeID)
		}
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// Reserve atomically adds amountUSD to a budget's reserved_usd, retrying
// the optimistic version check against concurrent cost-accountant callers,
// and fails with apperrors.ErrBudgetExceeded if the reservation would push
// spent+reserved past limit_usd.
func (s *Store) Reserve(ctx context.Context, budgetID string, amountUSD float64) (*ent.Budget, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		b, err := s.db.Budget.Get(ctx, budgetID)
		if err != nil {
			if ent.IsNotFound(err) {
				return nil, apperrors.NewNotFoundError("budget", budgetID)
			}
			return nil, fmt.Errorf("get budget for reservation: %w", err)
		}
		if b.SpentUSD+b.ReservedUSD+amountUSD > b.LimitUSD {
			return nil, apperrors.ErrBudgetExceeded
		}

		n, err := s.db.Budget.Update().
			Where(budget.IDEQ(budgetID), budget.VersionEQ(b.Version)).
			SetReservedUSD(b.ReservedUSD + amountUSD).
			AddVersion(1).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("reserve budget: %w", err)
		}
		if n == 1 {
			return s.db.Budget.Get(ctx, budgetID)
		}
		// Lost the race to a concurrent reservation/settlement; retry.
	}
	return nil, apperrors.NewVersionConflictError("budget", budgetID, 0, 0)
}

// Settle converts a prior reservation into actual spend: subtracts
// reservedUSD from reserved_usd and adds actualUSD to spent_usd, retrying
// on version conflict like Reserve.
func (s *Store) Settle(ctx context.Context, budgetID string, reservedUSD, actualUSD float64) (*ent.Budget, error) {
	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		b, err := s.db.Budget.Get(ctx, budgetID)
		if err != nil {
			if ent.IsNotFound(err) {
				return nil, apperrors.NewNotFoundError("budget", budgetID)
			}
			return nil, fmt.Errorf("get budget for settlement: %w", err)
		}

		newReserved := b.ReservedUSD - reservedUSD
		if newReserved < 0 {
			newReserved = 0
		}

		n, err := s.db.Budget.Update().
			Where(budget.IDEQ(budgetID), budget.VersionEQ(b.Version)).
			SetReservedUSD(newReserved).
			SetSpentUSD(b.SpentUSD + actualUSD).
			AddVersion(1).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("settle budget: %w", err)
		}
		if n == 1 {
			return s.db.Budget.Get(ctx, budgetID)
		}
	}
	return nil, apperrors.NewVersionConflictError("budget", budgetID, 0, 0)
}

// IsOverAlertThreshold reports whether a budget's spend fraction has
// crossed its alert_threshold, used to trigger a Slack notification.
func IsOverAlertThreshold(b *ent.Budget) bool {
	if b.LimitUSD <= 0 {
		return false
	}
	return (b.SpentUSD+b.ReservedUSD)/b.LimitUSD >= b.AlertThreshold
}
