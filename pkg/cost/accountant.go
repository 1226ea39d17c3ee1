package cost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/budget"
	"github.com/forgekit/autoforge/pkg/apperrors"
	"github.com/forgekit/autoforge/pkg/slack"
	"github.com/forgekit/autoforge/pkg/store"
)

// PressureHandler receives a cost_pressure trigger when a budget scope
// crosses its limit so running work in that scope can be paused. Satisfied
// structurally by *guardian.Guardian — no import dependency on the
// guardian package is needed since Go interfaces are structural.
type PressureHandler interface {
	HandleCostPressure(ctx context.Context, scopeType budget.ScopeType, scopeID, reason string) error
}

// Accountant is the Cost Accountant (C10): it reserves against every
// enclosing budget scope before an LLM call, settles the actual cost
// afterward, and raises alerts/cost-pressure as scopes approach or cross
// their limit.
type Accountant struct {
	store    *store.Store
	notifier *slack.Service
	pressure PressureHandler
}

// New creates an Accountant backed by st. notifier and pressure may be nil.
func New(st *store.Store, notifier *slack.Service, pressure PressureHandler) *Accountant {
	return &Accountant{store: st, notifier: notifier, pressure: pressure}
}

// PreCall reserves estimateUSD against every enclosing budget scope for t,
// per §4.10's "pre-call reservation equal to the upper estimate" rule. If
// any scope's reservation fails (apperrors.ErrBudgetExceeded or otherwise),
// every reservation already taken in this call is released before the
// error is returned — scopes are not a single database transaction, so
// this is a compensating rollback, not atomic isolation.
func (a *Accountant) PreCall(ctx context.Context, t *ent.Task, estimateUSD float64) ([]*ent.Budget, error) {
	scopes, err := a.EnclosingScopes(ctx, t)
	if err != nil {
		return nil, err
	}

	var reserved []*ent.Budget
	for _, scope := range scopes {
		b, err := a.reserveScope(ctx, scope, estimateUSD)
		if err != nil {
			a.releaseAll(ctx, reserved, estimateUSD)
			return nil, err
		}
		if b != nil {
			reserved = append(reserved, b)
		}
	}
	return reserved, nil
}

// reserveScope reserves against scope's budget if one is configured.
// A scope with no budget row is unconstrained and is simply skipped.
func (a *Accountant) reserveScope(ctx context.Context, scope ScopeRef, estimateUSD float64) (*ent.Budget, error) {
	existing, err := a.store.GetBudget(ctx, scope.Type, scope.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load budget for scope %s/%s: %w", scope.Type, scope.ID, err)
	}
	b, err := a.store.Reserve(ctx, existing.ID, estimateUSD)
	if err != nil {
		return nil, fmt.Errorf("reserve %.4f against %s/%s: %w", estimateUSD, scope.Type, scope.ID, err)
	}
	return b, nil
}

func (a *Accountant) releaseAll(ctx context.Context, reserved []*ent.Budget, estimateUSD float64) {
	for _, b := range reserved {
		if _, err := a.store.Settle(ctx, b.ID, estimateUSD, 0); err != nil {
			slog.Error("release compensating budget reservation failed", "budget_id", b.ID, "error", err)
		}
	}
}

// PostCall settles the call's actual cost (promptCostUSD+completionCostUSD)
// against every budget PreCall reserved, records the immutable CostRecord,
// and raises an alert or cost-pressure intervention for any scope that
// crossed its alert_threshold or limit.
func (a *Accountant) PostCall(ctx context.Context, reserved []*ent.Budget, estimateUSD float64, in store.CostRecordInput) (*ent.CostRecord, error) {
	actualUSD := in.PromptCostUSD + in.CompletionCostUSD

	for _, b := range reserved {
		settled, err := a.store.Settle(ctx, b.ID, estimateUSD, actualUSD)
		if err != nil {
			slog.Error("settle budget reservation failed", "budget_id", b.ID, "error", err)
			continue
		}
		a.checkThreshold(ctx, settled)
	}

	if in.BillingAccountID != nil {
		a.checkAccountSpend(ctx, *in.BillingAccountID)
	}

	record, err := a.store.RecordCost(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("record cost: %w", err)
	}
	return record, nil
}

// checkThreshold compares a settled budget's (spent+reserved)/limit ratio
// against alert_threshold and 1.0, notifying and — on a crossed limit —
// triggering the Guardian's cost-pressure pause.
func (a *Accountant) checkThreshold(ctx context.Context, b *ent.Budget) {
	used := b.SpentUSD + b.ReservedUSD
	if b.LimitUSD <= 0 {
		return
	}
	ratio := used / b.LimitUSD

	switch {
	case ratio >= 1:
		a.notifyBudget(ctx, b, true)
		if a.pressure != nil {
			reason := fmt.Sprintf("budget %s/%s exceeded: spent+reserved=%.2f limit=%.2f", b.ScopeType, b.ScopeID, used, b.LimitUSD)
			if err := a.pressure.HandleCostPressure(ctx, b.ScopeType, b.ScopeID, reason); err != nil {
				slog.Error("cost-pressure handling failed", "scope_type", b.ScopeType, "scope_id", b.ScopeID, "error", err)
			}
		}
	case ratio >= b.AlertThreshold:
		a.notifyBudget(ctx, b, false)
	}
}

// checkAccountSpend alerts on account-scope budgets from actual spend
// alone, since account scope is never pre-reserved at call time (see
// EnclosingScopes).
func (a *Accountant) checkAccountSpend(ctx context.Context, accountID string) {
	b, err := a.store.GetBudget(ctx, budget.ScopeTypeAccount, accountID)
	if err != nil {
		return
	}
	spent, err := a.store.SumCostByBillingAccount(ctx, accountID, time.Time{})
	if err != nil {
		slog.Error("sum billing account spend failed", "account_id", accountID, "error", err)
		return
	}
	if b.LimitUSD <= 0 {
		return
	}
	ratio := spent / b.LimitUSD
	switch {
	case ratio >= 1:
		a.notifyBudget(ctx, b, true)
		if a.pressure != nil {
			reason := fmt.Sprintf("account budget %s exceeded: spent=%.2f limit=%.2f", accountID, spent, b.LimitUSD)
			if err := a.pressure.HandleCostPressure(ctx, budget.ScopeTypeAccount, accountID, reason); err != nil {
				slog.Error("account cost-pressure handling failed", "account_id", accountID, "error", err)
			}
		}
	case ratio >= b.AlertThreshold:
		a.notifyBudget(ctx, b, false)
	}
}

func (a *Accountant) notifyBudget(ctx context.Context, b *ent.Budget, exceeded bool) {
	if a.notifier == nil {
		return
	}
	a.notifier.NotifyBudgetAlert(ctx, slack.BudgetAlertInput{
		ScopeType:   string(b.ScopeType),
		ScopeID:     b.ScopeID,
		SpentUSD:    b.SpentUSD,
		ReservedUSD: b.ReservedUSD,
		LimitUSD:    b.LimitUSD,
		Exceeded:    exceeded,
		Fingerprint: b.ID,
	})
}
