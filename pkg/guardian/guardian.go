package guardian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/guardianaction"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/masking"
	"github.com/forgekit/autoforge/pkg/slack"
	"github.com/forgekit/autoforge/pkg/store"
)

// ErrRateLimited indicates a target agent has already received
// cfg.MaxActionsPerAgentPerHour Guardian actions in the trailing hour.
var ErrRateLimited = errors.New("guardian: agent exceeded max actions per hour")

// Guardian is the Guardian/Watchdog (C8): it routes proposed remediation
// actions through a policy authority check, auto-executing what it is
// trusted to and deferring the rest to human approval, and runs the
// cost-pressure intervention on behalf of the Cost Accountant (C10).
type Guardian struct {
	store     *store.Store
	cfg       *config.GuardianConfig
	notifier  *slack.Service
	restarter SandboxRestarter
	masker    *masking.Service
}

// New creates a Guardian backed by st, applying cfg's authority policy.
// notifier and restarter may be nil: notifications and sandbox restarts are
// then simply skipped rather than failing the action. masker may be nil, in
// which case notifications carry the raw, unmasked reason text.
func New(st *store.Store, cfg *config.GuardianConfig, notifier *slack.Service, restarter SandboxRestarter, masker *masking.Service) *Guardian {
	if cfg == nil {
		cfg = config.DefaultGuardianConfig()
	}
	return &Guardian{store: st, cfg: cfg, notifier: notifier, restarter: restarter, masker: masker}
}

// Propose records a new remediation action at the appropriate authority
// level. Rate-limited per agent to prevent oscillation (nudge -> restart ->
// nudge ...).
func (g *Guardian) Propose(ctx context.Context, actionType guardianaction.ActionType, targetAgentID, reason, initiator string) (*ent.GuardianAction, error) {
	count, err := g.store.CountRecentActionsForAgent(ctx, targetAgentID, time.Now().Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("check guardian action rate limit: %w", err)
	}
	if count >= g.cfg.MaxActionsPerAgentPerHour {
		return nil, ErrRateLimited
	}

	authority := authorityFor(actionType)
	action, err := g.store.ProposeGuardianAction(ctx, uuid.NewString(), actionType, targetAgentID, int(authority), reason, initiator)
	if err != nil {
		return nil, fmt.Errorf("propose guardian action: %w", err)
	}
	return action, nil
}

// ProcessProposed routes every action still in "proposed" through the
// authority check: at or below auto_authority it executes immediately,
// above it the action moves to pending_review and a Slack notification is
// sent. Intended to run on a short poll interval.
func (g *Guardian) ProcessProposed(ctx context.Context) error {
	proposed, err := g.store.ListProposed(ctx)
	if err != nil {
		return fmt.Errorf("list proposed guardian actions: %w", err)
	}
	for _, action := range proposed {
		if config.AuthorityLevel(action.AuthorityLevel) <= g.cfg.AutoAuthority {
			if err := g.Execute(ctx, action); err != nil {
				slog.Error("auto-execute guardian action failed", "action_id", action.ID, "error", err)
			}
			continue
		}
		if err := g.store.TransitionGuardianAction(ctx, action.ID, guardianaction.StatusPendingReview, nil); err != nil {
			slog.Error("move guardian action to pending_review failed", "action_id", action.ID, "error", err)
			continue
		}
		g.notify(ctx, action, string(guardianaction.StatusPendingReview), "")
	}
	return nil
}

// Approve records a human (or higher-trust policy) approval and executes
// the action.
func (g *Guardian) Approve(ctx context.Context, actionID, approvedBy string) error {
	if err := g.store.TransitionGuardianAction(ctx, actionID, guardianaction.StatusApproved, &approvedBy); err != nil {
		return fmt.Errorf("approve guardian action: %w", err)
	}
	action, err := g.store.GetGuardianAction(ctx, actionID)
	if err != nil {
		return fmt.Errorf("reload approved guardian action: %w", err)
	}
	return g.Execute(ctx, action)
}

// Reject records a rejection; the action is never executed.
func (g *Guardian) Reject(ctx context.Context, actionID, approvedBy string) error {
	if err := g.store.TransitionGuardianAction(ctx, actionID, guardianaction.StatusRejected, &approvedBy); err != nil {
		return fmt.Errorf("reject guardian action: %w", err)
	}
	action, err := g.store.GetGuardianAction(ctx, actionID)
	if err == nil {
		g.notify(ctx, action, string(guardianaction.StatusRejected), "")
	}
	return nil
}

// Execute carries out the action's remediation and marks it executed. A
// remediation that cannot currently be applied (e.g. an illegal agent
// transition) leaves the action in its prior status so a retry or a human
// can follow up; it is not silently marked executed.
func (g *Guardian) Execute(ctx context.Context, action *ent.GuardianAction) error {
	var err error
	switch action.ActionType {
	case guardianaction.ActionTypeNudge:
		slog.Warn("guardian nudge", "agent_id", action.TargetAgentID, "reason", action.Reason)
	case guardianaction.ActionTypePauseAgent:
		err = g.pauseAgent(ctx, action.TargetAgentID)
	case guardianaction.ActionTypeResizeResources:
		err = g.resizeResources(ctx, action.TargetAgentID)
	case guardianaction.ActionTypeRestartSandbox:
		err = g.restartSandbox(ctx, action.TargetAgentID)
	case guardianaction.ActionTypeTerminateAgent:
		err = g.terminateAgent(ctx, action.TargetAgentID)
	}
	if err != nil {
		return fmt.Errorf("execute %s on agent %s: %w", action.ActionType, action.TargetAgentID, err)
	}

	if err := g.store.TransitionGuardianAction(ctx, action.ID, guardianaction.StatusExecuted, nil); err != nil {
		return fmt.Errorf("mark guardian action executed: %w", err)
	}
	g.notify(ctx, action, string(guardianaction.StatusExecuted), "")
	return nil
}

// SweepTimeouts times out pending_review actions older than
// cfg.ApprovalTimeout and re-queues the incident one rung up the ladder, per
// §4.8's "re-queued with elevated severity" rule.
func (g *Guardian) SweepTimeouts(ctx context.Context) error {
	pending, err := g.store.ListPendingReview(ctx)
	if err != nil {
		return fmt.Errorf("list pending-review guardian actions: %w", err)
	}
	deadline := time.Now().Add(-g.cfg.ApprovalTimeout)
	for _, action := range pending {
		if action.CreatedAt.After(deadline) {
			continue
		}
		if err := g.store.TransitionGuardianAction(ctx, action.ID, guardianaction.StatusTimedOut, nil); err != nil {
			slog.Error("time out guardian action failed", "action_id", action.ID, "error", err)
			continue
		}
		g.notify(ctx, action, string(guardianaction.StatusTimedOut), "")

		next := escalated(action.ActionType)
		reason := fmt.Sprintf("escalated after approval timeout on %s: %s", action.ActionType, action.Reason)
		if _, err := g.Propose(ctx, next, action.TargetAgentID, reason, "guardian-timeout-sweep"); err != nil {
			slog.Error("escalate timed-out guardian action failed", "action_id", action.ID, "error", err)
		}
	}
	return nil
}

func (g *Guardian) notify(ctx context.Context, action *ent.GuardianAction, status, threadTS string) {
	if g.notifier == nil {
		return
	}
	reason := action.Reason
	if g.masker != nil {
		reason = g.masker.MaskText(reason)
	}
	g.notifier.NotifyGuardianAction(ctx, slack.GuardianActionInput{
		ActionID:       action.ID,
		AgentID:        action.TargetAgentID,
		ActionType:     string(action.ActionType),
		AuthorityLevel: action.AuthorityLevel,
		Status:         status,
		Reason:         reason,
		Fingerprint:    action.ID,
		ThreadTS:       threadTS,
	})
}
