package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgekit/autoforge/pkg/config"
)

// GuardianActionInput contains data for a Guardian action notification: a
// proposal awaiting human approval, or a terminal resolution (approved,
// rejected, executed, reverted).
type GuardianActionInput struct {
	ActionID        string
	AgentID         string
	ActionType      string // nudge, pause_agent, resize_resources, restart_sandbox, terminate_agent
	AuthorityLevel  int
	Status          string // proposed, approved, rejected, executed, reverted
	Reason          string
	Fingerprint     string // dedup key for threading repeated alerts on the same agent/action
	ThreadTS        string // cached from the proposal notification
}

// BudgetAlertInput contains data for a budget threshold/exhaustion notification.
type BudgetAlertInput struct {
	ScopeType    string
	ScopeID      string
	SpentUSD     float64
	ReservedUSD  float64
	LimitUSD     float64
	Exceeded     bool
	Fingerprint  string
}

// Service handles Slack notification delivery for Guardian approvals and
// budget alerts. Nil-safe: all methods are no-ops when the service is nil,
// so callers can construct it once from config and never branch on whether
// Slack is enabled.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a Slack notification service from resolved config.
// Returns nil if Slack notifications are disabled or misconfigured.
func NewService(cfg *config.SlackConfig, token string) *Service {
	if cfg == nil || !cfg.Enabled || token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyGuardianAction sends (or threads) a Guardian action notification.
// Returns the resolved threadTS so the caller can cache it and pass it back
// in on a later resolution notification for the same action.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyGuardianAction(ctx context.Context, input GuardianActionInput) string {
	if s == nil {
		return ""
	}

	threadTS := input.ThreadTS
	if threadTS == "" && input.Fingerprint != "" {
		var err error
		threadTS, err = s.client.FindMessageByFingerprint(ctx, input.Fingerprint)
		if err != nil {
			s.logger.Warn("Failed to find Slack thread for fingerprint",
				"action_id", input.ActionID,
				"fingerprint", input.Fingerprint,
				"error", err)
		}
	}

	blocks := BuildGuardianActionMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("Failed to send Slack Guardian notification",
			"action_id", input.ActionID,
			"agent_id", input.AgentID,
			"status", input.Status,
			"error", err)
	}

	return threadTS
}

// NotifyBudgetAlert sends a budget threshold/exhaustion notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyBudgetAlert(ctx context.Context, input BudgetAlertInput) {
	if s == nil {
		return
	}

	threadTS := ""
	if input.Fingerprint != "" {
		var err error
		threadTS, err = s.client.FindMessageByFingerprint(ctx, input.Fingerprint)
		if err != nil {
			s.logger.Warn("Failed to find Slack thread for fingerprint",
				"scope_type", input.ScopeType,
				"scope_id", input.ScopeID,
				"error", err)
		}
	}

	blocks := BuildBudgetAlertMessage(input)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack budget alert",
			"scope_type", input.ScopeType,
			"scope_id", input.ScopeID,
			"error", err)
	}
}
