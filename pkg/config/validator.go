package config

import (
	"fmt"
	"os"
)

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateScheduler(); err != nil {
		return fmt.Errorf("scheduler validation failed: %w", err)
	}
	if err := v.validateHeartbeat(); err != nil {
		return fmt.Errorf("heartbeat validation failed: %w", err)
	}
	if err := v.validateGuardian(); err != nil {
		return fmt.Errorf("guardian validation failed: %w", err)
	}
	if err := v.validateMerge(); err != nil {
		return fmt.Errorf("merge validation failed: %w", err)
	}
	if err := v.validateBudget(); err != nil {
		return fmt.Errorf("budget validation failed: %w", err)
	}
	if err := v.validateAgentTemplates(); err != nil {
		return fmt.Errorf("agent template validation failed: %w", err)
	}
	if err := v.validateSandboxProviders(); err != nil {
		return fmt.Errorf("sandbox provider validation failed: %w", err)
	}
	if err := v.validateCodingAgentProviders(); err != nil {
		return fmt.Errorf("coding agent provider validation failed: %w", err)
	}
	if err := v.validateSlack(); err != nil {
		return fmt.Errorf("slack validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	s := v.cfg.Scheduler
	if s == nil {
		return fmt.Errorf("scheduler configuration is nil")
	}
	if s.WorkerCount < 1 || s.WorkerCount > 100 {
		return fmt.Errorf("worker_count must be between 1 and 100, got %d", s.WorkerCount)
	}
	if s.MaxConcurrentSandboxes < 1 {
		return fmt.Errorf("max_concurrent_sandboxes must be at least 1, got %d", s.MaxConcurrentSandboxes)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", s.PollInterval)
	}
	if s.PollIntervalJitter < 0 || s.PollIntervalJitter >= s.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be non-negative and less than poll_interval")
	}
	if s.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive, got %v", s.TaskTimeout)
	}
	if s.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", s.GracefulShutdownTimeout)
	}
	return nil
}

func (v *Validator) validateHeartbeat() error {
	h := v.cfg.Heartbeat
	if h == nil {
		return fmt.Errorf("heartbeat configuration is nil")
	}
	if h.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", h.Interval)
	}
	if !(h.WarnThreshold < h.DegradedThreshold && h.DegradedThreshold < h.GuardianThreshold && h.GuardianThreshold < h.FailedThreshold) {
		return fmt.Errorf("escalation thresholds must be strictly increasing: warn=%d degraded=%d guardian=%d failed=%d",
			h.WarnThreshold, h.DegradedThreshold, h.GuardianThreshold, h.FailedThreshold)
	}
	if h.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", h.OrphanDetectionInterval)
	}
	if h.QuarantineAnomalyThreshold <= 0 || h.QuarantineAnomalyThreshold > 1 {
		return fmt.Errorf("quarantine_anomaly_threshold must be in (0, 1], got %f", h.QuarantineAnomalyThreshold)
	}
	return nil
}

func (v *Validator) validateGuardian() error {
	g := v.cfg.Guardian
	if g == nil {
		return fmt.Errorf("guardian configuration is nil")
	}
	if !g.AutoAuthority.IsValid() {
		return fmt.Errorf("auto_authority is not a recognized authority level: %d", g.AutoAuthority)
	}
	if g.ApprovalTimeout <= 0 {
		return fmt.Errorf("approval_timeout must be positive, got %v", g.ApprovalTimeout)
	}
	if g.MaxActionsPerAgentPerHour < 1 {
		return fmt.Errorf("max_actions_per_agent_per_hour must be at least 1, got %d", g.MaxActionsPerAgentPerHour)
	}
	return nil
}

func (v *Validator) validateMerge() error {
	m := v.cfg.Merge
	if m == nil {
		return fmt.Errorf("merge configuration is nil")
	}
	if m.ConflictScoreEscalationThreshold < 0 || m.ConflictScoreEscalationThreshold > 1 {
		return fmt.Errorf("conflict_score_escalation_threshold must be in [0, 1], got %f", m.ConflictScoreEscalationThreshold)
	}
	if m.MaxLLMInvocationsPerAttempt < 1 {
		return fmt.Errorf("max_llm_invocations_per_attempt must be at least 1, got %d", m.MaxLLMInvocationsPerAttempt)
	}
	if m.MaxCostUSDPerAttempt <= 0 {
		return fmt.Errorf("max_cost_usd_per_attempt must be positive, got %f", m.MaxCostUSDPerAttempt)
	}
	return nil
}

func (v *Validator) validateBudget() error {
	b := v.cfg.Budget
	if b == nil {
		return fmt.Errorf("budget configuration is nil")
	}
	if b.DefaultAlertThreshold <= 0 || b.DefaultAlertThreshold > 1 {
		return fmt.Errorf("default_alert_threshold must be in (0, 1], got %f", b.DefaultAlertThreshold)
	}
	if b.ReservationTTL <= 0 {
		return fmt.Errorf("reservation_ttl must be positive, got %v", b.ReservationTTL)
	}
	for scope, limit := range b.DefaultScopeLimitsUSD {
		if limit <= 0 {
			return NewValidationError("budget", scope, "limit_usd", fmt.Errorf("must be positive"))
		}
	}
	return nil
}

func (v *Validator) validateAgentTemplates() error {
	for name, tmpl := range v.cfg.AgentTemplateRegistry.GetAll() {
		if len(tmpl.Capabilities) == 0 {
			return NewValidationError("agent_template", name, "capabilities", fmt.Errorf("at least one capability required"))
		}
		if !v.cfg.SandboxProviderRegistry.Has(tmpl.SandboxProvider) {
			return NewValidationError("agent_template", name, "sandbox_provider", fmt.Errorf("sandbox provider '%s' not found", tmpl.SandboxProvider))
		}
		if !v.cfg.CodingAgentProviderRegistry.Has(tmpl.CodingAgentProvider) {
			return NewValidationError("agent_template", name, "coding_agent_provider", fmt.Errorf("coding agent provider '%s' not found", tmpl.CodingAgentProvider))
		}
		if tmpl.Capacity < 0 {
			return NewValidationError("agent_template", name, "capacity", fmt.Errorf("must be non-negative"))
		}
	}
	return nil
}

func (v *Validator) validateSandboxProviders() error {
	for id, p := range v.cfg.SandboxProviderRegistry.GetAll() {
		if !p.Transport.Type.IsValid() {
			return NewValidationError("sandbox_provider", id, "transport.type", fmt.Errorf("invalid transport type: %s", p.Transport.Type))
		}
		switch p.Transport.Type {
		case TransportTypeStdio:
			if p.Transport.Command == "" {
				return NewValidationError("sandbox_provider", id, "transport.command", fmt.Errorf("command required for stdio transport"))
			}
		case TransportTypeHTTP, TransportTypeSSE:
			if p.Transport.URL == "" {
				return NewValidationError("sandbox_provider", id, "transport.url", fmt.Errorf("url required for %s transport", p.Transport.Type))
			}
		}
	}
	return nil
}

func (v *Validator) validateCodingAgentProviders() error {
	for name, p := range v.cfg.CodingAgentProviderRegistry.GetAll() {
		if !p.Type.IsValid() {
			return NewValidationError("coding_agent_provider", name, "type", fmt.Errorf("invalid provider type: %s", p.Type))
		}
		if p.Model == "" {
			return NewValidationError("coding_agent_provider", name, "model", fmt.Errorf("model required"))
		}
		if p.BaseURL == "" {
			return NewValidationError("coding_agent_provider", name, "base_url", fmt.Errorf("base_url required"))
		}
		if p.APIKeyEnv != "" {
			if value := os.Getenv(p.APIKeyEnv); value == "" {
				return NewValidationError("coding_agent_provider", name, "api_key_env", fmt.Errorf("environment variable %s is not set", p.APIKeyEnv))
			}
		}
	}
	return nil
}

func (v *Validator) validateSlack() error {
	s := v.cfg.Slack
	if s == nil || !s.Enabled {
		return nil
	}
	if s.Channel == "" {
		return fmt.Errorf("system.slack.channel is required when Slack is enabled")
	}
	if s.TokenEnv == "" {
		return fmt.Errorf("system.slack.token_env is required when Slack is enabled")
	}
	if token := os.Getenv(s.TokenEnv); token == "" {
		return fmt.Errorf("system.slack.token_env: environment variable %s is not set", s.TokenEnv)
	}
	return nil
}
