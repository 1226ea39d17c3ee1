package config

import "time"

// RetentionConfig controls data retention and the background cleanup sweep
// (pkg/cleanup).
type RetentionConfig struct {
	// SpecRetentionDays is how many days to keep archived Spec rows before
	// soft-deletion eligibility.
	SpecRetentionDays int `yaml:"spec_retention_days"`

	// SandboxEventTTL is the maximum age of SandboxEvent rows before
	// deletion; per-ticket cleanup handles the normal case, this is the
	// safety net for orphaned events.
	SandboxEventTTL time.Duration `yaml:"sandbox_event_ttl"`

	// HeartbeatTTL is the maximum age of Heartbeat rows to retain for replay
	// diagnostics.
	HeartbeatTTL time.Duration `yaml:"heartbeat_ttl"`

	// CostRecordRetentionDays is how long CostRecord rows are kept before
	// archival; these are append-only and feed billing reconciliation.
	CostRecordRetentionDays int `yaml:"cost_record_retention_days"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SpecRetentionDays:       365,
		SandboxEventTTL:         30 * 24 * time.Hour,
		HeartbeatTTL:            7 * 24 * time.Hour,
		CostRecordRetentionDays: 400,
		CleanupInterval:         12 * time.Hour,
	}
}
