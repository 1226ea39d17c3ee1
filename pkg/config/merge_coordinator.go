package config

// MergeConfig controls the Merge Coordinator (C9): how aggressively it may
// spend LLM-assisted conflict resolution before giving up and escalating to
// a human.
type MergeConfig struct {
	// DryRunRequired forces a conflict-score dry run before any branch is
	// actually merged.
	DryRunRequired bool `yaml:"dry_run_required"`

	// ConflictScoreEscalationThreshold is the dry-run conflict score (0-1)
	// above which the coordinator escalates to a human instead of attempting
	// an LLM-assisted resolution.
	ConflictScoreEscalationThreshold float64 `yaml:"conflict_score_escalation_threshold"`

	// MaxLLMInvocationsPerAttempt bounds how many LLM-assisted resolution
	// calls a single MergeAttempt may make before it is marked failed.
	MaxLLMInvocationsPerAttempt int `yaml:"max_llm_invocations_per_attempt"`

	// MaxCostUSDPerAttempt bounds the cumulative LLM spend of a single
	// MergeAttempt; exceeding it aborts the attempt regardless of invocation count.
	MaxCostUSDPerAttempt float64 `yaml:"max_cost_usd_per_attempt"`

	// WorkspaceRoot is the shared filesystem root under which each task's
	// persisted sandbox workspace and each ticket's merge-base snapshot
	// live, read by the WorkspaceChangesetSource (layout:
	// {root}/{ticket_id}/base and {root}/{ticket_id}/tasks/{task_id}).
	WorkspaceRoot string `yaml:"workspace_root"`
}

// DefaultMergeConfig returns the built-in Merge Coordinator defaults.
func DefaultMergeConfig() *MergeConfig {
	return &MergeConfig{
		DryRunRequired:                   true,
		ConflictScoreEscalationThreshold: 0.7,
		MaxLLMInvocationsPerAttempt:      5,
		MaxCostUSDPerAttempt:             2.0,
		WorkspaceRoot:                    "/var/lib/autoforge/workspaces",
	}
}
