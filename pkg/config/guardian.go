package config

import "time"

// GuardianConfig controls the Guardian/Watchdog (C8): the authority it may
// exercise without a human in the loop, and how long it waits for approval
// above that authority.
type GuardianConfig struct {
	// AutoAuthority is the highest AuthorityLevel the Guardian may act on
	// without requesting approval. Actions above this level are created in
	// status "proposed" and require ApprovedBy before execution.
	AutoAuthority AuthorityLevel `yaml:"auto_authority"`

	// ApprovalTimeout bounds how long a proposed action waits for a human
	// approval before it is automatically abandoned.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`

	// MaxActionsPerAgentPerHour rate-limits Guardian intervention against a
	// single agent to prevent oscillation (nudge -> restart -> nudge ...).
	MaxActionsPerAgentPerHour int `yaml:"max_actions_per_agent_per_hour"`
}

// DefaultGuardianConfig returns the built-in Guardian defaults.
func DefaultGuardianConfig() *GuardianConfig {
	return &GuardianConfig{
		AutoAuthority:             AuthorityResizeResources,
		ApprovalTimeout:           15 * time.Minute,
		MaxActionsPerAgentPerHour: 6,
	}
}
