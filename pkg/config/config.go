// Package config provides configuration management for the orchestration
// kernel: scheduler, heartbeat, guardian, merge-coordinator, and budget
// settings, plus registries of agent templates, sandbox providers, and
// coding-agent providers.
package config

// Config is the umbrella configuration object produced by Initialize and
// used throughout the application.
type Config struct {
	configDir string

	Scheduler *SchedulerConfig
	Heartbeat *HeartbeatConfig
	Guardian  *GuardianConfig
	Merge     *MergeConfig
	Budget    *BudgetConfig
	Retention *RetentionConfig
	SCM       *SCMConfig
	Slack     *SlackConfig
	API       *OrchestratorAPIConfig

	AlertMasking *MaskingConfig

	AgentTemplateRegistry       *AgentTemplateRegistry
	SandboxProviderRegistry     *SandboxProviderRegistry
	CodingAgentProviderRegistry *CodingAgentProviderRegistry
	CapabilityRegistry          *CapabilityRegistry
}

// Initialize is defined in loader.go.

// ConfigStats contains statistics about loaded configuration, surfaced in
// startup logs.
type ConfigStats struct {
	AgentTemplates      int
	SandboxProviders    int
	CodingAgentProviders int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		AgentTemplates:       c.AgentTemplateRegistry.Len(),
		SandboxProviders:     len(c.SandboxProviderRegistry.GetAll()),
		CodingAgentProviders: len(c.CodingAgentProviderRegistry.GetAll()),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgentTemplate retrieves an agent template by name.
func (c *Config) GetAgentTemplate(name string) (*AgentTemplateConfig, error) {
	return c.AgentTemplateRegistry.Get(name)
}

// GetSandboxProvider retrieves a sandbox provider configuration by ID.
func (c *Config) GetSandboxProvider(id string) (*SandboxProviderConfig, error) {
	return c.SandboxProviderRegistry.Get(id)
}

// GetCodingAgentProvider retrieves a coding-agent provider configuration by name.
func (c *Config) GetCodingAgentProvider(name string) (*CodingAgentProviderConfig, error) {
	return c.CodingAgentProviderRegistry.Get(name)
}
