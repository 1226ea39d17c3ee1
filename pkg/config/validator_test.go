package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	agentTemplates := map[string]*AgentTemplateConfig{
		"generalist": {Capabilities: []string{"code"}, SandboxProvider: "local-docker", CodingAgentProvider: "claude-code-default"},
	}
	sandboxProviders := map[string]*SandboxProviderConfig{
		"local-docker": {Transport: TransportConfig{Type: TransportTypeStdio, Command: "docker"}},
	}
	codingAgentProviders := map[string]*CodingAgentProviderConfig{
		"claude-code-default": {Type: LLMProviderTypeAnthropic, BaseURL: "http://127.0.0.1:4815", Model: "claude-sonnet-4-5"},
	}

	return &Config{
		Scheduler:                   DefaultSchedulerConfig(),
		Heartbeat:                   DefaultHeartbeatConfig(),
		Guardian:                    DefaultGuardianConfig(),
		Merge:                       DefaultMergeConfig(),
		Budget:                      DefaultBudgetConfig(),
		Retention:                   DefaultRetentionConfig(),
		Slack:                       &SlackConfig{Enabled: false},
		AgentTemplateRegistry:       NewAgentTemplateRegistry(agentTemplates),
		SandboxProviderRegistry:     NewSandboxProviderRegistry(sandboxProviders),
		CodingAgentProviderRegistry: NewCodingAgentProviderRegistry(codingAgentProviders),
	}
}

func TestValidatorValidateAllValid(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsBadScheduler(t *testing.T) {
	cfg := validConfig()
	cfg.Scheduler.WorkerCount = 0
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsNonMonotonicHeartbeatThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Heartbeat.DegradedThreshold = cfg.Heartbeat.WarnThreshold
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsInvalidAutoAuthority(t *testing.T) {
	cfg := validConfig()
	cfg.Guardian.AutoAuthority = AuthorityLevel(99)
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsOutOfRangeConflictThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Merge.ConflictScoreEscalationThreshold = 1.5
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsNonPositiveBudgetScopeLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.DefaultScopeLimitsUSD["global"] = 0
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsAgentTemplateWithUnknownSandboxProvider(t *testing.T) {
	cfg := validConfig()
	cfg.AgentTemplateRegistry = NewAgentTemplateRegistry(map[string]*AgentTemplateConfig{
		"broken": {Capabilities: []string{"code"}, SandboxProvider: "missing", CodingAgentProvider: "claude-code-default"},
	})
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsStdioSandboxProviderWithoutCommand(t *testing.T) {
	cfg := validConfig()
	cfg.SandboxProviderRegistry = NewSandboxProviderRegistry(map[string]*SandboxProviderConfig{
		"local-docker": {Transport: TransportConfig{Type: TransportTypeStdio}},
	})
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsHTTPCodingAgentProviderWithoutAPIKeyWhenRequired(t *testing.T) {
	cfg := validConfig()
	cfg.CodingAgentProviderRegistry = NewCodingAgentProviderRegistry(map[string]*CodingAgentProviderConfig{
		"claude-code-default": {Type: LLMProviderTypeAnthropic, BaseURL: "http://127.0.0.1:4815", Model: "claude-sonnet-4-5", APIKeyEnv: "SOME_UNSET_VAR_XYZ"},
	})
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidatorRejectsSlackEnabledWithoutChannel(t *testing.T) {
	cfg := validConfig()
	cfg.Slack = &SlackConfig{Enabled: true, TokenEnv: "SLACK_BOT_TOKEN"}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}
