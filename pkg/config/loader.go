package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// OrchestratorYAMLConfig represents the complete orchestrator.yaml file structure.
type OrchestratorYAMLConfig struct {
	System           *SystemYAMLConfig                 `yaml:"system"`
	Scheduler        *SchedulerConfig                  `yaml:"scheduler"`
	Heartbeat        *HeartbeatConfig                  `yaml:"heartbeat"`
	Guardian         *GuardianConfig                   `yaml:"guardian"`
	Merge            *MergeConfig                      `yaml:"merge"`
	Budget           *BudgetConfig                     `yaml:"budget"`
	AgentTemplates   map[string]AgentTemplateConfig     `yaml:"agent_templates"`
	SandboxProviders map[string]SandboxProviderConfig   `yaml:"sandbox_providers"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	SCM          *SCMYAMLConfig   `yaml:"scm"`
	Slack        *SlackYAMLConfig `yaml:"slack"`
	Retention    *RetentionConfig `yaml:"retention"`
	AlertMasking *MaskingConfig   `yaml:"alert_masking"`
	API          *APIYAMLConfig   `yaml:"api"`
}

// APIYAMLConfig holds the orchestrator's own HTTP API settings from YAML.
type APIYAMLConfig struct {
	CallbackBaseURL string `yaml:"callback_base_url,omitempty"`
}

// SCMYAMLConfig holds source-control integration settings from YAML.
type SCMYAMLConfig struct {
	TokenEnv string `yaml:"token_env,omitempty"` // Defaults to "GITHUB_TOKEN" if omitted
	BaseURL  string `yaml:"base_url,omitempty"`
}

// SlackYAMLConfig holds Slack notification settings from YAML.
type SlackYAMLConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`
	TokenEnv     string `yaml:"token_env,omitempty"`
	Channel      string `yaml:"channel,omitempty"`
	DashboardURL string `yaml:"dashboard_url,omitempty"`
}

// CodingAgentProvidersYAMLConfig represents the coding-agent-providers.yaml file structure.
type CodingAgentProvidersYAMLConfig struct {
	Providers map[string]CodingAgentProviderConfig `yaml:"coding_agent_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Merge built-in + user-defined configuration
//  4. Build in-memory registries
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"agent_templates", stats.AgentTemplates,
		"sandbox_providers", stats.SandboxProviders,
		"coding_agent_providers", stats.CodingAgentProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	orchCfg, err := loader.loadOrchestratorYAML()
	if err != nil {
		return nil, NewLoadError("orchestrator.yaml", err)
	}

	codingAgentProviders, err := loader.loadCodingAgentProvidersYAML()
	if err != nil {
		return nil, NewLoadError("coding-agent-providers.yaml", err)
	}

	builtin := GetBuiltinConfig()

	agentTemplates := mergeAgentTemplates(builtin.AgentTemplates, orchCfg.AgentTemplates)
	sandboxProviders := mergeSandboxProviders(builtin.SandboxProviders, orchCfg.SandboxProviders)
	codingAgentProvidersMerged := mergeCodingAgentProviders(builtin.CodingAgentProviders, codingAgentProviders)

	agentTemplateRegistry := NewAgentTemplateRegistry(agentTemplates)
	sandboxProviderRegistry := NewSandboxProviderRegistry(sandboxProviders)
	codingAgentProviderRegistry := NewCodingAgentProviderRegistry(codingAgentProvidersMerged)
	capabilityRegistry := BuildCapabilityRegistry(agentTemplates)

	scheduler := DefaultSchedulerConfig()
	if orchCfg.Scheduler != nil {
		if err := mergo.Merge(scheduler, orchCfg.Scheduler, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge scheduler config: %w", err)
		}
	}

	heartbeat := DefaultHeartbeatConfig()
	if orchCfg.Heartbeat != nil {
		if err := mergo.Merge(heartbeat, orchCfg.Heartbeat, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge heartbeat config: %w", err)
		}
	}

	guardian := DefaultGuardianConfig()
	if orchCfg.Guardian != nil {
		if err := mergo.Merge(guardian, orchCfg.Guardian, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge guardian config: %w", err)
		}
	}

	mergeCfg := DefaultMergeConfig()
	if orchCfg.Merge != nil {
		if err := mergo.Merge(mergeCfg, orchCfg.Merge, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge merge-coordinator config: %w", err)
		}
	}

	budget := DefaultBudgetConfig()
	if orchCfg.Budget != nil {
		if err := mergo.Merge(budget, orchCfg.Budget, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge budget config: %w", err)
		}
	}

	scmCfg := resolveSCMConfig(orchCfg.System)
	slackCfg := resolveSlackConfig(orchCfg.System)
	retentionCfg := resolveRetentionConfig(orchCfg.System)
	alertMaskingCfg := resolveAlertMaskingConfig(orchCfg.System)
	apiCfg := resolveAPIConfig(orchCfg.System)

	return &Config{
		configDir:                   configDir,
		Scheduler:                   scheduler,
		Heartbeat:                   heartbeat,
		Guardian:                    guardian,
		Merge:                       mergeCfg,
		Budget:                      budget,
		Retention:                   retentionCfg,
		SCM:                         scmCfg,
		Slack:                       slackCfg,
		API:                         apiCfg,
		AlertMasking:                alertMaskingCfg,
		AgentTemplateRegistry:       agentTemplateRegistry,
		SandboxProviderRegistry:     sandboxProviderRegistry,
		CodingAgentProviderRegistry: codingAgentProviderRegistry,
		CapabilityRegistry:          capabilityRegistry,
	}, nil
}

func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadOrchestratorYAML() (*OrchestratorYAMLConfig, error) {
	var cfg OrchestratorYAMLConfig
	cfg.AgentTemplates = make(map[string]AgentTemplateConfig)
	cfg.SandboxProviders = make(map[string]SandboxProviderConfig)

	if err := l.loadYAML("orchestrator.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadCodingAgentProvidersYAML() (map[string]CodingAgentProviderConfig, error) {
	var cfg CodingAgentProvidersYAMLConfig
	cfg.Providers = make(map[string]CodingAgentProviderConfig)

	if err := l.loadYAML("coding-agent-providers.yaml", &cfg); err != nil {
		return nil, err
	}
	return cfg.Providers, nil
}

func resolveSCMConfig(sys *SystemYAMLConfig) *SCMConfig {
	cfg := &SCMConfig{TokenEnv: "GITHUB_TOKEN"}
	if sys != nil && sys.SCM != nil {
		if sys.SCM.TokenEnv != "" {
			cfg.TokenEnv = sys.SCM.TokenEnv
		}
		cfg.BaseURL = sys.SCM.BaseURL
	}
	return cfg
}

func resolveSlackConfig(sys *SystemYAMLConfig) *SlackConfig {
	cfg := &SlackConfig{Enabled: false, TokenEnv: "SLACK_BOT_TOKEN"}
	if sys == nil || sys.Slack == nil {
		return cfg
	}
	s := sys.Slack
	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	if s.TokenEnv != "" {
		cfg.TokenEnv = s.TokenEnv
	}
	if s.Channel != "" {
		cfg.Channel = s.Channel
	}
	if s.DashboardURL != "" {
		cfg.DashboardURL = s.DashboardURL
	}
	return cfg
}

func resolveRetentionConfig(sys *SystemYAMLConfig) *RetentionConfig {
	cfg := DefaultRetentionConfig()
	if sys == nil || sys.Retention == nil {
		return cfg
	}
	r := sys.Retention
	if r.SpecRetentionDays > 0 {
		cfg.SpecRetentionDays = r.SpecRetentionDays
	}
	if r.SandboxEventTTL > 0 {
		cfg.SandboxEventTTL = r.SandboxEventTTL
	}
	if r.HeartbeatTTL > 0 {
		cfg.HeartbeatTTL = r.HeartbeatTTL
	}
	if r.CostRecordRetentionDays > 0 {
		cfg.CostRecordRetentionDays = r.CostRecordRetentionDays
	}
	if r.CleanupInterval > 0 {
		cfg.CleanupInterval = r.CleanupInterval
	}
	return cfg
}

func resolveAPIConfig(sys *SystemYAMLConfig) *OrchestratorAPIConfig {
	cfg := &OrchestratorAPIConfig{CallbackBaseURL: "http://orchestrator:8080"}
	if sys != nil && sys.API != nil && sys.API.CallbackBaseURL != "" {
		cfg.CallbackBaseURL = sys.API.CallbackBaseURL
	}
	return cfg
}

func resolveAlertMaskingConfig(sys *SystemYAMLConfig) *MaskingConfig {
	if sys != nil && sys.AlertMasking != nil {
		return sys.AlertMasking
	}
	return &MaskingConfig{Enabled: true, PatternGroups: []string{"secrets"}}
}
