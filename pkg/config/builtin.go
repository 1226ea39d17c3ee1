package config

import "sync"

// BuiltinConfig holds all built-in configuration data: default agent
// templates, sandbox providers, coding-agent providers, and masking patterns.
type BuiltinConfig struct {
	AgentTemplates      map[string]AgentTemplateConfig
	SandboxProviders    map[string]SandboxProviderConfig
	CodingAgentProviders map[string]CodingAgentProviderConfig
	MaskingPatterns     map[string]MaskingPattern
	PatternGroups       map[string][]string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		AgentTemplates:       initBuiltinAgentTemplates(),
		SandboxProviders:     initBuiltinSandboxProviders(),
		CodingAgentProviders: initBuiltinCodingAgentProviders(),
		MaskingPatterns:      initBuiltinMaskingPatterns(),
		PatternGroups:        initBuiltinPatternGroups(),
	}
}

func initBuiltinAgentTemplates() map[string]AgentTemplateConfig {
	return map[string]AgentTemplateConfig{
		"generalist": {
			Description:         "General-purpose coding agent for single-file and small-scope tasks",
			Capabilities:        []string{"code", "test"},
			SandboxProvider:     "local-docker",
			CodingAgentProvider: "claude-code-default",
			Capacity:            1,
			Image:               "ghcr.io/forgekit/sandbox-base:latest",
		},
		"reviewer": {
			Description:         "Read-only agent that reviews diffs and runs test suites, never writes code",
			Capabilities:        []string{"review", "test"},
			SandboxProvider:     "local-docker",
			CodingAgentProvider: "claude-code-default",
			Capacity:            2,
			Image:               "ghcr.io/forgekit/sandbox-base:latest",
		},
		"merge-resolver": {
			Description:         "Agent specialized in resolving merge conflicts flagged by the Merge Coordinator",
			Capabilities:        []string{"merge", "code"},
			SandboxProvider:     "local-docker",
			CodingAgentProvider: "claude-code-default",
			Capacity:            1,
			Image:               "ghcr.io/forgekit/sandbox-base:latest",
		},
	}
}

func initBuiltinSandboxProviders() map[string]SandboxProviderConfig {
	return map[string]SandboxProviderConfig{
		"local-docker": {
			Transport: TransportConfig{
				Type:    TransportTypeStdio,
				Command: "docker",
			},
			DefaultCPU:         2.0,
			DefaultMemoryBytes: 4 * 1024 * 1024 * 1024,
			DefaultDiskBytes:   20 * 1024 * 1024 * 1024,
			MaxConcurrentBoxes: 10,
		},
	}
}

func initBuiltinCodingAgentProviders() map[string]CodingAgentProviderConfig {
	return map[string]CodingAgentProviderConfig{
		"claude-code-default": {
			Type:            LLMProviderTypeAnthropic,
			BaseURL:         "http://127.0.0.1:4815",
			APIKeyEnv:       "ANTHROPIC_API_KEY",
			Model:           "claude-sonnet-4-5",
			MaxTurns:        60,
			RequestTimeoutS: 600,
		},
	}
}

func initBuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-]{20,})["\']?`,
			Replacement: `"api_key": "[MASKED_API_KEY]"`,
			Description: "API keys",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"token": "[MASKED_TOKEN]"`,
			Description: "Access tokens",
		},
		"private_key": {
			Pattern:     `(?s)-----BEGIN [A-Z ]+PRIVATE KEY-----.*?-----END [A-Z ]+PRIVATE KEY-----`,
			Replacement: `[MASKED_PRIVATE_KEY]`,
			Description: "PEM private key blocks",
		},
		"aws_access_key": {
			Pattern:     `(?i)(?:aws[_-]?access[_-]?key[_-]?id)["\']?\s*[:=]\s*["\']?(AKIA[A-Z0-9]{16})["\']?`,
			Replacement: `"aws_access_key_id": "[MASKED_AWS_KEY]"`,
			Description: "AWS access keys",
		},
		"github_token": {
			Pattern:     `(?i)gh[ps]_[A-Za-z0-9_]{36,255}`,
			Replacement: `[MASKED_GITHUB_TOKEN]`,
			Description: "GitHub tokens",
		},
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `[MASKED_EMAIL]`,
			Description: "Email addresses",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of masking patterns
// applied to sandbox-event payloads and cost-record metadata before storage.
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"basic":    {"api_key", "token"},
		"secrets":  {"api_key", "token", "private_key", "aws_access_key", "github_token"},
		"security": {"api_key", "token", "private_key", "aws_access_key", "github_token", "email"},
	}
}
