package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStats(t *testing.T) {
	cfg := validConfig()
	stats := cfg.Stats()
	assert.Equal(t, 1, stats.AgentTemplates)
	assert.Equal(t, 1, stats.SandboxProviders)
	assert.Equal(t, 1, stats.CodingAgentProviders)
}

func TestConfigAccessors(t *testing.T) {
	cfg := validConfig()

	tmpl, err := cfg.GetAgentTemplate("generalist")
	require.NoError(t, err)
	assert.Equal(t, "local-docker", tmpl.SandboxProvider)

	provider, err := cfg.GetSandboxProvider("local-docker")
	require.NoError(t, err)
	assert.Equal(t, TransportTypeStdio, provider.Transport.Type)

	codingProvider, err := cfg.GetCodingAgentProvider("claude-code-default")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", codingProvider.Model)
}
