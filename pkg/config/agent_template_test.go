package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentTemplateRegistry(t *testing.T) {
	templates := map[string]*AgentTemplateConfig{
		"coder": {
			Capabilities:        []string{"code"},
			SandboxProvider:     "local-docker",
			CodingAgentProvider: "claude-code-default",
		},
	}
	r := NewAgentTemplateRegistry(templates)

	assert.True(t, r.Has("coder"))
	assert.False(t, r.Has("missing"))
	assert.Equal(t, 1, r.Len())

	got, err := r.Get("coder")
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, got.Capabilities)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrAgentTemplateNotFound))
}

func TestAgentTemplateRegistryGetAllIsACopy(t *testing.T) {
	templates := map[string]*AgentTemplateConfig{
		"coder": {Capabilities: []string{"code"}, SandboxProvider: "p", CodingAgentProvider: "c"},
	}
	r := NewAgentTemplateRegistry(templates)

	all := r.GetAll()
	delete(all, "coder")

	assert.True(t, r.Has("coder"), "mutating the returned map must not affect the registry")
}
