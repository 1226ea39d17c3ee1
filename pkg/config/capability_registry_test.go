package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCapabilityRegistryMatchAll(t *testing.T) {
	templates := map[string]*AgentTemplateConfig{
		"generalist": {Capabilities: []string{"code", "test"}, SandboxProvider: "p", CodingAgentProvider: "c"},
		"reviewer":   {Capabilities: []string{"review", "test"}, SandboxProvider: "p", CodingAgentProvider: "c"},
	}
	r := BuildCapabilityRegistry(templates)

	matches := r.MatchAll([]string{"test"})
	assert.Len(t, matches, 2)

	matches = r.MatchAll([]string{"code", "test"})
	assert.Len(t, matches, 1)
	assert.Equal(t, "generalist", matches[0].TemplateName)

	matches = r.MatchAll([]string{"merge"})
	assert.Empty(t, matches)
}

func TestCapabilityRegistryGet(t *testing.T) {
	templates := map[string]*AgentTemplateConfig{
		"generalist": {Capabilities: []string{"code"}, SandboxProvider: "p", CodingAgentProvider: "c"},
	}
	r := BuildCapabilityRegistry(templates)

	entry, ok := r.Get("generalist")
	assert.True(t, ok)
	assert.Equal(t, []string{"code"}, entry.Capabilities)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestCapabilityEntryCloneIsIndependent(t *testing.T) {
	templates := map[string]*AgentTemplateConfig{
		"generalist": {Capabilities: []string{"code"}, SandboxProvider: "p", CodingAgentProvider: "c"},
	}
	r := BuildCapabilityRegistry(templates)

	entries := r.Entries()
	entries[0].Capabilities[0] = "mutated"

	entry, _ := r.Get("generalist")
	assert.Equal(t, "code", entry.Capabilities[0])
}
