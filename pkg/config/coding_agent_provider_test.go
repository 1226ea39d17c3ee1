package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodingAgentProviderRegistry(t *testing.T) {
	providers := map[string]*CodingAgentProviderConfig{
		"claude-code-default": {
			Type:    LLMProviderTypeAnthropic,
			BaseURL: "http://127.0.0.1:4815",
			Model:   "claude-sonnet-4-5",
		},
	}
	r := NewCodingAgentProviderRegistry(providers)

	assert.True(t, r.Has("claude-code-default"))

	got, err := r.Get("claude-code-default")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", got.Model)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrCodingAgentProviderNotFound))
}
