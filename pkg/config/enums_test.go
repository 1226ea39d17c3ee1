package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportTypeIsValid(t *testing.T) {
	tests := []struct {
		name string
		t    TransportType
		want bool
	}{
		{"stdio", TransportTypeStdio, true},
		{"http", TransportTypeHTTP, true},
		{"sse", TransportTypeSSE, true},
		{"empty", TransportType(""), false},
		{"unknown", TransportType("grpc"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.t.IsValid())
		})
	}
}

func TestAuthorityLevelOrdering(t *testing.T) {
	assert.True(t, AuthorityNudge < AuthorityPauseAgent)
	assert.True(t, AuthorityPauseAgent < AuthorityResizeResources)
	assert.True(t, AuthorityResizeResources < AuthorityRestartSandbox)
	assert.True(t, AuthorityRestartSandbox < AuthorityTerminateAgent)
}

func TestAuthorityLevelIsValid(t *testing.T) {
	assert.True(t, AuthorityNudge.IsValid())
	assert.True(t, AuthorityTerminateAgent.IsValid())
	assert.False(t, AuthorityLevel(-1).IsValid())
	assert.False(t, AuthorityLevel(5).IsValid())
}

func TestAuthorityLevelString(t *testing.T) {
	assert.Equal(t, "nudge", AuthorityNudge.String())
	assert.Equal(t, "terminate_agent", AuthorityTerminateAgent.String())
	assert.Equal(t, "unknown", AuthorityLevel(99).String())
}

func TestLLMProviderTypeIsValid(t *testing.T) {
	assert.True(t, LLMProviderTypeAnthropic.IsValid())
	assert.True(t, LLMProviderTypeOpenAI.IsValid())
	assert.True(t, LLMProviderTypeGoogle.IsValid())
	assert.False(t, LLMProviderType("bedrock").IsValid())
}
