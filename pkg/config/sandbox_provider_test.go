package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxProviderRegistry(t *testing.T) {
	providers := map[string]*SandboxProviderConfig{
		"local-docker": {
			Transport: TransportConfig{Type: TransportTypeStdio, Command: "docker"},
		},
	}
	r := NewSandboxProviderRegistry(providers)

	assert.True(t, r.Has("local-docker"))

	got, err := r.Get("local-docker")
	require.NoError(t, err)
	assert.Equal(t, TransportTypeStdio, got.Transport.Type)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrSandboxProviderNotFound))
}
