package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "braced substitution",
			input: "token_env: ${GITHUB_TOKEN}",
			env:   map[string]string{"GITHUB_TOKEN": "ghp_secret"},
			want:  "token_env: ghp_secret",
		},
		{
			name:  "bare substitution",
			input: "api_key_env: $ANTHROPIC_API_KEY",
			env:   map[string]string{"ANTHROPIC_API_KEY": "sk-ant-xyz"},
			want:  "api_key_env: sk-ant-xyz",
		},
		{
			name:  "missing variable expands to empty",
			input: "value: ${NOT_SET_VAR}",
			env:   map[string]string{},
			want:  "value: ",
		},
		{
			name:  "multiple variables in one line",
			input: "${HOST}:${PORT}",
			env:   map[string]string{"HOST": "localhost", "PORT": "5432"},
			want:  "localhost:5432",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}
