package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's standard
// library shell-style syntax.
//
// Examples:
//   - ${GITHUB_TOKEN} → value of GITHUB_TOKEN
//   - $ANTHROPIC_API_KEY → value of ANTHROPIC_API_KEY
//
// Missing variables expand to empty string; validation catches required
// fields that come out empty.
func ExpandEnv(data []byte) []byte {
	expanded := os.ExpandEnv(string(data))
	return []byte(expanded)
}
