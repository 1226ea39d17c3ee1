// Package masking redacts sensitive fields out of sandbox-event payloads
// and cost-record metadata before they are persisted or forwarded to Slack.
package masking

import (
	"log/slog"

	"github.com/forgekit/autoforge/pkg/config"
)

// Service applies data masking to sandbox event payloads and alert/budget
// notifications. Created once at application startup (singleton-ish).
// Thread-safe and stateless aside from its compiled patterns.
type Service struct {
	cfg           *config.MaskingConfig
	patterns      map[string]*CompiledPattern // Built-in + custom compiled patterns
	patternGroups map[string][]string         // Group name -> pattern names
	codeMaskers   map[string]Masker           // Registered code-based maskers
}

// NewService creates a masking service with compiled patterns and registered
// maskers. All patterns are compiled eagerly at creation time. Invalid
// patterns are logged and skipped.
func NewService(cfg *config.MaskingConfig) *Service {
	if cfg == nil {
		cfg = &config.MaskingConfig{}
	}

	s := &Service{
		cfg:           cfg,
		patterns:      make(map[string]*CompiledPattern),
		patternGroups: config.GetBuiltinConfig().PatternGroups,
		codeMaskers:   make(map[string]Masker),
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns()
	s.registerMasker(&KubernetesSecretMasker{})

	slog.Info("Masking service initialized",
		"builtin_patterns", len(config.GetBuiltinConfig().MaskingPatterns),
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"enabled", cfg.Enabled)

	return s
}

// MaskEventData applies the configured masking rules to a sandbox event's
// event_data payload before it is persisted by the Event Bus. Returns the
// masked value unmodified on any masking failure (fail-open — the payload
// is already constrained to a JSON map, so the worst case is a missed
// redaction, not an unsafe unmasked leak path).
func (s *Service) MaskEventData(data map[string]interface{}) map[string]interface{} {
	if !s.cfg.Enabled || len(data) == 0 {
		return data
	}

	resolved := s.resolvePatterns()
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return data
	}

	masked := make(map[string]interface{}, len(data))
	for k, v := range data {
		str, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		masked[k] = s.applyMasking(str, resolved)
	}
	return masked
}

// MaskText applies masking rules to a single string, used for free-text
// content such as a Slack notification body or a guardian action's reason.
func (s *Service) MaskText(text string) string {
	if !s.cfg.Enabled || text == "" {
		return text
	}
	resolved := s.resolvePatterns()
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return text
	}
	return s.applyMasking(text, resolved)
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) string {
	masked := content

	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked
}

// registerMasker registers a code-based masker by its name.
func (s *Service) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
