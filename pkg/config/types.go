package config

// Shared types used across configuration structs.

// TransportConfig describes how to reach an external sandbox provisioner or
// coding-agent process.
type TransportConfig struct {
	Type TransportType `yaml:"type" validate:"required"`

	// For stdio transport.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// For http/sse transport.
	URL         string `yaml:"url,omitempty"`
	BearerToken string `yaml:"bearer_token,omitempty"`
	VerifySSL   *bool  `yaml:"verify_ssl,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"` // seconds
}

// MaskingConfig controls redaction of sensitive fields before a payload is
// persisted (sandbox event data, cost-record metadata).
type MaskingConfig struct {
	Enabled        bool             `yaml:"enabled"`
	PatternGroups  []string         `yaml:"pattern_groups,omitempty"`
	Patterns       []string         `yaml:"patterns,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// MaskingPattern defines a regex-based masking rule.
type MaskingPattern struct {
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement" validate:"required"`
	Description string `yaml:"description,omitempty"`
}

// ScoreWeights are the task-scheduler priority formula coefficients:
//
//	score = W1*priority_base + W2*age_hours + W3*deadline_urgency
//	        + W4*downstream_blocked_count - W5*retry_count
type ScoreWeights struct {
	PriorityBase     float64 `yaml:"priority_base"`
	AgeHours         float64 `yaml:"age_hours"`
	DeadlineUrgency  float64 `yaml:"deadline_urgency"`
	DownstreamBlocked float64 `yaml:"downstream_blocked"`
	RetryCount       float64 `yaml:"retry_count"`
}

// DefaultScoreWeights returns the built-in scoring coefficients.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		PriorityBase:      1.0,
		AgeHours:          0.1,
		DeadlineUrgency:   2.0,
		DownstreamBlocked: 0.5,
		RetryCount:        0.75,
	}
}
