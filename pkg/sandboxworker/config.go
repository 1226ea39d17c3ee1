// Package sandboxworker implements the Sandbox Worker Runtime (C6): the
// process that runs inside an isolated sandbox with only outbound HTTP to
// the orchestrator, drives the coding agent through a task, and reports
// its lifecycle back over the wire.
package sandboxworker

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PermissionMode gates which tool calls the coding agent may perform
// without confirmation.
type PermissionMode string

const (
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionAskEach     PermissionMode = "askEach"
	PermissionReadOnly    PermissionMode = "readOnly"
)

// Config is the full set of environment-driven options the sandbox worker
// recognizes (§4.6 "Configuration").
type Config struct {
	SandboxID   string
	CallbackURL string
	Model       string
	APIKey      string

	// TaskContext is the decoded task context JSON injected at boot.
	TaskContext []byte

	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	MaxTurns          int
	MaxBudgetUSD      float64
	MaxDurationS      time.Duration

	PermissionMode PermissionMode
	AllowedTools   []string
	CWD            string

	ContinuousMode      bool
	ContinuousMaxRuns   int
	CompletionSignal    string
	CompletionThreshold int
	RequireSpecSkill    bool
	PreviewEnabled      bool

	ResumeSessionID      string
	SessionTranscriptB64 string
}

// LoadConfigFromEnv builds a Config from the recognized environment
// variables, applying the same defaults the worker would if the variable
// were absent.
func LoadConfigFromEnv(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{
		SandboxID:            getenv("SANDBOX_ID"),
		CallbackURL:          getenv("CALLBACK_URL"),
		Model:                getenv("MODEL"),
		APIKey:               getenv("API_KEY"),
		PollInterval:         durationSeconds(getenv("POLL_INTERVAL"), 5*time.Second),
		HeartbeatInterval:    durationSeconds(getenv("HEARTBEAT_INTERVAL"), 30*time.Second),
		MaxTurns:             intOrDefault(getenv("MAX_TURNS"), 100),
		MaxBudgetUSD:         floatOrDefault(getenv("MAX_BUDGET_USD"), 10.0),
		MaxDurationS:         durationSeconds(getenv("MAX_DURATION_S"), 2*time.Hour),
		PermissionMode:       permissionModeOrDefault(getenv("PERMISSION_MODE")),
		AllowedTools:         splitNonEmpty(getenv("ALLOWED_TOOLS")),
		CWD:                  getenv("CWD"),
		ContinuousMode:       boolOrDefault(getenv("CONTINUOUS_MODE"), false),
		ContinuousMaxRuns:    intOrDefault(getenv("CONTINUOUS_MAX_RUNS"), 10),
		CompletionSignal:     defaultString(getenv("COMPLETION_SIGNAL"), "TASK_COMPLETE"),
		CompletionThreshold:  intOrDefault(getenv("COMPLETION_THRESHOLD"), 1),
		RequireSpecSkill:     boolOrDefault(getenv("REQUIRE_SPEC_SKILL"), false),
		PreviewEnabled:       boolOrDefault(getenv("PREVIEW_ENABLED"), false),
		ResumeSessionID:      getenv("RESUME_SESSION_ID"),
		SessionTranscriptB64: getenv("SESSION_TRANSCRIPT_B64"),
	}

	if taskContextB64 := getenv("TASK_CONTEXT_B64"); taskContextB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(taskContextB64)
		if err != nil {
			return nil, fmt.Errorf("decode TASK_CONTEXT_B64: %w", err)
		}
		cfg.TaskContext = decoded
	}

	if cfg.SandboxID == "" {
		return nil, fmt.Errorf("SANDBOX_ID is required")
	}
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("CALLBACK_URL is required")
	}

	return cfg, nil
}

func durationSeconds(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(n * float64(time.Second))
}

func intOrDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatOrDefault(v string, def float64) float64 {
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func boolOrDefault(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func permissionModeOrDefault(v string) PermissionMode {
	switch PermissionMode(v) {
	case PermissionAcceptEdits, PermissionAskEach, PermissionReadOnly:
		return PermissionMode(v)
	default:
		return PermissionAskEach
	}
}
