package specphase

import (
	"context"
	"fmt"
	"os"
)

// PhaseConfig bounds one phase's execution: the budget the coding agent
// gets and which tools it may use (§4.7 step 2).
type PhaseConfig struct {
	MaxBudgetUSD float64
	MaxTurns     int
	AllowedTools []string
	OutputPath   string
}

// Executor drives the coding agent for one phase and returns the
// contents of the file it was told to write its structured output to —
// the state machine reads that file rather than parsing chat text
// (§4.7 step 2).
type Executor interface {
	Execute(ctx context.Context, phase Phase, prompt string, cfg PhaseConfig) (string, error)
}

// FileExecutor is a thin Executor that assumes some other process (the
// sandbox worker) has already driven the agent and written cfg.OutputPath;
// it exists for state machines running outside a sandbox (e.g. checkpoint
// replay, tests) where Execute only needs to read the result back.
type FileExecutor struct{}

func (FileExecutor) Execute(_ context.Context, _ Phase, _ string, cfg PhaseConfig) (string, error) {
	if cfg.OutputPath == "" {
		return "", fmt.Errorf("phase config has no output path")
	}
	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		return "", fmt.Errorf("read phase output %s: %w", cfg.OutputPath, err)
	}
	return string(data), nil
}
