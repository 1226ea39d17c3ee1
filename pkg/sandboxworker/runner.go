package sandboxworker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/pkg/codingagent"
)

// AgentSession is the subset of codingagent.Client the drive loop needs,
// narrowed to an interface so tests can fake a coding-agent stream
// without an HTTP server.
type AgentSession interface {
	Turn(ctx context.Context, sessionID string, message string) (<-chan codingagent.Block, error)
}

// messagePoller is the subset of *Poller the drive loop needs, narrowed
// to an interface so tests can script injected messages without an HTTP
// server.
type messagePoller interface {
	Poll(ctx context.Context) ([]Message, error)
	Ack(delivered []Message)
}

// Runner drives one sandboxed coding-agent session end to end: boot,
// session start, the turn-by-turn drive loop, continuous-mode re-prompt,
// and termination (§4.6).
type Runner struct {
	cfg      *Config
	agent    AgentSession
	reporter Reporter
	poller   messagePoller
	beats    *HeartbeatEmitter
	budget   *BudgetTracker
	logger   *slog.Logger

	sessionID      string
	runCount       int
	completionHits int
}

// NewRunner wires a Runner from its already-constructed dependencies.
// Production callers build agent/reporter/poller/beats from cfg; tests
// substitute fakes directly.
func NewRunner(cfg *Config, agent AgentSession, reporter Reporter, poller messagePoller, beats *HeartbeatEmitter) *Runner {
	return &Runner{
		cfg:       cfg,
		agent:     agent,
		reporter:  reporter,
		poller:    poller,
		beats:     beats,
		budget:    NewBudgetTracker(cfg),
		logger:    slog.Default().With("sandbox_id", cfg.SandboxID),
		sessionID: cfg.ResumeSessionID,
	}
}

// Outcome summarizes how a Run call ended, for the final completion
// summary uploaded to the orchestrator (§6.1 `POST /sandbox/sync-summary`).
type Outcome struct {
	Status       string // "completed", "failed", "budget_exhausted"
	Reason       string
	TotalCostUSD float64
	Turns        int
	SessionID    string
}

// Run executes the full lifecycle: Boot, Session start, Drive loop,
// Continuous mode, Termination.
func (r *Runner) Run(ctx context.Context) Outcome {
	if r.sessionID == "" {
		r.sessionID = uuid.NewString()
	}

	if r.beats != nil {
		go r.beats.Run(ctx, r.cfg.HeartbeatInterval, r.statusSnapshot)
	}

	message := string(r.cfg.TaskContext)
	for {
		outcome, done := r.driveOneRun(ctx, message)
		if done {
			return outcome
		}
		// Continuous mode: the agent signalled completion but either the
		// threshold hasn't been met or the tree is dirty; re-prompt.
		message = r.continuationPrompt(outcome)
		r.runCount++
		if r.cfg.ContinuousMaxRuns > 0 && r.runCount >= r.cfg.ContinuousMaxRuns {
			return Outcome{Status: "completed", Reason: "continuous_max_runs", TotalCostUSD: outcome.TotalCostUSD, Turns: outcome.Turns, SessionID: r.sessionID}
		}
	}
}

// driveOneRun streams a single agent run (one or more turns, bounded by
// injected messages and budget caps) to completion or failure. The bool
// return reports whether the overall Run should stop (true) or loop again
// in continuous mode (false).
func (r *Runner) driveOneRun(ctx context.Context, initialMessage string) (Outcome, bool) {
	message := initialMessage
	for {
		blocks, err := r.agent.Turn(ctx, r.sessionID, message)
		if err != nil {
			r.report(ctx, "agent.error", map[string]interface{}{"message": err.Error()})
			return Outcome{Status: "failed", Reason: "turn_error", SessionID: r.sessionID}, true
		}

		signal, turnCost, turnErr := r.drainTurn(ctx, blocks)
		r.budget.RecordTurn(turnCost)

		if turnErr != "" {
			return r.finish("failed", turnErr), true
		}

		if exhausted, reason := r.budget.Exhausted(); exhausted {
			r.report(ctx, "agent.budget_exhausted", map[string]interface{}{"reason": reason})
			return r.finish("budget_exhausted", reason), true
		}

		if signal != "" {
			return r.handleCompletionSignal(ctx, signal)
		}

		nextMsg, stop := r.nextMessage(ctx)
		if stop {
			return r.finish("failed", "cancelled"), true
		}
		message = nextMsg
	}
}

// drainTurn consumes every block of one turn, reporting each as an event
// and accumulating its cost. Returns the completion signal (if any), the
// turn's total cost, and a non-empty error string on a terminal error.
func (r *Runner) drainTurn(ctx context.Context, blocks <-chan codingagent.Block) (signal string, costUSD float64, errMsg string) {
	for blk := range blocks {
		switch b := blk.(type) {
		case codingagent.TextBlock:
			r.report(ctx, "agent.text", map[string]interface{}{"content": b.Content})
		case codingagent.ThinkingBlock:
			r.report(ctx, "agent.thinking", map[string]interface{}{"content": b.Content})
		case codingagent.ToolUseBlock:
			r.report(ctx, "agent.tool_use", map[string]interface{}{"call_id": b.CallID, "name": b.Name, "input": b.Input})
		case codingagent.ToolResultBlock:
			data := map[string]interface{}{"call_id": b.CallID, "output": b.Output, "is_error": b.IsError}
			if b.FilePath != "" {
				data["file_path"] = b.FilePath
				data["diff"] = b.Diff
			}
			r.report(ctx, "agent.tool_result", data)
		case codingagent.UsageBlock:
			costUSD += b.CostUSD
			r.report(ctx, "usage", map[string]interface{}{"prompt_tokens": b.PromptTokens, "completion_tokens": b.CompletionTokens, "cost_usd": b.CostUSD})
		case codingagent.CompletionSignalBlock:
			signal = b.Signal
			r.report(ctx, "agent.completion_signal", map[string]interface{}{"signal": b.Signal})
		case codingagent.ErrorBlock:
			errMsg = b.Message
			r.report(ctx, "agent.error", map[string]interface{}{"message": b.Message})
		}
	}
	return signal, costUSD, errMsg
}

// nextMessage polls for injected messages between turns (never mid-turn)
// and folds them into the next user turn, per §4.6's message-injection
// semantics. It returns stop=true when a cancellation interrupt arrives.
func (r *Runner) nextMessage(ctx context.Context) (string, bool) {
	if r.poller == nil {
		return "", false
	}

	msgs, err := r.poller.Poll(ctx)
	if err != nil {
		r.logger.Warn("message poll failed", "error", err)
		return "", false
	}
	defer r.poller.Ack(msgs)

	var combined string
	for _, m := range msgs {
		if m.Type == MessageInterrupt || m.IsCancel() {
			return "", true
		}
		if text, ok := m.Body["text"].(string); ok {
			combined += text + "\n"
		}
	}
	return combined, false
}

// handleCompletionSignal decides, once the agent has signalled completion
// threshold reached times, whether the run is truly done (continuous mode
// requires a clean git tree and enough consecutive signals) or must loop
// for another re-prompted run.
func (r *Runner) handleCompletionSignal(ctx context.Context, signal string) (Outcome, bool) {
	if signal != r.cfg.CompletionSignal {
		// An unrecognized signal is treated as ordinary text; keep driving.
		return Outcome{}, false
	}
	r.completionHits++

	if !r.cfg.ContinuousMode {
		return r.finish("completed", ""), true
	}

	if r.completionHits < r.cfg.CompletionThreshold {
		return Outcome{}, false
	}

	if r.cfg.CWD != "" {
		status, err := CheckGitStatus(ctx, r.cfg.CWD)
		if err == nil && status.NeedsRecommit() {
			r.completionHits = 0
			return Outcome{}, false
		}
	}

	if r.cfg.RequireSpecSkill && r.cfg.CWD != "" {
		if err := ValidateSpecOutput(r.cfg.CWD); err != nil {
			r.report(ctx, "agent.failed", map[string]interface{}{"reason": "spec_validation", "error": err.Error()})
			return r.finish("failed", "spec_validation"), true
		}
	}

	return r.finish("completed", ""), true
}

// continuationPrompt builds the message re-injected after a continuous-mode
// run that wasn't accepted as final (dirty tree, threshold not met).
func (r *Runner) continuationPrompt(_ Outcome) string {
	return "Your previous completion signal was not accepted. Commit any outstanding changes and continue."
}

func (r *Runner) finish(status, reason string) Outcome {
	cost, turns, _ := r.budget.Snapshot()
	eventType := "agent." + status
	r.report(context.Background(), eventType, map[string]interface{}{"reason": reason, "total_cost_usd": cost, "turns": turns})
	return Outcome{Status: status, Reason: reason, TotalCostUSD: cost, Turns: turns, SessionID: r.sessionID}
}

func (r *Runner) report(ctx context.Context, eventType string, data map[string]interface{}) {
	if r.reporter == nil {
		return
	}
	if err := r.reporter.Report(ctx, NewEvent(eventType, "", "", data)); err != nil {
		r.logger.Warn("event report failed", "event_type", eventType, "error", err)
	}
}

func (r *Runner) statusSnapshot() (string, *string, map[string]interface{}) {
	cost, turns, wall := r.budget.Snapshot()
	return "running", nil, map[string]interface{}{
		"total_cost_usd": cost,
		"turns":          turns,
		"wall_time_s":    wall.Seconds(),
	}
}
