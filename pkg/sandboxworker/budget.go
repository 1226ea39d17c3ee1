package sandboxworker

import "time"

// BudgetTracker enforces the three termination thresholds §4.6 names:
// total cost, turn count, and wall-clock duration. Any one of them
// exceeding its cap trips the budget and the drive loop must stop the
// agent with `agent.budget_exhausted`.
type BudgetTracker struct {
	maxCostUSD float64
	maxTurns   int
	maxWall    time.Duration
	startedAt  time.Time

	totalCostUSD float64
	turns        int
}

// NewBudgetTracker builds a tracker against a Config's caps, starting the
// wall-clock timer now.
func NewBudgetTracker(cfg *Config) *BudgetTracker {
	return &BudgetTracker{
		maxCostUSD: cfg.MaxBudgetUSD,
		maxTurns:   cfg.MaxTurns,
		maxWall:    cfg.MaxDurationS,
		startedAt:  time.Now(),
	}
}

// RecordTurn accounts for one completed agent turn and its incremental
// cost.
func (b *BudgetTracker) RecordTurn(costUSD float64) {
	b.turns++
	b.totalCostUSD += costUSD
}

// Exhausted reports whether any cap has been exceeded, and if so which one
// (for the event payload's reason field).
func (b *BudgetTracker) Exhausted() (bool, string) {
	if b.totalCostUSD >= b.maxCostUSD {
		return true, "cost"
	}
	if b.maxTurns > 0 && b.turns >= b.maxTurns {
		return true, "turns"
	}
	if b.maxWall > 0 && time.Since(b.startedAt) >= b.maxWall {
		return true, "duration"
	}
	return false, ""
}

// Snapshot returns the current totals, used in heartbeat metrics and the
// final completion summary.
func (b *BudgetTracker) Snapshot() (costUSD float64, turns int, wall time.Duration) {
	return b.totalCostUSD, b.turns, time.Since(b.startedAt)
}
