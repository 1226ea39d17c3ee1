package merge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/forgekit/autoforge/ent/mergeattempt"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/eventbus"
	"github.com/forgekit/autoforge/pkg/store"
)

// ChangesetSource supplies the branch changesets a convergence merge needs:
// the merge base content and each sibling task's proposed file changes.
// Implementations typically read from the sandbox workers' recorded
// file-diff events (§4.6); kept as an interface so the coordinator never
// depends on how those diffs were produced or stored.
type ChangesetSource interface {
	MergeBase(ctx context.Context, ticketID string) (map[string]string, error)
	BranchChangesets(ctx context.Context, sourceTaskIDs []string) ([]BranchChangeset, error)
}

// Coordinator runs convergence merges for tickets whose sibling tasks have
// all succeeded (the scheduler's merge_required event, §4.4/§4.9).
type Coordinator struct {
	store     *store.Store
	changes   ChangesetSource
	resolver  Resolver
	cfg       *config.MergeConfig
	logger    *slog.Logger
}

// New creates a Coordinator. resolver may be nil — unresolvable conflicts
// then always escalate rather than attempt LLM-assisted resolution.
func New(st *store.Store, changes ChangesetSource, resolver Resolver, cfg *config.MergeConfig) *Coordinator {
	if cfg == nil {
		cfg = config.DefaultMergeConfig()
	}
	return &Coordinator{
		store:    st,
		changes:  changes,
		resolver: resolver,
		cfg:      cfg,
		logger:   slog.Default().With("component", "merge-coordinator"),
	}
}

// Run subscribes to merge_required events on the bus and processes each
// convergence as it arrives, until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context, bus *eventbus.Bus) {
	ch, unsubscribe := bus.Subscribe(eventbus.Filter{EventType: "merge_required"})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			parentTaskID := env.EntityID
			ticketID, _ := env.Payload["ticket_id"].(string)
			if err := c.Converge(ctx, parentTaskID, ticketID); err != nil {
				c.logger.Error("convergence merge failed", "parent_task_id", parentTaskID, "ticket_id", ticketID, "error", err)
			}
		}
	}
}

// Converge runs the full dry-run/order/apply/audit cycle for one parent
// task's convergence (§4.9 steps 1-4).
func (c *Coordinator) Converge(ctx context.Context, parentTaskID, ticketID string) error {
	parent, err := c.store.GetTask(ctx, parentTaskID)
	if err != nil {
		return fmt.Errorf("load convergence task: %w", err)
	}
	if ticketID == "" {
		ticketID = parent.TicketID
	}
	siblings, err := c.store.ListSiblingTasks(ctx, parentTaskID)
	if err != nil {
		return fmt.Errorf("list sibling tasks: %w", err)
	}
	sourceTaskIDs := make([]string, 0, len(siblings))
	branches := make([]string, 0, len(siblings))
	for _, s := range siblings {
		sourceTaskIDs = append(sourceTaskIDs, s.ID)
		branches = append(branches, branchNameFor(s.ID))
	}

	attempt, err := c.store.CreateMergeAttempt(ctx, uuid.New().String(), parentTaskID, ticketID, targetBranchFor(ticketID), sourceTaskIDs, branches)
	if err != nil {
		return fmt.Errorf("create merge attempt: %w", err)
	}

	base, err := c.changes.MergeBase(ctx, ticketID)
	if err != nil {
		return c.fail(ctx, attempt.ID, fmt.Errorf("load merge base: %w", err))
	}
	changesets, err := c.changes.BranchChangesets(ctx, sourceTaskIDs)
	if err != nil {
		return c.fail(ctx, attempt.ID, fmt.Errorf("load branch changesets: %w", err))
	}

	if err := c.store.AdvanceMergeAttempt(ctx, attempt.ID, mergeattempt.StatusDryRun, nil); err != nil {
		return fmt.Errorf("advance to dry_run: %w", err)
	}

	order, scores := c.dryRun(base, changesets)
	scoreByTask := make(map[string]int, len(scores))
	for taskID, score := range scores {
		scoreByTask[taskID] = int(score * 100)
	}
	if err := c.store.RecordConflictScores(ctx, attempt.ID, scoreByTask); err != nil {
		return fmt.Errorf("record conflict scores: %w", err)
	}

	if err := c.store.AdvanceMergeAttempt(ctx, attempt.ID, mergeattempt.StatusMerging, order); err != nil {
		return fmt.Errorf("advance to merging: %w", err)
	}

	outcome, err := c.apply(ctx, attempt.ID, base, changesets, order, scores)
	if err != nil {
		return c.fail(ctx, attempt.ID, err)
	}

	if err := c.store.AdvanceMergeAttempt(ctx, attempt.ID, mergeattempt.StatusSucceeded, nil); err != nil {
		return fmt.Errorf("advance to succeeded: %w", err)
	}
	c.logger.Info("convergence merge succeeded", "merge_attempt_id", attempt.ID, "ticket_id", ticketID, "outcome", outcome)
	return nil
}

// dryRun scores each changeset's conflict with the others and orders the
// merge ascending by score, ties broken lexicographically by task id
// (§4.9 step 2).
func (c *Coordinator) dryRun(base map[string]string, changesets []BranchChangeset) ([]string, map[string]float64) {
	scores := make(map[string]float64, len(changesets))
	accumulated := base
	remaining := make([]BranchChangeset, len(changesets))
	copy(remaining, changesets)

	order := make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		// Greedily pick the least-conflicting changeset against the merge
		// state accumulated so far, ties broken lexicographically by task
		// id (§4.9 step 2). Scoring against a running accumulator rather
		// than the static base means a changeset's conflict score reflects
		// what actually precedes it in the merge order.
		sort.Slice(remaining, func(i, j int) bool {
			si := ConflictScore(base, accumulated, remaining[i])
			sj := ConflictScore(base, accumulated, remaining[j])
			if si != sj {
				return si < sj
			}
			return remaining[i].TaskID < remaining[j].TaskID
		})

		next := remaining[0]
		remaining = remaining[1:]
		scores[next.TaskID] = ConflictScore(base, accumulated, next)
		accumulated = applyClean(accumulated, next)
		order = append(order, next.TaskID)
	}
	return order, scores
}

// apply merges changesets in the order decided by dryRun, invoking the
// bounded LLM-assisted resolver on any conflicting file (§4.9 step 3).
func (c *Coordinator) apply(ctx context.Context, attemptID string, base map[string]string, changesets []BranchChangeset, order []string, scores map[string]float64) (string, error) {
	byTask := make(map[string]BranchChangeset, len(changesets))
	for _, cs := range changesets {
		byTask[cs.TaskID] = cs
	}

	merged := make(map[string]string, len(base))
	for k, v := range base {
		merged[k] = v
	}
	touchedBy := make(map[string]string) // path -> task id of the branch that last wrote it

	invocations := 0
	var totalCost float64

	for _, taskID := range order {
		cs, ok := byTask[taskID]
		if !ok {
			continue
		}

		for _, fc := range cs.Files {
			_, conflicted := touchedBy[fc.Path]
			if !conflicted || merged[fc.Path] == fc.Content {
				merged[fc.Path] = fc.Content
				touchedBy[fc.Path] = taskID
				continue
			}
			existing := merged[fc.Path]

			// A changeset whose dry-run score is above the escalation
			// threshold goes straight to a human instead of attempting an
			// LLM-assisted resolution (§4.9 step 3 / MergeConfig doc).
			if scores[taskID] > c.cfg.ConflictScoreEscalationThreshold {
				return "", fmt.Errorf("conflict in %s from task %s exceeds conflict_score_escalation_threshold (%.2f): escalating to human review", fc.Path, taskID, c.cfg.ConflictScoreEscalationThreshold)
			}

			if c.resolver == nil {
				return "", fmt.Errorf("unresolved conflict in %s from task %s: no resolver configured", fc.Path, taskID)
			}
			if invocations >= c.cfg.MaxLLMInvocationsPerAttempt {
				return "", fmt.Errorf("merge attempt %s exceeded max_llm_invocations_per_attempt (%d)", attemptID, c.cfg.MaxLLMInvocationsPerAttempt)
			}
			if totalCost >= c.cfg.MaxCostUSDPerAttempt {
				return "", fmt.Errorf("merge attempt %s exceeded max_cost_usd_per_attempt (%.2f)", attemptID, c.cfg.MaxCostUSDPerAttempt)
			}

			resolution, err := c.resolver.Resolve(ctx, Conflict{
				Path:            fc.Path,
				BaseContent:     base[fc.Path],
				TargetContent:   existing,
				IncomingContent: fc.Content,
			})
			invocations++
			totalCost += resolution.CostUSD
			if _, accErr := c.store.AccumulateMergeCost(ctx, attemptID, resolution.TokensUsed, resolution.CostUSD); accErr != nil {
				c.logger.Warn("failed to accumulate merge cost", "merge_attempt_id", attemptID, "error", accErr)
			}
			step := map[string]interface{}{
				"task_id":    taskID,
				"path":       fc.Path,
				"resolved":   resolution.Resolved,
				"tokens":     resolution.TokensUsed,
				"cost_usd":   resolution.CostUSD,
				"at":         time.Now().Format(time.RFC3339),
			}
			if appendErr := c.store.AppendResolutionStep(ctx, attemptID, step); appendErr != nil {
				c.logger.Warn("failed to append resolution step", "merge_attempt_id", attemptID, "error", appendErr)
			}
			if err != nil || !resolution.Resolved {
				return "", fmt.Errorf("resolver could not resolve conflict in %s from task %s: %w", fc.Path, taskID, err)
			}
			merged[fc.Path] = resolution.ResolvedContent
			touchedBy[fc.Path] = taskID
		}
	}

	return fmt.Sprintf("merged %d branch(es)", len(order)), nil
}

func (c *Coordinator) fail(ctx context.Context, attemptID string, cause error) error {
	if err := c.store.AdvanceMergeAttempt(ctx, attemptID, mergeattempt.StatusFailed, nil); err != nil {
		c.logger.Error("failed to mark merge attempt failed", "merge_attempt_id", attemptID, "error", err)
	}
	return cause
}

func branchNameFor(taskID string) string {
	return "task/" + taskID
}

func targetBranchFor(ticketID string) string {
	return "ticket/" + ticketID
}
