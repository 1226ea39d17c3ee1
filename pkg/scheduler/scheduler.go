package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/pkg/apperrors"
	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/store"
)

// tracer emits one span per scheduler tick, covering scoring and admission
// of the whole ready pool.
var tracer = otel.Tracer("github.com/forgekit/autoforge/pkg/scheduler")

// candidatePoolSize bounds how many top-scored ready tasks Next() inspects
// per call before giving up for this cycle.
const candidatePoolSize = 50

// Assignment is what the scheduler hands the orchestrator worker: a task
// claimed for a specific agent.
type Assignment struct {
	Task    *ent.Task
	AgentID string
}

// ErrNoAssignment indicates no ready task passed admission this cycle.
var ErrNoAssignment = errors.New("no task ready for assignment")

// Scheduler is the Task Scheduler (C4): it scores pending tasks, confirms
// each candidate's admission checks, and claims the first that passes for a
// capability-matching IDLE agent.
type Scheduler struct {
	store   *store.Store
	weights config.ScoreWeights
}

// New creates a Scheduler backed by st, scoring with weights.
func New(st *store.Store, weights config.ScoreWeights) *Scheduler {
	return &Scheduler{store: st, weights: weights}
}

// Next rescans the ready pool, recomputes every candidate's score, and
// claims the first admissible one. Tasks that fail admission are requeued
// with their updated score and skipped this cycle, per §4.4.
func (s *Scheduler) Next(ctx context.Context) (*Assignment, error) {
	ctx, span := tracer.Start(ctx, "scheduler.Next", trace.WithAttributes(
		attribute.Int("scheduler.candidate_pool_size", candidatePoolSize),
	))
	defer span.End()

	assignment, err := s.next(ctx)
	if err != nil && !errors.Is(err, ErrNoAssignment) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if assignment != nil {
		span.SetAttributes(
			attribute.String("scheduler.assigned_task_id", assignment.Task.ID),
			attribute.String("scheduler.assigned_agent_id", assignment.AgentID),
		)
	}
	return assignment, err
}

func (s *Scheduler) next(ctx context.Context) (*Assignment, error) {
	candidates, err := s.store.ListReadyTasks(ctx, candidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("list ready tasks: %w", err)
	}

	now := time.Now()
	scored := make([]*ent.Task, len(candidates))
	copy(scored, candidates)
	for _, t := range scored {
		downstream, err := s.store.CountDownstreamBlocked(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("count downstream blocked for %s: %w", t.ID, err)
		}
		score := Score(t, downstream, s.weights, now)
		if err := s.store.TouchScore(ctx, t.ID, score); err != nil {
			slog.Warn("failed to persist recomputed score", "task_id", t.ID, "error", err)
		}
		t.Score = score
	}
	reorderByScore(scored)

	for _, t := range scored {
		result, err := s.evaluate(ctx, t)
		if err != nil {
			slog.Error("admission check failed", "task_id", t.ID, "error", err)
			continue
		}
		if !result.ok {
			slog.Debug("task skipped this cycle", "task_id", t.ID, "reason", result.reason)
			continue
		}

		claimed, err := s.store.ClaimTaskForAgent(ctx, t.ID, result.agentID, t.Version)
		if err != nil {
			if errors.Is(err, apperrors.ErrVersionConflict) {
				continue // another scheduler pass claimed it first
			}
			return nil, fmt.Errorf("claim task %s: %w", t.ID, err)
		}
		return &Assignment{Task: claimed, AgentID: result.agentID}, nil
	}

	return nil, ErrNoAssignment
}

// reorderByScore sorts by (-score, created_at), ties broken by lexicographic
// id, matching the priority structure's ordering key in §4.4.
func reorderByScore(tasks []*ent.Task) {
	sort.Slice(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
}

func less(a, b *ent.Task) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
