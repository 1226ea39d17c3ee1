package specphase

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/spec"
)

// SpecStore is the subset of pkg/store.Store the state machine needs,
// narrowed to an interface so the machine is testable without a database.
type SpecStore interface {
	GetSpec(ctx context.Context, id string) (*ent.Spec, error)
	AdvancePhase(ctx context.Context, id string, nextPhase spec.CurrentPhase, phaseData map[string]interface{}) error
	RecordPhaseFailure(ctx context.Context, id, phase string, errMsg string) (int, error)
}

// Machine drives a Spec through its five phases, retrying failed
// evaluations up to MaxAttemptsPerPhase and checkpointing progress after
// every phase transition (§4.7).
type Machine struct {
	store               SpecStore
	builder             *Builder
	executor            Executor
	evaluator           Evaluator
	phaseConfigs        map[Phase]PhaseConfig
	maxAttemptsPerPhase int
}

// NewMachine wires a Machine from its dependencies. phaseConfigs supplies
// the budget/tool/output-path envelope for each of the five phases.
func NewMachine(store SpecStore, builder *Builder, executor Executor, evaluator Evaluator, phaseConfigs map[Phase]PhaseConfig) *Machine {
	return &Machine{
		store:               store,
		builder:             builder,
		executor:            executor,
		evaluator:           evaluator,
		phaseConfigs:        phaseConfigs,
		maxAttemptsPerPhase: DefaultMaxAttemptsPerPhase,
	}
}

// Advance runs exactly one phase of the spec's state machine: builds the
// prompt, executes it, evaluates the result, and either advances the spec
// to the next phase or records a failed attempt for retry. It returns the
// phase actually attempted and whether the spec reached PhaseComplete.
func (m *Machine) Advance(ctx context.Context, specID string) (Phase, bool, error) {
	sp, err := m.store.GetSpec(ctx, specID)
	if err != nil {
		return "", false, fmt.Errorf("get spec %s: %w", specID, err)
	}

	current := Phase(sp.CurrentPhase)
	if current.Terminal() {
		return current, true, nil
	}

	cfg, ok := m.phaseConfigs[current]
	if !ok {
		return current, false, fmt.Errorf("no phase config for %q", current)
	}

	feedback := ""
	if sp.LastError != nil {
		feedback = *sp.LastError
	}

	prompt, err := m.builder.Build(current, sp.Title, sp.Description, sp.PhaseData, feedback)
	if err != nil {
		return current, false, fmt.Errorf("build prompt for %q: %w", current, err)
	}

	output, err := m.executor.Execute(ctx, current, prompt, cfg)
	if err != nil {
		if _, recErr := m.store.RecordPhaseFailure(ctx, specID, string(current), err.Error()); recErr != nil {
			return current, false, fmt.Errorf("record execution failure: %w", recErr)
		}
		return current, false, nil
	}

	eval, err := m.evaluator.Evaluate(ctx, current, output)
	if err != nil {
		return current, false, fmt.Errorf("evaluate %q output: %w", current, err)
	}

	if !eval.Passed {
		attempts, recErr := m.store.RecordPhaseFailure(ctx, specID, string(current), eval.Feedback)
		if recErr != nil {
			return current, false, fmt.Errorf("record phase failure: %w", recErr)
		}
		maxAttempts := m.maxAttemptsPerPhase
		if maxAttempts <= 0 {
			maxAttempts = DefaultMaxAttemptsPerPhase
		}
		if attempts >= maxAttempts {
			return current, false, fmt.Errorf("phase %q exhausted %d attempts: %s", current, attempts, eval.Feedback)
		}
		return current, false, nil
	}

	phaseData := sp.PhaseData
	if phaseData == nil {
		phaseData = make(map[string]interface{})
	}
	phaseData[string(current)] = output

	next := current.Next()
	if err := m.store.AdvancePhase(ctx, specID, spec.CurrentPhase(next), phaseData); err != nil {
		return current, false, fmt.Errorf("advance spec to %q: %w", next, err)
	}

	return current, next.Terminal(), nil
}

// Run drives the spec through every remaining phase, stopping at the
// first failed execution/evaluation that still has retries available
// (the caller re-invokes Run later, e.g. after a fresh sandbox resumes
// the spec) or once the spec reaches PhaseComplete.
func (m *Machine) Run(ctx context.Context, specID string) error {
	for {
		_, done, err := m.Advance(ctx, specID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		sp, err := m.store.GetSpec(ctx, specID)
		if err != nil {
			return fmt.Errorf("get spec %s: %w", specID, err)
		}
		if sp.LastError != nil {
			// The last Advance recorded a failed attempt with retries
			// remaining; stop here and let the caller re-invoke Run once
			// a fresh attempt (e.g. a new sandbox) is ready.
			return nil
		}
	}
}
