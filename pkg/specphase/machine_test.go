package specphase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgekit/autoforge/ent"
	entspec "github.com/forgekit/autoforge/ent/spec"
)

type fakeSpecStore struct {
	sp              *ent.Spec
	advancedTo      entspec.CurrentPhase
	recordedFailure string
	attempts        map[string]int
}

func (f *fakeSpecStore) GetSpec(context.Context, string) (*ent.Spec, error) {
	return f.sp, nil
}

func (f *fakeSpecStore) AdvancePhase(_ context.Context, _ string, next entspec.CurrentPhase, phaseData map[string]interface{}) error {
	f.advancedTo = next
	f.sp.CurrentPhase = next
	f.sp.PhaseData = phaseData
	f.sp.LastError = nil
	return nil
}

func (f *fakeSpecStore) RecordPhaseFailure(_ context.Context, _ string, phase string, errMsg string) (int, error) {
	if f.attempts == nil {
		f.attempts = map[string]int{}
	}
	f.attempts[phase]++
	f.recordedFailure = errMsg
	f.sp.LastError = &errMsg
	return f.attempts[phase], nil
}

func alwaysPassConfigs() map[Phase]PhaseConfig {
	return map[Phase]PhaseConfig{
		PhaseExplore:      {},
		PhaseRequirements: {},
		PhaseDesign:       {},
		PhaseTasks:        {},
		PhaseSync:         {},
	}
}

type stubExecutor struct {
	output string
	err    error
}

func (s stubExecutor) Execute(context.Context, Phase, string, PhaseConfig) (string, error) {
	return s.output, s.err
}

func TestMachine_Advance_AdvancesOnPass(t *testing.T) {
	sp := &ent.Spec{Title: "t", Description: "d", CurrentPhase: entspec.CurrentPhaseExplore}
	store := &fakeSpecStore{sp: sp}
	evaluator := NewThresholdEvaluator(func(context.Context, Phase, string) (float64, string, map[string]interface{}, error) {
		return 1.0, "", nil, nil
	})
	m := NewMachine(store, NewBuilder(), stubExecutor{output: "explore findings"}, evaluator, alwaysPassConfigs())

	phase, done, err := m.Advance(context.Background(), "spec-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseExplore, phase)
	assert.False(t, done)
	assert.Equal(t, entspec.CurrentPhaseRequirements, store.advancedTo)
	assert.Equal(t, "explore findings", sp.PhaseData["explore"])
}

func TestMachine_Advance_RecordsFailureBelowThreshold(t *testing.T) {
	sp := &ent.Spec{Title: "t", Description: "d", CurrentPhase: entspec.CurrentPhaseExplore}
	store := &fakeSpecStore{sp: sp}
	evaluator := NewThresholdEvaluator(func(context.Context, Phase, string) (float64, string, map[string]interface{}, error) {
		return 0.1, "not enough detail", nil, nil
	})
	m := NewMachine(store, NewBuilder(), stubExecutor{output: "thin"}, evaluator, alwaysPassConfigs())

	_, done, err := m.Advance(context.Background(), "spec-1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "not enough detail", store.recordedFailure)
}

func TestMachine_Advance_ExhaustsAttempts(t *testing.T) {
	sp := &ent.Spec{Title: "t", Description: "d", CurrentPhase: entspec.CurrentPhaseExplore}
	store := &fakeSpecStore{sp: sp, attempts: map[string]int{"explore": DefaultMaxAttemptsPerPhase - 1}}
	evaluator := NewThresholdEvaluator(func(context.Context, Phase, string) (float64, string, map[string]interface{}, error) {
		return 0.1, "still bad", nil, nil
	})
	m := NewMachine(store, NewBuilder(), stubExecutor{output: "thin"}, evaluator, alwaysPassConfigs())

	_, _, err := m.Advance(context.Background(), "spec-1")
	assert.Error(t, err)
}

func TestMachine_Advance_TerminalPhaseIsNoop(t *testing.T) {
	sp := &ent.Spec{Title: "t", Description: "d", CurrentPhase: entspec.CurrentPhaseComplete}
	store := &fakeSpecStore{sp: sp}
	m := NewMachine(store, NewBuilder(), stubExecutor{}, NewThresholdEvaluator(nil), alwaysPassConfigs())

	phase, done, err := m.Advance(context.Background(), "spec-1")
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, phase)
	assert.True(t, done)
}

func TestMachine_Run_DrivesThroughAllPhasesToComplete(t *testing.T) {
	sp := &ent.Spec{Title: "t", Description: "d", CurrentPhase: entspec.CurrentPhaseExplore}
	store := &fakeSpecStore{sp: sp}
	evaluator := NewThresholdEvaluator(func(context.Context, Phase, string) (float64, string, map[string]interface{}, error) {
		return 1.0, "", nil, nil
	})
	m := NewMachine(store, NewBuilder(), stubExecutor{output: "ok"}, evaluator, alwaysPassConfigs())

	err := m.Run(context.Background(), "spec-1")
	require.NoError(t, err)
	assert.Equal(t, entspec.CurrentPhaseComplete, sp.CurrentPhase)
}
