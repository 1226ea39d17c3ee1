package specphase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build_IncludesTitleAndTemplate(t *testing.T) {
	b := NewBuilder()
	prompt, err := b.Build(PhaseExplore, "Add retries", "Network calls should retry", nil, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Add retries")
	assert.Contains(t, prompt, "Explore the codebase")
}

func TestBuilder_Build_FoldsInPriorPhaseContext(t *testing.T) {
	b := NewBuilder()
	phaseData := map[string]interface{}{
		string(PhaseExplore): "Found three relevant files.",
	}
	prompt, err := b.Build(PhaseRequirements, "Add retries", "desc", phaseData, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Found three relevant files.")
	assert.Contains(t, prompt, "PHASE_CONTEXT_START")
}

func TestBuilder_Build_IncludesFeedbackOnRetry(t *testing.T) {
	b := NewBuilder()
	prompt, err := b.Build(PhaseDesign, "t", "d", nil, "missing a diagram")
	require.NoError(t, err)
	assert.Contains(t, prompt, "missing a diagram")
}

func TestBuilder_Build_UnknownPhaseErrors(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build(PhaseComplete, "t", "d", nil, "")
	assert.Error(t, err)
}
