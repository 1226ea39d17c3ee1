package specphase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExecutor_Execute_ReadsOutputPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.md")
	require.NoError(t, os.WriteFile(path, []byte("phase output"), 0o644))

	out, err := FileExecutor{}.Execute(context.Background(), PhaseExplore, "prompt", PhaseConfig{OutputPath: path})
	require.NoError(t, err)
	assert.Equal(t, "phase output", out)
}

func TestFileExecutor_Execute_ErrorsWithoutOutputPath(t *testing.T) {
	_, err := FileExecutor{}.Execute(context.Background(), PhaseExplore, "prompt", PhaseConfig{})
	assert.Error(t, err)
}

func TestFileExecutor_Execute_ErrorsOnMissingFile(t *testing.T) {
	_, err := FileExecutor{}.Execute(context.Background(), PhaseExplore, "prompt", PhaseConfig{OutputPath: "/nonexistent/path.md"})
	assert.Error(t, err)
}
