package sandboxworker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitStatus reports whether the working tree is clean and whether the
// current HEAD has any commits the upstream is missing, the two facts
// the continuous-mode completion check needs (§4.6: "on a completion
// signal in continuous mode, check git status before accepting it").
type GitStatus struct {
	Dirty            bool
	UncommittedCount int
	HeadCommit       string
}

// CheckGitStatus runs `git status --porcelain` and `git rev-parse HEAD`
// against cwd, following the same exec.CommandContext + combined
// stdout/stderr capture shape the sandbox provider's docker CLI shelling
// uses.
func CheckGitStatus(ctx context.Context, cwd string) (GitStatus, error) {
	porcelain, err := runGit(ctx, cwd, "status", "--porcelain")
	if err != nil {
		return GitStatus{}, fmt.Errorf("git status: %w", err)
	}

	lines := 0
	for _, l := range strings.Split(porcelain, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}

	head, err := runGit(ctx, cwd, "rev-parse", "HEAD")
	if err != nil {
		return GitStatus{}, fmt.Errorf("git rev-parse HEAD: %w", err)
	}

	return GitStatus{
		Dirty:            lines > 0,
		UncommittedCount: lines,
		HeadCommit:       strings.TrimSpace(head),
	}, nil
}

// NeedsRecommit reports whether a completion signal should be rejected and
// the agent re-prompted to commit its work before the run is accepted as
// truly complete.
func (s GitStatus) NeedsRecommit() bool {
	return s.Dirty
}

func runGit(ctx context.Context, cwd string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = cwd
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
