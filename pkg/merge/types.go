// Package merge implements the Merge Coordinator (C9): when a ticket's
// parallel sibling tasks all converge on one target branch, it dry-run
// scores the conflicts each incoming branch would produce, orders the
// merge from least to most conflicted, and applies sequentially with a
// bounded LLM-assisted resolver for anything that doesn't apply cleanly.
package merge

import "context"

// FileChange is one file's complete proposed content as produced by a
// task's sandbox worker, keyed against the merge base by Path.
type FileChange struct {
	Path    string
	Content string
}

// BranchChangeset is one source task's complete set of file changes
// against the merge base, as recorded by the sandbox worker that produced
// it (see Task.owned_files and the file-diff tracking in §4.6).
type BranchChangeset struct {
	TaskID string
	Branch string
	Files  []FileChange
}

// Conflict describes one file where a candidate changeset's edits overlap
// lines already touched by the accumulated merge state.
type Conflict struct {
	Path          string
	BaseContent   string
	TargetContent string
	IncomingContent string
}

// Resolution is what a Resolver decided for one Conflict.
type Resolution struct {
	ResolvedContent string
	TokensUsed      int
	CostUSD         float64
	Resolved        bool // false means the resolver could not produce a safe merge
}

// Resolver invokes bounded LLM-assisted conflict resolution for one
// conflicting file. Implementations must respect the caller's context
// deadline and must not retry internally — the coordinator owns the
// invocation/cost budget (MergeConfig.MaxLLMInvocationsPerAttempt,
// MaxCostUSDPerAttempt).
type Resolver interface {
	Resolve(ctx context.Context, conflict Conflict) (Resolution, error)
}
