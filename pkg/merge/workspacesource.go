package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgekit/autoforge/pkg/store"
)

// WorkspaceChangesetSource reads merge inputs straight off the shared
// filesystem each sandbox worker persists its workspace to
// (Task.persistence_dir) rather than shelling out to git: the coordinator
// only ever needs whole-file content per FileChange, and task.owned_files
// already names the exact globs a sibling is allowed to have touched
// (§4.1 invariant 7), so there is no need for real branches or diffs.
//
// Layout under Root: "<ticket_id>/base" holds the workspace snapshot at
// the moment the parent task's children were dispatched; "<ticket_id>/tasks/<task_id>"
// holds each sibling's persisted post-run workspace.
type WorkspaceChangesetSource struct {
	store *store.Store
	Root  string
}

// NewWorkspaceChangesetSource builds a ChangesetSource rooted at root.
func NewWorkspaceChangesetSource(st *store.Store, root string) *WorkspaceChangesetSource {
	return &WorkspaceChangesetSource{store: st, Root: root}
}

// MergeBase implements ChangesetSource: the full file tree under the
// ticket's base snapshot, keyed by path relative to that snapshot.
func (w *WorkspaceChangesetSource) MergeBase(ctx context.Context, ticketID string) (map[string]string, error) {
	return readTree(filepath.Join(w.Root, ticketID, "base"))
}

// BranchChangesets implements ChangesetSource: for each source task, reads
// only the files its owned_files globs match out of its persisted
// workspace directory.
func (w *WorkspaceChangesetSource) BranchChangesets(ctx context.Context, sourceTaskIDs []string) ([]BranchChangeset, error) {
	changesets := make([]BranchChangeset, 0, len(sourceTaskIDs))
	for _, taskID := range sourceTaskIDs {
		t, err := w.store.GetTask(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("load task %s for changeset: %w", taskID, err)
		}

		dir := filepath.Join(w.Root, t.TicketID, "tasks", taskID)
		if t.PersistenceDir != nil && *t.PersistenceDir != "" {
			dir = *t.PersistenceDir
		}

		files, err := ownedFiles(dir, t.OwnedFiles)
		if err != nil {
			return nil, fmt.Errorf("read changeset for task %s: %w", taskID, err)
		}

		changesets = append(changesets, BranchChangeset{TaskID: taskID, Branch: taskID, Files: files})
	}
	return changesets, nil
}

// ownedFiles reads every file under dir matching one of the owned_files
// glob patterns (relative to dir). An empty pattern list means the whole
// tree is owned.
func ownedFiles(dir string, patterns []string) ([]FileChange, error) {
	if len(patterns) == 0 {
		tree, err := readTree(dir)
		if err != nil {
			return nil, err
		}
		return treeToFiles(tree), nil
	}

	seen := make(map[string]struct{})
	var out []FileChange
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid owned_files glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(dir, m)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[rel]; ok {
				continue
			}
			seen[rel] = struct{}{}
			content, err := os.ReadFile(m)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", m, err)
			}
			out = append(out, FileChange{Path: rel, Content: string(content)})
		}
	}
	return out, nil
}

// readTree walks dir recursively and returns path (relative to dir) ->
// content for every regular file. A missing dir is treated as empty —
// the merge base for a ticket with no prior convergence simply has none.
func readTree(dir string) (map[string]string, error) {
	out := make(map[string]string)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return out, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		out[rel] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return out, nil
}

func treeToFiles(tree map[string]string) []FileChange {
	out := make([]FileChange, 0, len(tree))
	for path, content := range tree {
		out = append(out, FileChange{Path: path, Content: content})
	}
	return out
}
