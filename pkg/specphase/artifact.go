package specphase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ArtifactKind identifies which of the four families of SYNC-phase
// markdown artifact a document belongs to (§4.7 "Artifact generation").
type ArtifactKind string

const (
	ArtifactRequirement ArtifactKind = "requirement"
	ArtifactDesign      ArtifactKind = "design"
	ArtifactTask        ArtifactKind = "task"
	ArtifactTicket      ArtifactKind = "ticket"
)

var idPattern = map[ArtifactKind]*regexp.Regexp{
	ArtifactRequirement: regexp.MustCompile(`^REQ-[A-Z0-9]+-[A-Z0-9]+-\d{3,}$`),
	ArtifactTask:        regexp.MustCompile(`^TSK-\d{3,}$`),
	ArtifactTicket:      regexp.MustCompile(`^TKT-\d{3,}$`),
}

// allowedStatuses is the normalized status vocabulary every artifact's
// frontmatter status field must resolve to (§4.7 validation rules).
var allowedStatuses = map[string]struct{}{
	"Draft":       {},
	"Review":      {},
	"Implemented": {},
	"Archived":    {},
}

// Frontmatter is the parsed YAML block every artifact file carries.
type Frontmatter struct {
	ID         string   `yaml:"id"`
	Status     string   `yaml:"status"`
	BlockedBy  []string `yaml:"blocked_by,omitempty"`
	Blocks     []string `yaml:"blocks,omitempty"`
	References []string `yaml:"references,omitempty"`
}

// Artifact pairs a parsed Frontmatter with the markdown body that
// followed it, plus the kind its id prefix implies.
type Artifact struct {
	Kind        ArtifactKind
	Frontmatter Frontmatter
	Body        string
}

// ParseArtifact splits a SYNC-phase markdown file into its frontmatter
// and body, validating the id format against kind's expected prefix.
func ParseArtifact(raw string) (Artifact, error) {
	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return Artifact{}, err
	}

	var parsed Frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
		return Artifact{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	kind, ok := kindOf(parsed.ID)
	if !ok {
		return Artifact{}, fmt.Errorf("artifact id %q does not match any known prefix", parsed.ID)
	}

	return Artifact{Kind: kind, Frontmatter: parsed, Body: body}, nil
}

func splitFrontmatter(raw string) (fm, body string, err error) {
	const delim = "---"
	if !strings.HasPrefix(raw, delim) {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}
	rest := raw[len(delim):]
	idx := strings.Index(rest, delim)
	if idx < 0 {
		return "", "", fmt.Errorf("unterminated frontmatter block")
	}
	return rest[:idx], strings.TrimPrefix(rest[idx+len(delim):], "\n"), nil
}

func kindOf(id string) (ArtifactKind, bool) {
	switch {
	case idPattern[ArtifactRequirement].MatchString(id):
		return ArtifactRequirement, true
	case idPattern[ArtifactTask].MatchString(id):
		return ArtifactTask, true
	case idPattern[ArtifactTicket].MatchString(id):
		return ArtifactTicket, true
	default:
		return "", false
	}
}

// NormalizeStatus reports whether status is one of the allowed values
// (§4.7: "Status values are normalized to the allowed set").
func NormalizeStatus(status string) (string, bool) {
	if _, ok := allowedStatuses[status]; ok {
		return status, true
	}
	return "", false
}

// ValidationError collects every rule violation found across a set of
// artifacts, rather than failing on the first one, so SYNC feedback can
// list everything the agent needs to fix in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("artifact validation failed: %s", strings.Join(e.Violations, "; "))
}

// ValidateArtifactSet enforces every rule §4.7 names before SYNC may
// report success: unique ids, resolvable references, normalized status,
// and an acyclic blocked_by/blocks graph.
func ValidateArtifactSet(artifacts []Artifact) error {
	var violations []string

	seen := make(map[string]struct{}, len(artifacts))
	for _, a := range artifacts {
		id := a.Frontmatter.ID
		if _, dup := seen[id]; dup {
			violations = append(violations, fmt.Sprintf("duplicate id %s", id))
			continue
		}
		seen[id] = struct{}{}

		if _, ok := NormalizeStatus(a.Frontmatter.Status); !ok {
			violations = append(violations, fmt.Sprintf("%s: invalid status %q", id, a.Frontmatter.Status))
		}
	}

	for _, a := range artifacts {
		for _, ref := range allReferences(a.Frontmatter) {
			if _, ok := seen[ref]; !ok {
				violations = append(violations, fmt.Sprintf("%s: unresolved reference %s", a.Frontmatter.ID, ref))
			}
		}
	}

	if sccs := findCycles(artifacts); len(sccs) > 0 {
		for _, scc := range sccs {
			sort.Strings(scc)
			violations = append(violations, fmt.Sprintf("circular dependency among %s", strings.Join(scc, ", ")))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func allReferences(fm Frontmatter) []string {
	refs := make([]string, 0, len(fm.BlockedBy)+len(fm.Blocks)+len(fm.References))
	refs = append(refs, fm.BlockedBy...)
	refs = append(refs, fm.Blocks...)
	refs = append(refs, fm.References...)
	return refs
}

// findCycles runs Tarjan's strongly-connected-components algorithm over
// the blocked_by graph and returns every SCC of size > 1 — any such SCC
// is a circular dependency §4.7 requires rejecting.
func findCycles(artifacts []Artifact) [][]string {
	graph := make(map[string][]string, len(artifacts))
	for _, a := range artifacts {
		graph[a.Frontmatter.ID] = append(graph[a.Frontmatter.ID], a.Frontmatter.BlockedBy...)
	}

	t := &tarjan{
		graph:   graph,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, visited := t.index[id]; !visited {
			t.strongConnect(id)
		}
	}

	var sccs [][]string
	for _, scc := range t.result {
		if len(scc) > 1 {
			sccs = append(sccs, scc)
		}
	}
	return sccs
}

type tarjan struct {
	graph   map[string][]string
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	result  [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.result = append(t.result, scc)
	}
}
