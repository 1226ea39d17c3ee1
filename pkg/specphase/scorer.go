package specphase

import (
	"context"
	"strconv"
	"strings"
)

// minOutputLength is the shortest output DefaultScorer accepts at all —
// below this a phase is almost certainly an empty or truncated run,
// never a genuinely thin but valid artifact (§4.7 step 3's acceptance
// check starts from "did the agent produce anything usable").
const minOutputLength = 40

// DefaultScorer is the built-in ThresholdEvaluator scoring function: for
// the sync phase it validates the generated artifacts' frontmatter and
// dependency graph (ParseArtifact/ValidateArtifactSet — a real
// correctness check, not a heuristic), and for every other phase it
// falls back to a minimum-length sanity check, since those phases
// produce free-form exploration/requirements/design/tasks prose that
// only a human or a further LLM judge could meaningfully score — neither
// of which this orchestrator-side evaluator has the budget or mandate to
// invoke on every attempt.
func DefaultScorer(_ context.Context, phase Phase, output string) (float64, string, map[string]interface{}, error) {
	if phase == PhaseSync {
		return scoreSyncArtifacts(output)
	}
	if len(strings.TrimSpace(output)) < minOutputLength {
		return 0, "phase output is too short to be a real result", nil, nil
	}
	return 1, "non-empty phase output accepted", nil, nil
}

// artifactSeparator joins multiple artifact documents in one sync-phase
// output file. It cannot be "---" — that is the frontmatter fence every
// individual artifact already opens and closes with.
const artifactSeparator = "\n===\n"

// scoreSyncArtifacts splits a multi-document sync output on
// artifactSeparator, parses and validates each one.
func scoreSyncArtifacts(output string) (float64, string, map[string]interface{}, error) {
	var docs []string
	for _, doc := range strings.Split(output, artifactSeparator) {
		if trimmed := strings.TrimSpace(doc); trimmed != "" {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return 0, "sync phase produced no artifact documents", nil, nil
	}

	artifacts := make([]Artifact, 0, len(docs))
	for i, doc := range docs {
		a, err := ParseArtifact(doc)
		if err != nil {
			return 0, "artifact " + strconv.Itoa(i+1) + " failed to parse: " + err.Error(), nil, nil
		}
		artifacts = append(artifacts, a)
	}

	if err := ValidateArtifactSet(artifacts); err != nil {
		return 0, err.Error(), nil, nil
	}

	return 1, "all artifacts validated", map[string]interface{}{"artifact_count": len(artifacts)}, nil
}
