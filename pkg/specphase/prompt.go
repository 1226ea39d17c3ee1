package specphase

import (
	"fmt"
	"strings"
)

// promptTemplates holds the per-phase instruction text a prompt is
// assembled around (§4.7 step 1: "prompt template parameterized by spec
// title, description, and accumulated phase context").
var promptTemplates = map[Phase]string{
	PhaseExplore: "Explore the codebase and problem space for this spec. " +
		"Identify constraints, existing conventions, and open questions. " +
		"Write your findings to the designated output file.",
	PhaseRequirements: "Write normative requirements using SHALL/SHOULD/MAY/MUST language. " +
		"Each requirement needs a unique id of the form REQ-<AREA>-<SUB>-<NNN>.",
	PhaseDesign: "Write a design document covering the approach, tradeoffs, and architecture. " +
		"Include Mermaid diagrams where they clarify structure or flow.",
	PhaseTasks: "Decompose the design into tasks and tickets. " +
		"Each task gets a frontmatter id of the form TSK-<NNN>; each ticket TKT-<NNN> " +
		"with blocked_by/blocks dependencies. Reference the requirement and design ids each task satisfies.",
	PhaseSync: "Render the final set of requirement, design, task, and ticket artifacts " +
		"as markdown files with strict YAML frontmatter under the output directory.",
}

// Builder composes the full prompt for one phase execution, folding in
// every prior phase's accumulated context the way BuildStageContext
// folds completed stages into the next stage's prompt.
type Builder struct{}

// NewBuilder constructs a Builder. Stateless — phase templates are fixed
// and all other input is passed per call.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the prompt for phase, given the spec's title,
// description, prior phase_data (keyed by phase name), and feedback from
// a previous failed evaluation of this same phase (empty on the first
// attempt).
func (b *Builder) Build(phase Phase, title, description string, phaseData map[string]interface{}, feedback string) (string, error) {
	tmpl, ok := promptTemplates[phase]
	if !ok {
		return "", fmt.Errorf("no prompt template for phase %q", phase)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Spec: %s\n\n%s\n\n", title, description)
	sb.WriteString(tmpl)
	sb.WriteString("\n")

	if ctx := buildPhaseContext(phaseData); ctx != "" {
		sb.WriteString("\n")
		sb.WriteString(ctx)
	}

	if feedback != "" {
		fmt.Fprintf(&sb, "\n\nYour previous attempt at this phase was rejected with this feedback:\n%s\nAddress it before continuing.\n", feedback)
	}

	return sb.String(), nil
}

// buildPhaseContext formats every completed phase's accumulated output
// into a single context block, most recently completed phase shown last
// so it reads as a narrative of progress so far.
func buildPhaseContext(phaseData map[string]interface{}) string {
	if len(phaseData) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<!-- PHASE_CONTEXT_START -->\n\n")
	for _, phase := range order {
		data, ok := phaseData[string(phase)]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "### Phase: %s\n\n", phase)
		if text, ok := data.(string); ok && text != "" {
			sb.WriteString(text)
		} else {
			fmt.Fprintf(&sb, "%v", data)
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("<!-- PHASE_CONTEXT_END -->")
	return sb.String()
}
