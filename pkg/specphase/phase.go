// Package specphase implements the Spec Phase State Machine (C7): the
// five ordered phases — explore, requirements, design, tasks, sync — that
// take a spec from a title and description to a validated set of
// requirement/design/task/ticket artifacts.
package specphase

// Phase names mirror ent/schema/spec.go's current_phase enum exactly so
// the state machine and the stored entity never drift.
type Phase string

const (
	PhaseExplore      Phase = "explore"
	PhaseRequirements Phase = "requirements"
	PhaseDesign       Phase = "design"
	PhaseTasks        Phase = "tasks"
	PhaseSync         Phase = "sync"
	PhaseComplete     Phase = "complete"
)

// order is the fixed phase sequence (§4.7).
var order = []Phase{PhaseExplore, PhaseRequirements, PhaseDesign, PhaseTasks, PhaseSync, PhaseComplete}

// Next returns the phase that follows p, or PhaseComplete unchanged if p
// is already terminal.
func (p Phase) Next() Phase {
	for i, ph := range order {
		if ph == p && i+1 < len(order) {
			return order[i+1]
		}
	}
	return PhaseComplete
}

// Terminal reports whether p is the final phase.
func (p Phase) Terminal() bool {
	return p == PhaseComplete
}

// Valid reports whether p is one of the five executable phases (excludes
// the terminal PhaseComplete, which has nothing to execute).
func (p Phase) Valid() bool {
	switch p {
	case PhaseExplore, PhaseRequirements, PhaseDesign, PhaseTasks, PhaseSync:
		return true
	default:
		return false
	}
}
