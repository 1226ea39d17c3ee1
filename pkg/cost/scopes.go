package cost

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/budget"
)

// ScopeRef identifies one budget scope a task's spend rolls up into.
type ScopeRef struct {
	Type budget.ScopeType
	ID   string
}

// EnclosingScopes returns the budget scopes a task's cost is charged
// against: its own task scope, and its ticket's project scope if the
// ticket belongs to one. This mirrors the scheduler's admission-time
// budget check (§4.4), which only ever looks at task and project scope —
// account scope is metered from actual spend (see Accountant.checkAccount)
// rather than pre-reserved, since nothing upstream reserves against it at
// admission time either.
func (a *Accountant) EnclosingScopes(ctx context.Context, t *ent.Task) ([]ScopeRef, error) {
	scopes := []ScopeRef{{Type: budget.ScopeTypeTask, ID: t.ID}}

	tk, err := a.store.GetTicket(ctx, t.TicketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket for budget scopes: %w", err)
	}
	if tk.ProjectID != nil {
		scopes = append(scopes, ScopeRef{Type: budget.ScopeTypeProject, ID: *tk.ProjectID})
	}
	return scopes, nil
}
