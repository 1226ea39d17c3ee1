// Package store provides typed persistence operations over the orchestrator's
// entities, layered on top of the generated Ent client. It owns the
// optimistic-locking compare-and-swap helpers and claim-style queries that
// the scheduler, heartbeat engine, guardian, merge coordinator, and cost
// accountant depend on, so those packages never touch Ent predicates
// directly.
package store

import (
	"github.com/forgekit/autoforge/pkg/database"
)

// Store is a thin façade over the database client grouping entity-specific
// operations into their own files (tickets, tasks, agents, ...).
type Store struct {
	db *database.Client
}

// New wraps a database client in a Store.
func New(db *database.Client) *Store {
	return &Store{db: db}
}
