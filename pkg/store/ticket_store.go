package store

import (
	"context"
	"fmt"

	"github.com/forgekit/autoforge/ent"
	"github.com/forgekit/autoforge/ent/ticket"
	"github.com/forgekit/autoforge/pkg/apperrors"
)

// GetTicket fetches a ticket by id.
func (s *Store) GetTicket(ctx context.Context, id string) (*ent.Ticket, error) {
	t, err := s.db.Ticket.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("ticket", id)
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// ListSchedulableTickets returns approved, open tickets not currently
// blocked — the admission pool the scheduler draws tasks from.
func (s *Store) ListSchedulableTickets(ctx context.Context) ([]*ent.Ticket, error) {
	ts, err := s.db.Ticket.Query().
		Where(
			ticket.ApprovalStatusEQ(ticket.ApprovalStatusApproved),
			ticket.StatusEQ(ticket.StatusOpen),
			ticket.IsBlockedEQ(false),
		).
		Order(ent.Desc(ticket.FieldPriority)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedulable tickets: %w", err)
	}
	return ts, nil
}

// SetBlocked marks a ticket blocked or unblocked with a reason, used by the
// dependency-gating rule when blocked_by tickets change state.
func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool, reason string) error {
	update := s.db.Ticket.UpdateOneID(id).SetIsBlocked(blocked)
	if blocked {
		update = update.SetBlockedReason(reason)
	} else {
		update = update.ClearBlockedReason()
	}
	if err := update.Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("ticket", id)
		}
		return fmt.Errorf("set ticket blocked: %w", err)
	}
	return nil
}

// SetPhase advances a ticket along its phase track (backlog -> ... -> done).
func (s *Store) SetTicketPhase(ctx context.Context, id string, phase ticket.Phase) error {
	if err := s.db.Ticket.UpdateOneID(id).SetPhase(phase).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("ticket", id)
		}
		return fmt.Errorf("set ticket phase: %w", err)
	}
	return nil
}

// CloseTicket marks a ticket closed once all of its tasks have succeeded.
func (s *Store) CloseTicket(ctx context.Context, id string) error {
	if err := s.db.Ticket.UpdateOneID(id).SetStatus(ticket.StatusClosed).SetPhase(ticket.PhaseDone).Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return apperrors.NewNotFoundError("ticket", id)
		}
		return fmt.Errorf("close ticket: %w", err)
	}
	return nil
}

// SearchTickets runs a full-text search over title/description using the
// GIN index created alongside the schema migrations.
func (s *Store) SearchTickets(ctx context.Context, query string, limit int) ([]*ent.Ticket, error) {
	ts, err := s.db.Ticket.Query().
		Where(ticket.Or(
			ticket.TitleContainsFold(query),
			ticket.DescriptionContainsFold(query),
		)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	return ts, nil
}
