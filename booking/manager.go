// Package booking runs the booking and cancellation protocols of exhibition tickets.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gallery/entity"
	"gallery/inventory"
	"gallery/metrics"
)

var tracer = otel.Tracer("gallery/booking")

type Manager struct {
	repo Repository
	now  func() time.Time
}

// NewManager creates a Manager. now is the clock exhibition statuses are derived
// from; its location decides how exhibition dates and opening hours are read.
func NewManager(repo Repository, now func() time.Time) *Manager {
	if repo == nil {
		panic("missing repo")
	}
	if now == nil {
		now = time.Now
	}

	return &Manager{repo: repo, now: now}
}

// BookTickets issues one ticket for quantity places of an active exhibition.
func (m *Manager) BookTickets(ctx context.Context, userID, exhibitionID string, quantity int) (ticket entity.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "BookTickets", trace.WithAttributes(
		attribute.String("exhibition_id", exhibitionID),
		attribute.Int("quantity", quantity),
	))
	defer func() { endSpan(span, err) }()

	err = m.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		exhibition, err := tx.GetExhibition(ctx, exhibitionID)
		if err != nil {
			return fmt.Errorf("could not get exhibition %s: %w", exhibitionID, err)
		}

		now := m.now()
		if status := entity.DeriveStatus(exhibition.Schedule, now); status != entity.StatusActive {
			return fmt.Errorf("%w: exhibition %s is %s", entity.ErrExhibitionNotActive, exhibitionID, status)
		}

		if quantity < 1 {
			return fmt.Errorf("%w: got %d", entity.ErrInvalidQuantity, quantity)
		}

		if err := tx.Reserve(ctx, exhibitionID, quantity); err != nil {
			return err
		}

		ticket = entity.Ticket{
			TicketID:     uuid.NewString(),
			UserID:       userID,
			ExhibitionID: exhibitionID,
			Quantity:     quantity,
			UnitPrice:    exhibition.TicketPrice,
			TotalPrice:   entity.TotalPrice(exhibition.TicketPrice, quantity),
			BookedAt:     now.UTC(),
		}
		if err := tx.AddTicket(ctx, ticket); err != nil {
			return fmt.Errorf("could not add ticket: %w", err)
		}

		return tx.Publish(ctx, entity.TicketsBooked_v1{
			Header:       entity.NewEventHeaderWithIdempotencyKey(ticket.TicketID),
			TicketID:     ticket.TicketID,
			UserID:       ticket.UserID,
			ExhibitionID: ticket.ExhibitionID,
			Quantity:     ticket.Quantity,
			TotalPrice:   ticket.TotalPrice.StringFixed(2),
			BookedAt:     ticket.BookedAt,
		})
	})
	if err != nil {
		m.observeFailure(ctx, "book", err)
		return entity.Ticket{}, err
	}

	metrics.TicketsReserved.Add(float64(quantity))
	log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id":     ticket.TicketID,
		"exhibition_id": exhibitionID,
		"quantity":      quantity,
	}).Info("Tickets booked")

	return ticket, nil
}

// CancelTicket destroys a ticket and gives its places back to the exhibition.
// Only the owner or an admin may cancel, and never once the exhibition is completed.
func (m *Manager) CancelTicket(ctx context.Context, actor entity.Actor, ticketID string) (err error) {
	ctx, span := tracer.Start(ctx, "CancelTicket", trace.WithAttributes(attribute.String("ticket_id", ticketID)))
	defer func() { endSpan(span, err) }()

	var cancelled entity.Ticket
	err = m.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ticket, err := tx.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("could not get ticket %s: %w", ticketID, err)
		}

		if !actor.CanAccess(ticket.UserID) {
			return fmt.Errorf("%w: ticket %s belongs to another user", entity.ErrForbidden, ticketID)
		}

		exhibition, err := tx.GetExhibition(ctx, ticket.ExhibitionID)
		if err != nil {
			return fmt.Errorf("could not get exhibition %s of ticket %s: %w", ticket.ExhibitionID, ticketID, err)
		}

		if entity.DeriveStatus(exhibition.Schedule, m.now()) == entity.StatusCompleted {
			return fmt.Errorf("%w: exhibition %s", entity.ErrExhibitionCompleted, exhibition.ExhibitionID)
		}

		if err := tx.Release(ctx, ticket.ExhibitionID, ticket.Quantity); err != nil {
			return err
		}

		if err := tx.DeleteTicket(ctx, ticketID); err != nil {
			return fmt.Errorf("could not delete ticket: %w", err)
		}

		cancelled = ticket
		return tx.Publish(ctx, entity.TicketCancelled_v1{
			Header:       entity.NewEventHeaderWithIdempotencyKey(ticket.TicketID),
			TicketID:     ticket.TicketID,
			UserID:       ticket.UserID,
			ExhibitionID: ticket.ExhibitionID,
			Quantity:     ticket.Quantity,
			TotalPrice:   ticket.TotalPrice.StringFixed(2),
			CancelledBy:  actor.UserID,
		})
	})
	if err != nil {
		m.observeFailure(ctx, "cancel", err)
		return err
	}

	metrics.TicketsReleased.Add(float64(cancelled.Quantity))
	log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id":     cancelled.TicketID,
		"exhibition_id": cancelled.ExhibitionID,
		"quantity":      cancelled.Quantity,
	}).Info("Ticket cancelled")

	return nil
}

// AdjustTicketQuantity changes the quantity of an existing ticket. The
// difference is reserved or released in the same transaction, and the ticket
// is repriced with the unit price frozen at booking time.
func (m *Manager) AdjustTicketQuantity(ctx context.Context, actor entity.Actor, ticketID string, quantity int) (ticket entity.Ticket, err error) {
	ctx, span := tracer.Start(ctx, "AdjustTicketQuantity", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.Int("quantity", quantity),
	))
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		return entity.Ticket{}, fmt.Errorf("%w: only admins can adjust ticket quantity", entity.ErrForbidden)
	}
	if quantity < 1 {
		return entity.Ticket{}, fmt.Errorf("%w: got %d", entity.ErrInvalidQuantity, quantity)
	}

	var previousQuantity int
	err = m.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ticket, err = tx.GetTicketForUpdate(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("could not get ticket %s: %w", ticketID, err)
		}

		exhibition, err := tx.GetExhibition(ctx, ticket.ExhibitionID)
		if err != nil {
			return fmt.Errorf("could not get exhibition %s of ticket %s: %w", ticket.ExhibitionID, ticketID, err)
		}
		if entity.DeriveStatus(exhibition.Schedule, m.now()) == entity.StatusCompleted {
			return fmt.Errorf("%w: exhibition %s", entity.ErrExhibitionCompleted, exhibition.ExhibitionID)
		}

		previousQuantity = ticket.Quantity
		delta := quantity - ticket.Quantity
		switch {
		case delta > 0:
			err = tx.Reserve(ctx, ticket.ExhibitionID, delta)
		case delta < 0:
			err = tx.Release(ctx, ticket.ExhibitionID, -delta)
		default:
			return nil
		}
		if err != nil {
			return err
		}

		ticket.Quantity = quantity
		ticket.TotalPrice = entity.TotalPrice(ticket.UnitPrice, quantity)
		if err := tx.UpdateTicket(ctx, ticket); err != nil {
			return fmt.Errorf("could not update ticket: %w", err)
		}

		return tx.Publish(ctx, entity.TicketQuantityAdjusted_v1{
			Header:           entity.NewEventHeader(),
			TicketID:         ticket.TicketID,
			ExhibitionID:     ticket.ExhibitionID,
			PreviousQuantity: previousQuantity,
			Quantity:         ticket.Quantity,
			TotalPrice:       ticket.TotalPrice.StringFixed(2),
			AdjustedBy:       actor.UserID,
		})
	})
	if err != nil {
		m.observeFailure(ctx, "adjust", err)
		return entity.Ticket{}, err
	}

	if delta := quantity - previousQuantity; delta > 0 {
		metrics.TicketsReserved.Add(float64(delta))
	} else if delta < 0 {
		metrics.TicketsReleased.Add(float64(-delta))
	}

	return ticket, nil
}

// ExhibitionInventory returns the capacity figures of an exhibition with a freshly derived status.
func (m *Manager) ExhibitionInventory(ctx context.Context, exhibitionID string) (entity.Inventory, error) {
	exhibition, err := m.repo.GetExhibition(ctx, exhibitionID)
	if err != nil {
		return entity.Inventory{}, fmt.Errorf("could not get exhibition %s: %w", exhibitionID, err)
	}

	return exhibition.Inventory(m.now()), nil
}

// SetExhibitionCapacity changes the total number of tickets of an exhibition.
// Tickets already sold stay sold. Callers are expected to restrict it to admins.
func (m *Manager) SetExhibitionCapacity(ctx context.Context, exhibitionID string, newTotal int) (err error) {
	ctx, span := tracer.Start(ctx, "SetExhibitionCapacity", trace.WithAttributes(
		attribute.String("exhibition_id", exhibitionID),
		attribute.Int("total", newTotal),
	))
	defer func() { endSpan(span, err) }()

	if newTotal < 1 {
		return fmt.Errorf("%w: total must be at least 1, got %d", entity.ErrInvalidCapacity, newTotal)
	}

	err = m.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		before, err := tx.GetExhibition(ctx, exhibitionID)
		if err != nil {
			return fmt.Errorf("could not get exhibition %s: %w", exhibitionID, err)
		}

		if err := tx.SetTotal(ctx, exhibitionID, newTotal); err != nil {
			return err
		}

		after, err := tx.GetExhibition(ctx, exhibitionID)
		if err != nil {
			return fmt.Errorf("could not get exhibition %s: %w", exhibitionID, err)
		}

		return tx.Publish(ctx, entity.ExhibitionCapacityChanged_v1{
			Header:           entity.NewEventHeader(),
			ExhibitionID:     exhibitionID,
			PreviousTotal:    before.TotalTickets,
			TotalTickets:     after.TotalTickets,
			RemainingTickets: after.RemainingTickets,
		})
	})
	if err != nil {
		m.observeFailure(ctx, "set_capacity", err)
		return err
	}

	return nil
}

// CreateExhibition validates and stores a new exhibition with all of its tickets for sale.
func (m *Manager) CreateExhibition(ctx context.Context, newExhibition entity.NewExhibition) (entity.Exhibition, error) {
	if err := newExhibition.Validate(); err != nil {
		return entity.Exhibition{}, err
	}

	now := m.now()
	if startsBeforeToday(newExhibition.Schedule, now) {
		return entity.Exhibition{}, fmt.Errorf("%w: start date cannot be in the past", entity.ErrInvalidExhibition)
	}

	figures, err := inventory.NewFigures(newExhibition.TotalTickets)
	if err != nil {
		return entity.Exhibition{}, err
	}

	exhibition := entity.Exhibition{
		ExhibitionID:     uuid.NewString(),
		Title:            newExhibition.Title,
		Location:         newExhibition.Location,
		Schedule:         newExhibition.Schedule,
		TicketPrice:      newExhibition.TicketPrice,
		TotalTickets:     figures.Total,
		RemainingTickets: figures.Remaining,
		CreatedAt:        now.UTC(),
	}

	err = m.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.AddExhibition(ctx, exhibition); err != nil {
			return fmt.Errorf("could not add exhibition: %w", err)
		}

		return tx.Publish(ctx, entity.ExhibitionCreated_v1{
			Header:       entity.NewEventHeader(),
			ExhibitionID: exhibition.ExhibitionID,
			Title:        exhibition.Title,
			TotalTickets: exhibition.TotalTickets,
			StartsAt:     exhibition.StartsAt(now.Location()),
			EndsAt:       exhibition.EndsAt(now.Location()),
		})
	})
	if err != nil {
		m.observeFailure(ctx, "create_exhibition", err)
		return entity.Exhibition{}, err
	}

	return exhibition.WithStatus(now), nil
}

func (m *Manager) Exhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error) {
	exhibition, err := m.repo.GetExhibition(ctx, exhibitionID)
	if err != nil {
		return entity.Exhibition{}, fmt.Errorf("could not get exhibition %s: %w", exhibitionID, err)
	}

	return exhibition.WithStatus(m.now()), nil
}

func (m *Manager) ListExhibitions(ctx context.Context) ([]entity.Exhibition, error) {
	exhibitions, err := m.repo.ListExhibitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list exhibitions: %w", err)
	}

	now := m.now()
	return lo.Map(exhibitions, func(e entity.Exhibition, _ int) entity.Exhibition {
		return e.WithStatus(now)
	}), nil
}

// DeleteExhibition removes an exhibition that no ticket references.
func (m *Manager) DeleteExhibition(ctx context.Context, exhibitionID string) error {
	err := m.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.DeleteExhibition(ctx, exhibitionID)
	})
	if err != nil {
		m.observeFailure(ctx, "delete_exhibition", err)
		return err
	}

	return nil
}

// Ticket returns a ticket visible to actor.
func (m *Manager) Ticket(ctx context.Context, actor entity.Actor, ticketID string) (entity.Ticket, error) {
	ticket, err := m.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not get ticket %s: %w", ticketID, err)
	}

	if !actor.CanAccess(ticket.UserID) {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s belongs to another user", entity.ErrForbidden, ticketID)
	}

	return ticket, nil
}

// UserTickets lists the tickets of userID, or of the actor when userID is empty.
func (m *Manager) UserTickets(ctx context.Context, actor entity.Actor, userID string) ([]entity.Ticket, error) {
	if userID == "" {
		userID = actor.UserID
	}
	if !actor.CanAccess(userID) {
		return nil, fmt.Errorf("%w: cannot list tickets of another user", entity.ErrForbidden)
	}

	tickets, err := m.repo.TicketsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("could not list tickets: %w", err)
	}

	return tickets, nil
}

// observeFailure logs and counts a failed operation. Business rejections are
// expected under normal load; defects are logged at error level.
func (m *Manager) observeFailure(ctx context.Context, operation string, err error) {
	kind := entity.KindOf(err)
	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"operation": operation,
		"kind":      kind,
	}).WithError(err)

	switch {
	case entity.IsDefect(err):
		metrics.LedgerDefects.Inc()
		logger.WithField("ledger_defect", true).Error("Operation failed")
	case kind == entity.KindConflict:
		logger.Warn("Transaction conflict")
	default:
		metrics.OperationRejections.WithLabelValues(operation, string(kind)).Inc()
		logger.Info("Operation rejected")
	}
}

func startsBeforeToday(schedule entity.Schedule, now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	sy, sm, sd := schedule.StartDate.Date()
	return time.Date(sy, sm, sd, 0, 0, 0, 0, now.Location()).Before(today)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
