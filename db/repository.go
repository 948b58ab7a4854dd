package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gallery/booking"
	"gallery/entity"
	"gallery/inventory"
	"gallery/pubsub/bus"
	"gallery/pubsub/outbox"
)

const (
	exhibitionColumns = `
		exhibition_id, title, location, start_date, end_date, opening_time, closing_time,
		ticket_price, total_tickets, remaining_tickets, created_at`

	ticketColumns = `
		ticket_id, user_id, exhibition_id, quantity, unit_price, total_price, booked_at`
)

// Repository stores exhibitions and tickets in Postgres.
type Repository struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewRepository creates a Repository. Transactions waiting longer than
// lockTimeout for a row lock fail with entity.ErrConflict; zero disables the limit.
func NewRepository(db *sqlx.DB, lockTimeout time.Duration) *Repository {
	if db == nil {
		panic("db must be set")
	}

	return &Repository{db: db, lockTimeout: lockTimeout}
}

// InTx runs ledger mutations in READ COMMITTED. Each of them is a single
// conditional UPDATE, so concurrent bookings of one exhibition queue on its row
// lock and the loser sees the winner's result instead of a serialization failure.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	return UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		if r.lockTimeout > 0 {
			_, err := tx.ExecContext(
				ctx,
				`SELECT set_config('lock_timeout', $1, true)`,
				fmt.Sprintf("%dms", r.lockTimeout.Milliseconds()),
			)
			if err != nil {
				return fmt.Errorf("could not set lock timeout: %w", err)
			}
		}

		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (r *Repository) GetExhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error) {
	return getExhibition(ctx, r.db, exhibitionID)
}

func (r *Repository) ListExhibitions(ctx context.Context) ([]entity.Exhibition, error) {
	var exhibitions []entity.Exhibition
	err := r.db.SelectContext(ctx, &exhibitions, `
		SELECT `+exhibitionColumns+`
		FROM exhibitions
		ORDER BY start_date, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("could not select exhibitions: %w", err)
	}

	return exhibitions, nil
}

func (r *Repository) GetTicket(ctx context.Context, ticketID string) (entity.Ticket, error) {
	if !isUUID(ticketID) {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}

	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not get ticket: %w", err)
	}

	return ticket, nil
}

func (r *Repository) TicketsByUser(ctx context.Context, userID string) ([]entity.Ticket, error) {
	tickets := []entity.Ticket{}
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE user_id = $1
		ORDER BY booked_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not select tickets: %w", err)
	}

	return tickets, nil
}

type postgresTx struct {
	tx       *sqlx.Tx
	eventBus *cqrs.EventBus
}

func (t *postgresTx) GetExhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error) {
	return getExhibition(ctx, t.tx, exhibitionID)
}

func (t *postgresTx) AddExhibition(ctx context.Context, exhibition entity.Exhibition) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO exhibitions (`+exhibitionColumns+`)
		VALUES (
			:exhibition_id, :title, :location, :start_date, :end_date, :opening_time, :closing_time,
			:ticket_price, :total_tickets, :remaining_tickets, :created_at
		)
	`, exhibition)
	if err != nil {
		return fmt.Errorf("could not insert exhibition: %w", err)
	}

	return nil
}

func (t *postgresTx) DeleteExhibition(ctx context.Context, exhibitionID string) error {
	if !isUUID(exhibitionID) {
		return fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM exhibitions WHERE exhibition_id = $1`, exhibitionID)
	if isPostgresError(err, postgresForeignKeyViolationErrorCode) {
		return fmt.Errorf("%w: exhibition %s", entity.ErrExhibitionHasTickets, exhibitionID)
	}
	if err != nil {
		return fmt.Errorf("could not delete exhibition: %w", err)
	}

	return expectOneRow(res, "exhibition", exhibitionID)
}

func (t *postgresTx) Reserve(ctx context.Context, exhibitionID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", entity.ErrInvalidQuantity, quantity)
	}
	if quantity > inventory.MaxTickets {
		return fmt.Errorf("%w: requested %d", entity.ErrInsufficientCapacity, quantity)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE exhibitions
		SET remaining_tickets = remaining_tickets - $2
		WHERE exhibition_id = $1 AND remaining_tickets >= $2
	`, exhibitionID, quantity)
	if err != nil {
		return fmt.Errorf("could not reserve tickets: %w", err)
	}

	return t.checkLedgerUpdate(ctx, res, exhibitionID, func(f inventory.Figures) error {
		_, err := f.Reserve(quantity)
		return err
	})
}

func (t *postgresTx) Release(ctx context.Context, exhibitionID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", entity.ErrInvalidQuantity, quantity)
	}
	if quantity > inventory.MaxTickets {
		return fmt.Errorf("%w: releasing %d", entity.ErrCapacityOverflow, quantity)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE exhibitions
		SET remaining_tickets = remaining_tickets + $2
		WHERE exhibition_id = $1 AND remaining_tickets + $2 <= total_tickets
	`, exhibitionID, quantity)
	if err != nil {
		return fmt.Errorf("could not release tickets: %w", err)
	}

	return t.checkLedgerUpdate(ctx, res, exhibitionID, func(f inventory.Figures) error {
		_, err := f.Release(quantity)
		return err
	})
}

func (t *postgresTx) SetTotal(ctx context.Context, exhibitionID string, newTotal int) error {
	if _, err := inventory.NewFigures(newTotal); err != nil {
		return err
	}

	// right hand sides see the row before the update
	res, err := t.tx.ExecContext(ctx, `
		UPDATE exhibitions
		SET total_tickets = $2, remaining_tickets = $2 - (total_tickets - remaining_tickets)
		WHERE exhibition_id = $1 AND total_tickets - remaining_tickets <= $2
	`, exhibitionID, newTotal)
	if err != nil {
		return fmt.Errorf("could not set total tickets: %w", err)
	}

	return t.checkLedgerUpdate(ctx, res, exhibitionID, func(f inventory.Figures) error {
		_, err := f.Resize(newTotal)
		return err
	})
}

// checkLedgerUpdate tells apart a missing exhibition from a guard that did not
// hold when a conditional update matched no row.
func (t *postgresTx) checkLedgerUpdate(
	ctx context.Context,
	res sql.Result,
	exhibitionID string,
	explain func(inventory.Figures) error,
) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if !isUUID(exhibitionID) {
		return fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}

	var figures inventory.Figures
	err = t.tx.GetContext(ctx, &figures, `
		SELECT total_tickets, remaining_tickets
		FROM exhibitions
		WHERE exhibition_id = $1
	`, exhibitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}
	if err != nil {
		return fmt.Errorf("could not get ticket figures: %w", err)
	}

	if err := explain(figures); err != nil {
		return err
	}

	// the row changed between the update and the read
	return fmt.Errorf("%w: ticket figures of exhibition %s changed concurrently", entity.ErrConflict, exhibitionID)
}

func (t *postgresTx) GetTicketForUpdate(ctx context.Context, ticketID string) (entity.Ticket, error) {
	if !isUUID(ticketID) {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}

	var ticket entity.Ticket
	err := t.tx.GetContext(ctx, &ticket, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
		FOR UPDATE
	`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not lock ticket: %w", err)
	}

	return ticket, nil
}

func (t *postgresTx) AddTicket(ctx context.Context, ticket entity.Ticket) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (:ticket_id, :user_id, :exhibition_id, :quantity, :unit_price, :total_price, :booked_at)
	`, ticket)
	if err != nil {
		return fmt.Errorf("could not insert ticket: %w", err)
	}

	return nil
}

func (t *postgresTx) UpdateTicket(ctx context.Context, ticket entity.Ticket) error {
	res, err := t.tx.NamedExecContext(ctx, `
		UPDATE tickets
		SET quantity = :quantity, total_price = :total_price
		WHERE ticket_id = :ticket_id
	`, ticket)
	if err != nil {
		return fmt.Errorf("could not update ticket: %w", err)
	}

	return expectOneRow(res, "ticket", ticket.TicketID)
}

func (t *postgresTx) DeleteTicket(ctx context.Context, ticketID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM tickets WHERE ticket_id = $1`, ticketID)
	if err != nil {
		return fmt.Errorf("could not delete ticket: %w", err)
	}

	return expectOneRow(res, "ticket", ticketID)
}

func (t *postgresTx) Publish(ctx context.Context, event any) error {
	if t.eventBus == nil {
		outboxPublisher, err := outbox.NewPublisherForDb(ctx, t.tx)
		if err != nil {
			return fmt.Errorf("could not create outbox publisher: %w", err)
		}

		eventBus, err := bus.NewEventBus(outboxPublisher)
		if err != nil {
			return fmt.Errorf("could not create event bus: %w", err)
		}
		t.eventBus = eventBus
	}

	if err := t.eventBus.Publish(ctx, event); err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

func getExhibition(ctx context.Context, q sqlx.QueryerContext, exhibitionID string) (entity.Exhibition, error) {
	if !isUUID(exhibitionID) {
		return entity.Exhibition{}, fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}

	var exhibition entity.Exhibition
	err := sqlx.GetContext(ctx, q, &exhibition, `
		SELECT `+exhibitionColumns+`
		FROM exhibitions
		WHERE exhibition_id = $1
	`, exhibitionID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Exhibition{}, fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}
	if err != nil {
		return entity.Exhibition{}, fmt.Errorf("could not get exhibition: %w", err)
	}

	return exhibition, nil
}

func expectOneRow(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %s", entity.ErrNotFound, kind, id)
	}

	return nil
}

// isUUID guards UUID columns, which reject malformed input with an error instead of no rows.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
