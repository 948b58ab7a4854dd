package booking

import (
	"context"

	"gallery/entity"
	"gallery/inventory"
)

// Repository is the persistence the Manager works on.
// Reads outside InTx see only committed state.
type Repository interface {
	// InTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise, so no partial work is ever visible.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetExhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error)
	ListExhibitions(ctx context.Context) ([]entity.Exhibition, error)
	GetTicket(ctx context.Context, ticketID string) (entity.Ticket, error)
	TicketsByUser(ctx context.Context, userID string) ([]entity.Ticket, error)
}

// Tx is the view of the store inside one transaction.
type Tx interface {
	inventory.Ledger

	GetExhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error)
	AddExhibition(ctx context.Context, exhibition entity.Exhibition) error
	// DeleteExhibition fails with entity.ErrExhibitionHasTickets while tickets reference it.
	DeleteExhibition(ctx context.Context, exhibitionID string) error

	// GetTicketForUpdate loads a ticket and locks it until the transaction ends.
	GetTicketForUpdate(ctx context.Context, ticketID string) (entity.Ticket, error)
	AddTicket(ctx context.Context, ticket entity.Ticket) error
	UpdateTicket(ctx context.Context, ticket entity.Ticket) error
	DeleteTicket(ctx context.Context, ticketID string) error

	// Publish stores event in the outbox. It is delivered only if the transaction commits.
	Publish(ctx context.Context, event any) error
}
