// Package memory keeps exhibitions and tickets in process memory.
// Transactions are serialized and work on a copy that replaces the state on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gallery/booking"
	"gallery/entity"
	"gallery/inventory"
)

type state struct {
	exhibitions map[string]entity.Exhibition
	tickets     map[string]entity.Ticket
	events      []any
}

func (s state) clone() state {
	c := state{
		exhibitions: make(map[string]entity.Exhibition, len(s.exhibitions)),
		tickets:     make(map[string]entity.Ticket, len(s.tickets)),
		events:      append([]any(nil), s.events...),
	}
	for id, e := range s.exhibitions {
		c.exhibitions[id] = e
	}
	for id, t := range s.tickets {
		c.tickets[id] = t
	}
	return c
}

type Repository struct {
	mu    sync.RWMutex
	state state
}

func NewRepository() *Repository {
	return &Repository{
		state: state{
			exhibitions: map[string]entity.Exhibition{},
			tickets:     map[string]entity.Ticket{},
		},
	}
}

func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.state = tx.state
	return nil
}

func (r *Repository) GetExhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return getExhibition(r.state, exhibitionID)
}

func (r *Repository) ListExhibitions(ctx context.Context) ([]entity.Exhibition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exhibitions := make([]entity.Exhibition, 0, len(r.state.exhibitions))
	for _, e := range r.state.exhibitions {
		exhibitions = append(exhibitions, e)
	}
	sort.Slice(exhibitions, func(i, j int) bool {
		if !exhibitions[i].StartDate.Equal(exhibitions[j].StartDate) {
			return exhibitions[i].StartDate.Before(exhibitions[j].StartDate)
		}
		return exhibitions[i].CreatedAt.Before(exhibitions[j].CreatedAt)
	})

	return exhibitions, nil
}

func (r *Repository) GetTicket(ctx context.Context, ticketID string) (entity.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return getTicket(r.state, ticketID)
}

func (r *Repository) TicketsByUser(ctx context.Context, userID string) ([]entity.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tickets := []entity.Ticket{}
	for _, t := range r.state.tickets {
		if t.UserID == userID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].BookedAt.Before(tickets[j].BookedAt)
	})

	return tickets, nil
}

// Events returns the events published by committed transactions.
func (r *Repository) Events() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]any(nil), r.state.events...)
}

// SoldTickets sums the quantity of all outstanding tickets of an exhibition.
func (r *Repository) SoldTickets(exhibitionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sold int
	for _, t := range r.state.tickets {
		if t.ExhibitionID == exhibitionID {
			sold += t.Quantity
		}
	}
	return sold
}

type memoryTx struct {
	state state
}

func (t *memoryTx) GetExhibition(ctx context.Context, exhibitionID string) (entity.Exhibition, error) {
	return getExhibition(t.state, exhibitionID)
}

func (t *memoryTx) AddExhibition(ctx context.Context, exhibition entity.Exhibition) error {
	if _, ok := t.state.exhibitions[exhibition.ExhibitionID]; ok {
		return fmt.Errorf("exhibition %s already exists", exhibition.ExhibitionID)
	}
	t.state.exhibitions[exhibition.ExhibitionID] = exhibition
	return nil
}

func (t *memoryTx) DeleteExhibition(ctx context.Context, exhibitionID string) error {
	if _, ok := t.state.exhibitions[exhibitionID]; !ok {
		return fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}
	for _, ticket := range t.state.tickets {
		if ticket.ExhibitionID == exhibitionID {
			return fmt.Errorf("%w: exhibition %s", entity.ErrExhibitionHasTickets, exhibitionID)
		}
	}
	delete(t.state.exhibitions, exhibitionID)
	return nil
}

func (t *memoryTx) Reserve(ctx context.Context, exhibitionID string, quantity int) error {
	return t.updateFigures(exhibitionID, func(f inventory.Figures) (inventory.Figures, error) {
		return f.Reserve(quantity)
	})
}

func (t *memoryTx) Release(ctx context.Context, exhibitionID string, quantity int) error {
	return t.updateFigures(exhibitionID, func(f inventory.Figures) (inventory.Figures, error) {
		return f.Release(quantity)
	})
}

func (t *memoryTx) SetTotal(ctx context.Context, exhibitionID string, newTotal int) error {
	return t.updateFigures(exhibitionID, func(f inventory.Figures) (inventory.Figures, error) {
		return f.Resize(newTotal)
	})
}

func (t *memoryTx) updateFigures(exhibitionID string, update func(inventory.Figures) (inventory.Figures, error)) error {
	exhibition, err := getExhibition(t.state, exhibitionID)
	if err != nil {
		return err
	}

	figures, err := update(inventory.Figures{
		Total:     exhibition.TotalTickets,
		Remaining: exhibition.RemainingTickets,
	})
	if err != nil {
		return err
	}

	exhibition.TotalTickets = figures.Total
	exhibition.RemainingTickets = figures.Remaining
	t.state.exhibitions[exhibitionID] = exhibition
	return nil
}

func (t *memoryTx) GetTicketForUpdate(ctx context.Context, ticketID string) (entity.Ticket, error) {
	return getTicket(t.state, ticketID)
}

func (t *memoryTx) AddTicket(ctx context.Context, ticket entity.Ticket) error {
	if _, ok := t.state.exhibitions[ticket.ExhibitionID]; !ok {
		return fmt.Errorf("ticket %s references unknown exhibition %s", ticket.TicketID, ticket.ExhibitionID)
	}
	t.state.tickets[ticket.TicketID] = ticket
	return nil
}

func (t *memoryTx) UpdateTicket(ctx context.Context, ticket entity.Ticket) error {
	if _, ok := t.state.tickets[ticket.TicketID]; !ok {
		return fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticket.TicketID)
	}
	t.state.tickets[ticket.TicketID] = ticket
	return nil
}

func (t *memoryTx) DeleteTicket(ctx context.Context, ticketID string) error {
	if _, ok := t.state.tickets[ticketID]; !ok {
		return fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}
	delete(t.state.tickets, ticketID)
	return nil
}

func (t *memoryTx) Publish(ctx context.Context, event any) error {
	t.state.events = append(t.state.events, event)
	return nil
}

func getExhibition(s state, exhibitionID string) (entity.Exhibition, error) {
	exhibition, ok := s.exhibitions[exhibitionID]
	if !ok {
		return entity.Exhibition{}, fmt.Errorf("%w: exhibition %s", entity.ErrNotFound, exhibitionID)
	}
	return exhibition, nil
}

func getTicket(s state, ticketID string) (entity.Ticket, error) {
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, fmt.Errorf("%w: ticket %s", entity.ErrNotFound, ticketID)
	}
	return ticket, nil
}
