package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/booking"
	"gallery/db/memory"
	"gallery/entity"
)

var now = time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time {
	return now
}

var (
	owner    = entity.Actor{UserID: "owner", Role: entity.RoleUser}
	stranger = entity.Actor{UserID: "stranger", Role: entity.RoleUser}
	admin    = entity.Actor{UserID: "admin", Role: entity.RoleAdmin}
)

func scheduleFrom(start, end time.Time) entity.Schedule {
	return entity.Schedule{
		StartDate:   start,
		EndDate:     end,
		OpeningTime: entity.NewTimeOfDay(9, 0),
		ClosingTime: entity.NewTimeOfDay(18, 0),
	}
}

func activeSchedule() entity.Schedule {
	return scheduleFrom(now.AddDate(0, 0, -3), now.AddDate(0, 0, 3))
}

func upcomingSchedule() entity.Schedule {
	return scheduleFrom(now.AddDate(0, 0, 1), now.AddDate(0, 0, 10))
}

func completedSchedule() entity.Schedule {
	return scheduleFrom(now.AddDate(0, 0, -10), now.AddDate(0, 0, -1))
}

func setup(t *testing.T, schedule entity.Schedule, total, remaining int) (*booking.Manager, *memory.Repository, string) {
	t.Helper()

	repo := memory.NewRepository()
	exhibition := entity.Exhibition{
		ExhibitionID:     "exhibition-1",
		Title:            "Bauhaus",
		Location:         "Hall B",
		Schedule:         schedule,
		TicketPrice:      decimal.RequireFromString("15.25"),
		TotalTickets:     total,
		RemainingTickets: remaining,
		CreatedAt:        now,
	}
	err := repo.InTx(context.Background(), func(ctx context.Context, tx booking.Tx) error {
		return tx.AddExhibition(ctx, exhibition)
	})
	require.NoError(t, err)

	return booking.NewManager(repo, clock), repo, exhibition.ExhibitionID
}

func requireRemaining(t *testing.T, manager *booking.Manager, exhibitionID string, remaining int) {
	t.Helper()

	inventory, err := manager.ExhibitionInventory(context.Background(), exhibitionID)
	require.NoError(t, err)
	assert.Equal(t, remaining, inventory.Remaining)
}

func requireLedgerBalanced(t *testing.T, manager *booking.Manager, repo *memory.Repository, exhibitionID string) {
	t.Helper()

	inventory, err := manager.ExhibitionInventory(context.Background(), exhibitionID)
	require.NoError(t, err)
	assert.Equal(t, inventory.Total, inventory.Remaining+repo.SoldTickets(exhibitionID))
}

func TestManager_book_all_then_sold_out(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 10, 10)

	ticket, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, ticket.Quantity)
	assert.Equal(t, now, ticket.BookedAt)
	assert.True(t, decimal.RequireFromString("152.50").Equal(ticket.TotalPrice), "total price %s", ticket.TotalPrice)
	requireRemaining(t, manager, exhibitionID, 0)

	_, err = manager.BookTickets(ctx, owner.UserID, exhibitionID, 1)
	assert.ErrorIs(t, err, entity.ErrInsufficientCapacity)
	assert.Equal(t, entity.KindInsufficientCapacity, entity.KindOf(err))
	requireRemaining(t, manager, exhibitionID, 0)
	requireLedgerBalanced(t, manager, repo, exhibitionID)
}

func TestManager_concurrent_bookings(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 5, 5)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = manager.BookTickets(ctx, owner.UserID, exhibitionID, 3)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrInsufficientCapacity)
	}
	assert.Equal(t, 1, succeeded)
	requireRemaining(t, manager, exhibitionID, 2)
	requireLedgerBalanced(t, manager, repo, exhibitionID)
}

func TestManager_book_requires_active_exhibition(t *testing.T) {
	testCases := []struct {
		Name     string
		Schedule entity.Schedule
	}{
		{Name: "upcoming", Schedule: upcomingSchedule()},
		{Name: "completed", Schedule: completedSchedule()},
		{
			Name: "before_opening_on_first_day",
			Schedule: entity.Schedule{
				StartDate:   now,
				EndDate:     now.AddDate(0, 0, 5),
				OpeningTime: entity.NewTimeOfDay(13, 0),
				ClosingTime: entity.NewTimeOfDay(18, 0),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			manager, repo, exhibitionID := setup(t, tc.Schedule, 10, 10)

			_, err := manager.BookTickets(context.Background(), owner.UserID, exhibitionID, 1)
			assert.ErrorIs(t, err, entity.ErrExhibitionNotActive)
			requireRemaining(t, manager, exhibitionID, 10)
			assert.Empty(t, repo.Events())
		})
	}
}

func TestManager_book_validates_quantity(t *testing.T) {
	manager, _, exhibitionID := setup(t, activeSchedule(), 10, 10)

	for _, quantity := range []int{0, -1} {
		_, err := manager.BookTickets(context.Background(), owner.UserID, exhibitionID, quantity)
		assert.ErrorIs(t, err, entity.ErrInvalidQuantity)
	}
	requireRemaining(t, manager, exhibitionID, 10)
}

func TestManager_book_unknown_exhibition(t *testing.T) {
	manager, _, _ := setup(t, activeSchedule(), 10, 10)

	_, err := manager.BookTickets(context.Background(), owner.UserID, "missing", 1)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestManager_book_and_cancel_round_trip(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 10, 7)

	ticket, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 2)
	require.NoError(t, err)
	requireRemaining(t, manager, exhibitionID, 5)

	require.NoError(t, manager.CancelTicket(ctx, owner, ticket.TicketID))
	requireRemaining(t, manager, exhibitionID, 7)

	_, err = manager.Ticket(ctx, owner, ticket.TicketID)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	events := repo.Events()
	require.Len(t, events, 2)
	booked, ok := events[0].(entity.TicketsBooked_v1)
	require.True(t, ok)
	assert.Equal(t, ticket.TicketID, booked.TicketID)
	assert.Equal(t, "30.50", booked.TotalPrice)
	cancelled, ok := events[1].(entity.TicketCancelled_v1)
	require.True(t, ok)
	assert.Equal(t, ticket.TicketID, cancelled.TicketID)
	assert.Equal(t, owner.UserID, cancelled.CancelledBy)
}

func TestManager_cancel_authorization(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 10, 10)

	ticket, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 2)
	require.NoError(t, err)
	eventsBefore := len(repo.Events())

	err = manager.CancelTicket(ctx, stranger, ticket.TicketID)
	assert.ErrorIs(t, err, entity.ErrForbidden)
	requireRemaining(t, manager, exhibitionID, 8)
	assert.Len(t, repo.Events(), eventsBefore)

	_, err = manager.Ticket(ctx, owner, ticket.TicketID)
	require.NoError(t, err)

	require.NoError(t, manager.CancelTicket(ctx, admin, ticket.TicketID))
	requireRemaining(t, manager, exhibitionID, 10)

	err = manager.CancelTicket(ctx, admin, ticket.TicketID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestManager_cancel_is_refused_after_exhibition_ends(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()

	current := now
	manager := booking.NewManager(repo, func() time.Time { return current })

	created, err := manager.CreateExhibition(ctx, entity.NewExhibition{
		Title:        "Short show",
		Location:     "Hall C",
		Schedule:     scheduleFrom(now, now.AddDate(0, 0, 1)),
		TicketPrice:  decimal.RequireFromString("5"),
		TotalTickets: 3,
	})
	require.NoError(t, err)

	ticket, err := manager.BookTickets(ctx, owner.UserID, created.ExhibitionID, 1)
	require.NoError(t, err)

	current = now.AddDate(0, 0, 2)

	err = manager.CancelTicket(ctx, owner, ticket.TicketID)
	assert.ErrorIs(t, err, entity.ErrExhibitionCompleted)
	requireRemaining(t, manager, created.ExhibitionID, 2)
}

func TestManager_cancel_upcoming_is_allowed(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, upcomingSchedule(), 10, 10)

	err := repo.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		if err := tx.Reserve(ctx, exhibitionID, 2); err != nil {
			return err
		}
		return tx.AddTicket(ctx, entity.Ticket{
			TicketID:     "ticket-1",
			UserID:       owner.UserID,
			ExhibitionID: exhibitionID,
			Quantity:     2,
			BookedAt:     now,
		})
	})
	require.NoError(t, err)

	require.NoError(t, manager.CancelTicket(ctx, owner, "ticket-1"))
	requireRemaining(t, manager, exhibitionID, 10)
}

func TestManager_shrunk_capacity_keeps_tickets_cancellable(t *testing.T) {
	ctx := context.Background()
	manager, _, exhibitionID := setup(t, activeSchedule(), 10, 10)

	ticket, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 2)
	require.NoError(t, err)

	require.NoError(t, manager.SetExhibitionCapacity(ctx, exhibitionID, 2))
	requireRemaining(t, manager, exhibitionID, 0)

	err = manager.SetExhibitionCapacity(ctx, exhibitionID, 1)
	assert.ErrorIs(t, err, entity.ErrInvalidCapacity)

	require.NoError(t, manager.CancelTicket(ctx, owner, ticket.TicketID))
	requireRemaining(t, manager, exhibitionID, 2)
}

func TestManager_release_overflow_is_never_absorbed(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 4, 3)

	// a ticket larger than what the ledger holds as sold
	err := repo.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return tx.AddTicket(ctx, entity.Ticket{
			TicketID:     "ticket-1",
			UserID:       owner.UserID,
			ExhibitionID: exhibitionID,
			Quantity:     3,
			BookedAt:     now,
		})
	})
	require.NoError(t, err)

	err = manager.CancelTicket(ctx, owner, "ticket-1")
	assert.ErrorIs(t, err, entity.ErrCapacityOverflow)
	assert.True(t, entity.IsDefect(err))
	requireRemaining(t, manager, exhibitionID, 3)

	_, err = repo.GetTicket(ctx, "ticket-1")
	assert.NoError(t, err, "ticket must survive a failed cancellation")
}

func TestManager_SetExhibitionCapacity(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 10, 10)

	_, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 4)
	require.NoError(t, err)

	require.NoError(t, manager.SetExhibitionCapacity(ctx, exhibitionID, 20))
	inventory, err := manager.ExhibitionInventory(ctx, exhibitionID)
	require.NoError(t, err)
	assert.Equal(t, entity.Inventory{
		ExhibitionID: exhibitionID,
		Total:        20,
		Remaining:    16,
		Status:       entity.StatusActive,
	}, inventory)

	assert.ErrorIs(t, manager.SetExhibitionCapacity(ctx, exhibitionID, 3), entity.ErrInvalidCapacity)
	assert.ErrorIs(t, manager.SetExhibitionCapacity(ctx, exhibitionID, 0), entity.ErrInvalidCapacity)
	assert.ErrorIs(t, manager.SetExhibitionCapacity(ctx, "missing", 5), entity.ErrNotFound)
	requireLedgerBalanced(t, manager, repo, exhibitionID)

	events := repo.Events()
	changed, ok := events[len(events)-1].(entity.ExhibitionCapacityChanged_v1)
	require.True(t, ok)
	assert.Equal(t, 10, changed.PreviousTotal)
	assert.Equal(t, 20, changed.TotalTickets)
	assert.Equal(t, 16, changed.RemainingTickets)
}

func TestManager_AdjustTicketQuantity(t *testing.T) {
	ctx := context.Background()
	manager, repo, exhibitionID := setup(t, activeSchedule(), 10, 10)

	ticket, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 2)
	require.NoError(t, err)

	_, err = manager.AdjustTicketQuantity(ctx, owner, ticket.TicketID, 5)
	assert.ErrorIs(t, err, entity.ErrForbidden)

	adjusted, err := manager.AdjustTicketQuantity(ctx, admin, ticket.TicketID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, adjusted.Quantity)
	assert.True(t, decimal.RequireFromString("76.25").Equal(adjusted.TotalPrice), "total price %s", adjusted.TotalPrice)
	requireRemaining(t, manager, exhibitionID, 5)

	adjusted, err = manager.AdjustTicketQuantity(ctx, admin, ticket.TicketID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, adjusted.Quantity)
	requireRemaining(t, manager, exhibitionID, 9)

	_, err = manager.AdjustTicketQuantity(ctx, admin, ticket.TicketID, 11)
	assert.ErrorIs(t, err, entity.ErrInsufficientCapacity)
	_, err = manager.AdjustTicketQuantity(ctx, admin, ticket.TicketID, 0)
	assert.ErrorIs(t, err, entity.ErrInvalidQuantity)

	requireRemaining(t, manager, exhibitionID, 9)
	requireLedgerBalanced(t, manager, repo, exhibitionID)
}

func TestManager_CreateExhibition(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	manager := booking.NewManager(repo, clock)

	valid := entity.NewExhibition{
		Title:        "Cubism",
		Location:     "Hall D",
		Schedule:     scheduleFrom(now, now.AddDate(0, 1, 0)),
		TicketPrice:  decimal.RequireFromString("20.00"),
		TotalTickets: 100,
	}

	created, err := manager.CreateExhibition(ctx, valid)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ExhibitionID)
	assert.Equal(t, 100, created.TotalTickets)
	assert.Equal(t, 100, created.RemainingTickets)
	assert.Equal(t, entity.StatusActive, created.Status)

	stored, err := manager.Exhibition(ctx, created.ExhibitionID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	testCases := []struct {
		Name   string
		Modify func(*entity.NewExhibition)
		Err    error
	}{
		{
			Name:   "missing_title",
			Modify: func(n *entity.NewExhibition) { n.Title = " " },
			Err:    entity.ErrInvalidExhibition,
		},
		{
			Name:   "ends_before_start",
			Modify: func(n *entity.NewExhibition) { n.Schedule.EndDate = now.AddDate(0, 0, -1) },
			Err:    entity.ErrInvalidExhibition,
		},
		{
			Name:   "starts_in_the_past",
			Modify: func(n *entity.NewExhibition) { n.Schedule.StartDate = now.AddDate(0, 0, -1) },
			Err:    entity.ErrInvalidExhibition,
		},
		{
			Name:   "three_decimal_places",
			Modify: func(n *entity.NewExhibition) { n.TicketPrice = decimal.RequireFromString("1.005") },
			Err:    entity.ErrInvalidExhibition,
		},
		{
			Name:   "no_tickets",
			Modify: func(n *entity.NewExhibition) { n.TotalTickets = 0 },
			Err:    entity.ErrInvalidCapacity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			n := valid
			tc.Modify(&n)

			_, err := manager.CreateExhibition(ctx, n)
			assert.ErrorIs(t, err, tc.Err)
		})
	}

	exhibitions, err := manager.ListExhibitions(ctx)
	require.NoError(t, err)
	assert.Len(t, exhibitions, 1)
}

func TestManager_DeleteExhibition(t *testing.T) {
	ctx := context.Background()
	manager, _, exhibitionID := setup(t, activeSchedule(), 10, 10)

	ticket, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, manager.DeleteExhibition(ctx, exhibitionID), entity.ErrExhibitionHasTickets)

	require.NoError(t, manager.CancelTicket(ctx, owner, ticket.TicketID))
	require.NoError(t, manager.DeleteExhibition(ctx, exhibitionID))

	_, err = manager.Exhibition(ctx, exhibitionID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestManager_UserTickets(t *testing.T) {
	ctx := context.Background()
	manager, _, exhibitionID := setup(t, activeSchedule(), 10, 10)

	_, err := manager.BookTickets(ctx, owner.UserID, exhibitionID, 1)
	require.NoError(t, err)
	_, err = manager.BookTickets(ctx, stranger.UserID, exhibitionID, 1)
	require.NoError(t, err)

	tickets, err := manager.UserTickets(ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, owner.UserID, tickets[0].UserID)

	_, err = manager.UserTickets(ctx, owner, stranger.UserID)
	assert.ErrorIs(t, err, entity.ErrForbidden)

	tickets, err = manager.UserTickets(ctx, admin, stranger.UserID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestManager_status_is_never_read_from_storage(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()

	// a stale status stored with the exhibition must not matter
	err := repo.InTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		return tx.AddExhibition(ctx, entity.Exhibition{
			ExhibitionID:     "exhibition-1",
			Schedule:         upcomingSchedule(),
			TotalTickets:     5,
			RemainingTickets: 5,
			Status:           entity.StatusActive,
		})
	})
	require.NoError(t, err)

	manager := booking.NewManager(repo, clock)

	_, err = manager.BookTickets(ctx, owner.UserID, "exhibition-1", 1)
	assert.ErrorIs(t, err, entity.ErrExhibitionNotActive)

	exhibition, err := manager.Exhibition(ctx, "exhibition-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusUpcoming, exhibition.Status)
}
