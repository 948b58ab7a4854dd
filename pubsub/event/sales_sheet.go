package event

import (
	"context"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"gallery/entity"
)

const (
	SheetTicketsSold      = "tickets-sold"
	SheetTicketsCancelled = "tickets-cancelled"
	SheetTicketsAdjusted  = "tickets-adjusted"
)

func (h Handler) AppendSoldTicketHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"AppendSoldTicketHandler",
		func(ctx context.Context, event *entity.TicketsBooked_v1) error {
			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Info("Adding sold ticket to sheet")

			return h.spreadsheetsService.AppendRow(
				ctx,
				SheetTicketsSold,
				[]string{
					event.TicketID,
					event.ExhibitionID,
					event.UserID,
					strconv.Itoa(event.Quantity),
					event.TotalPrice,
					event.BookedAt.Format(time.RFC3339),
				},
			)
		},
	)
}

func (h Handler) AppendCancelledTicketHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"AppendCancelledTicketHandler",
		func(ctx context.Context, event *entity.TicketCancelled_v1) error {
			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Info("Adding cancelled ticket to sheet")

			return h.spreadsheetsService.AppendRow(
				ctx,
				SheetTicketsCancelled,
				[]string{
					event.TicketID,
					event.ExhibitionID,
					event.UserID,
					strconv.Itoa(event.Quantity),
					event.TotalPrice,
					event.CancelledBy,
				},
			)
		},
	)
}

func (h Handler) AppendAdjustedTicketHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"AppendAdjustedTicketHandler",
		func(ctx context.Context, event *entity.TicketQuantityAdjusted_v1) error {
			return h.spreadsheetsService.AppendRow(
				ctx,
				SheetTicketsAdjusted,
				[]string{
					event.TicketID,
					event.ExhibitionID,
					strconv.Itoa(event.PreviousQuantity),
					strconv.Itoa(event.Quantity),
					event.TotalPrice,
					event.AdjustedBy,
				},
			)
		},
	)
}
