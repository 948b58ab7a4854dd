package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"gallery/entity"
)

type bookTicketsRequest struct {
	ExhibitionID string `json:"exhibition_id"`
	Quantity     int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type ticketResponse struct {
	TicketID     string    `json:"ticket_id"`
	UserID       string    `json:"user_id"`
	ExhibitionID string    `json:"exhibition_id"`
	Quantity     int       `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	TotalPrice   string    `json:"total_price"`
	BookedAt     time.Time `json:"booked_at"`
}

func newTicketResponse(t entity.Ticket) ticketResponse {
	return ticketResponse{
		TicketID:     t.TicketID,
		UserID:       t.UserID,
		ExhibitionID: t.ExhibitionID,
		Quantity:     t.Quantity,
		UnitPrice:    t.UnitPrice.StringFixed(2),
		TotalPrice:   t.TotalPrice.StringFixed(2),
		BookedAt:     t.BookedAt,
	}
}

func (s *Server) PostTickets(c echo.Context) error {
	var request bookTicketsRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	ctx := c.Request().Context()
	actor := actorFromContext(c)

	var ticket entity.Ticket
	err := s.retryOnConflict(ctx, func() error {
		var err error
		ticket, err = s.bookings.BookTickets(ctx, actor.UserID, request.ExhibitionID, request.Quantity)
		return err
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, newTicketResponse(ticket))
}

func (s *Server) GetTickets(c echo.Context) error {
	tickets, err := s.bookings.UserTickets(c.Request().Context(), actorFromContext(c), c.QueryParam("user_id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, lo.Map(tickets, func(t entity.Ticket, _ int) ticketResponse {
		return newTicketResponse(t)
	}))
}

func (s *Server) GetTicket(c echo.Context) error {
	ticket, err := s.bookings.Ticket(c.Request().Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, newTicketResponse(ticket))
}

func (s *Server) DeleteTicket(c echo.Context) error {
	ctx := c.Request().Context()
	actor := actorFromContext(c)

	err := s.retryOnConflict(ctx, func() error {
		return s.bookings.CancelTicket(ctx, actor, c.Param("id"))
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) PutTicketQuantity(c echo.Context) error {
	var request quantityRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	ctx := c.Request().Context()
	actor := actorFromContext(c)

	var ticket entity.Ticket
	err := s.retryOnConflict(ctx, func() error {
		var err error
		ticket, err = s.bookings.AdjustTicketQuantity(ctx, actor, c.Param("id"), request.Quantity)
		return err
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, newTicketResponse(ticket))
}
