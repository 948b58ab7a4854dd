package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"gallery/entity"
)

const dateLayout = "2006-01-02"

type exhibitionRequest struct {
	Title        string           `json:"title"`
	Location     string           `json:"location"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	OpeningTime  entity.TimeOfDay `json:"opening_time"`
	ClosingTime  entity.TimeOfDay `json:"closing_time"`
	TicketPrice  decimal.Decimal  `json:"ticket_price"`
	TotalTickets int              `json:"total_tickets"`

	// Status is only bound to reject requests trying to set it.
	Status *string `json:"status"`
}

type exhibitionResponse struct {
	ExhibitionID     string                  `json:"exhibition_id"`
	Title            string                  `json:"title"`
	Location         string                  `json:"location"`
	StartDate        string                  `json:"start_date"`
	EndDate          string                  `json:"end_date"`
	OpeningTime      entity.TimeOfDay        `json:"opening_time"`
	ClosingTime      entity.TimeOfDay        `json:"closing_time"`
	TicketPrice      string                  `json:"ticket_price"`
	TotalTickets     int                     `json:"total_tickets"`
	RemainingTickets int                     `json:"remaining_tickets"`
	Status           entity.ExhibitionStatus `json:"status"`
}

type capacityRequest struct {
	TotalTickets int `json:"total_tickets"`
}

func newExhibitionResponse(e entity.Exhibition) exhibitionResponse {
	return exhibitionResponse{
		ExhibitionID:     e.ExhibitionID,
		Title:            e.Title,
		Location:         e.Location,
		StartDate:        e.StartDate.Format(dateLayout),
		EndDate:          e.EndDate.Format(dateLayout),
		OpeningTime:      e.OpeningTime,
		ClosingTime:      e.ClosingTime,
		TicketPrice:      e.TicketPrice.StringFixed(2),
		TotalTickets:     e.TotalTickets,
		RemainingTickets: e.RemainingTickets,
		Status:           e.Status,
	}
}

func (s *Server) PostExhibitions(c echo.Context) error {
	var request exhibitionRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if request.Status != nil {
		return toHTTPError(entity.ErrStatusNotSettable)
	}

	startDate, err := time.Parse(dateLayout, request.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid start_date %q, expected YYYY-MM-DD", request.StartDate))
	}
	endDate, err := time.Parse(dateLayout, request.EndDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid end_date %q, expected YYYY-MM-DD", request.EndDate))
	}

	exhibition, err := s.bookings.CreateExhibition(c.Request().Context(), entity.NewExhibition{
		Title:    request.Title,
		Location: request.Location,
		Schedule: entity.Schedule{
			StartDate:   startDate,
			EndDate:     endDate,
			OpeningTime: request.OpeningTime,
			ClosingTime: request.ClosingTime,
		},
		TicketPrice:  request.TicketPrice,
		TotalTickets: request.TotalTickets,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, newExhibitionResponse(exhibition))
}

func (s *Server) GetExhibitions(c echo.Context) error {
	exhibitions, err := s.bookings.ListExhibitions(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, lo.Map(exhibitions, func(e entity.Exhibition, _ int) exhibitionResponse {
		return newExhibitionResponse(e)
	}))
}

func (s *Server) GetExhibition(c echo.Context) error {
	exhibition, err := s.bookings.Exhibition(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, newExhibitionResponse(exhibition))
}

func (s *Server) DeleteExhibition(c echo.Context) error {
	ctx := c.Request().Context()

	err := s.retryOnConflict(ctx, func() error {
		return s.bookings.DeleteExhibition(ctx, c.Param("id"))
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) GetExhibitionInventory(c echo.Context) error {
	inventory, err := s.bookings.ExhibitionInventory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, inventory)
}

func (s *Server) PutExhibitionCapacity(c echo.Context) error {
	var request capacityRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	ctx := c.Request().Context()
	exhibitionID := c.Param("id")

	err := s.retryOnConflict(ctx, func() error {
		return s.bookings.SetExhibitionCapacity(ctx, exhibitionID, request.TotalTickets)
	})
	if err != nil {
		return toHTTPError(err)
	}

	inventory, err := s.bookings.ExhibitionInventory(ctx, exhibitionID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, inventory)
}
