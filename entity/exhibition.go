package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Exhibition struct {
	ExhibitionID string `json:"exhibition_id" db:"exhibition_id"`
	Title        string `json:"title" db:"title"`
	Location     string `json:"location" db:"location"`

	Schedule

	TicketPrice      decimal.Decimal `json:"ticket_price" db:"ticket_price"`
	TotalTickets     int             `json:"total_tickets" db:"total_tickets"`
	RemainingTickets int             `json:"remaining_tickets" db:"remaining_tickets"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Status is never stored. It is filled from the schedule whenever an exhibition is read.
	Status ExhibitionStatus `json:"status" db:"-"`
}

// WithStatus returns a copy of e with Status derived at now.
func (e Exhibition) WithStatus(now time.Time) Exhibition {
	e.Status = DeriveStatus(e.Schedule, now)
	return e
}

func (e Exhibition) Inventory(now time.Time) Inventory {
	return Inventory{
		ExhibitionID: e.ExhibitionID,
		Total:        e.TotalTickets,
		Remaining:    e.RemainingTickets,
		Status:       DeriveStatus(e.Schedule, now),
	}
}

type Inventory struct {
	ExhibitionID string           `json:"exhibition_id"`
	Total        int              `json:"total"`
	Remaining    int              `json:"remaining"`
	Status       ExhibitionStatus `json:"status"`
}

// NewExhibition is what the administrative collaborator supplies to create an exhibition.
type NewExhibition struct {
	Title        string
	Location     string
	Schedule     Schedule
	TicketPrice  decimal.Decimal
	TotalTickets int
}

func (n NewExhibition) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidExhibition)
	}
	if strings.TrimSpace(n.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidExhibition)
	}
	if err := n.Schedule.Validate(); err != nil {
		return err
	}
	if err := ValidatePrice(n.TicketPrice); err != nil {
		return err
	}
	if n.TotalTickets < 1 {
		return fmt.Errorf("%w: total tickets must be at least 1", ErrInvalidCapacity)
	}
	return nil
}

// ValidatePrice accepts non-negative amounts with at most two decimal places.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: ticket price cannot be negative", ErrInvalidExhibition)
	}
	if !price.Equal(price.Round(2)) {
		return fmt.Errorf("%w: ticket price has more than two decimal places", ErrInvalidExhibition)
	}
	return nil
}
