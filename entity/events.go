package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type ExhibitionCreated_v1 struct {
	Header       EventHeader `json:"header"`
	ExhibitionID string      `json:"exhibition_id"`
	Title        string      `json:"title"`
	TotalTickets int         `json:"total_tickets"`
	StartsAt     time.Time   `json:"starts_at"`
	EndsAt       time.Time   `json:"ends_at"`
}

type ExhibitionCapacityChanged_v1 struct {
	Header           EventHeader `json:"header"`
	ExhibitionID     string      `json:"exhibition_id"`
	PreviousTotal    int         `json:"previous_total"`
	TotalTickets     int         `json:"total_tickets"`
	RemainingTickets int         `json:"remaining_tickets"`
}

type TicketsBooked_v1 struct {
	Header       EventHeader `json:"header"`
	TicketID     string      `json:"ticket_id"`
	UserID       string      `json:"user_id"`
	ExhibitionID string      `json:"exhibition_id"`
	Quantity     int         `json:"quantity"`
	TotalPrice   string      `json:"total_price"`
	BookedAt     time.Time   `json:"booked_at"`
}

type TicketCancelled_v1 struct {
	Header       EventHeader `json:"header"`
	TicketID     string      `json:"ticket_id"`
	UserID       string      `json:"user_id"`
	ExhibitionID string      `json:"exhibition_id"`
	Quantity     int         `json:"quantity"`
	TotalPrice   string      `json:"total_price"`
	CancelledBy  string      `json:"cancelled_by"`
}

type TicketQuantityAdjusted_v1 struct {
	Header           EventHeader `json:"header"`
	TicketID         string      `json:"ticket_id"`
	ExhibitionID     string      `json:"exhibition_id"`
	PreviousQuantity int         `json:"previous_quantity"`
	Quantity         int         `json:"quantity"`
	TotalPrice       string      `json:"total_price"`
	AdjustedBy       string      `json:"adjusted_by"`
}
