package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ticket struct {
	TicketID     string `json:"ticket_id" db:"ticket_id"`
	UserID       string `json:"user_id" db:"user_id"`
	ExhibitionID string `json:"exhibition_id" db:"exhibition_id"`
	Quantity     int    `json:"quantity" db:"quantity"`

	// UnitPrice is the exhibition ticket price at booking time. TotalPrice is
	// UnitPrice times Quantity and never follows later price changes.
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`

	BookedAt time.Time `json:"booked_at" db:"booked_at"`
}

func TotalPrice(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Actor is the authenticated caller, supplied by the auth collaborator.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess reports whether a may read or cancel tickets owned by userID.
func (a Actor) CanAccess(userID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == userID)
}
