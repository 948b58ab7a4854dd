package inventory

import (
	"fmt"
	"math"

	"gallery/entity"
)

// MaxTickets is the largest ticket count the store can hold.
const MaxTickets = math.MaxInt32

// Figures is the capacity of one exhibition. The zero value is not valid.
type Figures struct {
	Total     int `db:"total_tickets"`
	Remaining int `db:"remaining_tickets"`
}

func NewFigures(total int) (Figures, error) {
	if err := checkTotal(total); err != nil {
		return Figures{}, err
	}
	return Figures{Total: total, Remaining: total}, nil
}

// Sold is the number of tickets held by outstanding bookings.
func (f Figures) Sold() int {
	return f.Total - f.Remaining
}

func (f Figures) Valid() bool {
	return f.Total >= 1 && f.Remaining >= 0 && f.Remaining <= f.Total
}

func (f Figures) Reserve(quantity int) (Figures, error) {
	if quantity < 1 {
		return f, fmt.Errorf("%w: got %d", entity.ErrInvalidQuantity, quantity)
	}
	if quantity > f.Remaining {
		return f, fmt.Errorf("%w: requested %d, remaining %d", entity.ErrInsufficientCapacity, quantity, f.Remaining)
	}
	f.Remaining -= quantity
	return f, nil
}

func (f Figures) Release(quantity int) (Figures, error) {
	if quantity < 1 {
		return f, fmt.Errorf("%w: got %d", entity.ErrInvalidQuantity, quantity)
	}
	if f.Remaining+quantity > f.Total {
		return f, fmt.Errorf(
			"%w: releasing %d would leave %d remaining of %d total",
			entity.ErrCapacityOverflow, quantity, f.Remaining+quantity, f.Total,
		)
	}
	f.Remaining += quantity
	return f, nil
}

// Resize sets a new total and recomputes remaining so that Sold stays the same.
func (f Figures) Resize(newTotal int) (Figures, error) {
	if err := checkTotal(newTotal); err != nil {
		return f, err
	}
	sold := f.Sold()
	if newTotal < sold {
		return f, fmt.Errorf("%w: %d tickets are already sold, cannot shrink to %d", entity.ErrInvalidCapacity, sold, newTotal)
	}
	return Figures{Total: newTotal, Remaining: newTotal - sold}, nil
}

func checkTotal(total int) error {
	if total < 1 {
		return fmt.Errorf("%w: total must be at least 1, got %d", entity.ErrInvalidCapacity, total)
	}
	if total > MaxTickets {
		return fmt.Errorf("%w: total cannot exceed %d, got %d", entity.ErrInvalidCapacity, MaxTickets, total)
	}
	return nil
}
