// Package inventory holds the ticket capacity bookkeeping of exhibitions.
//
// Every exhibition owns a pair of figures, the total capacity and the number
// of tickets still for sale. All changes to the pair go through a Ledger so
// that remaining never exceeds total and never drops below zero.
package inventory

import "context"

// Ledger mutates the capacity figures of exhibitions.
//
// Implementations are bound to a transaction: a mutation becomes visible to
// other callers only when the surrounding transaction commits, and each call
// is atomic with respect to concurrent calls on the same exhibition.
type Ledger interface {
	// Reserve takes quantity tickets out of the remaining pool.
	// It fails with entity.ErrInsufficientCapacity when fewer are left and
	// with entity.ErrNotFound when the exhibition does not exist.
	Reserve(ctx context.Context, exhibitionID string, quantity int) error

	// Release puts quantity tickets back into the remaining pool.
	// It fails with entity.ErrCapacityOverflow if that would exceed the total.
	Release(ctx context.Context, exhibitionID string, quantity int) error

	// SetTotal changes the capacity, keeping the number of sold tickets.
	SetTotal(ctx context.Context, exhibitionID string, newTotal int) error
}
