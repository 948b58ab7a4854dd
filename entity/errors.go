package entity

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a transaction lost a lock or serialization race.
	// It is safe to retry the whole operation.
	ErrConflict = errors.New("conflict")

	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidCapacity   = errors.New("invalid ticket capacity")
	ErrInvalidExhibition = errors.New("invalid exhibition")
	ErrStatusNotSettable = errors.New("exhibition status is derived and cannot be set")

	ErrExhibitionNotActive  = errors.New("exhibition is not active")
	ErrExhibitionCompleted  = errors.New("exhibition is completed")
	ErrInsufficientCapacity = errors.New("not enough tickets available")
	ErrExhibitionHasTickets = errors.New("exhibition has tickets")

	ErrForbidden = errors.New("forbidden")

	// ErrCapacityOverflow means a release would push remaining tickets above the total.
	// It always points to a bookkeeping bug and must never be swallowed.
	ErrCapacityOverflow = errors.New("capacity overflow")
)

type ErrorKind string

const (
	KindNotFound             ErrorKind = "NotFound"
	KindConflict             ErrorKind = "Conflict"
	KindInvalidQuantity      ErrorKind = "InvalidQuantity"
	KindInvalidCapacity      ErrorKind = "InvalidCapacity"
	KindInvalidExhibition    ErrorKind = "InvalidExhibition"
	KindStatusNotSettable    ErrorKind = "StatusNotSettable"
	KindExhibitionNotActive  ErrorKind = "ExhibitionNotActive"
	KindExhibitionCompleted  ErrorKind = "ExhibitionCompleted"
	KindInsufficientCapacity ErrorKind = "InsufficientCapacity"
	KindExhibitionHasTickets ErrorKind = "ExhibitionHasTickets"
	KindForbidden            ErrorKind = "Forbidden"
	KindCapacityOverflow     ErrorKind = "CapacityOverflow"
	KindInternal             ErrorKind = "Internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrCapacityOverflow, KindCapacityOverflow},
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrInvalidCapacity, KindInvalidCapacity},
	{ErrInvalidExhibition, KindInvalidExhibition},
	{ErrStatusNotSettable, KindStatusNotSettable},
	{ErrExhibitionNotActive, KindExhibitionNotActive},
	{ErrExhibitionCompleted, KindExhibitionCompleted},
	{ErrInsufficientCapacity, KindInsufficientCapacity},
	{ErrExhibitionHasTickets, KindExhibitionHasTickets},
	{ErrForbidden, KindForbidden},
}

// KindOf classifies err by the first sentinel it wraps. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsDefect reports whether err indicates a bug or storage anomaly rather than a user error.
func IsDefect(err error) bool {
	if err == nil {
		return false
	}
	kind := KindOf(err)
	return kind == KindCapacityOverflow || kind == KindInternal
}
