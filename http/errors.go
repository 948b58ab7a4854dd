package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/echo/v4"

	"gallery/entity"
)

var statusCodes = map[entity.ErrorKind]int{
	entity.KindInvalidQuantity:      http.StatusBadRequest,
	entity.KindInvalidCapacity:      http.StatusBadRequest,
	entity.KindInvalidExhibition:    http.StatusBadRequest,
	entity.KindStatusNotSettable:    http.StatusBadRequest,
	entity.KindExhibitionNotActive:  http.StatusConflict,
	entity.KindExhibitionCompleted:  http.StatusConflict,
	entity.KindInsufficientCapacity: http.StatusConflict,
	entity.KindExhibitionHasTickets: http.StatusConflict,
	entity.KindForbidden:            http.StatusForbidden,
	entity.KindNotFound:             http.StatusNotFound,
}

// toHTTPError translates business errors to responses. Defects are returned
// unchanged, so they are logged and answered with a generic 500.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}

	kind := entity.KindOf(err)
	if code, ok := statusCodes[kind]; ok {
		return echo.NewHTTPError(code, err.Error()).SetInternal(err)
	}
	if kind == entity.KindConflict {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "too many concurrent requests, try again").SetInternal(err)
	}

	return err
}

// retryOnConflict runs op again while it fails with entity.ErrConflict.
// Conflicting transactions are rolled back, so running op again is safe.
func (s *Server) retryOnConflict(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(
		func() error {
			err := op()
			if err != nil && !errors.Is(err, entity.ErrConflict) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, s.conflictRetries), ctx),
	)
}
