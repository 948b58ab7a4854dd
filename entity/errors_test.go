package entity_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"gallery/entity"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("could not book: %w", fmt.Errorf("%w: requested 3", entity.ErrInsufficientCapacity))

	assert.Equal(t, entity.KindInsufficientCapacity, entity.KindOf(wrapped))
	assert.Equal(t, entity.KindNotFound, entity.KindOf(entity.ErrNotFound))
	assert.Equal(t, entity.KindInternal, entity.KindOf(errors.New("connection reset")))
	assert.Equal(t, entity.ErrorKind(""), entity.KindOf(nil))

	conflict := fmt.Errorf("%w: %w", entity.ErrConflict, errors.New("pq: deadlock detected"))
	assert.Equal(t, entity.KindConflict, entity.KindOf(conflict))
}

func TestIsDefect(t *testing.T) {
	assert.True(t, entity.IsDefect(fmt.Errorf("cancel: %w", entity.ErrCapacityOverflow)))
	assert.True(t, entity.IsDefect(errors.New("commit failed")))
	assert.False(t, entity.IsDefect(entity.ErrInsufficientCapacity))
	assert.False(t, entity.IsDefect(entity.ErrForbidden))
	assert.False(t, entity.IsDefect(nil))
}
