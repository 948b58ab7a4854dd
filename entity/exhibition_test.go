package entity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gallery/entity"
)

func TestValidatePrice(t *testing.T) {
	for _, valid := range []string{"0", "0.5", "12.50", "999.99"} {
		assert.NoError(t, entity.ValidatePrice(decimal.RequireFromString(valid)), valid)
	}

	for _, invalid := range []string{"-0.01", "1.005", "0.001"} {
		assert.ErrorIs(t, entity.ValidatePrice(decimal.RequireFromString(invalid)), entity.ErrInvalidExhibition, invalid)
	}
}

func TestTotalPrice(t *testing.T) {
	total := entity.TotalPrice(decimal.RequireFromString("19.99"), 3)
	assert.Equal(t, "59.97", total.StringFixed(2))
}

func TestExhibition_Inventory(t *testing.T) {
	exhibition := entity.Exhibition{
		ExhibitionID:     "exhibition-1",
		Schedule:         exampleSchedule(),
		TotalTickets:     10,
		RemainingTickets: 4,
	}

	inventory := exhibition.Inventory(time.Date(2030, 5, 2, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, entity.Inventory{
		ExhibitionID: "exhibition-1",
		Total:        10,
		Remaining:    4,
		Status:       entity.StatusActive,
	}, inventory)
}

func TestActor(t *testing.T) {
	user := entity.Actor{UserID: "u1", Role: entity.RoleUser}
	admin := entity.Actor{UserID: "a1", Role: entity.RoleAdmin}

	assert.True(t, user.CanAccess("u1"))
	assert.False(t, user.CanAccess("u2"))
	assert.True(t, admin.CanAccess("u2"))
	assert.False(t, user.IsAdmin())
	assert.True(t, admin.IsAdmin())
}
