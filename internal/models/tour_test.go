package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDateSlot_CanReserve(t *testing.T) {
	slot := DateSlot{TotalCapacity: 4, IsAvailable: true}

	assert.True(t, slot.CanReserve(1))
	assert.True(t, slot.CanReserve(4))
	assert.False(t, slot.CanReserve(0))
	assert.False(t, slot.CanReserve(5))

	booked := slot
	booked.BookedCount = 2
	assert.False(t, booked.CanReserve(1))

	closed := slot
	closed.IsAvailable = false
	assert.False(t, closed.CanReserve(1))
}

func TestDateSlot_TimeUntilStart(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	slot := DateSlot{StartDate: now.Add(48*time.Hour + time.Minute)}

	assert.Equal(t, 48*time.Hour+time.Minute, slot.TimeUntilStart(now))
	assert.Less(t, slot.TimeUntilStart(slot.StartDate.Add(time.Hour)), time.Duration(0))
}

func TestTour_FindSlot(t *testing.T) {
	slot := DateSlot{ID: uuid.New()}
	tour := Tour{Slots: []DateSlot{slot}}

	assert.NotNil(t, tour.FindSlot(slot.ID))
	assert.Nil(t, tour.FindSlot(uuid.New()))
}
