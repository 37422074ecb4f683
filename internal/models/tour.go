package models

import (
	"time"

	"github.com/google/uuid"
)

// Tour is read-mostly reference data owned by the content system
type Tour struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Price        float64    `json:"price" db:"price"`
	MaxGroupSize int        `json:"maxGroupSize" db:"max_group_size"`
	Currency     string     `json:"currency" db:"currency"`
	Slots        []DateSlot `json:"dates,omitempty" db:"-"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// DateSlot is a bookable date range of a tour (table tour_dates).
// Invariant: 0 <= BookedCount <= TotalCapacity, and IsAvailable is false
// whenever BookedCount > 0.
type DateSlot struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TourID        uuid.UUID `json:"tourId" db:"tour_id"`
	StartDate     time.Time `json:"startDate" db:"start_date"`
	EndDate       time.Time `json:"endDate" db:"end_date"`
	PriceOverride *float64  `json:"priceOverride,omitempty" db:"price_override"`
	TotalCapacity int       `json:"totalCapacity" db:"total_capacity"`
	BookedCount   int       `json:"bookedCount" db:"booked_count"`
	IsAvailable   bool      `json:"isAvailable" db:"is_available"`
	Version       int64     `json:"version" db:"version"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// CanReserve reports whether the slot can take a booking of the given size.
// A slot is all-or-nothing: any booked guest makes it unavailable.
func (s *DateSlot) CanReserve(guests int) bool {
	return s.IsAvailable && s.BookedCount == 0 && guests > 0 && guests <= s.TotalCapacity
}

// TimeUntilStart returns the time remaining before the slot starts; negative once started
func (s *DateSlot) TimeUntilStart(now time.Time) time.Duration {
	return s.StartDate.Sub(now)
}

// FindSlot returns the slot with the given id, or nil
func (t *Tour) FindSlot(slotID uuid.UUID) *DateSlot {
	for i := range t.Slots {
		if t.Slots[i].ID == slotID {
			return &t.Slots[i]
		}
	}
	return nil
}
