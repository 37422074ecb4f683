package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tourbook/booking-service/internal/models"
)

const slotColumns = `id, tour_id, start_date, end_date, price_override, total_capacity,
	booked_count, is_available, version, updated_at`

// TourRepository reads tours and their dates
type TourRepository struct {
	db sqlx.ExtContext
}

// NewTourRepository creates a new TourRepository
func NewTourRepository(db sqlx.ExtContext) *TourRepository {
	return &TourRepository{db: db}
}

// GetTour loads a tour with its dates ordered by start date
func (r *TourRepository) GetTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	query := `
		SELECT id, title, price, max_group_size, currency, created_at, updated_at
		FROM tours
		WHERE id = $1`

	if err := sqlx.GetContext(ctx, r.db, &tour, query, tourID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}

	query = `SELECT ` + slotColumns + ` FROM tour_dates WHERE tour_id = $1 ORDER BY start_date ASC`
	if err := sqlx.SelectContext(ctx, r.db, &tour.Slots, query, tourID); err != nil {
		return nil, fmt.Errorf("failed to get tour dates: %w", err)
	}

	return &tour, nil
}

// SlotRepository implements SlotStore on the tour_dates table. Every write is
// a single conditional UPDATE so concurrent reservations serialize in Postgres.
type SlotRepository struct {
	db sqlx.ExtContext
}

// NewSlotRepository creates a new SlotRepository
func NewSlotRepository(db sqlx.ExtContext) *SlotRepository {
	return &SlotRepository{db: db}
}

// GetSlot returns a tour date
func (r *SlotRepository) GetSlot(ctx context.Context, tourID, slotID uuid.UUID) (*models.DateSlot, error) {
	var slot models.DateSlot
	query := `SELECT ` + slotColumns + ` FROM tour_dates WHERE id = $1 AND tour_id = $2`

	if err := sqlx.GetContext(ctx, r.db, &slot, query, slotID, tourID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tour date: %w", err)
	}
	return &slot, nil
}

// TryReserve books the whole slot for guests
func (r *SlotRepository) TryReserve(ctx context.Context, tourID, slotID uuid.UUID, guests int) error {
	query := `
		UPDATE tour_dates
		SET booked_count = $3, is_available = FALSE, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND tour_id = $2
		AND booked_count = 0 AND is_available = TRUE AND $3 <= total_capacity`

	result, err := r.db.ExecContext(ctx, query, slotID, tourID, guests)
	if err != nil {
		return fmt.Errorf("failed to reserve tour date: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reserve tour date: %w", err)
	}
	if rows == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

// Release restores the slot to available with no guests
func (r *SlotRepository) Release(ctx context.Context, tourID, slotID uuid.UUID) error {
	query := `
		UPDATE tour_dates
		SET booked_count = 0, is_available = TRUE, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND tour_id = $2
		AND (booked_count <> 0 OR is_available = FALSE)`

	if _, err := r.db.ExecContext(ctx, query, slotID, tourID); err != nil {
		return fmt.Errorf("failed to release tour date: %w", err)
	}
	return nil
}
