package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tourbook/booking-service/internal/models"
)

const bookingColumns = `id, booking_id, user_id, tour_id, tour_date_id, number_of_guests,
	price_per_person, total_amount, contact_name, contact_phone, contact_email, contact_address,
	status, payment_status, transaction_id, paid_amount, refund_amount, refund_percentage,
	booking_date, confirmation_date, cancellation_date, cancellation_reason, created_at, updated_at`

// bookingRow is the flat tour_bookings row
type bookingRow struct {
	ID                 uuid.UUID      `db:"id"`
	BookingID          string         `db:"booking_id"`
	UserID             uuid.NullUUID  `db:"user_id"`
	TourID             uuid.UUID      `db:"tour_id"`
	TourDateID         uuid.UUID      `db:"tour_date_id"`
	NumberOfGuests     int            `db:"number_of_guests"`
	PricePerPerson     float64        `db:"price_per_person"`
	TotalAmount        float64        `db:"total_amount"`
	ContactName        string         `db:"contact_name"`
	ContactPhone       string         `db:"contact_phone"`
	ContactEmail       string         `db:"contact_email"`
	ContactAddress     sql.NullString `db:"contact_address"`
	Status             string         `db:"status"`
	PaymentStatus      string         `db:"payment_status"`
	TransactionID      string         `db:"transaction_id"`
	PaidAmount         float64        `db:"paid_amount"`
	RefundAmount       float64        `db:"refund_amount"`
	RefundPercentage   int            `db:"refund_percentage"`
	BookingDate        time.Time      `db:"booking_date"`
	ConfirmationDate   sql.NullTime   `db:"confirmation_date"`
	CancellationDate   sql.NullTime   `db:"cancellation_date"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (row *bookingRow) toModel() *models.Booking {
	b := &models.Booking{
		ID:             row.ID,
		BookingID:      row.BookingID,
		TourID:         row.TourID,
		DateSlotID:     row.TourDateID,
		NumberOfGuests: row.NumberOfGuests,
		PricePerPerson: row.PricePerPerson,
		TotalAmount:    row.TotalAmount,
		PrimaryContact: models.ContactDetails{
			Name:    row.ContactName,
			Phone:   row.ContactPhone,
			Email:   row.ContactEmail,
			Address: row.ContactAddress.String,
		},
		Status:           models.BookingStatus(row.Status),
		PaymentStatus:    models.BookingPaymentStatus(row.PaymentStatus),
		TransactionID:    row.TransactionID,
		PaidAmount:       row.PaidAmount,
		RefundAmount:     row.RefundAmount,
		RefundPercentage: row.RefundPercentage,
		BookingDate:      row.BookingDate,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.UserID.Valid {
		id := row.UserID.UUID
		b.UserID = &id
	}
	if row.ConfirmationDate.Valid {
		t := row.ConfirmationDate.Time
		b.ConfirmationDate = &t
	}
	if row.CancellationDate.Valid {
		t := row.CancellationDate.Time
		b.CancellationDate = &t
	}
	if row.CancellationReason.Valid {
		s := row.CancellationReason.String
		b.CancellationReason = &s
	}
	return b
}

// BookingRepository implements BookingLedger on the tour_bookings table
type BookingRepository struct {
	db sqlx.ExtContext
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db sqlx.ExtContext) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	var userID uuid.NullUUID
	if b.UserID != nil {
		userID = uuid.NullUUID{UUID: *b.UserID, Valid: true}
	}

	query := `
		INSERT INTO tour_bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.BookingID, userID, b.TourID, b.DateSlotID, b.NumberOfGuests,
		b.PricePerPerson, b.TotalAmount,
		b.PrimaryContact.Name, b.PrimaryContact.Phone, b.PrimaryContact.Email, nullString(b.PrimaryContact.Address),
		b.Status, b.PaymentStatus, b.TransactionID, b.PaidAmount, b.RefundAmount, b.RefundPercentage,
		b.BookingDate, b.ConfirmationDate, b.CancellationDate, b.CancellationReason, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByBookingID returns a booking by its public id
func (r *BookingRepository) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM tour_bookings WHERE booking_id = $1`, bookingID)
}

// GetByTransactionID returns the booking paid by a gateway payment id
func (r *BookingRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM tour_bookings WHERE transaction_id = $1`, transactionID)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return row.toModel(), nil
}

// ListByUser returns a user's bookings, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	var rows []bookingRow
	query := `
		SELECT ` + bookingColumns + `
		FROM tour_bookings
		WHERE user_id = $1
		ORDER BY booking_date DESC
		LIMIT $2 OFFSET $3`

	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*models.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, rows[i].toModel())
	}
	return bookings, nil
}

// MarkCancelled cancels a pending or confirmed booking
func (r *BookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID, c models.BookingCancellation) error {
	query := `
		UPDATE tour_bookings
		SET status = 'cancelled', cancellation_date = $2, cancellation_reason = $3,
			refund_amount = $4, refund_percentage = $5, payment_status = $6, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed')`

	result, err := r.db.ExecContext(ctx, query,
		id, c.CancelledAt, nullString(c.Reason), c.RefundAmount, c.RefundPercentage, c.PaymentStatus)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if rows == 0 {
		return ErrBookingNotCancellable
	}
	return nil
}

// MarkCompletedEnded completes confirmed bookings whose tour date has ended
func (r *BookingRepository) MarkCompletedEnded(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE tour_bookings b
		SET status = 'completed', updated_at = NOW()
		FROM tour_dates d
		WHERE b.tour_date_id = d.id
		AND b.status = 'confirmed'
		AND d.end_date < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to complete ended bookings: %w", err)
	}
	return result.RowsAffected()
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
