package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tourbook/booking-service/internal/models"
)

const paymentColumns = `id, booking_id, amount, currency, payment_method, transaction_id, order_id,
	status, payment_date, base_amount, gst_amount, gateway_fee, breakdown_total, created_at, updated_at`

type paymentRow struct {
	ID             uuid.UUID `db:"id"`
	BookingID      uuid.UUID `db:"booking_id"`
	Amount         float64   `db:"amount"`
	Currency       string    `db:"currency"`
	PaymentMethod  string    `db:"payment_method"`
	TransactionID  string    `db:"transaction_id"`
	OrderID        string    `db:"order_id"`
	Status         string    `db:"status"`
	PaymentDate    time.Time `db:"payment_date"`
	BaseAmount     float64   `db:"base_amount"`
	GSTAmount      float64   `db:"gst_amount"`
	GatewayFee     float64   `db:"gateway_fee"`
	BreakdownTotal float64   `db:"breakdown_total"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (row *paymentRow) toModel() *models.Payment {
	return &models.Payment{
		ID:            row.ID,
		BookingID:     row.BookingID,
		Amount:        row.Amount,
		Currency:      row.Currency,
		PaymentMethod: row.PaymentMethod,
		TransactionID: row.TransactionID,
		OrderID:       row.OrderID,
		Status:        models.PaymentStatus(row.Status),
		PaymentDate:   row.PaymentDate,
		Breakdown: models.PaymentBreakdown{
			BaseAmount:  row.BaseAmount,
			GSTAmount:   row.GSTAmount,
			GatewayFee:  row.GatewayFee,
			TotalAmount: row.BreakdownTotal,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// PaymentRepository implements PaymentLedger on the tour_payments table
type PaymentRepository struct {
	db sqlx.ExtContext
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db sqlx.ExtContext) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO tour_payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.BookingID, p.Amount, p.Currency, p.PaymentMethod, p.TransactionID, p.OrderID,
		p.Status, p.PaymentDate,
		p.Breakdown.BaseAmount, p.Breakdown.GSTAmount, p.Breakdown.GatewayFee, p.Breakdown.TotalAmount,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByBookingID returns the payment of a booking
func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM tour_payments WHERE booking_id = $1`, bookingID)
}

// GetByTransactionID returns the payment with a gateway payment id
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM tour_payments WHERE transaction_id = $1`, transactionID)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return row.toModel(), nil
}
