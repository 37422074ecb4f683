package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/models"
)

const auditColumns = `id, order_id, payment_id, booking_id, event_type, event_source,
	expected_amount, received_amount, currency, amounts_match, payment_status, payload,
	error_message, error_code, processing_time_ms,
	ip_address, user_agent, device_type, browser, os, correlation_id, created_at`

// PaymentAuditRepository implements PaymentAuditLog on the payment_audits table
type PaymentAuditRepository struct {
	db     sqlx.ExtContext
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db sqlx.ExtContext, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends an audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.OrderID, audit.PaymentID, audit.BookingID, audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch, audit.PaymentStatus, audit.Payload,
		audit.ErrorMessage, audit.ErrorCode, audit.ProcessingTimeMs,
		audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.Browser, audit.OS, audit.CorrelationID, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"order_id":   audit.OrderID,
		}).Error("Failed to write payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// GetByOrderID returns the audit trail of a gateway order, oldest first
func (r *PaymentAuditRepository) GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT ` + auditColumns + `
		FROM payment_audits
		WHERE order_id = $1
		ORDER BY created_at ASC`

	if err := sqlx.SelectContext(ctx, r.db, &audits, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to get audits by order ID: %w", err)
	}
	return audits, nil
}

// GetAmountMismatches returns the most recent entries whose amounts disagreed
func (r *PaymentAuditRepository) GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT ` + auditColumns + `
		FROM payment_audits
		WHERE amounts_match = FALSE
		ORDER BY created_at DESC
		LIMIT $1`

	if err := sqlx.SelectContext(ctx, r.db, &audits, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get amount mismatches: %w", err)
	}
	return audits, nil
}
