package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/database"
	"github.com/tourbook/booking-service/internal/models"
)

// PaymentAuditService exposes the payment audit trail to administrators
type PaymentAuditService struct {
	audits database.PaymentAuditLog
	logger *logrus.Logger
}

// NewPaymentAuditService creates a new payment audit service
func NewPaymentAuditService(audits database.PaymentAuditLog, logger *logrus.Logger) *PaymentAuditService {
	return &PaymentAuditService{
		audits: audits,
		logger: logger,
	}
}

// ListAmountMismatches returns recent events where client, server and gateway
// amounts disagreed
func (s *PaymentAuditService) ListAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	audits, err := s.audits.GetAmountMismatches(ctx, limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list amount mismatches")
		return nil, newError(KindPersistence, "failed to list amount mismatches", err)
	}
	return audits, nil
}

// GetOrderTrail returns every audit event of a gateway order, oldest first
func (s *PaymentAuditService) GetOrderTrail(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	if orderID == "" {
		return nil, newError(KindValidation, "orderId is required", nil)
	}
	audits, err := s.audits.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Error("Failed to load payment audit trail")
		return nil, newError(KindPersistence, "failed to load payment audit trail", err)
	}
	if len(audits) == 0 {
		return nil, newError(KindNotFound, "no payment events for this order", nil)
	}
	return audits, nil
}
