package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/database"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/pkg/metrics"
	phonevalidator "github.com/tourbook/booking-service/pkg/validator"
)

// BookingOrchestratorConfig holds configuration for the orchestrator
type BookingOrchestratorConfig struct {
	Currency             string
	FullRefundHours      int // strictly more than this before start: full refund
	PartialRefundHours   int // at least this before start: partial refund
	PartialRefundPercent int
}

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() BookingOrchestratorConfig {
	return BookingOrchestratorConfig{
		Currency:             "INR",
		FullRefundHours:      48,
		PartialRefundHours:   24,
		PartialRefundPercent: 50,
	}
}

// Actor is the caller of a booking operation
type Actor struct {
	UserID  *uuid.UUID // nil for guest checkout
	IsAdmin bool
}

// BookingOrchestratorService runs the two-phase order, payment and booking flow
// and cancellations
type BookingOrchestratorService struct {
	store    database.Store
	gateway  PaymentGateway
	notifier Notifier
	validate *validator.Validate
	metrics  *metrics.Metrics
	config   BookingOrchestratorConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBookingOrchestratorService creates a new orchestrator service
func NewBookingOrchestratorService(
	store database.Store,
	gateway PaymentGateway,
	notifier Notifier,
	m *metrics.Metrics,
	config BookingOrchestratorConfig,
	logger *logrus.Logger,
) *BookingOrchestratorService {
	return &BookingOrchestratorService{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		validate: newValidator(),
		metrics:  m,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// ============================================================================
// CREATE PAYMENT ORDER (Phase 1)
// ============================================================================

// CreatePaymentOrder validates a quote and opens a gateway order for it.
// Nothing but an audit entry is written.
func (s *BookingOrchestratorService) CreatePaymentOrder(
	ctx context.Context,
	req *models.CreatePaymentOrderRequest,
	client models.ClientInfo,
) (resp *models.CreatePaymentOrderResponse, err error) {
	const prefix = "order could not be created"
	start := s.now()
	defer func() { s.countError("create_order", err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, withPrefix(prefix, err)
	}

	tour, slot, err := s.loadTourSlot(ctx, req.TourID, req.TourDateID)
	if err != nil {
		return nil, withPrefix(prefix, err)
	}

	if !slot.CanReserve(req.NumberOfGuests) || (tour.MaxGroupSize > 0 && req.NumberOfGuests > tour.MaxGroupSize) {
		return nil, newError(KindSlotUnavailable, prefix+": the selected date is not available for this group", nil)
	}

	breakdown := CalculateAmounts(tour.Price, req.NumberOfGuests)
	if !WithinTolerance(req.Amount, breakdown.TotalAmount) {
		audit := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceUser).
			SetPayload(map[string]interface{}{"phase": "create_order", "tourId": req.TourID.String()}).
			SetClient(client)
		audit.SetAmounts(breakdown.TotalAmount, req.Amount, s.config.Currency)
		s.recordAudit(ctx, audit)

		s.logger.WithFields(logrus.Fields{
			"tour_id":  req.TourID,
			"expected": breakdown.TotalAmount,
			"received": req.Amount,
		}).Warn("Rejected payment order with tampered amount")
		return nil, amountMismatch(prefix+": amount mismatch", breakdown.TotalAmount, req.Amount)
	}

	amountMinor := ToMinorUnits(breakdown.TotalAmount)
	order, err := s.gateway.CreateOrder(ctx, amountMinor, s.config.Currency, OrderMetadata{
		TourID:       tour.ID,
		TourDateID:   slot.ID,
		Guests:       req.NumberOfGuests,
		ContactName:  req.UserDetails.Name,
		ContactEmail: req.UserDetails.Email,
		ContactPhone: req.UserDetails.Phone,
		Breakdown:    breakdown,
	})
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventOrderFailed, models.PaymentSourceGatewayAPI).
			SetError(err.Error(), string(KindOf(err))).
			SetClient(client).
			SetProcessingTime(start)
		s.recordAudit(ctx, audit)

		s.logger.WithError(err).WithField("tour_id", tour.ID).Error("Failed to create gateway order")
		return nil, withPrefix(prefix, err)
	}

	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGatewayAPI).
		SetOrder(order.ID).
		SetPayload(map[string]interface{}{
			"tourId":     tour.ID.String(),
			"tourDateId": slot.ID.String(),
			"guests":     req.NumberOfGuests,
			"breakdown":  breakdown,
		}).
		SetClient(client).
		SetProcessingTime(start)
	audit.SetAmounts(breakdown.TotalAmount, req.Amount, s.config.Currency)
	s.recordAudit(ctx, audit)

	s.metrics.OrdersCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"tour_id":  tour.ID,
		"slot_id":  slot.ID,
		"amount":   amountMinor,
	}).Info("Payment order created")

	return &models.CreatePaymentOrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
		TourDetails: models.TourSummary{
			TourID:         tour.ID,
			Title:          tour.Title,
			TourDateID:     slot.ID,
			StartDate:      slot.StartDate,
			EndDate:        slot.EndDate,
			NumberOfGuests: req.NumberOfGuests,
			PricePerPerson: tour.Price,
			Breakdown:      breakdown,
		},
	}, nil
}

// ============================================================================
// COMPLETE BOOKING (Phase 2)
// ============================================================================

// CompleteBooking verifies a gateway payment and commits slot, booking and
// payment in one transaction. A replay with an already recorded payment id
// returns the original booking.
func (s *BookingOrchestratorService) CompleteBooking(
	ctx context.Context,
	actor Actor,
	req *models.CompleteBookingRequest,
	client models.ClientInfo,
) (resp *models.BookingDetailsResponse, err error) {
	start := s.now()
	defer func() { s.countError("complete_booking", err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, withPrefix("booking could not be completed", err)
	}

	paymentID, orderID := req.RazorpayPaymentID, req.RazorpayOrderID
	verifyPrefix := fmt.Sprintf("payment could not be verified (payment %s)", paymentID)
	completePrefix := fmt.Sprintf("booking could not be completed (payment %s)", paymentID)
	logger := s.logger.WithFields(logrus.Fields{
		"order_id":   orderID,
		"payment_id": paymentID,
		"tour_id":    req.TourID,
		"slot_id":    req.TourDateID,
	})

	// 1. Signature
	if !s.gateway.VerifySignature(orderID, paymentID, req.RazorpaySignature) {
		s.recordAudit(ctx, models.NewPaymentAudit(models.PaymentEventSignatureInvalid, models.PaymentSourceUser).
			SetOrder(orderID).
			SetPayment(paymentID).
			SetClient(client))
		logger.Warn("Rejected payment with invalid signature")
		return nil, newError(KindInvalidSignature, verifyPrefix+": invalid payment signature", nil)
	}

	// 2. Gateway status
	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		logger.WithError(err).WithField("timeout", isTimeout(err)).Error("Payment verification failed")
		return nil, newError(KindPaymentVerificationFailed, verifyPrefix+": payment gateway did not respond", err)
	}

	fetched := models.NewPaymentAudit(models.PaymentEventPaymentFetched, models.PaymentSourceGatewayAPI).
		SetOrder(orderID).
		SetPayment(paymentID).
		SetPaymentStatus(payment.Status).
		SetClient(client)

	if payment.OrderID != orderID {
		s.recordAudit(ctx, fetched.SetError("payment belongs to order "+payment.OrderID, string(KindInvalidSignature)))
		logger.WithField("gateway_order_id", payment.OrderID).Warn("Payment does not belong to the submitted order")
		return nil, newError(KindInvalidSignature, verifyPrefix+": payment does not belong to this order", nil)
	}
	if payment.Status != PaymentStatusCaptured {
		s.recordAudit(ctx, fetched)
		logger.WithField("status", payment.Status).Warn("Payment not captured")
		return nil, newError(KindPaymentNotCaptured,
			fmt.Sprintf("%s: payment status is %q", verifyPrefix, payment.Status), nil)
	}

	// 3. Amounts, recomputed from the stored tour
	tour, slot, err := s.loadTourSlot(ctx, req.TourID, req.TourDateID)
	if err != nil {
		s.recordAudit(ctx, fetched)
		return nil, withPrefix(completePrefix, err)
	}

	breakdown := CalculateAmounts(tour.Price, req.NumberOfGuests)
	received := FromMinorUnits(payment.Amount)
	fetched.SetAmounts(breakdown.TotalAmount, received, payment.Currency)
	s.recordAudit(ctx, fetched)

	mismatch := func(claimed float64, reason string) *models.PaymentAudit {
		audit := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceBackend).
			SetOrder(orderID).
			SetPayment(paymentID).
			SetError(reason, string(KindAmountMismatch)).
			SetClient(client)
		audit.SetAmounts(breakdown.TotalAmount, claimed, payment.Currency)
		return audit
	}

	if !WithinTolerance(req.Amount, breakdown.TotalAmount) {
		s.recordAudit(ctx, mismatch(req.Amount, "claimed total outside tolerance"))
		logger.WithFields(logrus.Fields{"expected": breakdown.TotalAmount, "claimed": req.Amount}).Warn("Claimed amount mismatch")
		return nil, amountMismatch(completePrefix+": amount mismatch", breakdown.TotalAmount, req.Amount)
	}
	if payment.Amount != ToMinorUnits(breakdown.TotalAmount) || !strings.EqualFold(payment.Currency, s.config.Currency) {
		audit := mismatch(received, "gateway amount differs from expected total")
		matched := false
		audit.AmountsMatch = &matched
		s.recordAudit(ctx, audit)
		logger.WithFields(logrus.Fields{
			"expected_minor": ToMinorUnits(breakdown.TotalAmount),
			"gateway_minor":  payment.Amount,
			"currency":       payment.Currency,
		}).Error("Gateway amount mismatch on captured payment")
		return nil, amountMismatch(completePrefix+": paid amount does not match booking total", breakdown.TotalAmount, received)
	}

	// 4. Replay of an already committed payment
	if existing, err := s.findReplay(ctx, req); existing != nil || err != nil {
		if err != nil {
			return nil, withPrefix(completePrefix, err)
		}
		s.recordDuplicate(ctx, existing, client)
		logger.WithField("booking_id", existing.Booking.BookingID).Info("Returning booking for replayed payment")
		return existing, nil
	}

	// 5. Commit
	now := s.now()
	booking := &models.Booking{
		ID:               uuid.New(),
		BookingID:        NewPublicBookingID(now),
		UserID:           actor.UserID,
		TourID:           tour.ID,
		DateSlotID:       slot.ID,
		NumberOfGuests:   req.NumberOfGuests,
		PricePerPerson:   tour.Price,
		TotalAmount:      breakdown.TotalAmount,
		PrimaryContact:   req.UserDetails,
		Status:           models.BookingStatusConfirmed,
		PaymentStatus:    models.BookingPaymentCompleted,
		TransactionID:    paymentID,
		PaidAmount:       breakdown.TotalAmount,
		BookingDate:      now,
		ConfirmationDate: &now,
	}
	method := payment.Method
	if method == "" {
		method = "razorpay"
	}
	record := &models.Payment{
		ID:            uuid.New(),
		BookingID:     booking.ID,
		Amount:        breakdown.TotalAmount,
		Currency:      s.config.Currency,
		PaymentMethod: method,
		TransactionID: paymentID,
		OrderID:       orderID,
		Status:        models.PaymentStatusSuccess,
		PaymentDate:   now,
		Breakdown:     breakdown,
	}

	err = s.store.WithinTx(ctx, func(tx database.TxStores) error {
		if err := tx.Slots.TryReserve(ctx, tour.ID, slot.ID, req.NumberOfGuests); err != nil {
			return err
		}
		if err := tx.Bookings.Create(ctx, booking); err != nil {
			return err
		}
		return tx.Payments.Create(ctx, record)
	})
	if err != nil {
		return s.handleCommitFailure(ctx, req, err, completePrefix, client, logger)
	}

	s.recordAudit(ctx, models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceBackend).
		SetOrder(orderID).
		SetPayment(paymentID).
		SetBooking(booking.BookingID).
		SetPaymentStatus(payment.Status).
		SetClient(client).
		SetProcessingTime(start))

	s.metrics.BookingsConfirmed.Inc()
	logger.WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"guests":     booking.NumberOfGuests,
		"total":      booking.TotalAmount,
	}).Info("Booking confirmed")

	s.notifier.Notify(ctx, EventBookingConfirmed, BookingNotification{
		BookingID:      booking.BookingID,
		TourTitle:      tour.Title,
		StartDate:      slot.StartDate,
		EndDate:        slot.EndDate,
		NumberOfGuests: booking.NumberOfGuests,
		Contact:        booking.PrimaryContact,
		Currency:       record.Currency,
		Breakdown:      breakdown,
		PaidAmount:     booking.PaidAmount,
		TransactionID:  paymentID,
	})

	return &models.BookingDetailsResponse{Booking: booking, Payment: record}, nil
}

// findReplay returns the committed booking for the request's payment id, if any
func (s *BookingOrchestratorService) findReplay(ctx context.Context, req *models.CompleteBookingRequest) (*models.BookingDetailsResponse, error) {
	booking, err := s.store.Bookings().GetByTransactionID(ctx, req.RazorpayPaymentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindPersistence, "failed to look up payment", err)
	}

	if booking.TourID != req.TourID || booking.DateSlotID != req.TourDateID {
		return nil, newError(KindValidation, "payment is already attached to another booking", nil)
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, newError(KindAlreadyCancelled, "the booking for this payment was cancelled", nil)
	}

	payment, err := s.store.Payments().GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, newError(KindPersistence, "failed to load payment", err)
	}
	return &models.BookingDetailsResponse{Booking: booking, Payment: payment}, nil
}

func (s *BookingOrchestratorService) recordDuplicate(ctx context.Context, existing *models.BookingDetailsResponse, client models.ClientInfo) {
	audit := models.NewPaymentAudit(models.PaymentEventDuplicateCompletion, models.PaymentSourceUser).
		SetPayment(existing.Booking.TransactionID).
		SetBooking(existing.Booking.BookingID).
		SetClient(client)
	if existing.Payment != nil {
		audit.SetOrder(existing.Payment.OrderID)
	}
	s.recordAudit(ctx, audit)
}

func (s *BookingOrchestratorService) handleCommitFailure(
	ctx context.Context,
	req *models.CompleteBookingRequest,
	err error,
	prefix string,
	client models.ClientInfo,
	logger *logrus.Entry,
) (*models.BookingDetailsResponse, error) {
	// A concurrent request with the same payment id may have committed first.
	// It wins the slot, so the loser sees ErrSlotUnavailable rather than the
	// unique violation on transaction_id.
	if errors.Is(err, database.ErrSlotUnavailable) || errors.Is(err, database.ErrDuplicateTransaction) {
		if existing, replayErr := s.findReplay(ctx, req); existing != nil && replayErr == nil {
			s.recordDuplicate(ctx, existing, client)
			logger.WithField("booking_id", existing.Booking.BookingID).Info("Concurrent replay resolved to committed booking")
			return existing, nil
		}
	}

	switch {
	case errors.Is(err, database.ErrSlotUnavailable):
		s.metrics.SlotConflicts.Inc()
		logger.Warn("Captured payment lost the slot race; refund required")
		err = newError(KindSlotUnavailable, prefix+": the selected date was booked by someone else", err)

	default:
		logger.WithError(err).Error("Booking commit failed after payment capture")
		err = newError(KindPersistence, prefix+": booking could not be saved", err)
	}

	s.recordAudit(ctx, models.NewPaymentAudit(models.PaymentEventBookingConfirmFailed, models.PaymentSourceBackend).
		SetOrder(req.RazorpayOrderID).
		SetPayment(req.RazorpayPaymentID).
		SetError(err.Error(), string(KindOf(err))).
		SetClient(client))
	return nil, err
}

// ============================================================================
// CANCELLATION
// ============================================================================

// CancelBooking cancels a booking, releases its slot and computes the refund
func (s *BookingOrchestratorService) CancelBooking(
	ctx context.Context,
	actor Actor,
	bookingID string,
	req *models.CancelBookingRequest,
) (resp *models.CancelBookingResponse, err error) {
	defer func() { s.countError("cancel_booking", err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	booking, err := s.loadBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case models.BookingStatusCancelled:
		return nil, newError(KindAlreadyCancelled, "booking is already cancelled", nil)
	case models.BookingStatusCompleted, models.BookingStatusRefunded:
		return nil, newError(KindValidation, fmt.Sprintf("a %s booking cannot be cancelled", booking.Status), nil)
	}

	slot, err := s.store.Slots().GetSlot(ctx, booking.TourID, booking.DateSlotID)
	if err != nil {
		return nil, storeError(err, "tour date not found", "failed to load tour date")
	}

	now := s.now()
	percentage, ok := RefundPercentage(slot.TimeUntilStart(now), s.config)
	if !ok {
		return nil, newError(KindCancellationWindowClosed,
			fmt.Sprintf("cancellation is not allowed less than %d hours before departure", s.config.PartialRefundHours), nil)
	}

	refund := math.Round(booking.PaidAmount*float64(percentage)) / 100
	paymentStatus := booking.PaymentStatus
	if refund > 0 {
		paymentStatus = models.BookingPaymentRefunded
	}

	err = s.store.WithinTx(ctx, func(tx database.TxStores) error {
		if err := tx.Bookings.MarkCancelled(ctx, booking.ID, models.BookingCancellation{
			Reason:           req.CancellationReason,
			RefundAmount:     refund,
			RefundPercentage: percentage,
			PaymentStatus:    paymentStatus,
			CancelledAt:      now,
		}); err != nil {
			return err
		}
		return tx.Slots.Release(ctx, booking.TourID, booking.DateSlotID)
	})
	if errors.Is(err, database.ErrBookingNotCancellable) {
		return nil, s.notCancellable(ctx, booking, err)
	}
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to cancel booking")
		return nil, newError(KindPersistence, "booking could not be cancelled", err)
	}

	audit := models.NewPaymentAudit(models.PaymentEventRefundInitiated, models.PaymentSourceBackend).
		SetPayment(booking.TransactionID).
		SetBooking(booking.BookingID).
		SetPayload(map[string]interface{}{
			"refundAmount":     refund,
			"refundPercentage": percentage,
			"reason":           req.CancellationReason,
		})
	s.recordAudit(ctx, audit)

	s.metrics.BookingsCancelled.Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.BookingID,
		"refund_amount":     refund,
		"refund_percentage": percentage,
	}).Info("Booking cancelled")

	notification := BookingNotification{
		BookingID:        booking.BookingID,
		StartDate:        slot.StartDate,
		EndDate:          slot.EndDate,
		NumberOfGuests:   booking.NumberOfGuests,
		Contact:          booking.PrimaryContact,
		Currency:         s.config.Currency,
		PaidAmount:       booking.PaidAmount,
		TransactionID:    booking.TransactionID,
		RefundAmount:     refund,
		RefundPercentage: percentage,
		Reason:           req.CancellationReason,
	}
	if tour, err := s.store.Tours().GetTour(ctx, booking.TourID); err == nil {
		notification.TourTitle = tour.Title
	}
	s.notifier.Notify(ctx, EventBookingCancelled, notification)

	return &models.CancelBookingResponse{
		BookingID:        booking.BookingID,
		RefundAmount:     refund,
		RefundPercentage: percentage,
	}, nil
}

// notCancellable reports why a booking that passed the status check could not
// be cancelled: a racing cancellation, or the sweeper completing it
func (s *BookingOrchestratorService) notCancellable(ctx context.Context, booking *models.Booking, cause error) error {
	status := booking.Status
	if current, err := s.store.Bookings().GetByBookingID(ctx, booking.BookingID); err == nil {
		status = current.Status
	}
	switch status {
	case models.BookingStatusCompleted, models.BookingStatusRefunded:
		return newError(KindValidation, fmt.Sprintf("a %s booking cannot be cancelled", status), cause)
	default:
		return newError(KindAlreadyCancelled, "booking is already cancelled", cause)
	}
}

// RefundPercentage maps the time left before departure to a refund share.
// ok is false when the cancellation window has closed.
func RefundPercentage(untilStart time.Duration, cfg BookingOrchestratorConfig) (percentage int, ok bool) {
	switch {
	case untilStart > time.Duration(cfg.FullRefundHours)*time.Hour:
		return 100, true
	case untilStart >= time.Duration(cfg.PartialRefundHours)*time.Hour:
		return cfg.PartialRefundPercent, true
	default:
		return 0, false
	}
}

// ============================================================================
// READS
// ============================================================================

// GetBooking returns a booking with its payment; owners and admins only
func (s *BookingOrchestratorService) GetBooking(ctx context.Context, actor Actor, bookingID string) (*models.BookingDetailsResponse, error) {
	booking, err := s.loadBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}

	payment, err := s.store.Payments().GetByBookingID(ctx, booking.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, newError(KindPersistence, "failed to load payment", err)
	}
	return &models.BookingDetailsResponse{Booking: booking, Payment: payment}, nil
}

// ListMyBookings returns the caller's bookings, newest first
func (s *BookingOrchestratorService) ListMyBookings(ctx context.Context, actor Actor, limit, offset int) ([]*models.Booking, error) {
	if actor.UserID == nil {
		return nil, newError(KindForbidden, "sign in to list bookings", nil)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	bookings, err := s.store.Bookings().ListByUser(ctx, *actor.UserID, limit, offset)
	if err != nil {
		return nil, newError(KindPersistence, "failed to list bookings", err)
	}
	return bookings, nil
}

// ReceiptData is everything needed to render a booking receipt
type ReceiptData struct {
	Booking *models.Booking
	Payment *models.Payment
	Tour    *models.Tour
	Slot    *models.DateSlot
}

// GetReceiptData loads a paid booking for receipt rendering
func (s *BookingOrchestratorService) GetReceiptData(ctx context.Context, actor Actor, bookingID string) (*ReceiptData, error) {
	details, err := s.GetBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if details.Payment == nil || details.Payment.Status != models.PaymentStatusSuccess {
		return nil, newError(KindValidation, "booking has no completed payment", nil)
	}

	tour, err := s.store.Tours().GetTour(ctx, details.Booking.TourID)
	if err != nil {
		return nil, storeError(err, "tour not found", "failed to load tour")
	}
	slot := tour.FindSlot(details.Booking.DateSlotID)
	if slot == nil {
		return nil, newError(KindNotFound, "tour date not found", nil)
	}

	return &ReceiptData{Booking: details.Booking, Payment: details.Payment, Tour: tour, Slot: slot}, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *BookingOrchestratorService) loadTourSlot(ctx context.Context, tourID, slotID uuid.UUID) (*models.Tour, *models.DateSlot, error) {
	tour, err := s.store.Tours().GetTour(ctx, tourID)
	if err != nil {
		return nil, nil, storeError(err, "tour not found", "failed to load tour")
	}
	slot := tour.FindSlot(slotID)
	if slot == nil {
		return nil, nil, newError(KindNotFound, "tour date not found", nil)
	}
	return tour, slot, nil
}

func (s *BookingOrchestratorService) loadBooking(ctx context.Context, bookingID string, actor Actor) (*models.Booking, error) {
	booking, err := s.store.Bookings().GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, storeError(err, "booking not found", "failed to load booking")
	}
	if actor.IsAdmin {
		return booking, nil
	}
	if actor.UserID == nil || !booking.IsOwnedBy(*actor.UserID) {
		return nil, newError(KindForbidden, "you do not have access to this booking", nil)
	}
	return booking, nil
}

func (s *BookingOrchestratorService) validateRequest(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return newError(KindValidation, validationMessage(err), err)
	}
	return nil
}

// recordAudit writes an audit entry; failures are logged and never fail the request
func (s *BookingOrchestratorService) recordAudit(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.store.Audits().Log(context.WithoutCancel(ctx), audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("AUDIT ERROR: failed to record payment event")
	}
}

func (s *BookingOrchestratorService) countError(operation string, err error) {
	if err == nil {
		return
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindPersistence
	}
	s.metrics.CountError(operation, string(kind))
}

// storeError maps datastore lookups to NotFound or PersistenceError
func storeError(err error, notFound, failed string) error {
	if errors.Is(err, database.ErrNotFound) {
		return newError(KindNotFound, notFound, nil)
	}
	return newError(KindPersistence, failed, err)
}

// withPrefix prepends context to a BookingError message, keeping its kind
func withPrefix(prefix string, err error) error {
	var be *BookingError
	if !errors.As(err, &be) {
		return newError(KindPersistence, prefix, err)
	}
	out := *be
	out.Message = prefix + ": " + be.Message
	return &out
}

// NewPublicBookingID returns an id of the form TB-YYYYMMDD-XXXXXX
func NewPublicBookingID(now time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		copy(buf, uuid.New().NodeID())
	}
	return fmt.Sprintf("TB-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := phonevalidator.RegisterPhoneTag(v); err != nil {
		panic(err)
	}
	return v
}

// validationMessage turns validator errors into a client-safe sentence
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.Split(fe.Namespace(), ".")[0]+".")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case phonevalidator.PhoneTag:
			msgs = append(msgs, field+" must be a valid phone number")
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
