package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxGuestsPerBooking caps numberOfGuests on any single booking
const MaxGuestsPerBooking = 16

// ============================================================================
// PHASE 1: CREATE PAYMENT ORDER
// ============================================================================

// CreatePaymentOrderRequest is the phase 1 request body
type CreatePaymentOrderRequest struct {
	TourID         uuid.UUID      `json:"tourId" validate:"required"`
	TourDateID     uuid.UUID      `json:"tourDateId" validate:"required"`
	NumberOfGuests int            `json:"numberOfGuests" validate:"required,min=1,max=16"`
	UserDetails    ContactDetails `json:"userDetails"`
	Amount         float64        `json:"amount" validate:"required,gt=0"`
	BaseAmount     float64        `json:"baseAmount" validate:"gte=0"`
	GSTAmount      float64        `json:"gstAmount" validate:"gte=0"`
	GatewayFee     float64        `json:"gatewayFee" validate:"gte=0"`
}

// TourSummary echoes the tour and date a payment order was created for
type TourSummary struct {
	TourID         uuid.UUID        `json:"tourId"`
	Title          string           `json:"title"`
	TourDateID     uuid.UUID        `json:"tourDateId"`
	StartDate      time.Time        `json:"startDate"`
	EndDate        time.Time        `json:"endDate"`
	NumberOfGuests int              `json:"numberOfGuests"`
	PricePerPerson float64          `json:"pricePerPerson"`
	Breakdown      PaymentBreakdown `json:"paymentBreakdown"`
}

// CreatePaymentOrderResponse is returned after a gateway order is created
type CreatePaymentOrderResponse struct {
	OrderID     string      `json:"orderId"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	KeyID       string      `json:"keyId"`
	TourDetails TourSummary `json:"tourDetails"`
}

// ============================================================================
// PHASE 2: COMPLETE BOOKING
// ============================================================================

// CompleteBookingRequest is the phase 2 request body. The booking fields are
// re-submitted by the client; nothing is kept on the server between phases.
type CompleteBookingRequest struct {
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required,max=64"`
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required,max=64"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required,hexadecimal,max=128"`
	CreatePaymentOrderRequest
}

// BookingDetailsResponse carries a booking and its payment
type BookingDetailsResponse struct {
	Booking *Booking `json:"booking"`
	Payment *Payment `json:"payment"`
}

// ============================================================================
// CANCELLATION
// ============================================================================

// CancelBookingRequest is the body of a cancellation request
type CancelBookingRequest struct {
	CancellationReason string `json:"cancellationReason" validate:"max=500"`
}

// CancelBookingResponse reports the refund granted on cancellation
type CancelBookingResponse struct {
	BookingID        string  `json:"bookingId"`
	RefundAmount     float64 `json:"refundAmount"`
	RefundPercentage int     `json:"refundPercentage"`
}
