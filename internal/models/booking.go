package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a tour booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusRefunded  BookingStatus = "refunded"
)

// BookingPaymentStatus represents the payment state recorded on a booking
type BookingPaymentStatus string

const (
	BookingPaymentPending   BookingPaymentStatus = "pending"
	BookingPaymentPartial   BookingPaymentStatus = "partial"
	BookingPaymentCompleted BookingPaymentStatus = "completed"
	BookingPaymentFailed    BookingPaymentStatus = "failed"
	BookingPaymentRefunded  BookingPaymentStatus = "refunded"
)

// ContactDetails is the primary contact of a booking
type ContactDetails struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,max=20,phone"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address,omitempty" validate:"max=500"`
}

// Booking is a confirmed reservation of a whole tour date.
// Rows are never deleted; cancellation only changes status.
type Booking struct {
	ID                 uuid.UUID            `json:"id"`
	BookingID          string               `json:"bookingId"`
	UserID             *uuid.UUID           `json:"userId,omitempty"`
	TourID             uuid.UUID            `json:"tourId"`
	DateSlotID         uuid.UUID            `json:"tourDateId"`
	NumberOfGuests     int                  `json:"numberOfGuests"`
	PricePerPerson     float64              `json:"pricePerPerson"`
	TotalAmount        float64              `json:"totalAmount"`
	PrimaryContact     ContactDetails       `json:"primaryContact"`
	Status             BookingStatus        `json:"status"`
	PaymentStatus      BookingPaymentStatus `json:"paymentStatus"`
	TransactionID      string               `json:"transactionId"`
	PaidAmount         float64              `json:"paidAmount"`
	RefundAmount       float64              `json:"refundAmount"`
	RefundPercentage   int                  `json:"refundPercentage"`
	BookingDate        time.Time            `json:"bookingDate"`
	ConfirmationDate   *time.Time           `json:"confirmationDate,omitempty"`
	CancellationDate   *time.Time           `json:"cancellationDate,omitempty"`
	CancellationReason *string              `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// IsOwnedBy reports whether the booking belongs to the given user
func (b *Booking) IsOwnedBy(userID uuid.UUID) bool {
	return b.UserID != nil && *b.UserID == userID
}

// BookingCancellation carries the fields written when a booking is cancelled
type BookingCancellation struct {
	Reason           string
	RefundAmount     float64
	RefundPercentage int
	PaymentStatus    BookingPaymentStatus
	CancelledAt      time.Time
}
