package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentBreakdown is the server-computed split of a booking total
type PaymentBreakdown struct {
	BaseAmount  float64 `json:"baseAmount"`
	GSTAmount   float64 `json:"gstAmount"`
	GatewayFee  float64 `json:"gatewayFee"`
	TotalAmount float64 `json:"totalAmount"`
}

// Payment is the ledger entry for a captured gateway payment, 1:1 with a booking
type Payment struct {
	ID            uuid.UUID        `json:"id"`
	BookingID     uuid.UUID        `json:"bookingId"`
	Amount        float64          `json:"amount"`
	Currency      string           `json:"currency"`
	PaymentMethod string           `json:"paymentMethod"`
	TransactionID string           `json:"transactionId"`
	OrderID       string           `json:"orderId"`
	Status        PaymentStatus    `json:"status"`
	PaymentDate   time.Time        `json:"paymentDate"`
	Breakdown     PaymentBreakdown `json:"paymentBreakdown"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}
