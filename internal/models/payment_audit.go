package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderCreated         PaymentEventType = "order_created"
	PaymentEventOrderFailed          PaymentEventType = "order_failed"
	PaymentEventSignatureInvalid     PaymentEventType = "signature_invalid"
	PaymentEventPaymentFetched       PaymentEventType = "payment_fetched"
	PaymentEventAmountMismatch       PaymentEventType = "amount_mismatch"
	PaymentEventBookingConfirmed     PaymentEventType = "booking_confirmed"
	PaymentEventBookingConfirmFailed PaymentEventType = "booking_confirmation_failed"
	PaymentEventDuplicateCompletion  PaymentEventType = "duplicate_completion"
	PaymentEventRefundInitiated      PaymentEventType = "refund_initiated"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend    PaymentEventSource = "backend"
	PaymentSourceGatewayAPI PaymentEventSource = "razorpay_api"
	PaymentSourceUser       PaymentEventSource = "user"
	PaymentSourceSystem     PaymentEventSource = "system"
)

// AmountTolerance is the largest accepted difference, in major units,
// between a client-claimed total and the server-computed total
const AmountTolerance = 1.0

// PaymentAudit is an append-only record of a payment event
type PaymentAudit struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   *string   `json:"orderId,omitempty" db:"order_id"`
	PaymentID *string   `json:"paymentId,omitempty" db:"payment_id"`
	BookingID *string   `json:"bookingId,omitempty" db:"booking_id"`

	EventType   PaymentEventType   `json:"eventType" db:"event_type"`
	EventSource PaymentEventSource `json:"eventSource" db:"event_source"`

	ExpectedAmount *float64 `json:"expectedAmount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"receivedAmount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amountsMatch,omitempty" db:"amounts_match"`

	PaymentStatus *string `json:"paymentStatus,omitempty" db:"payment_status"`
	Payload       JSONB   `json:"payload,omitempty" db:"payload"`

	ErrorMessage *string `json:"errorMessage,omitempty" db:"error_message"`
	ErrorCode    *string `json:"errorCode,omitempty" db:"error_code"`

	ProcessingTimeMs *int `json:"processingTimeMs,omitempty" db:"processing_time_ms"`

	IPAddress     *string `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent     *string `json:"userAgent,omitempty" db:"user_agent"`
	DeviceType    *string `json:"deviceType,omitempty" db:"device_type"`
	Browser       *string `json:"browser,omitempty" db:"browser"`
	OS            *string `json:"os,omitempty" db:"os"`
	CorrelationID *string `json:"correlationId,omitempty" db:"correlation_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetOrder sets the gateway order id
func (pa *PaymentAudit) SetOrder(orderID string) *PaymentAudit {
	if orderID != "" {
		pa.OrderID = &orderID
	}
	return pa
}

// SetPayment sets the gateway payment id
func (pa *PaymentAudit) SetPayment(paymentID string) *PaymentAudit {
	if paymentID != "" {
		pa.PaymentID = &paymentID
	}
	return pa
}

// SetBooking sets the public booking id
func (pa *PaymentAudit) SetBooking(bookingID string) *PaymentAudit {
	if bookingID != "" {
		pa.BookingID = &bookingID
	}
	return pa
}

// SetAmounts records both amounts and reports whether they agree within AmountTolerance
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	match := math.Abs(expected-received) <= AmountTolerance
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the payment status reported by the gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code string) *PaymentAudit {
	pa.ErrorMessage = &message
	if code != "" {
		pa.ErrorCode = &code
	}
	return pa
}

// SetPayload stores a structured snapshot of the event
func (pa *PaymentAudit) SetPayload(payload map[string]interface{}) *PaymentAudit {
	pa.Payload = JSONB(payload)
	return pa
}

// SetClient sets request metadata
func (pa *PaymentAudit) SetClient(info ClientInfo) *PaymentAudit {
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&pa.IPAddress, info.IPAddress)
	set(&pa.UserAgent, info.UserAgent)
	set(&pa.DeviceType, info.DeviceType)
	set(&pa.Browser, info.Browser)
	set(&pa.OS, info.OS)
	set(&pa.CorrelationID, info.RequestID)
	return pa
}

// SetProcessingTime records the elapsed time since startTime
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// ClientInfo describes the caller of a booking request
type ClientInfo struct {
	IPAddress  string
	UserAgent  string
	DeviceType string
	Browser    string
	OS         string
	RequestID  string
}
