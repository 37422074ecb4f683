package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies booking failures for callers and HTTP mapping
type ErrorKind string

const (
	KindValidation                ErrorKind = "VALIDATION_ERROR"
	KindNotFound                  ErrorKind = "NOT_FOUND"
	KindForbidden                 ErrorKind = "FORBIDDEN"
	KindAmountMismatch            ErrorKind = "AMOUNT_MISMATCH"
	KindSlotUnavailable           ErrorKind = "SLOT_UNAVAILABLE"
	KindInvalidSignature          ErrorKind = "INVALID_SIGNATURE"
	KindPaymentNotCaptured        ErrorKind = "PAYMENT_NOT_CAPTURED"
	KindGatewayRejected           ErrorKind = "GATEWAY_ERROR"
	KindGatewayUnavailable        ErrorKind = "GATEWAY_UNAVAILABLE"
	KindPaymentVerificationFailed ErrorKind = "PAYMENT_VERIFICATION_FAILED"
	KindAlreadyCancelled          ErrorKind = "ALREADY_CANCELLED"
	KindCancellationWindowClosed  ErrorKind = "CANCELLATION_WINDOW_CLOSED"
	KindPersistence               ErrorKind = "PERSISTENCE_ERROR"
)

// BookingError is the typed error returned by the booking services.
// Message is safe to show to clients; Err holds the underlying cause.
type BookingError struct {
	Kind     ErrorKind
	Message  string
	Err      error
	Expected *float64
	Received *float64
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, cause error) *BookingError {
	return &BookingError{Kind: kind, Message: message, Err: cause}
}

func amountMismatch(message string, expected, received float64) *BookingError {
	return &BookingError{
		Kind:     KindAmountMismatch,
		Message:  message,
		Expected: &expected,
		Received: &received,
	}
}

// KindOf returns the kind of a BookingError in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
