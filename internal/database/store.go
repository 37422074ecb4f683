package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tourbook/booking-service/internal/models"
)

var (
	// ErrNotFound is returned when a tour, slot, booking or payment does not exist
	ErrNotFound = errors.New("record not found")
	// ErrSlotUnavailable is returned when a reservation loses the compare-and-set
	ErrSlotUnavailable = errors.New("slot is not available")
	// ErrDuplicateTransaction is returned when a gateway payment id is already recorded
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	// ErrBookingNotCancellable is returned when a booking left the cancellable states
	ErrBookingNotCancellable = errors.New("booking is not cancellable")
)

// TourReader reads tour reference data
type TourReader interface {
	GetTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error)
}

// SlotStore owns the reservation state of tour dates
type SlotStore interface {
	GetSlot(ctx context.Context, tourID, slotID uuid.UUID) (*models.DateSlot, error)
	// TryReserve books the whole slot for guests, or returns ErrSlotUnavailable
	TryReserve(ctx context.Context, tourID, slotID uuid.UUID, guests int) error
	// Release makes the slot available again; releasing a free slot is a no-op
	Release(ctx context.Context, tourID, slotID uuid.UUID) error
}

// BookingLedger persists bookings. Rows are never deleted.
type BookingLedger interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error)
	// MarkCancelled moves a pending or confirmed booking to cancelled, or
	// returns ErrBookingNotCancellable if another request got there first
	MarkCancelled(ctx context.Context, id uuid.UUID, c models.BookingCancellation) error
	// MarkCompletedEnded completes confirmed bookings whose slot ended before now
	MarkCompletedEnded(ctx context.Context, now time.Time) (int64, error)
}

// PaymentLedger persists payments, one per booking
type PaymentLedger interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
}

// PaymentAuditLog is the append-only payment event trail
type PaymentAuditLog interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error)
	GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// TxStores are the stores bound to one transaction
type TxStores struct {
	Slots    SlotStore
	Bookings BookingLedger
	Payments PaymentLedger
}

// Store groups the repositories and runs multi-store transactions
type Store interface {
	Tours() TourReader
	Slots() SlotStore
	Bookings() BookingLedger
	Payments() PaymentLedger
	Audits() PaymentAuditLog

	// WithinTx runs fn in one transaction. A non-nil error from fn rolls
	// back every write made through the TxStores.
	WithinTx(ctx context.Context, fn func(tx TxStores) error) error

	Ping(ctx context.Context) error
	Close() error
}
