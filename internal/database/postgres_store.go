package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore is the production Store backed by sqlx
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger

	tours    *TourRepository
	slots    *SlotRepository
	bookings *BookingRepository
	payments *PaymentRepository
	audits   *PaymentAuditRepository
}

// NewPostgresStore creates a Store on an open connection pool
func NewPostgresStore(db *sqlx.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		logger:   logger,
		tours:    NewTourRepository(db),
		slots:    NewSlotRepository(db),
		bookings: NewBookingRepository(db),
		payments: NewPaymentRepository(db),
		audits:   NewPaymentAuditRepository(db, logger),
	}
}

func (s *PostgresStore) Tours() TourReader { return s.tours }
func (s *PostgresStore) Slots() SlotStore { return s.slots }
func (s *PostgresStore) Bookings() BookingLedger { return s.bookings }
func (s *PostgresStore) Payments() PaymentLedger { return s.payments }
func (s *PostgresStore) Audits() PaymentAuditLog { return s.audits }
func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *PostgresStore) Close() error { return s.db.Close() }

// WithinTx runs fn inside a database transaction
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx TxStores) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(TxStores{
		Slots:    NewSlotRepository(tx),
		Bookings: NewBookingRepository(tx),
		Payments: NewPaymentRepository(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
