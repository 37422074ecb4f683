package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourbook/booking-service/internal/models"
)

func seedMemoryStore(t *testing.T) (*MemoryStore, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := NewMemoryStore()
	tourID, slotID := uuid.New(), uuid.New()
	start := time.Now().Add(72 * time.Hour)
	store.AddTour(models.Tour{
		ID:           tourID,
		Title:        "Hampi Heritage Walk",
		Price:        1000,
		MaxGroupSize: 8,
		Currency:     "INR",
		Slots: []models.DateSlot{{
			ID:            slotID,
			StartDate:     start,
			EndDate:       start.Add(48 * time.Hour),
			TotalCapacity: 8,
			IsAvailable:   true,
		}},
	})
	return store, tourID, slotID
}

func TestMemoryStore_TryReserveAndRelease(t *testing.T) {
	store, tourID, slotID := seedMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Slots().TryReserve(ctx, tourID, slotID, 2))

	slot, err := store.Slots().GetSlot(ctx, tourID, slotID)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.BookedCount)
	assert.False(t, slot.IsAvailable)
	assert.Equal(t, int64(1), slot.Version)

	assert.ErrorIs(t, store.Slots().TryReserve(ctx, tourID, slotID, 1), ErrSlotUnavailable)

	require.NoError(t, store.Slots().Release(ctx, tourID, slotID))
	require.NoError(t, store.Slots().Release(ctx, tourID, slotID))

	slot, err = store.Slots().GetSlot(ctx, tourID, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.BookedCount)
	assert.True(t, slot.IsAvailable)
	assert.Equal(t, int64(2), slot.Version, "second release must not change the slot")
}

func TestMemoryStore_TryReserveOverCapacity(t *testing.T) {
	store, tourID, slotID := seedMemoryStore(t)
	err := store.Slots().TryReserve(context.Background(), tourID, slotID, 9)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestMemoryStore_ConcurrentReservations(t *testing.T) {
	store, tourID, slotID := seedMemoryStore(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Slots().TryReserve(ctx, tourID, slotID, 2)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	}
	assert.Equal(t, 1, succeeded)
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	store, tourID, slotID := seedMemoryStore(t)
	ctx := context.Background()
	boom := errors.New("payment insert failed")

	err := store.WithinTx(ctx, func(tx TxStores) error {
		require.NoError(t, tx.Slots.TryReserve(ctx, tourID, slotID, 2))
		require.NoError(t, tx.Bookings.Create(ctx, &models.Booking{
			BookingID:     "TB-20261018-AAAAAA",
			TourID:        tourID,
			DateSlotID:    slotID,
			TransactionID: "pay_1",
			Status:        models.BookingStatusConfirmed,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	slot, err := store.Slots().GetSlot(ctx, tourID, slotID)
	require.NoError(t, err)
	assert.True(t, slot.IsAvailable)
	assert.Equal(t, 0, slot.BookedCount)

	_, err = store.Bookings().GetByTransactionID(ctx, "pay_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WithinTxCommits(t *testing.T) {
	store, tourID, slotID := seedMemoryStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx TxStores) error {
		if err := tx.Slots.TryReserve(ctx, tourID, slotID, 2); err != nil {
			return err
		}
		b := &models.Booking{
			BookingID:     "TB-20261018-BBBBBB",
			TourID:        tourID,
			DateSlotID:    slotID,
			TransactionID: "pay_2",
			Status:        models.BookingStatusConfirmed,
		}
		if err := tx.Bookings.Create(ctx, b); err != nil {
			return err
		}
		return tx.Payments.Create(ctx, &models.Payment{BookingID: b.ID, TransactionID: "pay_2"})
	})
	require.NoError(t, err)

	b, err := store.Bookings().GetByBookingID(ctx, "TB-20261018-BBBBBB")
	require.NoError(t, err)
	p, err := store.Payments().GetByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_2", p.TransactionID)

	dup := &models.Booking{BookingID: "TB-20261018-CCCCCC", TransactionID: "pay_2"}
	assert.ErrorIs(t, store.Bookings().Create(ctx, dup), ErrDuplicateTransaction)
}

func TestMemoryStore_MarkCancelledAndCompleted(t *testing.T) {
	store, tourID, slotID := seedMemoryStore(t)
	ctx := context.Background()
	userID := uuid.New()

	b := &models.Booking{
		BookingID:     "TB-20261018-DDDDDD",
		UserID:        &userID,
		TourID:        tourID,
		DateSlotID:    slotID,
		TransactionID: "pay_3",
		Status:        models.BookingStatusConfirmed,
		BookingDate:   time.Now(),
	}
	require.NoError(t, store.Bookings().Create(ctx, b))

	list, err := store.Bookings().ListByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := store.Bookings().MarkCompletedEnded(ctx, time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = store.Bookings().MarkCancelled(ctx, b.ID, models.BookingCancellation{CancelledAt: time.Now()})
	assert.ErrorIs(t, err, ErrBookingNotCancellable)
}

func TestMemoryStore_Audits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok := models.NewPaymentAudit(models.PaymentEventPaymentFetched, models.PaymentSourceGatewayAPI).SetOrder("order_1")
	ok.SetAmounts(2140, 2140, "INR")
	bad := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceBackend).SetOrder("order_1")
	bad.SetAmounts(2140, 1500, "INR")

	require.NoError(t, store.Audits().Log(ctx, ok))
	require.NoError(t, store.Audits().Log(ctx, bad))

	trail, err := store.Audits().GetByOrderID(ctx, "order_1")
	require.NoError(t, err)
	assert.Len(t, trail, 2)

	mismatches, err := store.Audits().GetAmountMismatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, models.PaymentEventAmountMismatch, mismatches[0].EventType)
}
