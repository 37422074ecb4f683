package database

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tourbook/booking-service/internal/models"
)

// memState is the full dataset of a MemoryStore. Values are stored by copy
// so a cloned state can be mutated without touching the original.
type memState struct {
	tours    map[uuid.UUID]models.Tour
	slots    map[uuid.UUID]models.DateSlot
	bookings map[uuid.UUID]models.Booking
	payments map[uuid.UUID]models.Payment
	audits   []models.PaymentAudit
}

func (st *memState) clone() *memState {
	return &memState{
		tours:    maps.Clone(st.tours),
		slots:    maps.Clone(st.slots),
		bookings: maps.Clone(st.bookings),
		payments: maps.Clone(st.payments),
		audits:   st.audits,
	}
}

// MemoryStore is an in-process Store with the same transactional behavior as
// PostgresStore. WithinTx works on a copy of the state and swaps it in only
// when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		tours:    make(map[uuid.UUID]models.Tour),
		slots:    make(map[uuid.UUID]models.DateSlot),
		bookings: make(map[uuid.UUID]models.Booking),
		payments: make(map[uuid.UUID]models.Payment),
	}}
}

// AddTour stores a tour and its dates
func (s *MemoryStore) AddTour(tour models.Tour) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range tour.Slots {
		slot.TourID = tour.ID
		s.state.slots[slot.ID] = slot
	}
	tour.Slots = nil
	s.state.tours[tour.ID] = tour
}

func (s *MemoryStore) scope() memScope { return memScope{store: s} }
func (s *MemoryStore) Tours() TourReader { return memTours{s.scope()} }
func (s *MemoryStore) Slots() SlotStore { return memSlots{s.scope()} }
func (s *MemoryStore) Bookings() BookingLedger { return memBookings{s.scope()} }
func (s *MemoryStore) Payments() PaymentLedger { return memPayments{s.scope()} }
func (s *MemoryStore) Audits() PaymentAuditLog { return memAudits{s.scope()} }
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error { return nil }

// WithinTx runs fn against a private copy of the state while holding the store lock
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx TxStores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	scope := memScope{store: s, tx: work}
	if err := fn(TxStores{
		Slots:    memSlots{scope},
		Bookings: memBookings{scope},
		Payments: memPayments{scope},
	}); err != nil {
		return err
	}

	s.state = work
	return nil
}

// memScope resolves the state a repository works on: the transaction copy
// when inside WithinTx, otherwise the live state under the store lock
type memScope struct {
	store *MemoryStore
	tx    *memState
}

func (m memScope) with(fn func(st *memState) error) error {
	if m.tx != nil {
		return fn(m.tx)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return fn(m.store.state)
}

// ============================================================================
// TOURS AND SLOTS
// ============================================================================

type memTours struct{ memScope }

func (r memTours) GetTour(ctx context.Context, tourID uuid.UUID) (*models.Tour, error) {
	var out *models.Tour
	err := r.with(func(st *memState) error {
		tour, ok := st.tours[tourID]
		if !ok {
			return ErrNotFound
		}
		tour.Slots = nil
		for _, slot := range st.slots {
			if slot.TourID == tourID {
				tour.Slots = append(tour.Slots, slot)
			}
		}
		sort.Slice(tour.Slots, func(i, j int) bool {
			return tour.Slots[i].StartDate.Before(tour.Slots[j].StartDate)
		})
		out = &tour
		return nil
	})
	return out, err
}

type memSlots struct{ memScope }

func (r memSlots) GetSlot(ctx context.Context, tourID, slotID uuid.UUID) (*models.DateSlot, error) {
	var out *models.DateSlot
	err := r.with(func(st *memState) error {
		slot, ok := st.slots[slotID]
		if !ok || slot.TourID != tourID {
			return ErrNotFound
		}
		out = &slot
		return nil
	})
	return out, err
}

func (r memSlots) TryReserve(ctx context.Context, tourID, slotID uuid.UUID, guests int) error {
	return r.with(func(st *memState) error {
		slot, ok := st.slots[slotID]
		if !ok || slot.TourID != tourID || !slot.CanReserve(guests) {
			return ErrSlotUnavailable
		}
		slot.BookedCount = guests
		slot.IsAvailable = false
		slot.Version++
		slot.UpdatedAt = time.Now()
		st.slots[slotID] = slot
		return nil
	})
}

func (r memSlots) Release(ctx context.Context, tourID, slotID uuid.UUID) error {
	return r.with(func(st *memState) error {
		slot, ok := st.slots[slotID]
		if !ok || slot.TourID != tourID {
			return nil
		}
		if slot.BookedCount == 0 && slot.IsAvailable {
			return nil
		}
		slot.BookedCount = 0
		slot.IsAvailable = true
		slot.Version++
		slot.UpdatedAt = time.Now()
		st.slots[slotID] = slot
		return nil
	})
}

// ============================================================================
// BOOKINGS
// ============================================================================

type memBookings struct{ memScope }

func (r memBookings) Create(ctx context.Context, b *models.Booking) error {
	return r.with(func(st *memState) error {
		for _, existing := range st.bookings {
			if existing.TransactionID == b.TransactionID || existing.BookingID == b.BookingID {
				return ErrDuplicateTransaction
			}
		}
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		now := time.Now()
		b.CreatedAt = now
		b.UpdatedAt = now
		st.bookings[b.ID] = *b
		return nil
	})
}

func (r memBookings) find(match func(b *models.Booking) bool) (*models.Booking, error) {
	var out *models.Booking
	err := r.with(func(st *memState) error {
		for _, b := range st.bookings {
			if match(&b) {
				out = &b
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memBookings) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	return r.find(func(b *models.Booking) bool { return b.BookingID == bookingID })
}

func (r memBookings) GetByTransactionID(ctx context.Context, transactionID string) (*models.Booking, error) {
	return r.find(func(b *models.Booking) bool { return b.TransactionID == transactionID })
}

func (r memBookings) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Booking, error) {
	var all []*models.Booking
	err := r.with(func(st *memState) error {
		for _, b := range st.bookings {
			if b.IsOwnedBy(userID) {
				all = append(all, &b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].BookingDate.After(all[j].BookingDate) })
	if offset >= len(all) {
		return []*models.Booking{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r memBookings) MarkCancelled(ctx context.Context, id uuid.UUID, c models.BookingCancellation) error {
	return r.with(func(st *memState) error {
		b, ok := st.bookings[id]
		if !ok {
			return ErrNotFound
		}
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusConfirmed {
			return ErrBookingNotCancellable
		}
		cancelledAt := c.CancelledAt
		b.Status = models.BookingStatusCancelled
		b.CancellationDate = &cancelledAt
		if c.Reason != "" {
			reason := c.Reason
			b.CancellationReason = &reason
		}
		b.RefundAmount = c.RefundAmount
		b.RefundPercentage = c.RefundPercentage
		b.PaymentStatus = c.PaymentStatus
		b.UpdatedAt = time.Now()
		st.bookings[id] = b
		return nil
	})
}

func (r memBookings) MarkCompletedEnded(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.with(func(st *memState) error {
		for id, b := range st.bookings {
			if b.Status != models.BookingStatusConfirmed {
				continue
			}
			slot, ok := st.slots[b.DateSlotID]
			if !ok || !slot.EndDate.Before(now) {
				continue
			}
			b.Status = models.BookingStatusCompleted
			b.UpdatedAt = time.Now()
			st.bookings[id] = b
			count++
		}
		return nil
	})
	return count, err
}

// ============================================================================
// PAYMENTS AND AUDITS
// ============================================================================

type memPayments struct{ memScope }

func (r memPayments) Create(ctx context.Context, p *models.Payment) error {
	return r.with(func(st *memState) error {
		for _, existing := range st.payments {
			if existing.TransactionID == p.TransactionID || existing.BookingID == p.BookingID {
				return ErrDuplicateTransaction
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		now := time.Now()
		p.CreatedAt = now
		p.UpdatedAt = now
		st.payments[p.ID] = *p
		return nil
	})
}

func (r memPayments) find(match func(p *models.Payment) bool) (*models.Payment, error) {
	var out *models.Payment
	err := r.with(func(st *memState) error {
		for _, p := range st.payments {
			if match(&p) {
				out = &p
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memPayments) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.BookingID == bookingID })
}

func (r memPayments) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return r.find(func(p *models.Payment) bool { return p.TransactionID == transactionID })
}

type memAudits struct{ memScope }

func (r memAudits) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}
	return r.with(func(st *memState) error {
		st.audits = append(st.audits, *audit)
		return nil
	})
}

func (r memAudits) GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error) {
	var out []*models.PaymentAudit
	err := r.with(func(st *memState) error {
		for i := range st.audits {
			if a := st.audits[i]; a.OrderID != nil && *a.OrderID == orderID {
				out = append(out, &a)
			}
		}
		return nil
	})
	return out, err
}

func (r memAudits) GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var out []*models.PaymentAudit
	err := r.with(func(st *memState) error {
		for i := len(st.audits) - 1; i >= 0 && len(out) < limit; i-- {
			if a := st.audits[i]; a.AmountsMatch != nil && !*a.AmountsMatch {
				out = append(out, &a)
			}
		}
		return nil
	})
	return out, err
}
