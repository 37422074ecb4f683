package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/database"
	"github.com/tourbook/booking-service/pkg/metrics"
)

// BookingCompletionService marks confirmed bookings as completed once their
// tour date has ended
type BookingCompletionService struct {
	bookings database.BookingLedger
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	interval time.Duration
	now      func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBookingCompletionService creates a new completion sweeper
func NewBookingCompletionService(
	bookings database.BookingLedger,
	interval time.Duration,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *BookingCompletionService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &BookingCompletionService{
		bookings: bookings,
		metrics:  m,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep
func (s *BookingCompletionService) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("Starting booking completion service")
	s.wg.Add(1)
	go s.run()
}

// Stop stops the sweep and waits for an in-flight cycle to finish
func (s *BookingCompletionService) Stop() {
	s.logger.Info("Stopping booking completion service")
	close(s.stopCh)
	s.wg.Wait()
}

func (s *BookingCompletionService) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunOnce(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			s.logger.Info("Booking completion service stopped")
			return
		}
	}
}

// RunOnce runs a single completion cycle and returns the number of bookings completed
func (s *BookingCompletionService) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	completed, err := s.bookings.MarkCompletedEnded(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).Error("Failed to complete ended bookings")
		return 0
	}

	if completed > 0 {
		s.metrics.BookingsCompleted.Add(float64(completed))
		s.logger.WithField("count", completed).Info("Marked ended bookings as completed")
	}
	return completed
}
