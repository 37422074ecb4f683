package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/pkg/mailer"
	"github.com/tourbook/booking-service/pkg/metrics"
	"github.com/tourbook/booking-service/pkg/notify"
)

type stubSender struct {
	mu       sync.Mutex
	failures int
	sent     []mailer.Message
	calls    int
}

func (s *stubSender) Send(ctx context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("mailjet: 503")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func setupNotificationTest(t *testing.T, queue notify.Queue, sender mailer.Sender, maxAttempts int) (*NotificationService, *metrics.Metrics) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewNotificationService(queue, sender, maxAttempts, time.Millisecond, m, logger), m
}

func sampleNotification() BookingNotification {
	return BookingNotification{
		BookingID:      "TB-20250301-ABC123",
		TourTitle:      "Ella Rock <Hike>",
		StartDate:      time.Date(2025, 3, 4, 6, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 3, 6, 18, 0, 0, 0, time.UTC),
		NumberOfGuests: 2,
		Contact:        models.ContactDetails{Name: "Nimal", Email: "nimal@example.com", Phone: "0771234567"},
		Currency:       "INR",
		Breakdown:      CalculateAmounts(1000, 2),
		PaidAmount:     2140,
		TransactionID:  "pay_123",
	}
}

func TestRenderNotification_Confirmed(t *testing.T) {
	msg, err := RenderNotification(EventBookingConfirmed, sampleNotification())
	require.NoError(t, err)

	assert.Equal(t, "nimal@example.com", msg.ToEmail)
	assert.Equal(t, "Booking confirmed: TB-20250301-ABC123", msg.Subject)
	assert.Contains(t, msg.HTML, "2140.00 INR")
	assert.Contains(t, msg.HTML, "04 Mar 2025")
	assert.Contains(t, msg.HTML, "Ella Rock &lt;Hike&gt;")
}

func TestRenderNotification_Cancelled(t *testing.T) {
	n := sampleNotification()
	n.RefundAmount = 1070
	n.RefundPercentage = 50
	n.Reason = "weather"

	msg, err := RenderNotification(EventBookingCancelled, n)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "1070.00 INR (50% of 2140.00)")
	assert.Contains(t, msg.HTML, "Reason: weather")
}

func TestRenderNotification_UnknownType(t *testing.T) {
	_, err := RenderNotification("booking.exploded", sampleNotification())
	assert.Error(t, err)
}

func TestDeliver_RetriesThenSucceeds(t *testing.T) {
	sender := &stubSender{failures: 2}
	svc, m := setupNotificationTest(t, notify.NewMemoryQueue(1), sender, 3)

	data, err := json.Marshal(sampleNotification())
	require.NoError(t, err)

	err = svc.Deliver(context.Background(), notify.Event{ID: "e1", Type: EventBookingConfirmed, Data: data})
	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, 1, sender.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues(EventBookingConfirmed, "sent")))
}

func TestDeliver_GivesUp(t *testing.T) {
	sender := &stubSender{failures: 10}
	svc, m := setupNotificationTest(t, notify.NewMemoryQueue(1), sender, 2)

	data, err := json.Marshal(sampleNotification())
	require.NoError(t, err)

	err = svc.Deliver(context.Background(), notify.Event{ID: "e2", Type: EventBookingConfirmed, Data: data})
	assert.Error(t, err)
	assert.Equal(t, 2, sender.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues(EventBookingConfirmed, "failed")))
}

func TestDeliver_InvalidPayload(t *testing.T) {
	sender := &stubSender{}
	svc, m := setupNotificationTest(t, notify.NewMemoryQueue(1), sender, 3)

	err := svc.Deliver(context.Background(), notify.Event{ID: "e3", Type: EventBookingConfirmed, Data: json.RawMessage(`{`)})
	assert.Error(t, err)
	assert.Zero(t, sender.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues(EventBookingConfirmed, "invalid")))
}

func TestNotify_QueueFullIsDropped(t *testing.T) {
	svc, m := setupNotificationTest(t, notify.NewMemoryQueue(1), &stubSender{}, 1)

	svc.Notify(context.Background(), EventBookingConfirmed, sampleNotification())
	svc.Notify(context.Background(), EventBookingConfirmed, sampleNotification())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues(EventBookingConfirmed, "dropped")))
}

func TestNotify_CancelledRequestStillEnqueues(t *testing.T) {
	queue := notify.NewMemoryQueue(4)
	svc, _ := setupNotificationTest(t, queue, &stubSender{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Notify(ctx, EventBookingCancelled, sampleNotification())

	dequeueCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	event, err := queue.Dequeue(dequeueCtx)
	require.NoError(t, err)
	assert.Equal(t, EventBookingCancelled, event.Type)
}

func TestNotificationService_WorkerDelivers(t *testing.T) {
	sender := &stubSender{}
	svc, _ := setupNotificationTest(t, notify.NewMemoryQueue(4), sender, 1)

	svc.Start()
	svc.Notify(context.Background(), EventBookingConfirmed, sampleNotification())

	assert.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	svc.Stop()
}
