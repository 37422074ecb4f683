package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/pkg/mailer"
	"github.com/tourbook/booking-service/pkg/metrics"
	"github.com/tourbook/booking-service/pkg/notify"
)

// Notification event types
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

// Notifier receives booking events after they are committed. Implementations
// must not block the caller on delivery.
type Notifier interface {
	Notify(ctx context.Context, eventType string, n BookingNotification)
}

// BookingNotification is the payload of a booking event
type BookingNotification struct {
	BookingID        string                  `json:"bookingId"`
	TourTitle        string                  `json:"tourTitle"`
	StartDate        time.Time               `json:"startDate"`
	EndDate          time.Time               `json:"endDate"`
	NumberOfGuests   int                     `json:"numberOfGuests"`
	Contact          models.ContactDetails   `json:"contact"`
	Currency         string                  `json:"currency"`
	Breakdown        models.PaymentBreakdown `json:"paymentBreakdown"`
	PaidAmount       float64                 `json:"paidAmount"`
	TransactionID    string                  `json:"transactionId"`
	RefundAmount     float64                 `json:"refundAmount,omitempty"`
	RefundPercentage int                     `json:"refundPercentage,omitempty"`
	Reason           string                  `json:"reason,omitempty"`
}

var notificationTemplates = template.Must(template.New("notifications").Parse(`
{{define "booking.confirmed"}}<h2>Your booking is confirmed</h2>
<p>Hi {{.Contact.Name}},</p>
<p>Booking <strong>{{.BookingID}}</strong> for <strong>{{.TourTitle}}</strong> is confirmed.</p>
<p>Dates: {{.StartDate.Format "02 Jan 2006"}} to {{.EndDate.Format "02 Jan 2006"}}<br>
Guests: {{.NumberOfGuests}}</p>
<table>
<tr><td>Base amount</td><td>{{printf "%.2f" .Breakdown.BaseAmount}} {{.Currency}}</td></tr>
<tr><td>GST</td><td>{{printf "%.2f" .Breakdown.GSTAmount}} {{.Currency}}</td></tr>
<tr><td>Gateway fee</td><td>{{printf "%.2f" .Breakdown.GatewayFee}} {{.Currency}}</td></tr>
<tr><td><strong>Total paid</strong></td><td><strong>{{printf "%.2f" .PaidAmount}} {{.Currency}}</strong></td></tr>
</table>
<p>Payment reference: {{.TransactionID}}</p>{{end}}
{{define "booking.cancelled"}}<h2>Your booking was cancelled</h2>
<p>Hi {{.Contact.Name}},</p>
<p>Booking <strong>{{.BookingID}}</strong> for <strong>{{.TourTitle}}</strong> has been cancelled.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>Refund: {{printf "%.2f" .RefundAmount}} {{.Currency}} ({{.RefundPercentage}}% of {{printf "%.2f" .PaidAmount}})</p>{{end}}
`))

var notificationSubjects = map[string]string{
	EventBookingConfirmed: "Booking confirmed: %s",
	EventBookingCancelled: "Booking cancelled: %s",
}

// NotificationService queues booking events and delivers them as email from
// a background worker with bounded exponential backoff
type NotificationService struct {
	queue       notify.Queue
	sender      mailer.Sender
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	maxAttempts int
	backoff     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationService creates a new notification dispatcher
func NewNotificationService(
	queue notify.Queue,
	sender mailer.Sender,
	maxAttempts int,
	backoff time.Duration,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *NotificationService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &NotificationService{
		queue:       queue,
		sender:      sender,
		metrics:     m,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Notify enqueues an event. Failures are logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, eventType string, n BookingNotification) {
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", n.BookingID).Error("Failed to encode notification")
		return
	}

	event := notify.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now(),
		Data:       data,
	}

	// The request context may be cancelled right after the response is written
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(enqueueCtx, event); err != nil {
		s.metrics.NotificationsSent.WithLabelValues(eventType, "dropped").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event":      eventType,
			"booking_id": n.BookingID,
		}).Error("Failed to enqueue notification")
	}
}

// Start launches the delivery worker
func (s *NotificationService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.logger.Info("Starting notification dispatcher")

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the worker and waits for it to exit
func (s *NotificationService) Stop() {
	s.logger.Info("Stopping notification dispatcher")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *NotificationService) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		event, err := s.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, notify.ErrQueueClosed) {
				s.logger.Info("Notification dispatcher stopped")
				return
			}
			s.logger.WithError(err).Error("Failed to read notification queue")
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		s.Deliver(ctx, event)
	}
}

// Deliver renders and sends one event, retrying with exponential backoff
func (s *NotificationService) Deliver(ctx context.Context, event notify.Event) error {
	logger := s.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"event":    event.Type,
	})

	var n BookingNotification
	if err := json.Unmarshal(event.Data, &n); err != nil {
		s.metrics.NotificationsSent.WithLabelValues(event.Type, "invalid").Inc()
		logger.WithError(err).Error("Discarding unreadable notification")
		return err
	}

	msg, err := RenderNotification(event.Type, n)
	if err != nil {
		s.metrics.NotificationsSent.WithLabelValues(event.Type, "invalid").Inc()
		logger.WithError(err).Error("Discarding notification that cannot be rendered")
		return err
	}

	delay := s.backoff
	for attempt := 1; ; attempt++ {
		err = s.sender.Send(ctx, msg)
		if err == nil {
			s.metrics.NotificationsSent.WithLabelValues(event.Type, "sent").Inc()
			logger.WithField("attempt", attempt).Info("Notification delivered")
			return nil
		}

		logger.WithError(err).WithField("attempt", attempt).Warn("Notification delivery failed")
		if attempt >= s.maxAttempts || !sleepCtx(ctx, delay) {
			break
		}
		delay *= 2
	}

	s.metrics.NotificationsSent.WithLabelValues(event.Type, "failed").Inc()
	logger.WithField("booking_id", n.BookingID).Error("Giving up on notification")
	return err
}

// RenderNotification builds the email for a booking event
func RenderNotification(eventType string, n BookingNotification) (mailer.Message, error) {
	subject, ok := notificationSubjects[eventType]
	if !ok {
		return mailer.Message{}, fmt.Errorf("unknown notification type %q", eventType)
	}

	var body bytes.Buffer
	if err := notificationTemplates.ExecuteTemplate(&body, eventType, n); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to render %s: %w", eventType, err)
	}

	return mailer.Message{
		ToEmail:  n.Contact.Email,
		ToName:   n.Contact.Name,
		Subject:  fmt.Sprintf(subject, n.BookingID),
		HTML:     body.String(),
		CustomID: n.BookingID,
	}, nil
}

// sleepCtx waits for d and reports false if ctx ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
