package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/config"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/pkg/metrics"
)

// PaymentGateway is the subset of the Razorpay API the booking flow uses
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string, meta OrderMetadata) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// OrderMetadata is attached to a gateway order for later reconciliation
type OrderMetadata struct {
	TourID       uuid.UUID
	TourDateID   uuid.UUID
	Guests       int
	ContactName  string
	ContactEmail string
	ContactPhone string
	Breakdown    models.PaymentBreakdown
}

// Notes flattens the metadata into Razorpay's notes map
func (m OrderMetadata) Notes() map[string]string {
	amount := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	return map[string]string{
		"tourId":       m.TourID.String(),
		"tourDateId":   m.TourDateID.String(),
		"guests":       strconv.Itoa(m.Guests),
		"contactName":  truncate(m.ContactName, 256),
		"contactEmail": truncate(m.ContactEmail, 256),
		"contactPhone": truncate(m.ContactPhone, 256),
		"baseAmount":   amount(m.Breakdown.BaseAmount),
		"gstAmount":    amount(m.Breakdown.GSTAmount),
		"gatewayFee":   amount(m.Breakdown.GatewayFee),
		"totalAmount":  amount(m.Breakdown.TotalAmount),
	}
}

// GatewayOrder is a created Razorpay order
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayPayment is a Razorpay payment as reported by the API
type GatewayPayment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"` // created, authorized, captured, refunded, failed
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
}

// PaymentStatusCaptured is the only gateway status that confirms a booking
const PaymentStatusCaptured = "captured"

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// RazorpayService talks to the Razorpay REST API
type RazorpayService struct {
	config  *config.RazorpayConfig
	logger  *logrus.Logger
	metrics *metrics.Metrics
	client  *http.Client
}

// NewRazorpayService creates a new Razorpay client
func NewRazorpayService(cfg *config.RazorpayConfig, m *metrics.Metrics, logger *logrus.Logger) *RazorpayService {
	return &RazorpayService{
		config:  cfg,
		logger:  logger,
		metrics: m,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// KeyID returns the public key id used by the client checkout
func (s *RazorpayService) KeyID() string {
	return s.config.KeyID
}

// VerifySignature checks a checkout callback signature with the configured secret
func (s *RazorpayService) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(orderID, paymentID, signature, s.config.KeySecret)
}

// VerifyPaymentSignature reports whether signature is the hex HMAC-SHA256 of
// "orderID|paymentID" under secret. The comparison is constant time.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CreateOrder creates a gateway order for amountMinor paise
func (s *RazorpayService) CreateOrder(ctx context.Context, amountMinor int64, currency string, meta OrderMetadata) (order *GatewayOrder, err error) {
	if amountMinor < s.config.MinAmount || amountMinor > s.config.MaxAmount {
		return nil, newError(KindGatewayRejected,
			fmt.Sprintf("amount %d is outside the accepted range %d..%d", amountMinor, s.config.MinAmount, s.config.MaxAmount), nil)
	}

	start := time.Now()
	defer func() { s.metrics.ObserveGateway("create_order", start, err) }()

	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		Notes:    meta.Notes(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	order = &GatewayOrder{}
	if err := s.do(ctx, http.MethodPost, "/v1/orders", body, order); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
	}).Info("Razorpay order created")

	return order, nil
}

// FetchPayment returns the gateway's view of a payment
func (s *RazorpayService) FetchPayment(ctx context.Context, paymentID string) (payment *GatewayPayment, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveGateway("fetch_payment", start, err) }()

	payment = &GatewayPayment{}
	if err := s.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, payment); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"status":     payment.Status,
		"amount":     payment.Amount,
	}).Debug("Razorpay payment fetched")

	return payment, nil
}

// do performs an authenticated API call under the configured timeout.
// 4xx responses are gateway rejections; transport errors, timeouts and 5xx
// responses mean the gateway is unavailable.
func (s *RazorpayService) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.SetBasicAuth(s.config.KeyID, s.config.KeySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Error("Razorpay request failed")
		return newError(KindGatewayUnavailable, "payment gateway is unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return newError(KindGatewayUnavailable, "failed to read gateway response", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr razorpayErrorResponse
		_ = json.Unmarshal(respBody, &apiErr)

		s.logger.WithFields(logrus.Fields{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
			"error_code":  apiErr.Error.Code,
			"description": apiErr.Error.Description,
		}).Warn("Razorpay returned an error")

		cause := fmt.Errorf("razorpay %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error.Description)
		if resp.StatusCode >= 500 {
			return newError(KindGatewayUnavailable, "payment gateway is unavailable", cause)
		}
		return newError(KindGatewayRejected, "payment gateway rejected the request", cause)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return newError(KindGatewayUnavailable, "unreadable gateway response", err)
	}
	return nil
}

// isTimeout reports whether err came from a deadline or client timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
