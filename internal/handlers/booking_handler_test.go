package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourbook/booking-service/internal/config"
	"github.com/tourbook/booking-service/internal/database"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/internal/services"
	"github.com/tourbook/booking-service/pkg/jwt"
	"github.com/tourbook/booking-service/pkg/metrics"
)

const handlerTestSecret = "rzp_handler_secret"

type stubGateway struct {
	mu       sync.Mutex
	orders   map[string]int64
	payments map[string]*services.GatewayPayment
}

func (g *stubGateway) CreateOrder(ctx context.Context, amountMinor int64, currency string, meta services.OrderMetadata) (*services.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "order_" + uuid.NewString()[:8]
	g.orders[id] = amountMinor
	return &services.GatewayOrder{ID: id, Amount: amountMinor, Currency: currency, Status: "created"}, nil
}

func (g *stubGateway) FetchPayment(ctx context.Context, paymentID string) (*services.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &services.BookingError{Kind: services.KindGatewayRejected, Message: "payment not found"}
	}
	return p, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return services.VerifyPaymentSignature(orderID, paymentID, signature, handlerTestSecret)
}

func (g *stubGateway) KeyID() string { return "rzp_test_handler" }

func (g *stubGateway) capture(orderID, paymentID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = &services.GatewayPayment{
		ID:       paymentID,
		Amount:   g.orders[orderID],
		Currency: "INR",
		Status:   services.PaymentStatusCaptured,
		OrderID:  orderID,
	}
	mac := hmac.New(sha256.New, []byte(handlerTestSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type handlerFixture struct {
	router  *gin.Engine
	gateway *stubGateway
	jwt     *jwt.Service
	tourID  uuid.UUID
	slotID  uuid.UUID
}

func setupHandlerTest(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tourID, slotID := uuid.New(), uuid.New()
	store := database.NewMemoryStore()
	store.AddTour(models.Tour{
		ID:           tourID,
		Title:        "Horton Plains Loop",
		Price:        1000,
		MaxGroupSize: 8,
		Currency:     "INR",
		Slots: []models.DateSlot{{
			ID:            slotID,
			StartDate:     time.Now().Add(96 * time.Hour),
			EndDate:       time.Now().Add(120 * time.Hour),
			TotalCapacity: 8,
			IsAvailable:   true,
		}},
	})

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	gateway := &stubGateway{orders: map[string]int64{}, payments: map[string]*services.GatewayPayment{}}
	orchestrator := services.NewBookingOrchestratorService(
		store, gateway, noopNotifier{}, m, services.DefaultOrchestratorConfig(), logger,
	)
	jwtService := jwt.NewService("handler-test-jwt-secret", "", time.Hour)

	router := SetupRouter(RouterDeps{
		Bookings: NewBookingHandler(orchestrator, "TourBook", logger),
		Admin:    NewAdminPaymentHandler(services.NewPaymentAuditService(store.Audits(), logger), logger),
		Health:   NewHealthHandler(store, "test"),
		JWT:      jwtService,
		Metrics:  m,
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PUT"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Logger: logger,
	})

	return &handlerFixture{router: router, gateway: gateway, jwt: jwtService, tourID: tourID, slotID: slotID}
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, eventType string, n services.BookingNotification) {}

func (f *handlerFixture) token(t *testing.T, userID uuid.UUID, roles ...string) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(userID, "", roles)
	require.NoError(t, err)
	return token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *handlerFixture) orderBody(amount float64) map[string]interface{} {
	return map[string]interface{}{
		"tourId":         f.tourID,
		"tourDateId":     f.slotID,
		"numberOfGuests": 2,
		"userDetails": map[string]string{
			"name":  "Kamala Silva",
			"phone": "+94771112233",
			"email": "kamala@example.com",
		},
		"amount":     amount,
		"baseAmount": 2000,
		"gstAmount":  100,
		"gatewayFee": 40,
	}
}

// checkout runs both phases over HTTP and returns the public booking id
func (f *handlerFixture) checkout(t *testing.T, token string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/booking/create-payment-order", token, f.orderBody(2140))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var order models.CreatePaymentOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))

	body := f.orderBody(2140)
	body["razorpay_order_id"] = order.OrderID
	body["razorpay_payment_id"] = "pay_" + uuid.NewString()[:8]
	body["razorpay_signature"] = f.gateway.capture(order.OrderID, body["razorpay_payment_id"].(string))

	w = f.do(t, http.MethodPost, "/api/v1/booking/complete-booking", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.BookingDetailsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Booking.BookingID
}

func TestCreatePaymentOrderHandler(t *testing.T) {
	f := setupHandlerTest(t)

	w := f.do(t, http.MethodPost, "/api/v1/booking/create-payment-order", "", f.orderBody(2140))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.CreatePaymentOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(214000), resp.Amount)
	assert.Equal(t, "rzp_test_handler", resp.KeyID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCreatePaymentOrderHandler_AmountMismatch(t *testing.T) {
	f := setupHandlerTest(t)

	w := f.do(t, http.MethodPost, "/api/v1/booking/create-payment-order", "", f.orderBody(999))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AMOUNT_MISMATCH", body["code"])
	assert.Equal(t, 2140.0, body["expected"])
	assert.Equal(t, 999.0, body["received"])
	assert.True(t, strings.HasPrefix(body["message"].(string), "order could not be created"))
	assert.NotEmpty(t, body["requestId"])
}

func TestCreatePaymentOrderHandler_BadJSON(t *testing.T) {
	f := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/booking/create-payment-order", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCompleteBookingHandler_InvalidSignature(t *testing.T) {
	f := setupHandlerTest(t)

	w := f.do(t, http.MethodPost, "/api/v1/booking/create-payment-order", "", f.orderBody(2140))
	require.Equal(t, http.StatusOK, w.Code)
	var order models.CreatePaymentOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	f.gateway.capture(order.OrderID, "pay_sig")

	body := f.orderBody(2140)
	body["razorpay_order_id"] = order.OrderID
	body["razorpay_payment_id"] = "pay_sig"
	body["razorpay_signature"] = strings.Repeat("ab", 32)

	w = f.do(t, http.MethodPost, "/api/v1/booking/complete-booking", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SIGNATURE")
	assert.Contains(t, w.Body.String(), "pay_sig")
}

func TestBookingLifecycleHandlers(t *testing.T) {
	f := setupHandlerTest(t)
	owner := uuid.New()
	ownerToken := f.token(t, owner, "customer")

	bookingID := f.checkout(t, ownerToken)

	// Owner can read it, strangers cannot
	w := f.do(t, http.MethodGet, "/api/v1/booking/"+bookingID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/booking/"+bookingID, f.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/booking/"+bookingID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/booking/my-bookings", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), bookingID)

	w = f.do(t, http.MethodGet, "/api/v1/booking/"+bookingID+"/receipt", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	// The slot is gone for everyone else
	w = f.do(t, http.MethodPost, "/api/v1/booking/create-payment-order", "", f.orderBody(2140))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SLOT_UNAVAILABLE")

	w = f.do(t, http.MethodPut, "/api/v1/booking/"+bookingID+"/cancel", ownerToken, map[string]string{"cancellationReason": "illness"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled models.CancelBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, 100, cancelled.RefundPercentage)
	assert.Equal(t, 2140.0, cancelled.RefundAmount)

	w = f.do(t, http.MethodPut, "/api/v1/booking/"+bookingID+"/cancel", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_CANCELLED")
}

func TestAdminPaymentHandlers(t *testing.T) {
	f := setupHandlerTest(t)
	f.do(t, http.MethodPost, "/api/v1/booking/create-payment-order", "", f.orderBody(5))

	admin := f.token(t, uuid.New(), "admin")
	w := f.do(t, http.MethodGet, "/api/v1/admin/payments/mismatches", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = f.do(t, http.MethodGet, "/api/v1/admin/payments/mismatches", f.token(t, uuid.New(), "customer"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/payments/audit/order_missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandler(t *testing.T) {
	f := setupHandlerTest(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForKind(services.KindAmountMismatch))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(services.KindSlotUnavailable))
	assert.Equal(t, http.StatusForbidden, StatusForKind(services.KindForbidden))
	assert.Equal(t, http.StatusNotFound, StatusForKind(services.KindNotFound))
	assert.Equal(t, http.StatusBadGateway, StatusForKind(services.KindGatewayUnavailable))
	assert.Equal(t, http.StatusBadGateway, StatusForKind(services.KindPaymentVerificationFailed))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(services.KindPersistence))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind("SOMETHING_NEW"))
}
