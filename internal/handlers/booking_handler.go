package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/models"
	"github.com/tourbook/booking-service/internal/services"
	"github.com/tourbook/booking-service/internal/utils"
	"github.com/tourbook/booking-service/pkg/receipt"
)

// BookingHandler handles the tour booking and payment endpoints
type BookingHandler struct {
	orchestrator *services.BookingOrchestratorService
	companyName  string
	logger       *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	orchestrator *services.BookingOrchestratorService,
	companyName string,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		orchestrator: orchestrator,
		companyName:  companyName,
		logger:       logger,
	}
}

// ============================================================================
// CREATE PAYMENT ORDER - POST /api/v1/booking/create-payment-order
// ============================================================================

// CreatePaymentOrder validates a quote and opens a Razorpay order for it
func (h *BookingHandler) CreatePaymentOrder(c *gin.Context) {
	var req models.CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	resp, err := h.orchestrator.CreatePaymentOrder(c.Request.Context(), &req, utils.ClientInfoFromRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// COMPLETE BOOKING - POST /api/v1/booking/complete-booking
// ============================================================================

// CompleteBooking verifies the payment and commits the booking
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	var req models.CompleteBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	resp, err := h.orchestrator.CompleteBooking(c.Request.Context(), actorFrom(c), &req, utils.ClientInfoFromRequest(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ============================================================================
// CANCEL - PUT /api/v1/booking/:bookingId/cancel
// ============================================================================

// CancelBooking cancels a booking and reports the refund
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req models.CancelBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	resp, err := h.orchestrator.CancelBooking(c.Request.Context(), actorFrom(c), c.Param("bookingId"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ============================================================================
// READS
// ============================================================================

// GetBooking returns a booking with its payment - GET /api/v1/booking/:bookingId
func (h *BookingHandler) GetBooking(c *gin.Context) {
	resp, err := h.orchestrator.GetBooking(c.Request.Context(), actorFrom(c), c.Param("bookingId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListMyBookings lists the caller's bookings - GET /api/v1/booking/my-bookings
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.orchestrator.ListMyBookings(c.Request.Context(), actorFrom(c), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
		"limit":    limit,
		"offset":   offset,
	})
}

// DownloadReceipt renders a PDF receipt - GET /api/v1/booking/:bookingId/receipt
func (h *BookingHandler) DownloadReceipt(c *gin.Context) {
	data, err := h.orchestrator.GetReceiptData(c.Request.Context(), actorFrom(c), c.Param("bookingId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	b, p := data.Booking, data.Payment
	pdf, filename, err := receipt.Build(receipt.Data{
		CompanyName:    h.companyName,
		BookingID:      b.BookingID,
		TourTitle:      data.Tour.Title,
		StartDate:      data.Slot.StartDate,
		EndDate:        data.Slot.EndDate,
		NumberOfGuests: b.NumberOfGuests,
		PricePerPerson: b.PricePerPerson,
		ContactName:    b.PrimaryContact.Name,
		ContactEmail:   b.PrimaryContact.Email,
		ContactPhone:   b.PrimaryContact.Phone,
		Currency:       p.Currency,
		BaseAmount:     p.Breakdown.BaseAmount,
		GSTAmount:      p.Breakdown.GSTAmount,
		GatewayFee:     p.Breakdown.GatewayFee,
		TotalAmount:    p.Amount,
		TransactionID:  p.TransactionID,
		PaidAt:         p.PaymentDate,
		Status:         string(b.Status),
		RefundAmount:   b.RefundAmount,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
