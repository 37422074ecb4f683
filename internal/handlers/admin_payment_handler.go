package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/services"
)

// AdminPaymentHandler serves the payment audit trail to administrators
type AdminPaymentHandler struct {
	audits *services.PaymentAuditService
	logger *logrus.Logger
}

// NewAdminPaymentHandler creates a new AdminPaymentHandler
func NewAdminPaymentHandler(audits *services.PaymentAuditService, logger *logrus.Logger) *AdminPaymentHandler {
	return &AdminPaymentHandler{audits: audits, logger: logger}
}

// ListAmountMismatches - GET /api/v1/admin/payments/mismatches
func (h *AdminPaymentHandler) ListAmountMismatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	audits, err := h.audits.ListAmountMismatches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": audits, "count": len(audits)})
}

// GetOrderTrail - GET /api/v1/admin/payments/audit/:orderId
func (h *AdminPaymentHandler) GetOrderTrail(c *gin.Context) {
	audits, err := h.audits.GetOrderTrail(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": c.Param("orderId"), "events": audits})
}
