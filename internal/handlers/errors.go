package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tourbook/booking-service/internal/middleware"
	"github.com/tourbook/booking-service/internal/services"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:                http.StatusBadRequest,
	services.KindNotFound:                  http.StatusNotFound,
	services.KindForbidden:                 http.StatusForbidden,
	services.KindAmountMismatch:            http.StatusBadRequest,
	services.KindSlotUnavailable:           http.StatusBadRequest,
	services.KindInvalidSignature:          http.StatusBadRequest,
	services.KindPaymentNotCaptured:        http.StatusBadRequest,
	services.KindGatewayRejected:           http.StatusBadRequest,
	services.KindGatewayUnavailable:        http.StatusBadGateway,
	services.KindPaymentVerificationFailed: http.StatusBadGateway,
	services.KindAlreadyCancelled:          http.StatusBadRequest,
	services.KindCancellationWindowClosed:  http.StatusBadRequest,
	services.KindPersistence:               http.StatusInternalServerError,
}

// StatusForKind maps an error kind to its HTTP status
func StatusForKind(kind services.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes the client-safe JSON for err. Causes are logged, never returned.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	requestID := middleware.GetRequestID(c)

	var be *services.BookingError
	if !errors.As(err, &be) {
		logger.WithError(err).WithField("request_id", requestID).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal_error",
			"message":   "something went wrong, please try again",
			"code":      string(services.KindPersistence),
			"requestId": requestID,
		})
		return
	}

	status := StatusForKind(be.Kind)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"kind":       be.Kind,
		}).Error("Request failed")
	}

	body := gin.H{
		"error":     strings.ToLower(string(be.Kind)),
		"message":   be.Message,
		"code":      string(be.Kind),
		"requestId": requestID,
	}
	if be.Expected != nil {
		body["expected"] = *be.Expected
	}
	if be.Received != nil {
		body["received"] = *be.Received
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":     "validation_error",
		"message":   message,
		"code":      string(services.KindValidation),
		"requestId": middleware.GetRequestID(c),
	})
}

// actorFrom builds the caller identity from the optional user context
func actorFrom(c *gin.Context) services.Actor {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		return services.Actor{}
	}
	id := userCtx.UserID
	return services.Actor{UserID: &id, IsAdmin: userCtx.IsAdmin()}
}
