package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/tourbook/booking-service/internal/models"
)

// RequestIDKey is the gin context key holding the request correlation id
const RequestIDKey = "request_id"

// ClientInfoFromRequest collects the caller metadata recorded on payment audits
func ClientInfoFromRequest(c *gin.Context) models.ClientInfo {
	userAgent := GetUserAgent(c)
	device := ParseUserAgent(userAgent)

	return models.ClientInfo{
		IPAddress:  GetRealIP(c),
		UserAgent:  userAgent,
		DeviceType: device.DeviceType,
		Browser:    device.Browser,
		OS:         device.OS,
		RequestID:  c.GetString(RequestIDKey),
	}
}
