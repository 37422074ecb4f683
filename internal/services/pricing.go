package services

import (
	"math"

	"github.com/tourbook/booking-service/internal/models"
)

const (
	gstRate        = 0.05
	gatewayFeeRate = 0.02
)

// CalculateAmounts computes the authoritative breakdown for a booking.
// GST and the gateway fee are rounded to whole currency units.
func CalculateAmounts(pricePerPerson float64, guests int) models.PaymentBreakdown {
	base := pricePerPerson * float64(guests)
	gst := math.Round(base * gstRate)
	fee := math.Round(base * gatewayFeeRate)
	return models.PaymentBreakdown{
		BaseAmount:  base,
		GSTAmount:   gst,
		GatewayFee:  fee,
		TotalAmount: base + gst + fee,
	}
}

// ToMinorUnits converts a major-unit amount to the gateway's minor units (paise)
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts gateway minor units back to major units
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// WithinTolerance reports whether a client-claimed total is acceptable
func WithinTolerance(claimed, expected float64) bool {
	return math.Abs(claimed-expected) <= models.AmountTolerance
}
