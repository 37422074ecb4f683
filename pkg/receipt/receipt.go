package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
)

// Data is everything printed on a booking receipt
type Data struct {
	CompanyName    string
	BookingID      string
	TourTitle      string
	StartDate      time.Time
	EndDate        time.Time
	NumberOfGuests int
	PricePerPerson float64
	ContactName    string
	ContactEmail   string
	ContactPhone   string
	Currency       string
	BaseAmount     float64
	GSTAmount      float64
	GatewayFee     float64
	TotalAmount    float64
	TransactionID  string
	PaidAt         time.Time
	Status         string
	RefundAmount   float64
}

// Build renders the receipt as a PDF and returns it with a download filename
func Build(d Data) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking receipt "+d.BookingID, false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(safe(d.CompanyName, "Tour Booking")))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Payment receipt")
	pdf.Ln(12)

	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
	}

	line("Booking ID", d.BookingID)
	line("Status", strings.ToUpper(safe(d.Status, "-")))
	line("Tour", safe(d.TourTitle, "-"))
	line("Dates", fmt.Sprintf("%s to %s", d.StartDate.Format("02 Jan 2006"), d.EndDate.Format("02 Jan 2006")))
	line("Guests", fmt.Sprintf("%d", d.NumberOfGuests))
	pdf.Ln(4)

	line("Name", safe(d.ContactName, "-"))
	line("Email", safe(d.ContactEmail, "-"))
	line("Phone", safe(d.ContactPhone, "-"))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Payment")
	pdf.Ln(9)

	amount := func(label string, v float64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 11)
		pdf.CellFormat(120, 7, label, "B", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, formatAmount(v, d.Currency), "B", 1, "R", false, 0, "")
	}

	amount(fmt.Sprintf("Tour price (%d x %s)", d.NumberOfGuests, formatAmount(d.PricePerPerson, d.Currency)), d.BaseAmount, false)
	amount("GST (5%)", d.GSTAmount, false)
	amount("Payment gateway fee (2%)", d.GatewayFee, false)
	amount("Total paid", d.TotalAmount, true)
	if d.RefundAmount > 0 {
		amount("Refunded", d.RefundAmount, false)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Payment reference: "+safe(d.TransactionID, "-"))
	pdf.Ln(6)
	if !d.PaidAt.IsZero() {
		pdf.Cell(0, 6, "Paid at: "+d.PaidAt.UTC().Format("2006-01-02 15:04 MST"))
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render receipt: %w", err)
	}

	return buf.Bytes(), fmt.Sprintf("RECEIPT_%s.pdf", d.BookingID), nil
}

func formatAmount(v float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %.2f", currency, v))
}

func safe(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
