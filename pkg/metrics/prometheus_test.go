package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.OrdersCreated.Inc()
	m.CountError("complete_booking", "SLOT_UNAVAILABLE")
	m.CountError("complete_booking", "SLOT_UNAVAILABLE")
	m.ObserveGateway("fetch_payment", time.Now(), errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BookingErrors.WithLabelValues("complete_booking", "SLOT_UNAVAILABLE")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GatewayLatency))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("test", prometheus.NewRegistry())
		NewMetrics("test", prometheus.NewRegistry())
	})
}
