package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopilent/internal/metrics"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.RecordHTTPRequest("GET", "/api/v1/products", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/products", 200, 7*time.Millisecond)
	m.RecordOutboxMessage("product.created", true)
	m.RecordOutboxMessage("product.created", false)
	m.RecordPayment("failed", "card_declined")
	m.SetOutboxPending(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/products", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxMessagesTotal.WithLabelValues("product.created", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsTotal.WithLabelValues("failed", "card_declined")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPending))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.RecordOutboxMessage("x", true)
		m.RecordPayment("succeeded", "")
		m.SetOutboxPending(0)
	})
}
