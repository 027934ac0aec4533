// Package metrics exposes Prometheus collectors for HTTP traffic, outbox
// processing and payment outcomes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application collectors. A nil *Metrics records nothing,
// so components can be built without it in tests.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	OutboxMessagesTotal *prometheus.CounterVec
	OutboxPending       prometheus.Gauge
	PaymentsTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopilent",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopilent",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OutboxMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopilent",
			Subsystem: "outbox",
			Name:      "messages_total",
			Help:      "Outbox messages handled, by event type and result",
		}, []string{"type", "result"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shopilent",
			Subsystem: "outbox",
			Name:      "pending_messages",
			Help:      "Unprocessed outbox messages after the last run",
		}),
		PaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopilent",
			Subsystem: "payments",
			Name:      "total",
			Help:      "Payment attempts, by result and error code",
		}, []string{"result", "code"}),
	}

	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OutboxMessagesTotal,
		m.OutboxPending,
		m.PaymentsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordOutboxMessage(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "processed"
	if !ok {
		result = "failed"
	}
	m.OutboxMessagesTotal.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) SetOutboxPending(n int64) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

func (m *Metrics) RecordPayment(result, code string) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(result, code).Inc()
}
