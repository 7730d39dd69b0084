package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// ServerMetrics HTTP 與結帳流程的指標
// 方法皆可在 nil receiver 上呼叫, 測試時不用建立 registry
type ServerMetrics struct {
	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	CheckoutOutcomes *prometheus.CounterVec
	LockConflicts    *prometheus.CounterVec
	OutboxPublished  *prometheus.CounterVec
	gatherer         prometheus.Gatherer
}

func NewServerMetrics(reg *prometheus.Registry) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "outcomes_total",
		Help:      "Checkout attempts by flow and result code.",
	}, []string{"flow", "result"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "lock_conflicts_total",
		Help:      "Transactions aborted by lock wait timeout or deadlock.",
	}, []string{"operation"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox messages relayed to kafka.",
	}, []string{"topic", "result"})

	reg.MustRegister(requests, latency, checkout, conflicts, outbox)
	return &ServerMetrics{
		Requests:         requests,
		LatencyMS:        latency,
		CheckoutOutcomes: checkout,
		LockConflicts:    conflicts,
		OutboxPublished:  outbox,
		gatherer:         reg,
	}
}

func (m *ServerMetrics) ObserveRequest(route, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, status).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(ms)
}

func (m *ServerMetrics) ObserveCheckout(flow, result string) {
	if m == nil {
		return
	}
	m.CheckoutOutcomes.WithLabelValues(flow, result).Inc()
}

func (m *ServerMetrics) ObserveLockConflict(operation string) {
	if m == nil {
		return
	}
	m.LockConflicts.WithLabelValues(operation).Inc()
}

func (m *ServerMetrics) ObserveOutbox(topic, result string) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(topic, result).Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
