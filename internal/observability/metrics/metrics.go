// Package metrics exposes Prometheus instruments for the billing domain.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BillingMetrics aggregates the domain counters emitted by the services.
type BillingMetrics struct {
	registry *prometheus.Registry

	minutesDeducted    prometheus.Counter
	deductionsRejected prometheus.Counter
	minutesCredited    prometheus.Counter
	lowBalanceNotices  prometheus.Counter
	paymentsConfirmed  *prometheus.CounterVec
}

// NewBillingMetrics builds a registry with process collectors and the
// billing counters.
func NewBillingMetrics() *BillingMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &BillingMetrics{
		registry: registry,
		minutesDeducted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_minutes_deducted_total",
			Help: "Total minutes deducted from user ledgers.",
		}),
		deductionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_deductions_rejected_total",
			Help: "Deduction attempts rejected for insufficient balance.",
		}),
		minutesCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_minutes_credited_total",
			Help: "Total minutes credited to user ledgers.",
		}),
		lowBalanceNotices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_low_balance_notifications_total",
			Help: "Low balance notifications sent.",
		}),
		paymentsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payments_confirmed_total",
			Help: "Confirmed payments by final status.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.minutesDeducted,
		m.deductionsRejected,
		m.minutesCredited,
		m.lowBalanceNotices,
		m.paymentsConfirmed,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *BillingMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *BillingMetrics) AddMinutesDeducted(minutes float64) {
	if m == nil {
		return
	}
	m.minutesDeducted.Add(minutes)
}

func (m *BillingMetrics) IncDeductionRejected() {
	if m == nil {
		return
	}
	m.deductionsRejected.Inc()
}

func (m *BillingMetrics) AddMinutesCredited(minutes float64) {
	if m == nil {
		return
	}
	m.minutesCredited.Add(minutes)
}

func (m *BillingMetrics) IncLowBalanceNotice() {
	if m == nil {
		return
	}
	m.lowBalanceNotices.Inc()
}

func (m *BillingMetrics) IncPaymentConfirmed(status string) {
	if m == nil {
		return
	}
	m.paymentsConfirmed.WithLabelValues(status).Inc()
}
