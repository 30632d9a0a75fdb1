// Package observability exposes application-level prometheus instruments.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Metrics exposes the engine's counters.
type Metrics struct {
	registry *prometheus.Registry

	messagesProcessed *prometheus.CounterVec
	aiFailures        *prometheus.CounterVec
	billingFailures   prometheus.Counter
	walletDebits      prometheus.Counter
	usageAlerts       prometheus.Counter
	eventsDispatched  *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_messages_processed_total",
			Help: "Processed inbound messages by outcome.",
		}, []string{"outcome"}),
		aiFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_ai_failures_total",
			Help: "AI provider failures by kind.",
		}, []string{"kind"}),
		billingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatwire_billing_failures_total",
			Help: "Wallet debits refused for insufficient funds.",
		}),
		walletDebits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatwire_wallet_debits_total",
			Help: "Successful overage wallet debits.",
		}),
		usageAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatwire_usage_alerts_total",
			Help: "Quota usage threshold alerts emitted.",
		}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatwire_events_dispatched_total",
			Help: "Outbox events dispatched by status.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.messagesProcessed,
		m.aiFailures,
		m.billingFailures,
		m.walletDebits,
		m.usageAlerts,
		m.eventsDispatched,
	)
	return m
}

func (m *Metrics) IncMessageProcessed(outcome string) {
	m.messagesProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncAIFailure(kind string) {
	m.aiFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncBillingFailure() { m.billingFailures.Inc() }
func (m *Metrics) IncWalletDebit()    { m.walletDebits.Inc() }
func (m *Metrics) IncUsageAlert()     { m.usageAlerts.Inc() }

func (m *Metrics) IncEventDispatched(status string) {
	m.eventsDispatched.WithLabelValues(status).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Module provides the prometheus instruments.
var Module = fx.Module("observability",
	fx.Provide(New),
)
