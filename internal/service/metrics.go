package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics owns its registry so several validators can coexist in one
// process (tests build one per case). A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	proxyFetches       *prometheus.CounterVec
	dnsWins            *prometheus.CounterVec
	dnsFailures        *prometheus.CounterVec
	workerCalls        *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		proxyFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deeplink_proxy_fetches_total",
				Help: "Association file fetches per proxy and outcome",
			},
			[]string{"proxy", "outcome"},
		),
		dnsWins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deeplink_dns_wins_total",
				Help: "DNS races won per provider",
			},
			[]string{"provider"},
		),
		dnsFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deeplink_dns_failures_total",
				Help: "DNS races lost by every provider, per error code",
			},
			[]string{"code"},
		),
		workerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deeplink_worker_fallbacks_total",
				Help: "Backend worker fallbacks per outcome",
			},
			[]string{"outcome"},
		),
		validationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deeplink_validation_duration_seconds",
				Help:    "Duration of full validation runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"fallback"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordProxy(proxy, outcome string) {
	if m == nil {
		return
	}
	m.proxyFetches.WithLabelValues(proxy, outcome).Inc()
}

// RecordDNS counts a race won by provider, or lost with code when provider
// is empty.
func (m *Metrics) RecordDNS(provider, code string) {
	if m == nil {
		return
	}
	if provider != "" {
		m.dnsWins.WithLabelValues(provider).Inc()
		return
	}
	m.dnsFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordWorker(outcome string) {
	if m == nil {
		return
	}
	m.workerCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordValidation(d time.Duration, fallback bool) {
	if m == nil {
		return
	}
	label := "false"
	if fallback {
		label = "true"
	}
	m.validationDuration.WithLabelValues(label).Observe(d.Seconds())
}
