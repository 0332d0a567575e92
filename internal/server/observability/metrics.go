// Package observability holds the Prometheus metrics of the account service.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginInactive           = "inactive"
	LoginInvalidRequest     = "invalid_request"
	LoginError              = "error"
)

type Metrics struct {
	registry      *prometheus.Registry
	RequestsTotal *prometheus.CounterVec
	LoginsTotal   *prometheus.CounterVec
}

// NewMetrics creates a private registry with Go and process collectors plus
// the service counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophaccounts_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophaccounts_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(m.RequestsTotal, m.LoginsTotal)

	return m
}

func (m *Metrics) ObserveRequest(route string, status int) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
