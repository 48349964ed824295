// Package metrics exposes Prometheus collectors for HTTP traffic and lending activity.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lending outcomes recorded by LendingEvents
const (
	OutcomeRequested   = "requested"
	OutcomeApproved    = "approved"
	OutcomeReturned    = "returned"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Lending
	LendingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_lending_events_total",
			Help: "Book request lifecycle events by outcome",
		},
		[]string{"outcome"},
	)
	AccountsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "library_accounts_registered_total",
			Help: "Student accounts registered",
		},
	)

	registerOnce sync.Once
)

// Init registers every collector with the default registry; safe to call more than once
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(RequestLatency)
		prometheus.MustRegister(RateLimited)
		prometheus.MustRegister(LendingEvents)
		prometheus.MustRegister(AccountsRegistered)
	})
}

// Handler serves /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// Lending counts one lending event
func Lending(outcome string) {
	LendingEvents.WithLabelValues(outcome).Inc()
}
