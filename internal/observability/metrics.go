// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the application Prometheus metrics.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthLoginsTotal     *prometheus.CounterVec
	RateLimitClients    *prometheus.GaugeVec
}

// NewMetrics creates and registers the application metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteerhub_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volunteerhub_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteerhub_auth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitClients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "volunteerhub_ratelimit_clients",
				Help: "Number of clients currently tracked by each rate limiter",
			},
			[]string{"limiter"},
		),
	}

	reg.MustRegister(m.HTTPRequestsTotal)
	reg.MustRegister(m.HTTPRequestDuration)
	reg.MustRegister(m.AuthLoginsTotal)
	reg.MustRegister(m.RateLimitClients)

	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordLogin counts a login attempt by outcome.
func (m *Metrics) RecordLogin(outcome string) {
	m.AuthLoginsTotal.WithLabelValues(outcome).Inc()
}

// RateLimitGauge returns the client gauge for the named limiter.
func (m *Metrics) RateLimitGauge(limiter string) prometheus.Gauge {
	return m.RateLimitClients.WithLabelValues(limiter)
}
