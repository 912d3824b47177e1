// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for LoginAttempts and Registrations.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalid            = "invalid"
	OutcomeDuplicate          = "duplicate"
	OutcomeError              = "error"
)

// Metrics contains the application's Prometheus metrics.
type Metrics struct {
	LoginAttempts *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	SessionsSwept prometheus.Counter
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	DemoRequests  *RequestCounter
}

// RequestCounter counts requests and exposes the running total both to
// handlers and as a Prometheus counter.
type RequestCounter struct {
	n atomic.Int64
}

// Inc adds one and returns the new total.
func (c *RequestCounter) Inc() int64 {
	return c.n.Add(1)
}

// Value returns the current total.
func (c *RequestCounter) Value() int64 {
	return c.n.Load()
}

// NewMetrics creates the application metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_registrations_total",
				Help: "Registration submissions by outcome",
			},
			[]string{"outcome"},
		),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_sessions_swept_total",
			Help: "Expired sessions removed by the cleanup sweeper",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DemoRequests: &RequestCounter{},
	}

	demo := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "campus_demo_requests_total",
		Help: "Requests served by the demo page",
	}, func() float64 { return float64(m.DemoRequests.Value()) })

	reg.MustRegister(m.LoginAttempts, m.Registrations, m.SessionsSwept, m.HTTPRequests, m.HTTPDuration, demo)
	return m
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordSweep adds a sweeper pass's removed-row count.
func (m *Metrics) RecordSweep(removed int64) {
	if removed > 0 {
		m.SessionsSwept.Add(float64(removed))
	}
}
