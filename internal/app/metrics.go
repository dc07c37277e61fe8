// Package app wires the debug HTTP listener and process-level metrics.
package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gitpulse/gitpulse/internal/githubapi"
)

// Metrics holds the Prometheus instruments exposed on the debug listener.
type Metrics struct {
	APIRequests          *prometheus.CounterVec
	RateLimitWaits       *prometheus.CounterVec
	RateLimitWaitSeconds prometheus.Counter
	CommitsFetched       prometheus.Counter
	TrackingRuns         *prometheus.CounterVec
}

// NewMetrics registers the application instruments with a registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gitpulse_api_requests_total",
			Help: "GitHub API requests issued, by quota budget.",
		}, []string{"budget"}),
		RateLimitWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gitpulse_rate_limit_waits_total",
			Help: "Times a request waited on rate limiting, by reason.",
		}, []string{"reason"}),
		RateLimitWaitSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitpulse_rate_limit_wait_seconds_total",
			Help: "Total seconds spent waiting on rate limiting.",
		}),
		CommitsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitpulse_commits_fetched_total",
			Help: "Deduplicated commits collected across tracking runs.",
		}),
		TrackingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gitpulse_tracking_runs_total",
			Help: "Completed tracking runs, by scope.",
		}, []string{"scope"}),
	}
}

// OnWait records one rate-limit pause. It matches the request client's
// wait hook signature.
func (m *Metrics) OnWait(_ githubapi.Budget, wait time.Duration, reason string) {
	if m == nil {
		return
	}
	m.RateLimitWaits.WithLabelValues(reason).Inc()
	m.RateLimitWaitSeconds.Add(wait.Seconds())
}

// ObserveRequest records one issued API request against its budget.
func (m *Metrics) ObserveRequest(budget githubapi.Budget) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(string(budget)).Inc()
}

// ObserveTrackingRun records one completed tracking run and the commits
// it collected.
func (m *Metrics) ObserveTrackingRun(scope string, commits int) {
	if m == nil {
		return
	}
	m.TrackingRuns.WithLabelValues(scope).Inc()
	m.CommitsFetched.Add(float64(commits))
}
