package app

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gitpulse/gitpulse/internal/githubapi"
)

func TestMetricsObservations(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObserveRequest(githubapi.BudgetCore)
	m.ObserveRequest(githubapi.BudgetCore)
	m.ObserveRequest(githubapi.BudgetSearch)
	m.OnWait(githubapi.BudgetCore, 30*time.Second, "quota_exhausted")
	m.ObserveTrackingRun("personal", 2)

	if got := testutil.ToFloat64(m.APIRequests.WithLabelValues("core")); got != 2 {
		t.Fatalf("core requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.APIRequests.WithLabelValues("search")); got != 1 {
		t.Fatalf("search requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RateLimitWaits.WithLabelValues("quota_exhausted")); got != 1 {
		t.Fatalf("rate limit waits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RateLimitWaitSeconds); got != 30 {
		t.Fatalf("rate limit wait seconds = %v, want 30", got)
	}
	if got := testutil.ToFloat64(m.TrackingRuns.WithLabelValues("personal")); got != 1 {
		t.Fatalf("tracking runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommitsFetched); got != 2 {
		t.Fatalf("commits fetched = %v, want 2", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveRequest(githubapi.BudgetCore)
	m.OnWait(githubapi.BudgetCore, time.Second, "secondary_limit")
	m.ObserveTrackingRun("organization", 1)
}
