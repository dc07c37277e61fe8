package githubapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gitpulse/gitpulse/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RetryConfig configures GitHub client retry behavior.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallMetadata reports execution metadata for a client call.
type CallMetadata struct {
	Attempts        int
	QuotaWaited     time.Duration
	LastRateHeaders RateLimitHeaders
	LastDecision    Decision
}

// Client wraps GitHub HTTP requests with retry and rate-limit controls.
// Quota state observed from responses feeds the shared tracker so that
// concurrent callers suspend before exhausting a budget.
type Client struct {
	doer       HTTPDoer
	retry      RetryConfig
	ratePolicy RateLimitPolicy
	tracker    *QuotaTracker
	// Sleep and Now are injected for testability.
	Sleep func(duration time.Duration)
	Now   func() time.Time
	// OnWait, when set, is notified of every rate-limit suspension.
	OnWait func(budget Budget, waitFor time.Duration, reason string)
	// OnRequest, when set, is notified of every attempt sent upstream.
	OnRequest func(budget Budget)
}

// NewClient creates a GitHub API client wrapper.
func NewClient(doer HTTPDoer, retry RetryConfig, ratePolicy RateLimitPolicy, tracker *QuotaTracker) *Client {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if tracker == nil {
		tracker = NewQuotaTracker()
	}
	return &Client{
		doer:       doer,
		retry:      retry,
		ratePolicy: ratePolicy,
		tracker:    tracker,
		Sleep:      time.Sleep,
		Now:        time.Now,
	}
}

// Tracker returns the quota tracker shared by all calls through this client.
func (c *Client) Tracker() *QuotaTracker {
	return c.tracker
}

// Do executes a request against the core budget.
func (c *Client) Do(req *http.Request) (*http.Response, CallMetadata, error) {
	return c.DoBudget(req, BudgetCore)
}

// DoBudget executes a request with retry and rate-limit awareness, charging
// the given quota budget. Transport errors are returned only after retries
// are exhausted; non-2xx statuses other than 429/5xx are returned as-is for
// the caller to classify.
func (c *Client) DoBudget(req *http.Request, budget Budget) (*http.Response, CallMetadata, error) {
	if req == nil {
		return nil, CallMetadata{}, fmt.Errorf("request is nil")
	}

	ctx := req.Context()
	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer("gitpulse/internal/githubapi").Start(
			ctx,
			"githubapi.client.do",
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.path", req.URL.EscapedPath()),
				attribute.String("github.budget", string(budget)),
				attribute.Int("github.max_attempts", c.retry.MaxAttempts),
			),
		)
		defer span.End()
	}

	metadata := CallMetadata{}
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		metadata.Attempts = attempt

		if waitFor := c.tracker.WaitDuration(budget, c.Now(), c.ratePolicy.MinResetBuffer); waitFor > 0 {
			metadata.QuotaWaited += waitFor
			c.notifyWait(budget, waitFor, "quota_exhausted")
			if span != nil {
				span.AddEvent("quota_suspended", trace.WithAttributes(
					attribute.String("github.budget", string(budget)),
					attribute.Int64("github.wait_ms", waitFor.Milliseconds()),
				))
			}
			c.Sleep(waitFor)
		}

		nextReq := req.Clone(ctx)
		if c.OnRequest != nil {
			c.OnRequest(budget)
		}
		resp, err := c.doer.Do(nextReq)
		if err != nil {
			if span != nil {
				span.RecordError(err)
				span.AddEvent("attempt_failed", trace.WithAttributes(
					attribute.Int("github.attempt", attempt),
				))
			}
			if attempt == c.retry.MaxAttempts {
				if span != nil {
					span.SetStatus(codes.Error, err.Error())
				}
				return nil, metadata, err
			}
			c.Sleep(backoffForAttempt(c.retry, attempt))
			continue
		}

		headers := ParseRateLimitHeaders(resp.Header, resp.StatusCode)
		metadata.LastRateHeaders = headers
		c.tracker.Observe(budget, headers)
		decision := c.ratePolicy.Evaluate(headers)
		metadata.LastDecision = decision

		if span != nil {
			span.AddEvent("attempt_completed", trace.WithAttributes(
				attribute.Int("github.attempt", attempt),
				attribute.Int("http.status_code", resp.StatusCode),
				attribute.Int("github.rate_limit_remaining", headers.Remaining),
				attribute.Int64("github.rate_limit_reset_unix", headers.ResetUnix),
				attribute.Bool("github.rate_limit_allow", decision.Allow),
				attribute.String("github.rate_limit_reason", decision.Reason),
			))
		}

		if !decision.Allow {
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			if attempt == c.retry.MaxAttempts {
				if span != nil {
					span.SetStatus(codes.Error, "rate-limited")
				}
				return resp, metadata, nil
			}
			c.notifyWait(budget, decision.WaitFor, decision.Reason)
			c.Sleep(decision.WaitFor)
			continue
		}

		if isTransientStatus(resp.StatusCode) {
			if attempt == c.retry.MaxAttempts {
				if span != nil {
					span.SetStatus(codes.Error, fmt.Sprintf("transient status %d", resp.StatusCode))
				}
				return resp, metadata, nil
			}
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			c.Sleep(backoffForAttempt(c.retry, attempt))
			continue
		}

		if span != nil {
			span.SetStatus(codes.Ok, "request completed")
		}
		return resp, metadata, nil
	}

	if span != nil {
		span.SetStatus(codes.Error, "request attempts exhausted")
	}
	return nil, metadata, fmt.Errorf("request attempts exhausted")
}

func (c *Client) notifyWait(budget Budget, waitFor time.Duration, reason string) {
	if c.OnWait == nil || waitFor <= 0 {
		return
	}
	c.OnWait(budget, waitFor, reason)
}

func isTransientStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode <= 599
}

func backoffForAttempt(retry RetryConfig, attempt int) time.Duration {
	backoff := retry.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
			return retry.MaxBackoff
		}
	}
	if retry.MaxBackoff > 0 && backoff > retry.MaxBackoff {
		return retry.MaxBackoff
	}
	return backoff
}
