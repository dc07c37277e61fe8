package githubapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Budget identifies which API quota a request draws from. GitHub accounts
// the general REST endpoints and the search endpoints separately.
type Budget string

const (
	// BudgetCore is the general REST API quota (about 5000/hour authenticated).
	BudgetCore Budget = "core"
	// BudgetSearch is the search API quota (about 30/minute authenticated).
	BudgetSearch Budget = "search"
)

// RateLimitHeaders contains parsed GitHub rate-limit response headers.
type RateLimitHeaders struct {
	HasRemaining     bool
	Remaining        int
	ResetUnix        int64
	Used             int
	RetryAfter       time.Duration
	SecondaryLimited bool
}

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  string
}

// RateLimitPolicy evaluates rate-limit actions from parsed headers.
type RateLimitPolicy struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
	Now                   func() time.Time
}

// ParseRateLimitHeaders parses rate-limit and retry headers.
func ParseRateLimitHeaders(header http.Header, statusCode int) RateLimitHeaders {
	parsed := RateLimitHeaders{}
	parsed.HasRemaining = header.Get("X-RateLimit-Remaining") != ""
	parsed.Remaining = parseIntHeader(header.Get("X-RateLimit-Remaining"))
	parsed.Used = parseIntHeader(header.Get("X-RateLimit-Used"))
	parsed.ResetUnix = parseInt64Header(header.Get("X-RateLimit-Reset"))

	retryAfterSeconds := parseIntHeader(header.Get("Retry-After"))
	if retryAfterSeconds > 0 {
		parsed.RetryAfter = time.Duration(retryAfterSeconds) * time.Second
	}

	if statusCode == http.StatusTooManyRequests {
		parsed.SecondaryLimited = true
	}
	if statusCode == http.StatusForbidden && parsed.RetryAfter > 0 {
		parsed.SecondaryLimited = true
	}

	return parsed
}

// Evaluate decides whether calls may continue or should pause.
func (p RateLimitPolicy) Evaluate(headers RateLimitHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.SecondaryLimited {
		waitFor := p.SecondaryLimitBackoff
		if headers.RetryAfter > waitFor {
			waitFor = headers.RetryAfter
		}
		return Decision{
			Allow:   false,
			WaitFor: waitFor,
			Reason:  "secondary_limit",
		}
	}

	if !headers.HasRemaining || headers.Remaining >= p.MinRemainingThreshold {
		return Decision{
			Allow:   true,
			WaitFor: 0,
			Reason:  "within_budget",
		}
	}

	resetAt := time.Unix(headers.ResetUnix, 0)
	if !resetAt.After(now) {
		return Decision{
			Allow:   true,
			WaitFor: 0,
			Reason:  "reset_elapsed",
		}
	}

	return Decision{
		Allow:   false,
		WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
		Reason:  "remaining_below_threshold",
	}
}

type quotaState struct {
	known     bool
	remaining int
	resetUnix int64
}

// QuotaTracker records the last observed remaining count and reset time for
// the core and search budgets. Fetch workers observe and consult it
// concurrently; all access is serialized behind one mutex.
type QuotaTracker struct {
	mu     sync.Mutex
	core   quotaState
	search quotaState
}

// NewQuotaTracker creates a tracker with both budgets unknown until the
// first response headers are observed.
func NewQuotaTracker() *QuotaTracker {
	return &QuotaTracker{}
}

// Observe records quota headers against one budget. Responses without an
// X-RateLimit-Remaining header leave the tracked state untouched.
func (t *QuotaTracker) Observe(budget Budget, headers RateLimitHeaders) {
	if t == nil || !headers.HasRemaining {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.stateFor(budget)
	state.known = true
	state.remaining = headers.Remaining
	state.resetUnix = headers.ResetUnix
}

// Snapshot reports the last observed state for one budget. known is false
// until headers for that budget have been seen.
func (t *QuotaTracker) Snapshot(budget Budget) (remaining int, resetAt time.Time, known bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.stateFor(budget)
	return state.remaining, time.Unix(state.resetUnix, 0), state.known
}

// WaitDuration reports how long a caller should suspend before issuing the
// next call against one budget. Zero means the call may proceed. A budget is
// treated as exhausted at remaining <= 1 so the last unit stays available
// for the response that refreshes the counters.
func (t *QuotaTracker) WaitDuration(budget Budget, now time.Time, buffer time.Duration) time.Duration {
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.stateFor(budget)
	if !state.known || state.remaining > 1 {
		return 0
	}

	resetAt := time.Unix(state.resetUnix, 0)
	if !resetAt.After(now) {
		return 0
	}
	return resetAt.Sub(now) + buffer
}

func (t *QuotaTracker) stateFor(budget Budget) *quotaState {
	if budget == BudgetSearch {
		return &t.search
	}
	return &t.core
}

func parseIntHeader(raw string) int {
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64Header(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
