// Package track aggregates a user's contribution activity across the
// repositories of an organization or their personal account.
package track

import "time"

// Window is the resolved tracking time window.
type Window struct {
	Since  time.Time `json:"since"`
	Until  time.Time `json:"until"`
	Preset string    `json:"preset"`
}

// Days reports the inclusive calendar span of the window.
func (w Window) Days() int {
	if w.Since.IsZero() || w.Until.IsZero() || w.Until.Before(w.Since) {
		return 0
	}
	return int(w.Until.Sub(w.Since).Hours()/24) + 1
}

// CommitStats holds line-change statistics for one commit.
type CommitStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// CommitRecord is one deduplicated commit attributed to the tracked user.
// Branch names the branch the commit was first observed on; a commit
// reachable from several branches keeps its first observer.
type CommitRecord struct {
	SHA          string       `json:"sha"`
	Branch       string       `json:"branch"`
	Author       string       `json:"author,omitempty"`
	AuthorName   string       `json:"author_name,omitempty"`
	AuthorEmail  string       `json:"author_email,omitempty"`
	Message      string       `json:"message,omitempty"`
	CommittedAt  time.Time    `json:"committed_at"`
	Stats        *CommitStats `json:"stats,omitempty"`
	FilesChanged int          `json:"files_changed,omitempty"`
}

// RepoActivity is the tracked activity in one repository. Repositories
// without commits in the window are omitted from results entirely.
type RepoActivity struct {
	CommitCount  int            `json:"commit_count"`
	Commits      []CommitRecord `json:"commits"`
	RepoURL      string         `json:"repo_url,omitempty"`
	IsFork       bool           `json:"is_fork,omitempty"`
	IsPrivate    bool           `json:"is_private,omitempty"`
	LinesAdded   int            `json:"lines_added,omitempty"`
	LinesDeleted int            `json:"lines_deleted,omitempty"`
	LinesChanged int            `json:"lines_changed,omitempty"`
}

// LineStats aggregates line changes across all tracked repositories.
type LineStats struct {
	TotalAdditions int `json:"total_additions"`
	TotalDeletions int `json:"total_deletions"`
	TotalChanges   int `json:"total_changes"`
}

// Facet is one optional activity facet resolved through the search API.
type Facet struct {
	Total int      `json:"total"`
	Items []string `json:"items,omitempty"`
}

// Scope identifies whose repositories a tracking run covered.
type Scope string

const (
	// ScopeOrganization covers the repositories of one organization.
	ScopeOrganization Scope = "organization"
	// ScopePersonal covers the repositories owned by the user.
	ScopePersonal Scope = "personal"
)

// TrackingResult is the aggregate of one tracking run.
type TrackingResult struct {
	Username     string                  `json:"username"`
	Organization string                  `json:"organization,omitempty"`
	Scope        Scope                   `json:"scope"`
	Window       Window                  `json:"timeframe"`
	TotalCommits int                     `json:"total_commits"`
	Repositories map[string]RepoActivity `json:"repositories"`
	LineStats    *LineStats              `json:"line_stats,omitempty"`
	PullRequests *Facet                  `json:"pull_requests,omitempty"`
	CodeReviews  *Facet                  `json:"code_reviews,omitempty"`
	Issues       *Facet                  `json:"issues,omitempty"`
}

// CountDelta compares one count between the organization and personal scopes.
// Difference is always personal minus organization.
type CountDelta struct {
	Organization int `json:"organization"`
	Personal     int `json:"personal"`
	Difference   int `json:"difference"`
}

// LineStatsDelta compares line statistics between scopes.
type LineStatsDelta struct {
	Organization LineStats `json:"organization"`
	Personal     LineStats `json:"personal"`
	Difference   LineStats `json:"difference"`
}

// ComparisonBlock holds the derived scope deltas of a comparison run.
type ComparisonBlock struct {
	TotalCommits       CountDelta      `json:"total_commits"`
	ActiveRepositories CountDelta      `json:"active_repositories"`
	LineStats          *LineStatsDelta `json:"line_stats,omitempty"`
	PullRequests       *CountDelta     `json:"pull_requests,omitempty"`
	CodeReviews        *CountDelta     `json:"code_reviews,omitempty"`
	Issues             *CountDelta     `json:"issues,omitempty"`
}

// ComparisonResult pairs an organization run with a personal run for one user.
type ComparisonResult struct {
	Username     string          `json:"username"`
	Organization string          `json:"organization"`
	Window       Window          `json:"timeframe"`
	OrgResult    TrackingResult  `json:"org_result"`
	Personal     TrackingResult  `json:"personal_result"`
	Comparison   ComparisonBlock `json:"comparison"`
}

func newCountDelta(org, personal int) CountDelta {
	return CountDelta{
		Organization: org,
		Personal:     personal,
		Difference:   personal - org,
	}
}
