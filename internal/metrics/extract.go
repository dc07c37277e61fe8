// Package metrics derives normalized productivity metrics from tracking
// aggregates and compares them across users.
package metrics

import (
	"sort"

	"github.com/gitpulse/gitpulse/internal/track"
)

const dateLayout = "2006-01-02"

// Metrics is the normalized per-user metric set derived from one tracking result.
type Metrics struct {
	Username           string         `json:"username"`
	Window             track.Window   `json:"timeframe"`
	TotalCommits       int            `json:"total_commits"`
	TotalRepositories  int            `json:"total_repositories"`
	CommitsByRepo      map[string]int `json:"commits_by_repo"`
	CommitsByDate      map[string]int `json:"commits_by_date"`
	ActiveDays         []string       `json:"active_days"`
	TotalActiveDays    int            `json:"total_active_days"`
	TotalLinesAdded    int            `json:"total_lines_added"`
	TotalLinesDeleted  int            `json:"total_lines_deleted"`
	TotalLinesChanged  int            `json:"total_lines_changed"`
	AvgCommitsPerDay   float64        `json:"avg_commits_per_day"`
	AvgCommitsPerRepo  float64        `json:"avg_commits_per_repo"`
}

// Extract derives normalized metrics from one tracking result. The per-day
// average is computed over the window's calendar span; when the window has
// no usable span it falls back to the count of active days.
func Extract(result track.TrackingResult) Metrics {
	extracted := Metrics{
		Username:          result.Username,
		Window:            result.Window,
		TotalCommits:      result.TotalCommits,
		TotalRepositories: len(result.Repositories),
		CommitsByRepo:     make(map[string]int, len(result.Repositories)),
		CommitsByDate:     map[string]int{},
	}

	for repoName, activity := range result.Repositories {
		extracted.CommitsByRepo[repoName] = activity.CommitCount
		extracted.TotalLinesAdded += activity.LinesAdded
		extracted.TotalLinesDeleted += activity.LinesDeleted
		extracted.TotalLinesChanged += activity.LinesChanged

		for _, commit := range activity.Commits {
			if commit.CommittedAt.IsZero() {
				continue
			}
			day := commit.CommittedAt.UTC().Format(dateLayout)
			extracted.CommitsByDate[day]++
		}
	}

	extracted.ActiveDays = make([]string, 0, len(extracted.CommitsByDate))
	for day := range extracted.CommitsByDate {
		extracted.ActiveDays = append(extracted.ActiveDays, day)
	}
	sort.Strings(extracted.ActiveDays)
	extracted.TotalActiveDays = len(extracted.ActiveDays)

	if days := result.Window.Days(); days > 0 {
		extracted.AvgCommitsPerDay = float64(extracted.TotalCommits) / float64(days)
	} else {
		extracted.AvgCommitsPerDay = float64(extracted.TotalCommits) / float64(maxInt(extracted.TotalActiveDays, 1))
	}
	extracted.AvgCommitsPerRepo = float64(extracted.TotalCommits) / float64(maxInt(extracted.TotalRepositories, 1))

	return extracted
}

// ScopeRatio splits one user's commit volume between organization and
// personal scopes. When both scopes are empty, both percentages are zero.
// Otherwise the percentages sum to 100.
type ScopeRatio struct {
	OrgCommits         int     `json:"org_commits"`
	PersonalCommits    int     `json:"personal_commits"`
	TotalCommits       int     `json:"total_commits"`
	OrgPercentage      float64 `json:"org_percentage"`
	PersonalPercentage float64 `json:"personal_percentage"`
}

// AnalyzeScopeRatio computes the org/personal commit split.
func AnalyzeScopeRatio(orgCommits, personalCommits int) ScopeRatio {
	ratio := ScopeRatio{
		OrgCommits:      orgCommits,
		PersonalCommits: personalCommits,
		TotalCommits:    orgCommits + personalCommits,
	}
	if ratio.TotalCommits > 0 {
		ratio.OrgPercentage = float64(orgCommits) / float64(ratio.TotalCommits) * 100
		ratio.PersonalPercentage = float64(personalCommits) / float64(ratio.TotalCommits) * 100
	}
	return ratio
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
