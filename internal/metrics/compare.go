package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/gitpulse/gitpulse/internal/track"
)

// UserData bundles the persisted aggregates available for one user.
type UserData struct {
	Raw        *track.TrackingResult
	Personal   *track.TrackingResult
	Comparison *track.ComparisonResult
}

// ScopeAnalysis is the per-user organization/personal breakdown.
type ScopeAnalysis struct {
	Username        string      `json:"username"`
	HasOrgData      bool        `json:"has_org_data"`
	HasPersonalData bool        `json:"has_personal_data"`
	OrgMetrics      *Metrics    `json:"org_metrics,omitempty"`
	PersonalMetrics *Metrics    `json:"personal_metrics,omitempty"`
	Ratios          *ScopeRatio `json:"ratios,omitempty"`
}

// ProductivitySummary is one user's row in a cross-user productivity table.
type ProductivitySummary struct {
	TotalCommits   int     `json:"total_commits"`
	PerDay         float64 `json:"per_day"`
	PerRepo        float64 `json:"per_repo"`
	Repositories   int     `json:"repositories"`
	MostActiveRepo string  `json:"most_active_repo,omitempty"`
	ActiveDays     int     `json:"active_days"`
	LinesAdded     int     `json:"lines_added"`
	LinesDeleted   int     `json:"lines_deleted"`
	LinesChanged   int     `json:"lines_changed"`
}

// CombinedSummary is one user's combined-volume row.
type CombinedSummary struct {
	TotalCommits       int     `json:"total_commits"`
	OrgPercentage      float64 `json:"org_percentage"`
	PersonalPercentage float64 `json:"personal_percentage"`
}

// CrossUser holds the per-scope cross-user comparison tables.
type CrossUser struct {
	OrgProductivity      map[string]ProductivitySummary `json:"org_productivity"`
	PersonalProductivity map[string]ProductivitySummary `json:"personal_productivity"`
	Combined             map[string]CombinedSummary     `json:"combined_productivity"`
}

// UserComparison is the full multi-user comparison output.
type UserComparison struct {
	Users         []string                 `json:"users"`
	GeneratedAt   time.Time                `json:"generated_at"`
	Individual    map[string]Metrics       `json:"individual_metrics"`
	ScopeAnalysis map[string]ScopeAnalysis `json:"scope_analysis"`
	CrossUser     CrossUser                `json:"cross_user_comparison"`
	Insights      []string                 `json:"insights"`
}

// CompareUsers compares the loaded aggregates of multiple users. Users
// without any data are kept in the user list but contribute no rows.
func CompareUsers(users []string, data map[string]UserData, now time.Time) UserComparison {
	comparison := UserComparison{
		Users:         users,
		GeneratedAt:   now,
		Individual:    map[string]Metrics{},
		ScopeAnalysis: map[string]ScopeAnalysis{},
		CrossUser: CrossUser{
			OrgProductivity:      map[string]ProductivitySummary{},
			PersonalProductivity: map[string]ProductivitySummary{},
			Combined:             map[string]CombinedSummary{},
		},
	}

	for _, username := range users {
		userData, ok := data[username]
		if !ok {
			continue
		}

		if individual, ok := individualMetrics(userData); ok {
			comparison.Individual[username] = individual
		}
		comparison.ScopeAnalysis[username] = analyzeScopes(username, userData)
	}

	for _, username := range users {
		if individual, ok := comparison.Individual[username]; ok {
			comparison.CrossUser.OrgProductivity[username] = summarize(individual)
		}

		analysis := comparison.ScopeAnalysis[username]
		if analysis.PersonalMetrics != nil {
			comparison.CrossUser.PersonalProductivity[username] = summarize(*analysis.PersonalMetrics)
		}
		if analysis.Ratios != nil {
			comparison.CrossUser.Combined[username] = CombinedSummary{
				TotalCommits:       analysis.Ratios.TotalCommits,
				OrgPercentage:      analysis.Ratios.OrgPercentage,
				PersonalPercentage: analysis.Ratios.PersonalPercentage,
			}
		}
	}

	comparison.Insights = generateInsights(comparison)
	return comparison
}

// individualMetrics picks the best available source for a user's individual
// metrics: raw organization data first, then the organization half of a
// comparison, then personal data.
func individualMetrics(data UserData) (Metrics, bool) {
	switch {
	case data.Raw != nil:
		return Extract(*data.Raw), true
	case data.Comparison != nil:
		return Extract(data.Comparison.OrgResult), true
	case data.Personal != nil:
		return Extract(*data.Personal), true
	}
	return Metrics{}, false
}

func analyzeScopes(username string, data UserData) ScopeAnalysis {
	analysis := ScopeAnalysis{Username: username}

	if data.Comparison != nil {
		orgMetrics := Extract(data.Comparison.OrgResult)
		personalMetrics := Extract(data.Comparison.Personal)
		ratios := AnalyzeScopeRatio(
			data.Comparison.Comparison.TotalCommits.Organization,
			data.Comparison.Comparison.TotalCommits.Personal,
		)
		analysis.HasOrgData = true
		analysis.HasPersonalData = true
		analysis.OrgMetrics = &orgMetrics
		analysis.PersonalMetrics = &personalMetrics
		analysis.Ratios = &ratios
		return analysis
	}

	if data.Raw != nil {
		orgMetrics := Extract(*data.Raw)
		analysis.HasOrgData = true
		analysis.OrgMetrics = &orgMetrics
	}
	if data.Personal != nil {
		personalMetrics := Extract(*data.Personal)
		analysis.HasPersonalData = true
		analysis.PersonalMetrics = &personalMetrics
	}
	if analysis.OrgMetrics != nil && analysis.PersonalMetrics != nil {
		ratios := AnalyzeScopeRatio(analysis.OrgMetrics.TotalCommits, analysis.PersonalMetrics.TotalCommits)
		analysis.Ratios = &ratios
	}
	return analysis
}

func summarize(m Metrics) ProductivitySummary {
	return ProductivitySummary{
		TotalCommits:   m.TotalCommits,
		PerDay:         m.AvgCommitsPerDay,
		PerRepo:        m.AvgCommitsPerRepo,
		Repositories:   m.TotalRepositories,
		MostActiveRepo: mostActiveRepo(m.CommitsByRepo),
		ActiveDays:     m.TotalActiveDays,
		LinesAdded:     m.TotalLinesAdded,
		LinesDeleted:   m.TotalLinesDeleted,
		LinesChanged:   m.TotalLinesChanged,
	}
}

// mostActiveRepo picks the repository with the highest commit count, with a
// name tie-break so the result is stable across runs.
func mostActiveRepo(commitsByRepo map[string]int) string {
	best := ""
	bestCount := -1
	names := make([]string, 0, len(commitsByRepo))
	for name := range commitsByRepo {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if commitsByRepo[name] > bestCount {
			best = name
			bestCount = commitsByRepo[name]
		}
	}
	return best
}

func generateInsights(comparison UserComparison) []string {
	var insights []string

	balanceLines := make([]string, 0, len(comparison.Users))
	for _, username := range comparison.Users {
		analysis, ok := comparison.ScopeAnalysis[username]
		if !ok || analysis.Ratios == nil {
			continue
		}
		balanceLines = append(balanceLines, fmt.Sprintf("  - %s: %.1f%% org, %.1f%% personal",
			username, analysis.Ratios.OrgPercentage, analysis.Ratios.PersonalPercentage))
	}
	if len(balanceLines) > 0 {
		insights = append(insights, "Personal vs Organization Work Balance:")
		insights = append(insights, balanceLines...)
	}

	if leader, commits, ok := productivityLeader(comparison); ok {
		insights = append(insights, "Organization Productivity Leader:")
		insights = append(insights, fmt.Sprintf("  - %s leads with %d commits", leader, commits))
	}

	for _, username := range comparison.Users {
		analysis, ok := comparison.ScopeAnalysis[username]
		if !ok || analysis.OrgMetrics == nil || analysis.PersonalMetrics == nil {
			continue
		}
		insights = append(insights,
			fmt.Sprintf("%s Repository Engagement:", username),
			fmt.Sprintf("  - Organization: %d repos", analysis.OrgMetrics.TotalRepositories),
			fmt.Sprintf("  - Personal: %d repos", analysis.PersonalMetrics.TotalRepositories),
		)
	}

	return insights
}

// productivityLeader reports the user with the most organization commits.
// A leader is only declared when at least two users have metrics.
func productivityLeader(comparison UserComparison) (string, int, bool) {
	type row struct {
		user    string
		commits int
	}
	rows := make([]row, 0, len(comparison.CrossUser.OrgProductivity))
	for _, username := range comparison.Users {
		summary, ok := comparison.CrossUser.OrgProductivity[username]
		if !ok {
			continue
		}
		rows = append(rows, row{user: username, commits: summary.TotalCommits})
	}
	if len(rows) < 2 {
		return "", 0, false
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].commits > rows[j].commits
	})
	return rows[0].user, rows[0].commits, true
}
