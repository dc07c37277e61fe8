// Package report renders tracking and comparison results as human
// readable text for the CLI.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/gitpulse/gitpulse/internal/metrics"
	"github.com/gitpulse/gitpulse/internal/track"
)

const (
	headerWidth      = 80
	maxRecentCommits = 5
	maxMessageLength = 60
	dateDisplay      = "January 02, 2006"
)

var (
	headerStyle   = color.New(color.Bold)
	positiveStyle = color.New(color.FgGreen)
	negativeStyle = color.New(color.FgRed)
)

// RenderTracking writes a productivity report for one tracking result.
// Organization and personal scopes share the layout but differ in the
// header and per-repository annotations.
func RenderTracking(w io.Writer, result track.TrackingResult) {
	title := "PRODUCTIVITY REPORT"
	if result.Scope == track.ScopePersonal {
		title = "PERSONAL PRODUCTIVITY REPORT"
	}
	writeHeader(w, title)

	fmt.Fprintf(w, "User: %s\n", result.Username)
	if result.Scope == track.ScopePersonal {
		fmt.Fprintln(w, "Scope: Personal Repositories")
	} else {
		fmt.Fprintf(w, "Organization: %s\n", result.Organization)
	}
	fmt.Fprintf(w, "Timeframe: %s to %s\n", result.Window.Since.Format(dateDisplay), result.Window.Until.Format(dateDisplay))
	fmt.Fprintf(w, "Total Commits: %d\n", result.TotalCommits)
	fmt.Fprintf(w, "Repositories with activity: %d\n", len(result.Repositories))

	if result.PullRequests != nil {
		fmt.Fprintf(w, "Pull Requests Created: %d\n", result.PullRequests.Total)
	}
	if result.CodeReviews != nil {
		fmt.Fprintf(w, "Code Reviews Performed: %d\n", result.CodeReviews.Total)
	}
	if result.Issues != nil {
		fmt.Fprintf(w, "Issues Created: %d\n", result.Issues.Total)
	}
	if result.LineStats != nil {
		fmt.Fprintf(w, "Lines Modified: +%d/-%d (%d total)\n",
			result.LineStats.TotalAdditions, result.LineStats.TotalDeletions, result.LineStats.TotalChanges)
	}

	if len(result.Repositories) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Sprint("PER REPOSITORY BREAKDOWN:"))
		fmt.Fprintln(w, strings.Repeat("-", headerWidth))

		for _, repoName := range reposByActivity(result.Repositories) {
			activity := result.Repositories[repoName]
			fmt.Fprintf(w, "\n%s: %d commits%s\n", repoName, activity.CommitCount, repoAnnotations(activity))
			if activity.RepoURL != "" {
				fmt.Fprintf(w, "  Repository: %s\n", activity.RepoURL)
			}
			writeRecentCommits(w, activity.Commits)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", headerWidth))
}

// RenderComparison writes the personal-versus-organization comparison
// report.
func RenderComparison(w io.Writer, result track.ComparisonResult) {
	writeHeader(w, "PERSONAL VS ORGANIZATION PRODUCTIVITY COMPARISON")

	fmt.Fprintf(w, "User: %s\n", result.Username)
	fmt.Fprintf(w, "Organization: %s\n", result.Organization)
	fmt.Fprintf(w, "Timeframe: %s to %s\n\n", result.Window.Since.Format(dateDisplay), result.Window.Until.Format(dateDisplay))

	writeCountDelta(w, "COMMITS COMPARISON:", result.Comparison.TotalCommits)
	writeCountDelta(w, "ACTIVE REPOSITORIES:", result.Comparison.ActiveRepositories)

	if lineStats := result.Comparison.LineStats; lineStats != nil {
		fmt.Fprintln(w, headerStyle.Sprint("LINES OF CODE COMPARISON:"))
		fmt.Fprintln(w, "  Lines Added:")
		fmt.Fprintf(w, "    Organization: +%d\n", lineStats.Organization.TotalAdditions)
		fmt.Fprintf(w, "    Personal:     +%d\n", lineStats.Personal.TotalAdditions)
		fmt.Fprintf(w, "    Difference:   %s\n", signedDelta(lineStats.Difference.TotalAdditions))
		fmt.Fprintln(w, "  Lines Deleted:")
		fmt.Fprintf(w, "    Organization: -%d\n", lineStats.Organization.TotalDeletions)
		fmt.Fprintf(w, "    Personal:     -%d\n", lineStats.Personal.TotalDeletions)
		fmt.Fprintf(w, "    Difference:   %s\n", signedDelta(lineStats.Difference.TotalDeletions))
		fmt.Fprintln(w, "  Total Changes:")
		fmt.Fprintf(w, "    Organization: %d\n", lineStats.Organization.TotalChanges)
		fmt.Fprintf(w, "    Personal:     %d\n", lineStats.Personal.TotalChanges)
		fmt.Fprintf(w, "    Difference:   %s\n", signedDelta(lineStats.Difference.TotalChanges))
		fmt.Fprintln(w)
	}

	if result.Comparison.PullRequests != nil {
		writeCountDelta(w, "PULL REQUESTS:", *result.Comparison.PullRequests)
	}
	if result.Comparison.CodeReviews != nil {
		writeCountDelta(w, "CODE REVIEWS:", *result.Comparison.CodeReviews)
	}
	if result.Comparison.Issues != nil {
		writeCountDelta(w, "ISSUES CREATED:", *result.Comparison.Issues)
	}

	orgCommits := result.Comparison.TotalCommits.Organization
	personalCommits := result.Comparison.TotalCommits.Personal
	if total := orgCommits + personalCommits; total > 0 {
		fmt.Fprintln(w, headerStyle.Sprint("ACTIVITY DISTRIBUTION:"))
		fmt.Fprintf(w, "  Organization: %.1f%% (%d/%d)\n", float64(orgCommits)/float64(total)*100, orgCommits, total)
		fmt.Fprintf(w, "  Personal:     %.1f%% (%d/%d)\n", float64(personalCommits)/float64(total)*100, personalCommits, total)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", headerWidth))
}

// RenderUserComparison writes the multi-user comparison report.
func RenderUserComparison(w io.Writer, comparison metrics.UserComparison) {
	writeHeader(w, "GITHUB USER PRODUCTIVITY COMPARISON REPORT")
	fmt.Fprintf(w, "Generated: %s\n", comparison.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Users: %s\n\n", strings.Join(comparison.Users, ", "))

	fmt.Fprintln(w, headerStyle.Sprint("INDIVIDUAL USER SUMMARIES"))
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, username := range comparison.Users {
		analysis, ok := comparison.ScopeAnalysis[username]
		if !ok {
			continue
		}

		fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(username))
		if analysis.Ratios != nil {
			fmt.Fprintf(w, "  Total Commits: %d\n", analysis.Ratios.TotalCommits)
			fmt.Fprintf(w, "  Organization: %d (%.1f%%)\n", analysis.Ratios.OrgCommits, analysis.Ratios.OrgPercentage)
			fmt.Fprintf(w, "  Personal: %d (%.1f%%)\n", analysis.Ratios.PersonalCommits, analysis.Ratios.PersonalPercentage)
		}
		if analysis.OrgMetrics != nil {
			fmt.Fprintf(w, "  Org Repositories: %d\n", analysis.OrgMetrics.TotalRepositories)
			fmt.Fprintf(w, "  Org Active Days: %d\n", analysis.OrgMetrics.TotalActiveDays)
		}
		if analysis.PersonalMetrics != nil {
			fmt.Fprintf(w, "  Personal Repositories: %d\n", analysis.PersonalMetrics.TotalRepositories)
			fmt.Fprintf(w, "  Personal Active Days: %d\n", analysis.PersonalMetrics.TotalActiveDays)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Sprint("CROSS-USER COMPARISON"))
	fmt.Fprintln(w, strings.Repeat("-", 40))
	if len(comparison.CrossUser.OrgProductivity) > 0 {
		fmt.Fprintln(w, "\nOrganization Productivity:")
		for _, username := range comparison.Users {
			summary, ok := comparison.CrossUser.OrgProductivity[username]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s: %d commits (%.1f/day)\n", username, summary.TotalCommits, summary.PerDay)
		}
	}
	if len(comparison.CrossUser.PersonalProductivity) > 0 {
		fmt.Fprintln(w, "\nPersonal Productivity:")
		for _, username := range comparison.Users {
			summary, ok := comparison.CrossUser.PersonalProductivity[username]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s: %d commits (%.1f/day)\n", username, summary.TotalCommits, summary.PerDay)
		}
	}

	if len(comparison.Insights) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Sprint("KEY INSIGHTS"))
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, insight := range comparison.Insights {
			fmt.Fprintln(w, insight)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", headerWidth))
}

func writeHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", headerWidth))
	fmt.Fprintln(w, headerStyle.Sprint(title))
	fmt.Fprintln(w, strings.Repeat("=", headerWidth))
}

func writeCountDelta(w io.Writer, title string, delta track.CountDelta) {
	fmt.Fprintln(w, headerStyle.Sprint(title))
	fmt.Fprintf(w, "  Organization: %d\n", delta.Organization)
	fmt.Fprintf(w, "  Personal:     %d\n", delta.Personal)
	fmt.Fprintf(w, "  Difference:   %s\n", signedDelta(delta.Difference))
	fmt.Fprintln(w)
}

// signedDelta renders a difference with an explicit sign, colored by
// direction when the terminal supports it.
func signedDelta(value int) string {
	text := fmt.Sprintf("%+d", value)
	switch {
	case value > 0:
		return positiveStyle.Sprint(text)
	case value < 0:
		return negativeStyle.Sprint(text)
	}
	return text
}

func writeRecentCommits(w io.Writer, commits []track.CommitRecord) {
	limit := len(commits)
	if limit > maxRecentCommits {
		limit = maxRecentCommits
	}
	for _, commit := range commits[:limit] {
		fmt.Fprintf(w, "    %s - %s\n", commit.CommittedAt.Format("2006-01-02"), firstLine(commit.Message))
	}
	if len(commits) > maxRecentCommits {
		fmt.Fprintf(w, "    ... and %d more commits\n", len(commits)-maxRecentCommits)
	}
}

// reposByActivity orders repository names by commit count, busiest first,
// with a name tie-break to keep the output stable.
func reposByActivity(repos map[string]track.RepoActivity) []string {
	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		left, right := repos[names[i]], repos[names[j]]
		if left.CommitCount != right.CommitCount {
			return left.CommitCount > right.CommitCount
		}
		return names[i] < names[j]
	})
	return names
}

func repoAnnotations(activity track.RepoActivity) string {
	annotations := ""
	if activity.IsFork {
		annotations += " (fork)"
	}
	if activity.IsPrivate {
		annotations += " (private)"
	}
	return annotations
}

func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		message = message[:idx]
	}
	if len(message) > maxMessageLength {
		message = message[:maxMessageLength]
	}
	return message
}
