package track

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func orgTrackerHandler(t *testing.T) doerFunc {
	t.Helper()

	return func(req *http.Request) (*http.Response, error) {
		path := req.URL.Path
		switch {
		case strings.HasSuffix(path, "/orgs/acme/repos"):
			return jsonResponse(http.StatusOK, `[
				{"name":"alpha","full_name":"acme/alpha","owner":{"login":"acme"},"html_url":"https://github.com/acme/alpha","default_branch":"main"},
				{"name":"beta","full_name":"acme/beta","owner":{"login":"acme"},"html_url":"https://github.com/acme/beta","default_branch":"main"}
			]`), nil
		case strings.HasSuffix(path, "/repos/acme/alpha/branches"):
			return jsonResponse(http.StatusOK, `[{"name":"main","commit":{"sha":"a1"}}]`), nil
		case strings.HasSuffix(path, "/repos/acme/beta/branches"):
			return jsonResponse(http.StatusOK, `[{"name":"main","commit":{"sha":"z0"}}]`), nil
		case strings.Contains(path, "/repos/acme/alpha/commits/a1"):
			return jsonResponse(http.StatusOK, `{"sha":"a1","stats":{"additions":5,"deletions":2,"total":7},"files":[{"filename":"main.go"}]}`), nil
		case strings.Contains(path, "/repos/acme/alpha/commits/b2"):
			return jsonResponse(http.StatusInternalServerError, `{"message":"boom"}`), nil
		case strings.HasSuffix(path, "/repos/acme/alpha/commits"):
			return jsonResponse(http.StatusOK, `[
				{"sha":"a1","author":{"login":"octo"},"commit":{"author":{"date":"2025-02-03T10:00:00Z","name":"Octo","email":"octo@example.com"},"message":"one"}},
				{"sha":"b2","author":{"login":"octo"},"commit":{"author":{"date":"2025-02-05T10:00:00Z","name":"Octo","email":"octo@example.com"},"message":"two"}}
			]`), nil
		case strings.HasSuffix(path, "/repos/acme/beta/commits"):
			return jsonResponse(http.StatusOK, `[]`), nil
		case strings.HasSuffix(path, "/search/issues"):
			return jsonResponse(http.StatusOK, `{
				"total_count":1,
				"items":[{"number":7,"title":"Add retry","state":"closed","user":{"login":"octo"},"created_at":"2025-02-02T09:00:00Z"}]
			}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{"message":"not found"}`), nil
	}
}

func TestTrackOrgOmitsEmptyRepositories(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(newTestDataClient(t, orgTrackerHandler(t)), zap.NewNop(), 3, 5)
	result, err := tracker.TrackOrg(context.Background(), "acme", "octo", testWindow(), Options{})
	if err != nil {
		t.Fatalf("TrackOrg() unexpected error: %v", err)
	}

	if result.Username != "octo" || result.Organization != "acme" || result.Scope != ScopeOrganization {
		t.Fatalf("result identity = %q/%q/%q", result.Username, result.Organization, result.Scope)
	}
	if result.TotalCommits != 2 {
		t.Fatalf("TotalCommits = %d, want 2", result.TotalCommits)
	}
	if len(result.Repositories) != 1 {
		t.Fatalf("len(Repositories) = %d, want 1 (empty repos omitted)", len(result.Repositories))
	}
	activity, ok := result.Repositories["alpha"]
	if !ok {
		t.Fatalf("Repositories missing alpha: %v", result.Repositories)
	}
	if activity.CommitCount != 2 || activity.RepoURL != "https://github.com/acme/alpha" {
		t.Fatalf("activity = %+v", activity)
	}
	if result.LineStats != nil {
		t.Fatalf("LineStats = %+v, want nil without include-lines", result.LineStats)
	}
	if result.PullRequests != nil || result.CodeReviews != nil || result.Issues != nil {
		t.Fatalf("facets should be nil when not requested")
	}
}

func TestTrackOrgWithLineStats(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(newTestDataClient(t, orgTrackerHandler(t)), zap.NewNop(), 3, 5)
	result, err := tracker.TrackOrg(context.Background(), "acme", "octo", testWindow(), Options{IncludeLines: true})
	if err != nil {
		t.Fatalf("TrackOrg() unexpected error: %v", err)
	}

	activity := result.Repositories["alpha"]
	// b2's detail lookup fails, so only a1 contributes lines.
	if activity.LinesAdded != 5 || activity.LinesDeleted != 2 || activity.LinesChanged != 7 {
		t.Fatalf("activity lines = +%d/-%d/%d, want +5/-2/7", activity.LinesAdded, activity.LinesDeleted, activity.LinesChanged)
	}
	if result.LineStats == nil {
		t.Fatalf("LineStats = nil, want totals")
	}
	if result.LineStats.TotalAdditions != 5 || result.LineStats.TotalDeletions != 2 || result.LineStats.TotalChanges != 7 {
		t.Fatalf("LineStats = %+v", result.LineStats)
	}

	for _, commit := range activity.Commits {
		if commit.Stats == nil {
			t.Fatalf("commit %s has nil stats after enrichment", commit.SHA)
		}
	}
}

func TestTrackOrgFacets(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(newTestDataClient(t, orgTrackerHandler(t)), zap.NewNop(), 3, 5)
	result, err := tracker.TrackOrg(context.Background(), "acme", "octo", testWindow(), Options{
		IncludePRs:     true,
		IncludeReviews: true,
		IncludeIssues:  true,
	})
	if err != nil {
		t.Fatalf("TrackOrg() unexpected error: %v", err)
	}

	if result.PullRequests == nil || result.PullRequests.Total != 1 {
		t.Fatalf("PullRequests = %+v, want total 1", result.PullRequests)
	}
	if len(result.PullRequests.Items) != 1 || result.PullRequests.Items[0] != "#7 Add retry" {
		t.Fatalf("PullRequests.Items = %v", result.PullRequests.Items)
	}
	if result.CodeReviews == nil || result.CodeReviews.Total != 1 {
		t.Fatalf("CodeReviews = %+v, want total 1", result.CodeReviews)
	}
	if result.Issues == nil || result.Issues.Total != 1 {
		t.Fatalf("Issues = %+v, want total 1", result.Issues)
	}
}

func TestTrackOrgFacetDegradesIndependently(t *testing.T) {
	t.Parallel()

	base := orgTrackerHandler(t)
	handler := doerFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/search/issues") {
			return jsonResponse(http.StatusForbidden, `{"message":"search disabled"}`), nil
		}
		return base(req)
	})

	tracker := NewTracker(newTestDataClient(t, handler), zap.NewNop(), 3, 5)
	result, err := tracker.TrackOrg(context.Background(), "acme", "octo", testWindow(), Options{IncludePRs: true})
	if err != nil {
		t.Fatalf("TrackOrg() unexpected error: %v", err)
	}

	// The commit aggregation must survive a failing facet.
	if result.TotalCommits != 2 {
		t.Fatalf("TotalCommits = %d, want 2", result.TotalCommits)
	}
	if result.PullRequests == nil || result.PullRequests.Total != 0 {
		t.Fatalf("PullRequests = %+v, want empty facet", result.PullRequests)
	}
}

func TestTrackOrgAppliesIgnoreFile(t *testing.T) {
	t.Parallel()

	ignorePath := filepath.Join(t.TempDir(), ".repoignore")
	if err := os.WriteFile(ignorePath, []byte("alpha\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() unexpected error: %v", err)
	}

	tracker := NewTracker(newTestDataClient(t, orgTrackerHandler(t)), zap.NewNop(), 3, 5)
	result, err := tracker.TrackOrg(context.Background(), "acme", "octo", testWindow(), Options{IgnoreFile: ignorePath})
	if err != nil {
		t.Fatalf("TrackOrg() unexpected error: %v", err)
	}

	if result.TotalCommits != 0 {
		t.Fatalf("TotalCommits = %d, want 0 after ignoring alpha", result.TotalCommits)
	}
	if len(result.Repositories) != 0 {
		t.Fatalf("Repositories = %v, want empty", result.Repositories)
	}
}

func personalTrackerHandler(t *testing.T) doerFunc {
	t.Helper()

	return func(req *http.Request) (*http.Response, error) {
		path := req.URL.Path
		switch {
		case strings.HasSuffix(path, "/users/octo/repos"):
			return jsonResponse(http.StatusOK, `[
				{"name":"side","full_name":"octo/side","owner":{"login":"octo"},"html_url":"https://github.com/octo/side","default_branch":"main","fork":true,"private":true},
				{"name":"shared","full_name":"acme/shared","owner":{"login":"acme"},"html_url":"https://github.com/acme/shared","default_branch":"main"}
			]`), nil
		case strings.HasSuffix(path, "/repos/octo/side/branches"):
			return jsonResponse(http.StatusOK, `[{"name":"main","commit":{"sha":"p1"}}]`), nil
		case strings.HasSuffix(path, "/repos/octo/side/commits"):
			return jsonResponse(http.StatusOK, `[
				{"sha":"p1","author":{"login":"octo"},"commit":{"author":{"date":"2025-02-06T10:00:00Z","name":"Octo","email":"octo@example.com"},"message":"side work"}}
			]`), nil
		}
		return jsonResponse(http.StatusNotFound, `{"message":"not found"}`), nil
	}
}

func TestTrackPersonal(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(newTestDataClient(t, personalTrackerHandler(t)), zap.NewNop(), 3, 5)
	result, err := tracker.TrackPersonal(context.Background(), "octo", testWindow(), Options{})
	if err != nil {
		t.Fatalf("TrackPersonal() unexpected error: %v", err)
	}

	if result.Scope != ScopePersonal || result.Organization != "" {
		t.Fatalf("scope = %q org = %q, want personal scope without org", result.Scope, result.Organization)
	}
	if result.TotalCommits != 1 || len(result.Repositories) != 1 {
		t.Fatalf("TotalCommits = %d, Repositories = %v", result.TotalCommits, result.Repositories)
	}
	activity := result.Repositories["side"]
	if !activity.IsFork || !activity.IsPrivate {
		t.Fatalf("activity flags = fork:%t private:%t, want both true", activity.IsFork, activity.IsPrivate)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	org := orgTrackerHandler(t)
	personal := personalTrackerHandler(t)
	handler := doerFunc(func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "/users/octo/") || strings.Contains(req.URL.Path, "/repos/octo/") {
			return personal(req)
		}
		return org(req)
	})

	tracker := NewTracker(newTestDataClient(t, handler), zap.NewNop(), 3, 5)
	result, err := tracker.Compare(context.Background(), "acme", "octo", testWindow(), Options{IncludeLines: true})
	if err != nil {
		t.Fatalf("Compare() unexpected error: %v", err)
	}

	if result.Username != "octo" || result.Organization != "acme" {
		t.Fatalf("identity = %q/%q", result.Username, result.Organization)
	}

	commits := result.Comparison.TotalCommits
	if commits.Organization != 2 || commits.Personal != 1 || commits.Difference != -1 {
		t.Fatalf("TotalCommits delta = %+v, want 2/1/-1", commits)
	}
	repos := result.Comparison.ActiveRepositories
	if repos.Organization != 1 || repos.Personal != 1 || repos.Difference != 0 {
		t.Fatalf("ActiveRepositories delta = %+v, want 1/1/0", repos)
	}

	if result.Comparison.LineStats == nil {
		t.Fatalf("LineStats delta = nil, want populated with include-lines")
	}
	lines := result.Comparison.LineStats
	if lines.Organization.TotalAdditions != 5 {
		t.Fatalf("org line additions = %d, want 5", lines.Organization.TotalAdditions)
	}
	if lines.Difference.TotalAdditions != lines.Personal.TotalAdditions-lines.Organization.TotalAdditions {
		t.Fatalf("line delta inconsistent: %+v", lines)
	}
}
