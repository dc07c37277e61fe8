package githubapi

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func newTestRequestClient(doer HTTPDoer) *Client {
	policy := RateLimitPolicy{
		MinRemainingThreshold: 0,
		Now: func() time.Time {
			return time.Unix(1739836800, 0)
		},
	}
	client := NewClient(doer, RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
	}, policy, nil)
	client.Now = func() time.Time {
		return time.Unix(1739836800, 0)
	}
	client.Sleep = func(_ time.Duration) {}
	return client
}

type recordingDoer struct {
	fakeDoer
	requests []*http.Request
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	return d.fakeDoer.Do(req)
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

func TestNewDataClient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		baseURL     string
		client      *Client
		wantErr     bool
		errContains string
	}{
		{
			name:    "uses_default_base_url",
			baseURL: "",
			client:  newTestRequestClient(&fakeDoer{}),
		},
		{
			name:    "accepts_custom_base_url",
			baseURL: "https://github.example.com/api/v3",
			client:  newTestRequestClient(&fakeDoer{}),
		},
		{
			name:        "rejects_invalid_base_url",
			baseURL:     "://bad-url",
			client:      newTestRequestClient(&fakeDoer{}),
			wantErr:     true,
			errContains: "parse github api base url",
		},
		{
			name:        "rejects_nil_client",
			baseURL:     "https://api.github.com",
			client:      nil,
			wantErr:     true,
			errContains: "request client is required",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewDataClient(tc.baseURL, tc.client)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NewDataClient() expected error, got nil")
				}
				if tc.errContains != "" && !contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, missing %q", err.Error(), tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDataClient() unexpected error: %v", err)
			}
			if client == nil {
				t.Fatalf("NewDataClient() returned nil client")
			}
		})
	}
}

func TestDataClientListOrgRepos(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{
		responses: []*http.Response{
			newResponse(http.StatusOK, map[string]string{
				"Link": `<https://api.github.com/orgs/test/repos?per_page=100&page=2>; rel="next"`,
			}, `[
				{"name":"repo-a","full_name":"test/repo-a","owner":{"login":"test"},"default_branch":"main"}
			]`),
			newResponse(http.StatusOK, map[string]string{}, `[
				{"name":"repo-b","full_name":"test/repo-b","owner":{"login":"test"},"default_branch":"main","archived":true}
			]`),
		},
	}
	client, err := NewDataClient("", newTestRequestClient(doer))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.ListOrgRepos(context.Background(), "test")
	if err != nil {
		t.Fatalf("ListOrgRepos() unexpected error: %v", err)
	}
	if got.Status != EndpointStatusOK {
		t.Fatalf("Status = %q, want %q", got.Status, EndpointStatusOK)
	}
	if len(got.Repos) != 2 {
		t.Fatalf("len(Repos) = %d, want 2", len(got.Repos))
	}
	if got.Repos[0].Name != "repo-a" || got.Repos[1].Name != "repo-b" {
		t.Fatalf("repos = %#v, want repo-a/repo-b", got.Repos)
	}
	if !got.Repos[1].Archived {
		t.Fatalf("repo-b Archived = false, want true")
	}
}

func TestDataClientListUserReposFiltersOwner(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{
		responses: []*http.Response{
			newResponse(http.StatusOK, map[string]string{}, `[
				{"name":"mine","full_name":"Octo/mine","owner":{"login":"Octo"},"default_branch":"main","private":true},
				{"name":"shared","full_name":"some-org/shared","owner":{"login":"some-org"},"default_branch":"main"},
				{"name":"forked","full_name":"octo/forked","owner":{"login":"octo"},"default_branch":"main","fork":true}
			]`),
		},
	}
	client, err := NewDataClient("", newTestRequestClient(doer))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.ListUserRepos(context.Background(), "octo")
	if err != nil {
		t.Fatalf("ListUserRepos() unexpected error: %v", err)
	}
	if len(got.Repos) != 2 {
		t.Fatalf("len(Repos) = %d, want 2", len(got.Repos))
	}
	if got.Repos[0].Name != "mine" || !got.Repos[0].Private {
		t.Fatalf("first repo = %#v, want private mine", got.Repos[0])
	}
	if got.Repos[1].Name != "forked" || !got.Repos[1].Fork {
		t.Fatalf("second repo = %#v, want fork forked", got.Repos[1])
	}
}

func TestDataClientListBranches(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{
		responses: []*http.Response{
			newResponse(http.StatusOK, map[string]string{}, `[
				{"name":"main","commit":{"sha":"abc123"},"protected":true},
				{"name":"feature/x","commit":{"sha":"def456"}}
			]`),
		},
	}
	client, err := NewDataClient("", newTestRequestClient(doer))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.ListBranches(context.Background(), "octo", "mine")
	if err != nil {
		t.Fatalf("ListBranches() unexpected error: %v", err)
	}
	if len(got.Branches) != 2 {
		t.Fatalf("len(Branches) = %d, want 2", len(got.Branches))
	}
	if got.Branches[0].Name != "main" || got.Branches[0].HeadSHA != "abc123" || !got.Branches[0].Protected {
		t.Fatalf("first branch = %#v", got.Branches[0])
	}
}

func TestDataClientListBranchCommits(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 2, 8, 0, 0, 0, 0, time.UTC)

	doer := &recordingDoer{
		fakeDoer: fakeDoer{
			responses: []*http.Response{
				newResponse(http.StatusOK, map[string]string{}, `[
					{"sha":"abc123","author":{"login":"octo"},"commit":{"author":{"date":"2025-02-03T12:00:00Z","name":"Octo","email":"octo@example.com"},"message":"fix parser"}}
				]`),
			},
		},
	}
	client, err := NewDataClient("", newTestRequestClient(doer))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.ListBranchCommits(context.Background(), "octo", "mine", "feature/x", "octo", since, until)
	if err != nil {
		t.Fatalf("ListBranchCommits() unexpected error: %v", err)
	}
	if len(got.Commits) != 1 {
		t.Fatalf("len(Commits) = %d, want 1", len(got.Commits))
	}
	commit := got.Commits[0]
	if commit.SHA != "abc123" || commit.Author != "octo" || commit.Message != "fix parser" {
		t.Fatalf("commit = %#v", commit)
	}
	if !commit.CommittedAt.Equal(time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("CommittedAt = %v", commit.CommittedAt)
	}

	if len(doer.requests) != 1 {
		t.Fatalf("len(requests) = %d, want 1", len(doer.requests))
	}
	query := doer.requests[0].URL.Query()
	if query.Get("sha") != "feature/x" {
		t.Fatalf("sha param = %q, want feature/x", query.Get("sha"))
	}
	if query.Get("author") != "octo" {
		t.Fatalf("author param = %q, want octo", query.Get("author"))
	}
	if query.Get("per_page") != "100" {
		t.Fatalf("per_page param = %q, want 100", query.Get("per_page"))
	}
	if query.Get("since") != "2025-02-01T00:00:00Z" || query.Get("until") != "2025-02-08T00:00:00Z" {
		t.Fatalf("window params = %q..%q", query.Get("since"), query.Get("until"))
	}
}

func TestDataClientListBranchCommitsConflict(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{
		responses: []*http.Response{
			newResponse(http.StatusConflict, map[string]string{}, `{"message":"Git Repository is empty."}`),
		},
	}
	client, err := NewDataClient("", newTestRequestClient(doer))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.ListBranchCommits(context.Background(), "octo", "empty", "main", "octo", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ListBranchCommits() unexpected error: %v", err)
	}
	if got.Status != EndpointStatusConflict {
		t.Fatalf("Status = %q, want %q", got.Status, EndpointStatusConflict)
	}
	if len(got.Commits) != 0 {
		t.Fatalf("len(Commits) = %d, want 0", len(got.Commits))
	}
}

func TestDataClientGetCommit(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{
		responses: []*http.Response{
			newResponse(http.StatusOK, map[string]string{}, `{
				"sha":"abc123",
				"author":{"login":"octo"},
				"stats":{"additions":10,"deletions":4,"total":14},
				"files":[{"filename":"main.go"},{"filename":"main_test.go"}]
			}`),
		},
	}
	client, err := NewDataClient("", newTestRequestClient(doer))
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.GetCommit(context.Background(), "octo", "mine", "abc123")
	if err != nil {
		t.Fatalf("GetCommit() unexpected error: %v", err)
	}
	if got.Additions != 10 || got.Deletions != 4 || got.Total != 14 {
		t.Fatalf("stats = +%d/-%d total %d, want +10/-4 total 14", got.Additions, got.Deletions, got.Total)
	}
	if got.FilesChanged != 2 {
		t.Fatalf("FilesChanged = %d, want 2", got.FilesChanged)
	}
}

func TestDataClientSearchIssues(t *testing.T) {
	t.Parallel()

	doer := &recordingDoer{
		fakeDoer: fakeDoer{
			responses: []*http.Response{
				newResponse(http.StatusOK, map[string]string{
					"X-RateLimit-Remaining": "29",
					"X-RateLimit-Reset":     "1739836860",
				}, `{
					"total_count": 2,
					"items": [
						{"number":7,"title":"Add retry","state":"closed","user":{"login":"octo"},"created_at":"2025-02-02T09:00:00Z"},
						{"number":9,"title":"Fix paging","state":"open","user":{"login":"octo"},"created_at":"2025-02-04T09:00:00Z"}
					]
				}`),
			},
		},
	}
	requestClient := newTestRequestClient(doer)
	client, err := NewDataClient("", requestClient)
	if err != nil {
		t.Fatalf("NewDataClient() unexpected error: %v", err)
	}

	got, err := client.SearchIssues(context.Background(), "type:pr author:octo created:2025-02-01..2025-02-08")
	if err != nil {
		t.Fatalf("SearchIssues() unexpected error: %v", err)
	}
	if got.TotalCount != 2 || len(got.Items) != 2 {
		t.Fatalf("TotalCount = %d, len(Items) = %d, want 2/2", got.TotalCount, len(got.Items))
	}
	if got.Items[0].Number != 7 || got.Items[0].User != "octo" {
		t.Fatalf("first item = %#v", got.Items[0])
	}

	// Search calls are charged to the search budget only.
	if remaining, _, known := requestClient.Tracker().Snapshot(BudgetSearch); !known || remaining != 29 {
		t.Fatalf("search Snapshot() = (%d, known=%t), want (29, true)", remaining, known)
	}
	if _, _, known := requestClient.Tracker().Snapshot(BudgetCore); known {
		t.Fatalf("core Snapshot() known = true, want false")
	}

	if query := doer.requests[0].URL.Query().Get("q"); query != "type:pr author:octo created:2025-02-01..2025-02-08" {
		t.Fatalf("q param = %q", query)
	}
}

func TestSearchQueryBuilders(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, 2, 1, 15, 30, 0, 0, time.UTC)
	until := time.Date(2025, 2, 8, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "pr_author_query_uses_date_only_bounds",
			got:  PRAuthorQuery("octo", "acme", since, until),
			want: "type:pr author:octo org:acme created:2025-02-01..2025-02-08",
		},
		{
			name: "pr_reviewed_query_uses_updated_qualifier",
			got:  PRReviewedQuery("octo", "acme", since, until),
			want: "type:pr reviewed-by:octo org:acme updated:2025-02-01..2025-02-08",
		},
		{
			name: "issue_author_query_without_org",
			got:  IssueAuthorQuery("octo", "", since, until),
			want: "type:issue author:octo created:2025-02-01..2025-02-08",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if tc.got != tc.want {
				t.Fatalf("query = %q, want %q", tc.got, tc.want)
			}
		})
	}
}
