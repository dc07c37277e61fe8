package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultGitHubAPIBaseURL = "https://api.github.com/"

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusAccepted indicates GitHub accepted the request and is still computing results.
	EndpointStatusAccepted EndpointStatus = "accepted"
	// EndpointStatusUnauthorized indicates missing or rejected credentials.
	EndpointStatusUnauthorized EndpointStatus = "unauthorized"
	// EndpointStatusForbidden indicates authorization failure or restricted access.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusConflict indicates a state conflict, like commit listing on an empty repository.
	EndpointStatusConflict EndpointStatus = "conflict"
	// EndpointStatusUnprocessable indicates request validation/processing failure.
	EndpointStatusUnprocessable EndpointStatus = "unprocessable"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// Repository is one GitHub repository summary.
type Repository struct {
	Name          string
	FullName      string
	Owner         string
	HTMLURL       string
	DefaultBranch string
	Archived      bool
	Disabled      bool
	Fork          bool
	Private       bool
}

// RepoListResult is the typed result for repository listing endpoints.
type RepoListResult struct {
	Status   EndpointStatus
	Repos    []Repository
	Metadata CallMetadata
}

// Branch is one repository branch summary.
type Branch struct {
	Name      string
	HeadSHA   string
	Protected bool
}

// BranchListResult is the typed result for listing repository branches.
type BranchListResult struct {
	Status   EndpointStatus
	Branches []Branch
	Metadata CallMetadata
}

// BranchCommit is one commit summary from the commit list endpoint.
type BranchCommit struct {
	SHA         string
	Author      string
	AuthorName  string
	AuthorEmail string
	Message     string
	CommittedAt time.Time
}

// BranchCommitsResult is the typed result for listing commits on one branch.
type BranchCommitsResult struct {
	Status   EndpointStatus
	Commits  []BranchCommit
	Metadata CallMetadata
}

// CommitDetail is a typed commit detail response with line stats.
type CommitDetail struct {
	Status       EndpointStatus
	SHA          string
	Author       string
	Additions    int
	Deletions    int
	Total        int
	FilesChanged int
	Metadata     CallMetadata
}

// SearchIssue is one item from the issue/PR search endpoint.
type SearchIssue struct {
	Number    int
	Title     string
	State     string
	User      string
	CreatedAt time.Time
}

// SearchResult is the typed result for the issue/PR search endpoint.
type SearchResult struct {
	Status     EndpointStatus
	TotalCount int
	Items      []SearchIssue
	Metadata   CallMetadata
}

// DataClient is a typed GitHub REST data client for the tracked endpoints.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
}

// NewDataClient creates a typed data client over the generic retry/rate-limit request client.
func NewDataClient(baseURL string, requestClient *Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
	}, nil
}

// ListOrgRepos lists repositories in one GitHub organization with pagination support.
func (c *DataClient) ListOrgRepos(ctx context.Context, org string) (RepoListResult, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return RepoListResult{}, fmt.Errorf("organization is required")
	}

	result := RepoListResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "orgs", url.PathEscape(trimmedOrg), "repos")
		query := reqURL.Query()
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))
		query.Set("type", "all")
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return RepoListResult{}, fmt.Errorf("build list org repos request: %w", err)
		}

		resp, metadata, err := c.requestClient.Do(req)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return RepoListResult{}, fmt.Errorf("list org repos request failed: %w", err)
		}
		if resp == nil {
			return RepoListResult{}, fmt.Errorf("list org repos request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload []repositoryPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return RepoListResult{}, fmt.Errorf("decode list org repos response: %w", err)
		}

		for _, repo := range payload {
			result.Repos = append(result.Repos, repositoryFromPayload(repo))
		}

		if len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

// ListUserRepos lists repositories owned by one user. Affiliated repositories
// the listing endpoint mixes in are dropped by an exact, case-insensitive
// owner match.
func (c *DataClient) ListUserRepos(ctx context.Context, user string) (RepoListResult, error) {
	trimmedUser := strings.TrimSpace(user)
	if trimmedUser == "" {
		return RepoListResult{}, fmt.Errorf("user is required")
	}

	result := RepoListResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "users", url.PathEscape(trimmedUser), "repos")
		query := reqURL.Query()
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return RepoListResult{}, fmt.Errorf("build list user repos request: %w", err)
		}

		resp, metadata, err := c.requestClient.Do(req)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return RepoListResult{}, fmt.Errorf("list user repos request failed: %w", err)
		}
		if resp == nil {
			return RepoListResult{}, fmt.Errorf("list user repos request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload []repositoryPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return RepoListResult{}, fmt.Errorf("decode list user repos response: %w", err)
		}

		for _, repo := range payload {
			if !strings.EqualFold(repo.Owner.Login, trimmedUser) {
				continue
			}
			result.Repos = append(result.Repos, repositoryFromPayload(repo))
		}

		if len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

// ListBranches lists branches of one repository with pagination support.
func (c *DataClient) ListBranches(ctx context.Context, owner, repo string) (BranchListResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return BranchListResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return BranchListResult{}, fmt.Errorf("repo is required")
	}

	result := BranchListResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "branches")
		query := reqURL.Query()
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return BranchListResult{}, fmt.Errorf("build list branches request: %w", err)
		}

		resp, metadata, err := c.requestClient.Do(req)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return BranchListResult{}, fmt.Errorf("list branches request failed: %w", err)
		}
		if resp == nil {
			return BranchListResult{}, fmt.Errorf("list branches request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload []branchPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return BranchListResult{}, fmt.Errorf("decode list branches response: %w", err)
		}

		for _, branch := range payload {
			result.Branches = append(result.Branches, Branch{
				Name:      branch.Name,
				HeadSHA:   branch.Commit.SHA,
				Protected: branch.Protected,
			})
		}

		if len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

// ListBranchCommits lists commits reachable from one branch, restricted to
// one author and a time window, with pagination support. A conflict status
// marks an empty repository or branch and carries no commits.
func (c *DataClient) ListBranchCommits(ctx context.Context, owner, repo, branch, author string, since, until time.Time) (BranchCommitsResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	trimmedBranch := strings.TrimSpace(branch)
	if trimmedOwner == "" {
		return BranchCommitsResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return BranchCommitsResult{}, fmt.Errorf("repo is required")
	}
	if trimmedBranch == "" {
		return BranchCommitsResult{}, fmt.Errorf("branch is required")
	}
	if !until.IsZero() && !since.IsZero() && until.Before(since) {
		return BranchCommitsResult{}, fmt.Errorf("until must not be before since")
	}

	result := BranchCommitsResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "commits")
		query := reqURL.Query()
		query.Set("sha", trimmedBranch)
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))
		if author := strings.TrimSpace(author); author != "" {
			query.Set("author", author)
		}
		if !since.IsZero() {
			query.Set("since", since.UTC().Format(time.RFC3339))
		}
		if !until.IsZero() {
			query.Set("until", until.UTC().Format(time.RFC3339))
		}
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return BranchCommitsResult{}, fmt.Errorf("build list branch commits request: %w", err)
		}

		resp, metadata, err := c.requestClient.Do(req)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return BranchCommitsResult{}, fmt.Errorf("list branch commits request failed: %w", err)
		}
		if resp == nil {
			return BranchCommitsResult{}, fmt.Errorf("list branch commits request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload []commitListPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return BranchCommitsResult{}, fmt.Errorf("decode list branch commits response: %w", err)
		}

		for _, commit := range payload {
			typed := BranchCommit{
				SHA:         commit.SHA,
				AuthorName:  commit.Commit.Author.Name,
				AuthorEmail: commit.Commit.Author.Email,
				Message:     commit.Commit.Message,
				CommittedAt: parseRFC3339(commit.Commit.Author.Date),
			}
			if commit.Author != nil {
				typed.Author = commit.Author.Login
			}
			result.Commits = append(result.Commits, typed)
		}

		if len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

// GetCommit reads commit detail including additions/deletions.
func (c *DataClient) GetCommit(ctx context.Context, owner, repo, sha string) (CommitDetail, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	trimmedSHA := strings.TrimSpace(sha)
	if trimmedOwner == "" {
		return CommitDetail{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return CommitDetail{}, fmt.Errorf("repo is required")
	}
	if trimmedSHA == "" {
		return CommitDetail{}, fmt.Errorf("sha is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "commits", url.PathEscape(trimmedSHA))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return CommitDetail{}, fmt.Errorf("build commit detail request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return CommitDetail{}, fmt.Errorf("commit detail request failed: %w", err)
	}
	if resp == nil {
		return CommitDetail{}, fmt.Errorf("commit detail request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := CommitDetail{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload commitDetailPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return CommitDetail{}, fmt.Errorf("decode commit detail response: %w", err)
	}

	result.SHA = payload.SHA
	if payload.Author != nil {
		result.Author = payload.Author.Login
	}
	result.Additions = payload.Stats.Additions
	result.Deletions = payload.Stats.Deletions
	result.Total = payload.Stats.Total
	result.FilesChanged = len(payload.Files)
	return result, nil
}

// SearchIssues runs one issue/PR search query against the search budget.
func (c *DataClient) SearchIssues(ctx context.Context, searchQuery string) (SearchResult, error) {
	trimmedQuery := strings.TrimSpace(searchQuery)
	if trimmedQuery == "" {
		return SearchResult{}, fmt.Errorf("search query is required")
	}

	result := SearchResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "search", "issues")
		query := reqURL.Query()
		query.Set("q", trimmedQuery)
		query.Set("per_page", "100")
		query.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return SearchResult{}, fmt.Errorf("build search issues request: %w", err)
		}

		resp, metadata, err := c.requestClient.DoBudget(req, BudgetSearch)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return SearchResult{}, fmt.Errorf("search issues request failed: %w", err)
		}
		if resp == nil {
			return SearchResult{}, fmt.Errorf("search issues request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload searchResponsePayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return SearchResult{}, fmt.Errorf("decode search issues response: %w", err)
		}

		result.TotalCount = payload.TotalCount
		for _, item := range payload.Items {
			typed := SearchIssue{
				Number:    item.Number,
				Title:     item.Title,
				State:     item.State,
				CreatedAt: parseRFC3339(item.CreatedAt),
			}
			if item.User != nil {
				typed.User = item.User.Login
			}
			result.Items = append(result.Items, typed)
		}

		if len(payload.Items) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

// PRAuthorQuery builds a search query for pull requests authored by one user
// in a window, optionally scoped to one organization. Search qualifiers take
// date-only bounds.
func PRAuthorQuery(user, org string, since, until time.Time) string {
	return fmt.Sprintf("type:pr author:%s%s created:%s..%s", user, orgQualifier(org), searchDate(since), searchDate(until))
}

// PRReviewedQuery builds a search query for pull requests reviewed by one user in a window.
func PRReviewedQuery(user, org string, since, until time.Time) string {
	return fmt.Sprintf("type:pr reviewed-by:%s%s updated:%s..%s", user, orgQualifier(org), searchDate(since), searchDate(until))
}

// IssueAuthorQuery builds a search query for issues opened by one user in a window.
func IssueAuthorQuery(user, org string, since, until time.Time) string {
	return fmt.Sprintf("type:issue author:%s%s created:%s..%s", user, orgQualifier(org), searchDate(since), searchDate(until))
}

func orgQualifier(org string) string {
	trimmed := strings.TrimSpace(org)
	if trimmed == "" {
		return ""
	}
	return " org:" + trimmed
}

func searchDate(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusAccepted:
		return EndpointStatusAccepted
	case http.StatusUnauthorized:
		return EndpointStatusUnauthorized
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	case http.StatusConflict:
		return EndpointStatusConflict
	case http.StatusUnprocessableEntity:
		return EndpointStatusUnprocessable
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	return nil
}

func hasNextPage(linkHeader string) bool {
	if strings.TrimSpace(linkHeader) == "" {
		return false
	}
	parts := strings.Split(linkHeader, ",")
	for _, part := range parts {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func mergeMetadata(current CallMetadata, incoming CallMetadata) CallMetadata {
	current.Attempts += incoming.Attempts
	current.QuotaWaited += incoming.QuotaWaited
	current.LastDecision = incoming.LastDecision
	current.LastRateHeaders = incoming.LastRateHeaders
	return current
}

func repositoryFromPayload(payload repositoryPayload) Repository {
	return Repository{
		Name:          payload.Name,
		FullName:      payload.FullName,
		Owner:         payload.Owner.Login,
		HTMLURL:       payload.HTMLURL,
		DefaultBranch: payload.DefaultBranch,
		Archived:      payload.Archived,
		Disabled:      payload.Disabled,
		Fork:          payload.Fork,
		Private:       payload.Private,
	}
}

type repositoryPayload struct {
	Name          string      `json:"name"`
	FullName      string      `json:"full_name"`
	Owner         userPayload `json:"owner"`
	HTMLURL       string      `json:"html_url"`
	DefaultBranch string      `json:"default_branch"`
	Archived      bool        `json:"archived"`
	Disabled      bool        `json:"disabled"`
	Fork          bool        `json:"fork"`
	Private       bool        `json:"private"`
}

type branchPayload struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Protected bool `json:"protected"`
}

type commitListPayload struct {
	SHA    string          `json:"sha"`
	Author *userPayload    `json:"author"`
	Commit commitCoreBlock `json:"commit"`
}

type commitCoreBlock struct {
	Author  commitAuthorBlock `json:"author"`
	Message string            `json:"message"`
}

type commitAuthorBlock struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type commitDetailPayload struct {
	SHA    string       `json:"sha"`
	Author *userPayload `json:"author"`
	Stats  struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
		Total     int `json:"total"`
	} `json:"stats"`
	Files []struct {
		Filename string `json:"filename"`
	} `json:"files"`
}

type searchResponsePayload struct {
	TotalCount int                  `json:"total_count"`
	Items      []searchIssuePayload `json:"items"`
}

type searchIssuePayload struct {
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	State     string       `json:"state"`
	User      *userPayload `json:"user"`
	CreatedAt string       `json:"created_at"`
}

type userPayload struct {
	Login string `json:"login"`
}
