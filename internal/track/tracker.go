package track

import (
	"context"
	"fmt"

	"github.com/gitpulse/gitpulse/internal/githubapi"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Options selects optional tracking features.
type Options struct {
	IncludeLines   bool
	IncludePRs     bool
	IncludeReviews bool
	IncludeIssues  bool
	IgnoreFile     string
	ShowProgress   bool
}

// Tracker orchestrates repository discovery, commit collection, and
// aggregation for one user.
type Tracker struct {
	api      *githubapi.DataClient
	fetcher  *Fetcher
	enricher *Enricher
	logger   *zap.Logger
}

// NewTracker creates a tracker over the typed data client. Worker counts
// <= 0 select the defaults.
func NewTracker(api *githubapi.DataClient, logger *zap.Logger, branchWorkers, statsWorkers int) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		api:      api,
		fetcher:  NewFetcher(api, logger, branchWorkers),
		enricher: NewEnricher(api, logger, statsWorkers),
		logger:   logger,
	}
}

// TrackOrg tracks one user's activity across all repositories of an organization.
func (t *Tracker) TrackOrg(ctx context.Context, org, username string, window Window, opts Options) (TrackingResult, error) {
	repoList, err := t.api.ListOrgRepos(ctx, org)
	if err != nil {
		return TrackingResult{}, fmt.Errorf("list organization repositories: %w", err)
	}
	if repoList.Status != githubapi.EndpointStatusOK {
		return TrackingResult{}, fmt.Errorf("list organization repositories: %s", repoList.Status)
	}

	repos, err := t.applyIgnoreFile(repoList.Repos, opts.IgnoreFile)
	if err != nil {
		return TrackingResult{}, err
	}

	t.logger.Info("tracking organization activity",
		zap.String("org", org),
		zap.String("user", username),
		zap.Int("repos", len(repos)),
		zap.Time("since", window.Since),
		zap.Time("until", window.Until),
	)

	result := TrackingResult{
		Username:     username,
		Organization: org,
		Scope:        ScopeOrganization,
		Window:       window,
		Repositories: map[string]RepoActivity{},
	}
	if err := t.trackRepos(ctx, repos, username, window, opts, &result); err != nil {
		return TrackingResult{}, err
	}

	if opts.IncludePRs {
		result.PullRequests = t.searchFacet(ctx, "pull_requests", githubapi.PRAuthorQuery(username, org, window.Since, window.Until))
	}
	if opts.IncludeReviews {
		result.CodeReviews = t.searchFacet(ctx, "code_reviews", githubapi.PRReviewedQuery(username, org, window.Since, window.Until))
	}
	if opts.IncludeIssues {
		result.Issues = t.searchFacet(ctx, "issues", githubapi.IssueAuthorQuery(username, org, window.Since, window.Until))
	}

	return result, nil
}

// TrackPersonal tracks one user's activity across the repositories they own.
// Search facets are an organization-scope feature and are not resolved here.
func (t *Tracker) TrackPersonal(ctx context.Context, username string, window Window, opts Options) (TrackingResult, error) {
	repoList, err := t.api.ListUserRepos(ctx, username)
	if err != nil {
		return TrackingResult{}, fmt.Errorf("list personal repositories: %w", err)
	}
	if repoList.Status != githubapi.EndpointStatusOK {
		return TrackingResult{}, fmt.Errorf("list personal repositories: %s", repoList.Status)
	}

	repos, err := t.applyIgnoreFile(repoList.Repos, opts.IgnoreFile)
	if err != nil {
		return TrackingResult{}, err
	}

	t.logger.Info("tracking personal activity",
		zap.String("user", username),
		zap.Int("repos", len(repos)),
		zap.Time("since", window.Since),
		zap.Time("until", window.Until),
	)

	result := TrackingResult{
		Username:     username,
		Scope:        ScopePersonal,
		Window:       window,
		Repositories: map[string]RepoActivity{},
	}
	if err := t.trackRepos(ctx, repos, username, window, opts, &result); err != nil {
		return TrackingResult{}, err
	}
	return result, nil
}

// Compare runs organization and personal tracking back to back and derives
// the scope deltas. Differences are always personal minus organization.
func (t *Tracker) Compare(ctx context.Context, org, username string, window Window, opts Options) (ComparisonResult, error) {
	orgResult, err := t.TrackOrg(ctx, org, username, window, opts)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("track organization scope: %w", err)
	}
	personal, err := t.TrackPersonal(ctx, username, window, opts)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("track personal scope: %w", err)
	}

	comparison := ComparisonResult{
		Username:     username,
		Organization: org,
		Window:       window,
		OrgResult:    orgResult,
		Personal:     personal,
		Comparison: ComparisonBlock{
			TotalCommits:       newCountDelta(orgResult.TotalCommits, personal.TotalCommits),
			ActiveRepositories: newCountDelta(len(orgResult.Repositories), len(personal.Repositories)),
		},
	}

	if opts.IncludeLines {
		orgLines := lineStatsOrZero(orgResult.LineStats)
		personalLines := lineStatsOrZero(personal.LineStats)
		comparison.Comparison.LineStats = &LineStatsDelta{
			Organization: orgLines,
			Personal:     personalLines,
			Difference: LineStats{
				TotalAdditions: personalLines.TotalAdditions - orgLines.TotalAdditions,
				TotalDeletions: personalLines.TotalDeletions - orgLines.TotalDeletions,
				TotalChanges:   personalLines.TotalChanges - orgLines.TotalChanges,
			},
		}
	}
	if opts.IncludePRs {
		delta := newCountDelta(facetTotal(orgResult.PullRequests), facetTotal(personal.PullRequests))
		comparison.Comparison.PullRequests = &delta
	}
	if opts.IncludeReviews {
		delta := newCountDelta(facetTotal(orgResult.CodeReviews), facetTotal(personal.CodeReviews))
		comparison.Comparison.CodeReviews = &delta
	}
	if opts.IncludeIssues {
		delta := newCountDelta(facetTotal(orgResult.Issues), facetTotal(personal.Issues))
		comparison.Comparison.Issues = &delta
	}

	return comparison, nil
}

func (t *Tracker) applyIgnoreFile(repos []githubapi.Repository, ignoreFile string) ([]githubapi.Repository, error) {
	path := ignoreFile
	if path == "" {
		path = DefaultIgnoreFile
	}
	patterns, err := LoadIgnorePatterns(path)
	if err != nil {
		return nil, err
	}
	return FilterRepositories(repos, patterns, t.logger), nil
}

// trackRepos walks repositories sequentially; concurrency lives inside the
// per-repository branch and stats pools.
func (t *Tracker) trackRepos(ctx context.Context, repos []githubapi.Repository, username string, window Window, opts Options, result *TrackingResult) error {
	var bar *progressbar.ProgressBar
	if opts.ShowProgress && len(repos) > 0 {
		bar = progressbar.Default(int64(len(repos)), "repositories")
	}

	for _, repo := range repos {
		if bar != nil {
			_ = bar.Add(1)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		commits, err := t.fetcher.FetchUserCommits(ctx, repo.Owner, repo.Name, username, window)
		if err != nil {
			return err
		}
		if len(commits) == 0 {
			t.logger.Debug("no commits in window", zap.String("repo", repo.FullName))
			continue
		}

		if opts.IncludeLines {
			t.enricher.EnrichCommitStats(ctx, repo.Owner, repo.Name, commits)
		}

		activity := RepoActivity{
			CommitCount: len(commits),
			Commits:     commits,
			RepoURL:     repo.HTMLURL,
		}
		if result.Scope == ScopePersonal {
			activity.IsFork = repo.Fork
			activity.IsPrivate = repo.Private
		}
		if opts.IncludeLines {
			for _, commit := range commits {
				if commit.Stats == nil {
					continue
				}
				activity.LinesAdded += commit.Stats.Additions
				activity.LinesDeleted += commit.Stats.Deletions
				activity.LinesChanged += commit.Stats.Total
			}
		}

		result.Repositories[repo.Name] = activity
		result.TotalCommits += len(commits)

		t.logger.Info("repository analyzed",
			zap.String("repo", repo.FullName),
			zap.Int("commits", len(commits)),
		)
	}

	if opts.IncludeLines {
		totals := LineStats{}
		for _, activity := range result.Repositories {
			totals.TotalAdditions += activity.LinesAdded
			totals.TotalDeletions += activity.LinesDeleted
			totals.TotalChanges += activity.LinesChanged
		}
		result.LineStats = &totals
	}
	return nil
}

// searchFacet resolves one search-backed facet. Facets degrade
// independently: any failure logs a warning and yields an empty facet
// instead of aborting the run.
func (t *Tracker) searchFacet(ctx context.Context, name, query string) *Facet {
	result, err := t.api.SearchIssues(ctx, query)
	if err != nil {
		t.logger.Warn("facet search failed", zap.String("facet", name), zap.Error(err))
		return &Facet{}
	}
	if result.Status != githubapi.EndpointStatusOK {
		t.logger.Warn("facet search degraded",
			zap.String("facet", name),
			zap.String("status", string(result.Status)),
		)
		return &Facet{}
	}

	facet := &Facet{Total: len(result.Items)}
	for _, item := range result.Items {
		facet.Items = append(facet.Items, fmt.Sprintf("#%d %s", item.Number, item.Title))
	}
	return facet
}

func lineStatsOrZero(stats *LineStats) LineStats {
	if stats == nil {
		return LineStats{}
	}
	return *stats
}

func facetTotal(facet *Facet) int {
	if facet == nil {
		return 0
	}
	return facet.Total
}
