package track

import (
	"context"
	"sync"

	"github.com/gitpulse/gitpulse/internal/githubapi"
	"go.uber.org/zap"
)

const defaultStatsWorkers = 5

// Enricher resolves per-commit line statistics through the commit detail endpoint.
type Enricher struct {
	api          *githubapi.DataClient
	logger       *zap.Logger
	statsWorkers int
}

// NewEnricher creates a commit stats enricher. workers <= 0 selects the default pool size.
func NewEnricher(api *githubapi.DataClient, logger *zap.Logger, workers int) *Enricher {
	if workers <= 0 {
		workers = defaultStatsWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		api:          api,
		logger:       logger,
		statsWorkers: workers,
	}
}

// EnrichCommitStats attaches line statistics to every commit, fetching
// details concurrently. A commit whose detail lookup fails gets a
// zero-valued stats block so downstream totals stay well defined.
func (e *Enricher) EnrichCommitStats(ctx context.Context, owner, repo string, commits []CommitRecord) {
	if len(commits) == 0 {
		return
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.statsWorkers)

	for i := range commits {
		wg.Add(1)
		sem <- struct{}{}
		go func(commit *CommitRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			detail, err := e.api.GetCommit(ctx, owner, repo, commit.SHA)
			if err != nil || detail.Status != githubapi.EndpointStatusOK {
				if err != nil {
					e.logger.Warn("commit stats fetch failed",
						zap.String("repo", owner+"/"+repo),
						zap.String("sha", commit.SHA),
						zap.Error(err),
					)
				}
				commit.Stats = &CommitStats{}
				return
			}

			commit.Stats = &CommitStats{
				Additions: detail.Additions,
				Deletions: detail.Deletions,
				Total:     detail.Total,
			}
			commit.FilesChanged = detail.FilesChanged
		}(&commits[i])
	}

	wg.Wait()
}
