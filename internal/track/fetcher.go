package track

import (
	"context"
	"fmt"
	"sync"

	"github.com/gitpulse/gitpulse/internal/githubapi"
	"go.uber.org/zap"
)

const defaultBranchWorkers = 3

// Fetcher collects a user's commits across all branches of a repository.
type Fetcher struct {
	api           *githubapi.DataClient
	logger        *zap.Logger
	branchWorkers int
}

// NewFetcher creates a branch commit fetcher. workers <= 0 selects the default pool size.
func NewFetcher(api *githubapi.DataClient, logger *zap.Logger, workers int) *Fetcher {
	if workers <= 0 {
		workers = defaultBranchWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		api:           api,
		logger:        logger,
		branchWorkers: workers,
	}
}

// FetchUserCommits lists every branch of owner/repo and collects the user's
// commits in the window from all of them concurrently. Commits reachable
// from several branches are deduplicated by SHA; the branch that reports a
// SHA first wins the attribution. A failing branch is logged and skipped, it
// never aborts the remaining branches.
func (f *Fetcher) FetchUserCommits(ctx context.Context, owner, repo, user string, window Window) ([]CommitRecord, error) {
	branches, err := f.api.ListBranches(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("list branches for %s/%s: %w", owner, repo, err)
	}
	if branches.Status != githubapi.EndpointStatusOK {
		f.logger.Debug("branch listing degraded",
			zap.String("repo", owner+"/"+repo),
			zap.String("status", string(branches.Status)),
		)
		return nil, nil
	}
	if len(branches.Branches) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		commits []CommitRecord
		seen    = make(map[string]struct{})
	)
	sem := make(chan struct{}, f.branchWorkers)

	for _, branch := range branches.Branches {
		wg.Add(1)
		sem <- struct{}{}
		go func(branchName string) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := f.api.ListBranchCommits(ctx, owner, repo, branchName, user, window.Since, window.Until)
			if err != nil {
				f.logger.Warn("branch commit fetch failed",
					zap.String("repo", owner+"/"+repo),
					zap.String("branch", branchName),
					zap.Error(err),
				)
				return
			}
			if result.Status != githubapi.EndpointStatusOK {
				// Conflict marks an empty branch; anything else is logged
				// and treated the same way: zero commits from this branch.
				if result.Status != githubapi.EndpointStatusConflict {
					f.logger.Debug("branch commit listing degraded",
						zap.String("repo", owner+"/"+repo),
						zap.String("branch", branchName),
						zap.String("status", string(result.Status)),
					)
				}
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for _, commit := range result.Commits {
				if _, dup := seen[commit.SHA]; dup {
					continue
				}
				seen[commit.SHA] = struct{}{}
				commits = append(commits, CommitRecord{
					SHA:         commit.SHA,
					Branch:      branchName,
					Author:      commit.Author,
					AuthorName:  commit.AuthorName,
					AuthorEmail: commit.AuthorEmail,
					Message:     commit.Message,
					CommittedAt: commit.CommittedAt,
				})
			}
		}(branch.Name)
	}

	wg.Wait()
	return commits, nil
}
