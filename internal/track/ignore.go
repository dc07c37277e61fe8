package track

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gitpulse/gitpulse/internal/githubapi"
	"go.uber.org/zap"
)

// DefaultIgnoreFile is the conventional ignore-pattern file name.
const DefaultIgnoreFile = ".repoignore"

// LoadIgnorePatterns reads repository ignore patterns from a file, one per
// line. Blank lines and lines starting with # are skipped. A missing file is
// not an error and yields no patterns.
func LoadIgnorePatterns(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ignore file %q: %w", path, err)
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %q: %w", path, err)
	}
	return patterns, nil
}

// ShouldIgnoreRepo reports whether a repository name matches any ignore
// pattern, by glob or by exact name.
func ShouldIgnoreRepo(repoName string, patterns []string) bool {
	for _, pattern := range patterns {
		if repoName == pattern {
			return true
		}
		matched, err := doublestar.Match(pattern, repoName)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// FilterRepositories drops repositories matching the ignore patterns.
func FilterRepositories(repos []githubapi.Repository, patterns []string, logger *zap.Logger) []githubapi.Repository {
	if len(patterns) == 0 {
		return repos
	}

	filtered := make([]githubapi.Repository, 0, len(repos))
	ignored := 0
	for _, repo := range repos {
		if ShouldIgnoreRepo(repo.Name, patterns) {
			ignored++
			continue
		}
		filtered = append(filtered, repo)
	}

	if ignored > 0 && logger != nil {
		logger.Info("filtered ignored repositories",
			zap.Int("ignored", ignored),
			zap.Int("remaining", len(filtered)),
		)
	}
	return filtered
}
