// Package store persists tracking results and loads them back for
// later comparison runs.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gitpulse/gitpulse/internal/track"
)

// Kind identifies a persisted result flavor. The kind is the filename
// prefix under each user's output directory.
type Kind string

const (
	// KindRaw is an organization-scope tracking result.
	KindRaw Kind = "raw_data"
	// KindPersonal is a personal-scope tracking result.
	KindPersonal Kind = "personal_data"
	// KindComparison is a full organization/personal comparison.
	KindComparison Kind = "comparison_data"
	// KindRatioSummary is the condensed org/personal ratio block.
	KindRatioSummary Kind = "ratio_summary"
)

// RatioBlock is the condensed commit split stored in a ratio summary.
type RatioBlock struct {
	Organization       int     `json:"organization"`
	Personal           int     `json:"personal"`
	OrgPercentage      float64 `json:"org_percentage"`
	PersonalPercentage float64 `json:"personal_percentage"`
}

// RatioSummary is a small standalone document describing how a user's
// commits split between organization and personal work.
type RatioSummary struct {
	Username  string       `json:"username"`
	Timestamp time.Time    `json:"timestamp"`
	Window    track.Window `json:"timeframe"`
	Ratios    RatioBlock   `json:"ratios"`
}

// LatestResult is the most recent persisted activity for a user. Exactly
// one of Tracking or Comparison is set, depending on which kind was found.
type LatestResult struct {
	Kind       Kind
	Tracking   *track.TrackingResult
	Comparison *track.ComparisonResult
}

// ResultStore persists tracking output and retrieves the latest documents
// per user.
type ResultStore interface {
	SaveTracking(ctx context.Context, result track.TrackingResult) (string, error)
	SaveComparison(ctx context.Context, result track.ComparisonResult) (string, error)
	SaveRatioSummary(ctx context.Context, result track.ComparisonResult) (string, error)
	LoadLatest(ctx context.Context, username string) (*LatestResult, error)
	LoadPersonal(ctx context.Context, username string) (*track.TrackingResult, error)
	LoadComparison(ctx context.Context, username string) (*track.ComparisonResult, error)
	ListUsers(ctx context.Context) ([]string, error)
	Close() error
}

// FSStore writes one JSON document per run under root/<username>/.
type FSStore struct {
	root string

	// Now is the wall clock used for dated filenames. Overridable in tests.
	Now func() time.Time
}

// NewFSStore creates a filesystem-backed result store rooted at dir.
// An empty dir defaults to "outputs".
func NewFSStore(dir string) *FSStore {
	if dir == "" {
		dir = "outputs"
	}
	return &FSStore{root: dir, Now: time.Now}
}

// Close is a no-op for the filesystem backend.
func (s *FSStore) Close() error { return nil }

// SaveTracking persists one tracking result. Organization-scope results
// are stored as raw data, personal-scope results as personal data.
func (s *FSStore) SaveTracking(_ context.Context, result track.TrackingResult) (string, error) {
	kind := KindRaw
	if result.Scope == track.ScopePersonal {
		kind = KindPersonal
	}
	return s.writeDocument(result.Username, kind, result)
}

// SaveComparison persists a full comparison result.
func (s *FSStore) SaveComparison(_ context.Context, result track.ComparisonResult) (string, error) {
	return s.writeDocument(result.Username, KindComparison, result)
}

// SaveRatioSummary persists the condensed ratio block derived from a
// comparison result.
func (s *FSStore) SaveRatioSummary(_ context.Context, result track.ComparisonResult) (string, error) {
	summary := buildRatioSummary(result, s.Now())
	return s.writeDocument(result.Username, KindRatioSummary, summary)
}

// LoadLatest loads the most recent raw tracking document for a user,
// falling back to the most recent comparison document when no raw data
// exists. It returns nil with no error when neither is present.
func (s *FSStore) LoadLatest(_ context.Context, username string) (*LatestResult, error) {
	if path, ok := s.latestFile(username, KindRaw); ok {
		var result track.TrackingResult
		if err := readDocument(path, &result); err != nil {
			return nil, err
		}
		return &LatestResult{Kind: KindRaw, Tracking: &result}, nil
	}

	if path, ok := s.latestFile(username, KindComparison); ok {
		var result track.ComparisonResult
		if err := readDocument(path, &result); err != nil {
			return nil, err
		}
		return &LatestResult{Kind: KindComparison, Comparison: &result}, nil
	}

	return nil, nil
}

// LoadPersonal loads the most recent personal tracking document, or nil
// when the user has none.
func (s *FSStore) LoadPersonal(_ context.Context, username string) (*track.TrackingResult, error) {
	path, ok := s.latestFile(username, KindPersonal)
	if !ok {
		return nil, nil
	}
	var result track.TrackingResult
	if err := readDocument(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LoadComparison loads the most recent comparison document, or nil when
// the user has none.
func (s *FSStore) LoadComparison(_ context.Context, username string) (*track.ComparisonResult, error) {
	path, ok := s.latestFile(username, KindComparison)
	if !ok {
		return nil, nil
	}
	var result track.ComparisonResult
	if err := readDocument(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListUsers returns the usernames with at least one persisted document.
func (s *FSStore) ListUsers(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list output directory: %w", err)
	}

	users := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			users = append(users, entry.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *FSStore) writeDocument(username string, kind Kind, document any) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username is required")
	}

	userDir := filepath.Join(s.root, username)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s document: %w", kind, err)
	}

	date := s.Now().Format("2006-01-02")
	path := filepath.Join(userDir, fmt.Sprintf("%s_%s_%s.json", kind, username, date))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s document: %w", kind, err)
	}
	return path, nil
}

// latestFile finds the newest document of a kind by modification time.
func (s *FSStore) latestFile(username string, kind Kind) (string, bool) {
	pattern := filepath.Join(s.root, username, string(kind)+"_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}

	best := ""
	var bestModTime time.Time
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestModTime) {
			best = match
			bestModTime = info.ModTime()
		}
	}
	return best, best != ""
}

func readDocument(path string, target any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func buildRatioSummary(result track.ComparisonResult, now time.Time) RatioSummary {
	orgCommits := result.Comparison.TotalCommits.Organization
	personalCommits := result.Comparison.TotalCommits.Personal

	block := RatioBlock{Organization: orgCommits, Personal: personalCommits}
	if total := orgCommits + personalCommits; total > 0 {
		block.OrgPercentage = float64(orgCommits) / float64(total) * 100
		block.PersonalPercentage = float64(personalCommits) / float64(total) * 100
	}

	return RatioSummary{
		Username:  result.Username,
		Timestamp: now,
		Window:    result.Window,
		Ratios:    block,
	}
}
