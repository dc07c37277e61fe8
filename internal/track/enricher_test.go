package track

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestEnrichCommitStats(t *testing.T) {
	t.Parallel()

	handler := doerFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/commits/a1"):
			return jsonResponse(http.StatusOK, `{
				"sha":"a1",
				"stats":{"additions":12,"deletions":3,"total":15},
				"files":[{"filename":"main.go"}]
			}`), nil
		case strings.HasSuffix(req.URL.Path, "/commits/b2"):
			return jsonResponse(http.StatusInternalServerError, `{"message":"boom"}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{"message":"not found"}`), nil
	})

	enricher := NewEnricher(newTestDataClient(t, handler), zap.NewNop(), 5)
	commits := []CommitRecord{
		{SHA: "a1", Branch: "main"},
		{SHA: "b2", Branch: "main"},
	}

	enricher.EnrichCommitStats(context.Background(), "acme", "alpha", commits)

	if commits[0].Stats == nil {
		t.Fatalf("commits[0].Stats = nil, want populated")
	}
	if commits[0].Stats.Additions != 12 || commits[0].Stats.Deletions != 3 || commits[0].Stats.Total != 15 {
		t.Fatalf("commits[0].Stats = %+v, want +12/-3 total 15", commits[0].Stats)
	}
	if commits[0].FilesChanged != 1 {
		t.Fatalf("commits[0].FilesChanged = %d, want 1", commits[0].FilesChanged)
	}

	// A failed detail lookup still leaves a zero-valued stats block.
	if commits[1].Stats == nil {
		t.Fatalf("commits[1].Stats = nil, want zero-valued block")
	}
	if *commits[1].Stats != (CommitStats{}) {
		t.Fatalf("commits[1].Stats = %+v, want zero values", commits[1].Stats)
	}
}

func TestEnrichCommitStatsEmptyInput(t *testing.T) {
	t.Parallel()

	handler := doerFunc(func(req *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request to %s", req.URL.Path)
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})

	enricher := NewEnricher(newTestDataClient(t, handler), zap.NewNop(), 0)
	enricher.EnrichCommitStats(context.Background(), "acme", "alpha", nil)
}
