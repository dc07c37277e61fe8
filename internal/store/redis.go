package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitpulse/gitpulse/internal/track"
)

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// RedisStoreConfig configures the Redis-backed result store.
type RedisStoreConfig struct {
	Namespace string
	Retention time.Duration
}

// RedisStore keeps the latest document of each kind per user in Redis,
// for deployments where multiple tracking runs share results.
type RedisStore struct {
	client    redisCommander
	closeFn   func() error
	namespace string
	retention time.Duration
}

// NewRedisStore creates a Redis-backed result store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	return newRedisStoreFromCommander(client, closeFn, cfg)
}

func newRedisStoreFromCommander(client redisCommander, closeFn func() error, cfg RedisStoreConfig) *RedisStore {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "gitpulse"
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}

	return &RedisStore{
		client:    client,
		closeFn:   closeFn,
		namespace: namespace,
		retention: cfg.Retention,
	}
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// SaveTracking stores one tracking result. Organization-scope results are
// stored as raw data, personal-scope results as personal data.
func (s *RedisStore) SaveTracking(ctx context.Context, result track.TrackingResult) (string, error) {
	kind := KindRaw
	if result.Scope == track.ScopePersonal {
		kind = KindPersonal
	}
	return s.writeDocument(ctx, result.Username, kind, result)
}

// SaveComparison stores a full comparison result.
func (s *RedisStore) SaveComparison(ctx context.Context, result track.ComparisonResult) (string, error) {
	return s.writeDocument(ctx, result.Username, KindComparison, result)
}

// SaveRatioSummary stores the condensed ratio block derived from a
// comparison result.
func (s *RedisStore) SaveRatioSummary(ctx context.Context, result track.ComparisonResult) (string, error) {
	summary := buildRatioSummary(result, time.Now())
	return s.writeDocument(ctx, result.Username, KindRatioSummary, summary)
}

// LoadLatest loads the raw tracking document for a user, falling back to
// the comparison document. It returns nil with no error when neither is
// present.
func (s *RedisStore) LoadLatest(ctx context.Context, username string) (*LatestResult, error) {
	var tracking track.TrackingResult
	found, err := s.readDocument(ctx, username, KindRaw, &tracking)
	if err != nil {
		return nil, err
	}
	if found {
		return &LatestResult{Kind: KindRaw, Tracking: &tracking}, nil
	}

	var comparison track.ComparisonResult
	found, err = s.readDocument(ctx, username, KindComparison, &comparison)
	if err != nil {
		return nil, err
	}
	if found {
		return &LatestResult{Kind: KindComparison, Comparison: &comparison}, nil
	}
	return nil, nil
}

// LoadPersonal loads the personal tracking document, or nil when absent.
func (s *RedisStore) LoadPersonal(ctx context.Context, username string) (*track.TrackingResult, error) {
	var result track.TrackingResult
	found, err := s.readDocument(ctx, username, KindPersonal, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

// LoadComparison loads the comparison document, or nil when absent.
func (s *RedisStore) LoadComparison(ctx context.Context, username string) (*track.ComparisonResult, error) {
	var result track.ComparisonResult
	found, err := s.readDocument(ctx, username, KindComparison, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

// ListUsers returns the usernames with at least one stored document.
func (s *RedisStore) ListUsers(ctx context.Context) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("redis store is not initialized")
	}

	users, err := s.client.SMembers(ctx, s.usersIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list stored users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

func (s *RedisStore) writeDocument(ctx context.Context, username string, kind Kind, document any) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("redis store is not initialized")
	}
	if username == "" {
		return "", fmt.Errorf("username is required")
	}

	payload, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("marshal %s document: %w", kind, err)
	}

	key := s.documentKey(username, kind)
	if err := s.client.Set(ctx, key, payload, s.retention).Err(); err != nil {
		return "", fmt.Errorf("write %s document: %w", kind, err)
	}
	if err := s.client.SAdd(ctx, s.usersIndexKey(), username).Err(); err != nil {
		return "", fmt.Errorf("index stored user: %w", err)
	}
	return key, nil
}

func (s *RedisStore) readDocument(ctx context.Context, username string, kind Kind, target any) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("redis store is not initialized")
	}

	payload, err := s.client.Get(ctx, s.documentKey(username, kind)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s document: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return false, fmt.Errorf("decode %s document: %w", kind, err)
	}
	return true, nil
}

func (s *RedisStore) prefixed(suffix string) string {
	return s.namespace + ":" + suffix
}

func (s *RedisStore) usersIndexKey() string {
	return s.prefixed("users")
}

func (s *RedisStore) documentKey(username string, kind Kind) string {
	return s.prefixed("results:" + username + ":" + string(kind))
}
