package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gitpulse/gitpulse/internal/app"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/githubapi"
	"github.com/gitpulse/gitpulse/internal/health"
	"github.com/gitpulse/gitpulse/internal/store"
	"github.com/gitpulse/gitpulse/internal/telemetry"
	"github.com/gitpulse/gitpulse/internal/track"
)

// runtime holds the wired dependencies of one tracking invocation.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *app.Metrics
	client  *githubapi.Client
	api     *githubapi.DataClient
	rest    *githubapi.RESTClient
	results store.ResultStore
	tracker *track.Tracker
	server  *app.DebugServer

	teleShutdown func(ctx context.Context) error
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "gitpulse",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := app.NewMetrics(registry)

	httpClient, err := newGitHubHTTPClient(ctx, cfg.GitHub)
	if err != nil {
		return nil, err
	}

	quota := githubapi.NewQuotaTracker()
	client := githubapi.NewClient(httpClient, githubapi.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}, githubapi.RateLimitPolicy{
		MinRemainingThreshold: cfg.RateLimit.MinRemainingThreshold,
		MinResetBuffer:        cfg.RateLimit.MinResetBuffer,
		SecondaryLimitBackoff: cfg.RateLimit.SecondaryLimitBackoff,
	}, quota)
	client.OnWait = metrics.OnWait
	client.OnRequest = metrics.ObserveRequest

	api, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, client)
	if err != nil {
		return nil, fmt.Errorf("build data client: %w", err)
	}

	rest, err := githubapi.NewGitHubRESTClient(httpClient, cfg.GitHub.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("build rest client: %w", err)
	}

	results, err := newResultStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		client:       client,
		api:          api,
		rest:         rest,
		results:      results,
		tracker:      track.NewTracker(api, logger, cfg.Track.BranchWorkers, cfg.Track.StatsWorkers),
		teleShutdown: telemetryRuntime.Shutdown,
	}

	if cfg.Server.Enabled {
		provider := &runtimeHealth{
			evaluator:   health.NewStatusEvaluator(),
			quota:       quota,
			resetBuffer: cfg.RateLimit.MinResetBuffer,
		}
		handler := app.NewHTTPHandler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			health.NewHandler(provider),
			app.NewResultsHandler(results),
		)
		rt.server = app.NewDebugServer(cfg.Server.ListenAddr, handler, logger)
		rt.server.Start()
	}

	rt.announceAuth(ctx)
	return rt, nil
}

// announceAuth validates the configured credentials and prints token
// guidance when running unauthenticated.
func (r *runtime) announceAuth(ctx context.Context) {
	if r.cfg.GitHub.Token == "" && !r.cfg.GitHub.UseInstallationAuth() {
		color.New(color.FgYellow).Fprintln(os.Stderr,
			"warning: no GitHub token configured; anonymous rate limits apply. Set GITHUB_TOKEN or use --token.")
		return
	}
	if r.cfg.GitHub.UseInstallationAuth() {
		return
	}

	login, err := r.rest.ValidateCredentials(ctx)
	if err != nil {
		r.logger.Warn("credential validation failed", zap.Error(err))
		return
	}
	r.logger.Info("authenticated", zap.String("login", login))
}

func (r *runtime) Close() {
	if r.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.server.Shutdown(shutdownCtx)
		cancel()
	}
	if r.results != nil {
		_ = r.results.Close()
	}
	if r.teleShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.teleShutdown(shutdownCtx)
		cancel()
	}
	_ = r.logger.Sync()
}

func newGitHubHTTPClient(ctx context.Context, cfg config.GitHubConfig) (*http.Client, error) {
	if cfg.UseInstallationAuth() {
		client, err := githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cfg.AppID,
			InstallationID: cfg.InstallationID,
			PrivateKeyPath: cfg.PrivateKeyPath,
			Timeout:        cfg.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build installation client: %w", err)
		}
		return client, nil
	}
	return githubapi.NewTokenHTTPClient(ctx, cfg.Token, cfg.RequestTimeout), nil
}

func newResultStore(cfg config.StoreConfig) (store.ResultStore, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.NewRedisStore(client, store.RedisStoreConfig{
			Namespace: cfg.Namespace,
			Retention: cfg.Retention,
		}), nil
	case "fs":
		return store.NewFSStore(cfg.OutputDir), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// runtimeHealth reports debug listener health from live quota state.
type runtimeHealth struct {
	evaluator   *health.StatusEvaluator
	quota       *githubapi.QuotaTracker
	resetBuffer time.Duration
}

func (h *runtimeHealth) CurrentStatus(_ context.Context) health.Status {
	suspended := h.quota.WaitDuration(githubapi.BudgetCore, time.Now(), h.resetBuffer) > 0 ||
		h.quota.WaitDuration(githubapi.BudgetSearch, time.Now(), h.resetBuffer) > 0
	return h.evaluator.Evaluate(health.Input{
		GitHubClientUsable: true,
		StoreHealthy:       true,
		QuotaSuspended:     suspended,
	})
}
