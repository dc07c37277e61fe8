// Package config loads and validates the application configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
	Track     TrackConfig
	Store     StoreConfig
	Telemetry TelemetryConfig
}

// ServerConfig contains debug listener and logging settings.
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// GitHubConfig configures GitHub API interactions. Token auth is the
// default; when the app fields are all set, installation auth is used
// instead.
type GitHubConfig struct {
	APIBaseURL     string
	Token          string
	RequestTimeout time.Duration
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// UseInstallationAuth reports whether GitHub App installation auth is
// fully configured.
func (g GitHubConfig) UseInstallationAuth() bool {
	return g.AppID > 0 && g.InstallationID > 0 && g.PrivateKeyPath != ""
}

// RateLimitConfig configures rate-limit controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// RetryConfig configures retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// TrackConfig configures tracking runs.
type TrackConfig struct {
	BranchWorkers int
	StatsWorkers  int
	IgnoreFile    string
}

// StoreConfig configures result storage.
type StoreConfig struct {
	Backend       string
	OutputDir     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
	Retention     time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELExporterEndpoint string
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	return cfg
}

// Load reads configuration from YAML and validates the result. The
// GITHUB_TOKEN environment variable fills the token when the file
// leaves it empty.
func Load(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg := raw.toConfig()
	applyDefaults(cfg)
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file path.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()
	return Load(file)
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.Server.LogLevel) {
		errs = append(errs, "server.log_level must be one of debug|info|warn|error")
	}
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		errs = append(errs, "server.listen_addr is required when server.enabled=true")
	}

	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, "github.request_timeout must be > 0")
	}
	appFieldsSet := 0
	if c.GitHub.AppID > 0 {
		appFieldsSet++
	}
	if c.GitHub.InstallationID > 0 {
		appFieldsSet++
	}
	if c.GitHub.PrivateKeyPath != "" {
		appFieldsSet++
	}
	if appFieldsSet > 0 && appFieldsSet < 3 {
		errs = append(errs, "github app auth requires app_id, installation_id, and private_key_path together")
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}
	if c.Retry.InitialBackoff <= 0 {
		errs = append(errs, "retry.initial_backoff must be > 0")
	}

	if c.Track.BranchWorkers <= 0 {
		errs = append(errs, "track.branch_workers must be > 0")
	}
	if c.Track.StatsWorkers <= 0 {
		errs = append(errs, "track.stats_workers must be > 0")
	}

	if c.Store.Backend != "fs" && c.Store.Backend != "redis" {
		errs = append(errs, "store.backend must be fs or redis")
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, "store.redis_addr is required when store.backend=redis")
	}

	if ratio := c.Telemetry.OTELTraceSampleRatio; ratio < 0 || ratio > 1 {
		errs = append(errs, "telemetry.otel_trace_sample_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":9090"
	}
	if cfg.GitHub.RequestTimeout <= 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit.MinRemainingThreshold <= 0 {
		cfg.RateLimit.MinRemainingThreshold = 1
	}
	if cfg.RateLimit.MinResetBuffer <= 0 {
		cfg.RateLimit.MinResetBuffer = time.Second
	}
	if cfg.RateLimit.SecondaryLimitBackoff <= 0 {
		cfg.RateLimit.SecondaryLimitBackoff = time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = time.Minute
	}
	if cfg.Track.BranchWorkers <= 0 {
		cfg.Track.BranchWorkers = 3
	}
	if cfg.Track.StatsWorkers <= 0 {
		cfg.Track.StatsWorkers = 5
	}
	if cfg.Track.IgnoreFile == "" {
		cfg.Track.IgnoreFile = ".repoignore"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "fs"
	}
	if cfg.Store.OutputDir == "" {
		cfg.Store.OutputDir = "outputs"
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = "gitpulse"
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	Server    ServerConfig `yaml:"server"`
	GitHub    rawGitHub    `yaml:"github"`
	RateLimit rawRateLimit `yaml:"rate_limit"`
	Retry     rawRetry     `yaml:"retry"`
	Track     rawTrack     `yaml:"track"`
	Store     rawStore     `yaml:"store"`
	Telemetry rawTelemetry `yaml:"telemetry"`
}

type rawGitHub struct {
	APIBaseURL     string   `yaml:"api_base_url"`
	Token          string   `yaml:"token"`
	RequestTimeout duration `yaml:"request_timeout"`
	AppID          int64    `yaml:"app_id"`
	InstallationID int64    `yaml:"installation_id"`
	PrivateKeyPath string   `yaml:"private_key_path"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawTrack struct {
	BranchWorkers int    `yaml:"branch_workers"`
	StatsWorkers  int    `yaml:"stats_workers"`
	IgnoreFile    string `yaml:"ignore_file"`
}

type rawStore struct {
	Backend       string   `yaml:"backend"`
	OutputDir     string   `yaml:"output_dir"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	Namespace     string   `yaml:"namespace"`
	Retention     duration `yaml:"retention"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELExporterEndpoint string  `yaml:"otel_exporter_otlp_endpoint"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		Server: r.Server,
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			Token:          r.GitHub.Token,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			AppID:          r.GitHub.AppID,
			InstallationID: r.GitHub.InstallationID,
			PrivateKeyPath: r.GitHub.PrivateKeyPath,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Track: TrackConfig{
			BranchWorkers: r.Track.BranchWorkers,
			StatsWorkers:  r.Track.StatsWorkers,
			IgnoreFile:    r.Track.IgnoreFile,
		},
		Store: StoreConfig{
			Backend:       r.Store.Backend,
			OutputDir:     r.Store.OutputDir,
			RedisAddr:     r.Store.RedisAddr,
			RedisPassword: r.Store.RedisPassword,
			RedisDB:       r.Store.RedisDB,
			Namespace:     r.Store.Namespace,
			Retention:     r.Store.Retention.Duration,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELExporterEndpoint: r.Telemetry.OTELExporterEndpoint,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}
}
