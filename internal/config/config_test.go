package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		yaml       string
		wantErr    bool
		errSubstrs []string
	}{
		{
			name: "valid_full_configuration",
			yaml: `
server:
  enabled: true
  listen_addr: ":9090"
  log_level: "info"
github:
  api_base_url: "https://api.github.com"
  token: "ghp_example"
  request_timeout: "20s"
rate_limit:
  min_remaining_threshold: 5
  min_reset_buffer: "10s"
  secondary_limit_backoff: "60s"
retry:
  max_attempts: 5
  initial_backoff: "2s"
  max_backoff: "2m"
track:
  branch_workers: 3
  stats_workers: 5
  ignore_file: ".repoignore"
store:
  backend: "redis"
  redis_addr: "redis:6379"
  redis_password: ""
  redis_db: 0
  namespace: "gitpulse"
  retention: "30d"
telemetry:
  otel_enabled: false
  otel_exporter_otlp_endpoint: ""
  otel_trace_mode: "off"
  otel_trace_sample_ratio: 0.05
`,
		},
		{
			name: "valid_minimal_configuration_uses_defaults",
			yaml: `
github:
  token: "ghp_example"
`,
		},
		{
			name: "invalid_log_level",
			yaml: `
server:
  log_level: "verbose"
`,
			wantErr:    true,
			errSubstrs: []string{"server.log_level"},
		},
		{
			name: "unknown_field_rejected",
			yaml: `
github:
  token: "ghp_example"
  unknown_field: true
`,
			wantErr:    true,
			errSubstrs: []string{"unmarshal yaml"},
		},
		{
			name: "partial_app_auth_rejected",
			yaml: `
github:
  app_id: 111111
  private_key_path: "/etc/gitpulse/key.pem"
`,
			wantErr:    true,
			errSubstrs: []string{"app auth requires"},
		},
		{
			name: "redis_backend_requires_addr",
			yaml: `
store:
  backend: "redis"
`,
			wantErr:    true,
			errSubstrs: []string{"store.redis_addr"},
		},
		{
			name: "unknown_store_backend",
			yaml: `
store:
  backend: "s3"
`,
			wantErr:    true,
			errSubstrs: []string{"store.backend"},
		},
		{
			name: "sample_ratio_out_of_range",
			yaml: `
telemetry:
  otel_trace_sample_ratio: 1.5
`,
			wantErr:    true,
			errSubstrs: []string{"otel_trace_sample_ratio"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load(strings.NewReader(tc.yaml))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Load() error = nil, want error")
				}
				for _, substr := range tc.errSubstrs {
					if !strings.Contains(err.Error(), substr) {
						t.Fatalf("Load() error %q missing %q", err.Error(), substr)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg == nil {
				t.Fatalf("Load() config = nil")
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(`
github:
  token: "ghp_example"
`))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Fatalf("ListenAddr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.GitHub.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %v, want 30s", cfg.GitHub.RequestTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialBackoff != time.Second || cfg.Retry.MaxBackoff != time.Minute {
		t.Fatalf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.RateLimit.MinRemainingThreshold != 1 || cfg.RateLimit.MinResetBuffer != time.Second {
		t.Fatalf("rate limit defaults = %+v", cfg.RateLimit)
	}
	if cfg.Track.BranchWorkers != 3 || cfg.Track.StatsWorkers != 5 || cfg.Track.IgnoreFile != ".repoignore" {
		t.Fatalf("track defaults = %+v", cfg.Track)
	}
	if cfg.Store.Backend != "fs" || cfg.Store.OutputDir != "outputs" || cfg.Store.Namespace != "gitpulse" {
		t.Fatalf("store defaults = %+v", cfg.Store)
	}
}

func TestLoadParsesExtendedDurations(t *testing.T) {
	t.Parallel()

	cfg, err := Load(strings.NewReader(`
github:
  token: "ghp_example"
store:
  retention: "30d"
rate_limit:
  min_reset_buffer: "1w"
`))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Store.Retention != 30*24*time.Hour {
		t.Fatalf("Retention = %v, want 720h", cfg.Store.Retention)
	}
	if cfg.RateLimit.MinResetBuffer != 7*24*time.Hour {
		t.Fatalf("MinResetBuffer = %v, want 168h", cfg.RateLimit.MinResetBuffer)
	}
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_from_env")

	cfg, err := Load(strings.NewReader(`
server:
  log_level: "debug"
`))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.GitHub.Token != "ghp_from_env" {
		t.Fatalf("Token = %q, want ghp_from_env", cfg.GitHub.Token)
	}

	cfg, err = Load(strings.NewReader(`
github:
  token: "ghp_from_file"
`))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.GitHub.Token != "ghp_from_file" {
		t.Fatalf("Token = %q, file token must win over env", cfg.GitHub.Token)
	}
}

func TestUseInstallationAuth(t *testing.T) {
	t.Parallel()

	github := GitHubConfig{AppID: 1, InstallationID: 2, PrivateKeyPath: "/tmp/key.pem"}
	if !github.UseInstallationAuth() {
		t.Fatalf("UseInstallationAuth() = false, want true")
	}

	github.PrivateKeyPath = ""
	if github.UseInstallationAuth() {
		t.Fatalf("UseInstallationAuth() = true, want false")
	}
}

func TestLoadNilReader(t *testing.T) {
	t.Parallel()

	if _, err := Load(nil); err == nil {
		t.Fatalf("Load(nil) error = nil, want error")
	}
}

func TestParseFlexibleDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "standard_unit", raw: "90s", want: 90 * time.Second},
		{name: "days", raw: "2d", want: 48 * time.Hour},
		{name: "fractional_days", raw: "0.5d", want: 12 * time.Hour},
		{name: "weeks", raw: "1w", want: 7 * 24 * time.Hour},
		{name: "empty", raw: "", want: 0},
		{name: "invalid_unit", raw: "5y", wantErr: true},
		{name: "invalid_value", raw: "xd", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseFlexibleDuration(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseFlexibleDuration(%q) error = nil, want error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlexibleDuration(%q) unexpected error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("parseFlexibleDuration(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
