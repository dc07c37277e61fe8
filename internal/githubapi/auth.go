package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// InstallationAuthConfig configures GitHub App installation authentication.
type InstallationAuthConfig struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	Timeout        time.Duration
	BaseTransport  http.RoundTripper
}

// RESTClient wraps the go-github REST client.
type RESTClient struct {
	Client *github.Client
}

// NewTokenHTTPClient creates an HTTP client authenticated with a personal
// access token. An empty token yields an unauthenticated client subject to
// the much smaller anonymous rate limits.
func NewTokenHTTPClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return &http.Client{Timeout: timeout}
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: trimmed})
	client := oauth2.NewClient(ctx, source)
	client.Timeout = timeout
	return client
}

// NewInstallationHTTPClient creates an authenticated HTTP client for one GitHub App installation.
func NewInstallationHTTPClient(cfg InstallationAuthConfig) (*http.Client, error) {
	if cfg.AppID <= 0 {
		return nil, fmt.Errorf("app id must be > 0")
	}
	if cfg.InstallationID <= 0 {
		return nil, fmt.Errorf("installation id must be > 0")
	}
	if strings.TrimSpace(cfg.PrivateKeyPath) == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	baseTransport := cfg.BaseTransport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	transport, err := ghinstallation.NewKeyFromFile(baseTransport, cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("create github app transport: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}

// NewGitHubRESTClient creates a go-github client with optional API base URL override.
func NewGitHubRESTClient(httpClient *http.Client, apiBaseURL string) (*RESTClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := github.NewClient(httpClient)
	trimmedBaseURL := strings.TrimSpace(apiBaseURL)
	if trimmedBaseURL == "" {
		return &RESTClient{Client: client}, nil
	}

	parsedURL, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	client.BaseURL = parsedURL
	return &RESTClient{Client: client}, nil
}

// ValidateCredentials confirms the configured credentials are accepted by
// the API and reports the authenticated login. Unauthenticated clients get
// an empty login and no error.
func (c *RESTClient) ValidateCredentials(ctx context.Context) (string, error) {
	if c == nil || c.Client == nil {
		return "", fmt.Errorf("rest client is not initialized")
	}

	authenticated, resp, err := c.Client.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("github rejected the configured token")
		}
		return "", fmt.Errorf("validate credentials: %w", err)
	}
	return authenticated.GetLogin(), nil
}

// UserExists reports whether a login names an existing GitHub user.
func (c *RESTClient) UserExists(ctx context.Context, login string) (bool, error) {
	if c == nil || c.Client == nil {
		return false, fmt.Errorf("rest client is not initialized")
	}
	trimmed := strings.TrimSpace(login)
	if trimmed == "" {
		return false, fmt.Errorf("login is required")
	}

	_, resp, err := c.Client.Users.Get(ctx, trimmed)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("look up user %q: %w", trimmed, err)
	}
	return true, nil
}
