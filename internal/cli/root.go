// Package cli implements the gitpulse command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gitpulse/gitpulse/internal/config"
)

type globalOptions struct {
	configPath string
	token      string
	logLevel   string
}

// loadConfig resolves the effective configuration from the config file,
// defaults, and command-line overrides.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if g.configPath != "" {
		loaded, err := config.LoadFile(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if g.token != "" {
		cfg.GitHub.Token = g.token
	}
	if g.logLevel != "" {
		cfg.Server.LogLevel = g.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// NewRootCommand builds the gitpulse command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "gitpulse",
		Short:         "Track and compare GitHub contribution activity",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "GitHub personal access token (overrides GITHUB_TOKEN)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")

	root.AddCommand(newTrackCommand(opts))
	root.AddCommand(newUsersCommand(opts))
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(level))
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func logLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
