package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitpulse/gitpulse/internal/report"
	"github.com/gitpulse/gitpulse/internal/track"
)

type trackOptions struct {
	username     string
	organization string
	timeframe    string
	startDate    string
	endDate      string
	personal     bool
	compare      bool

	includePRs     bool
	includeReviews bool
	includeIssues  bool
	includeLines   bool
	includeAll     bool

	repoIgnore string
	noProgress bool
	noSave     bool
}

func newTrackCommand(global *globalOptions) *cobra.Command {
	opts := &trackOptions{}

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track a user's contribution activity",
		Long: "Track commits, and optionally pull requests, reviews, issues, and line\n" +
			"statistics, across an organization's repositories or the user's own.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrack(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "GitHub username to track")
	cmd.Flags().StringVar(&opts.organization, "organization", "", "GitHub organization name")
	cmd.Flags().StringVarP(&opts.timeframe, "timeframe", "t", track.PresetOneWeek, "tracking window (3days|1week|1month|custom)")
	cmd.Flags().StringVar(&opts.startDate, "start-date", "", "custom window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.endDate, "end-date", "", "custom window end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.personal, "personal", false, "track the user's own repositories instead of an organization")
	cmd.Flags().BoolVar(&opts.compare, "compare", false, "compare organization and personal activity")
	cmd.Flags().BoolVar(&opts.includePRs, "include-prs", false, "include pull request metrics")
	cmd.Flags().BoolVar(&opts.includeReviews, "include-reviews", false, "include code review metrics")
	cmd.Flags().BoolVar(&opts.includeIssues, "include-issues", false, "include issue creation metrics")
	cmd.Flags().BoolVar(&opts.includeLines, "include-lines", false, "include line change statistics")
	cmd.Flags().BoolVar(&opts.includeAll, "all", false, "include all optional metrics")
	cmd.Flags().StringVar(&opts.repoIgnore, "repoignore", "", "path to repository ignore file")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable the progress bar")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not persist results")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runTrack(cmd *cobra.Command, global *globalOptions, opts *trackOptions) error {
	if !opts.personal && opts.organization == "" {
		return fmt.Errorf("--organization is required unless --personal is set")
	}

	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	window, err := track.ResolveWindow(opts.timeframe, opts.startDate, opts.endDate, time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if exists, err := rt.rest.UserExists(ctx, opts.username); err != nil {
		rt.logger.Warn("user lookup failed", zap.Error(err))
	} else if !exists {
		return fmt.Errorf("user %q not found on GitHub", opts.username)
	}

	ignoreFile := opts.repoIgnore
	if ignoreFile == "" {
		ignoreFile = cfg.Track.IgnoreFile
	}
	trackOpts := track.Options{
		IncludeLines:   opts.includeLines || opts.includeAll,
		IncludePRs:     opts.includePRs || opts.includeAll,
		IncludeReviews: opts.includeReviews || opts.includeAll,
		IncludeIssues:  opts.includeIssues || opts.includeAll,
		IgnoreFile:     ignoreFile,
		ShowProgress:   !opts.noProgress,
	}

	switch {
	case opts.compare:
		result, err := rt.tracker.Compare(ctx, opts.organization, opts.username, window, trackOpts)
		if err != nil {
			return err
		}
		rt.metrics.ObserveTrackingRun(string(track.ScopeOrganization), result.OrgResult.TotalCommits)
		rt.metrics.ObserveTrackingRun(string(track.ScopePersonal), result.Personal.TotalCommits)
		report.RenderComparison(os.Stdout, result)
		if opts.noSave {
			return nil
		}
		if _, err := rt.results.SaveComparison(ctx, result); err != nil {
			return fmt.Errorf("save comparison: %w", err)
		}
		if _, err := rt.results.SaveRatioSummary(ctx, result); err != nil {
			return fmt.Errorf("save ratio summary: %w", err)
		}
		return nil

	case opts.personal:
		result, err := rt.tracker.TrackPersonal(ctx, opts.username, window, trackOpts)
		if err != nil {
			return err
		}
		rt.metrics.ObserveTrackingRun(string(result.Scope), result.TotalCommits)
		report.RenderTracking(os.Stdout, result)
		if opts.noSave {
			return nil
		}
		if _, err := rt.results.SaveTracking(ctx, result); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
		return nil

	default:
		result, err := rt.tracker.TrackOrg(ctx, opts.organization, opts.username, window, trackOpts)
		if err != nil {
			return err
		}
		rt.metrics.ObserveTrackingRun(string(result.Scope), result.TotalCommits)
		report.RenderTracking(os.Stdout, result)
		if opts.noSave {
			return nil
		}
		if _, err := rt.results.SaveTracking(ctx, result); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
		return nil
	}
}
