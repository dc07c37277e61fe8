package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitpulse/gitpulse/internal/metrics"
	"github.com/gitpulse/gitpulse/internal/report"
	"github.com/gitpulse/gitpulse/internal/store"
)

type usersOptions struct {
	list       bool
	outputPath string
}

func newUsersCommand(global *globalOptions) *cobra.Command {
	opts := &usersOptions{}

	cmd := &cobra.Command{
		Use:   "users [username...]",
		Short: "Compare previously tracked users",
		Long: "Compare productivity metrics across users from persisted tracking\n" +
			"results. Run track first to collect data for each user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsers(cmd, global, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.list, "list", false, "list users with stored results")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "write comparison JSON to a file")
	return cmd
}

func runUsers(cmd *cobra.Command, global *globalOptions, opts *usersOptions, usernames []string) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	results, err := newResultStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		_ = results.Close()
	}()

	ctx := cmd.Context()
	if opts.list {
		users, err := results.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored results.")
			return nil
		}
		for _, user := range users {
			fmt.Fprintln(cmd.OutOrStdout(), user)
		}
		return nil
	}

	if len(usernames) < 1 {
		return fmt.Errorf("at least one username is required (or use --list)")
	}

	data := make(map[string]metrics.UserData, len(usernames))
	for _, username := range usernames {
		userData, err := loadUserData(ctx, results, username)
		if err != nil {
			return err
		}
		if userData == (metrics.UserData{}) {
			fmt.Fprintf(os.Stderr, "warning: no data found for user %q\n", username)
			continue
		}
		data[username] = userData
	}
	if len(data) == 0 {
		return fmt.Errorf("no stored data for any requested user")
	}

	comparison := metrics.CompareUsers(usernames, data, time.Now())
	report.RenderUserComparison(cmd.OutOrStdout(), comparison)

	if opts.outputPath != "" {
		payload, err := json.MarshalIndent(comparison, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal comparison: %w", err)
		}
		if err := os.WriteFile(opts.outputPath, payload, 0o644); err != nil {
			return fmt.Errorf("write comparison: %w", err)
		}
	}
	return nil
}

// loadUserData assembles whatever persisted documents exist for a user.
func loadUserData(ctx context.Context, results store.ResultStore, username string) (metrics.UserData, error) {
	data := metrics.UserData{}

	latest, err := results.LoadLatest(ctx, username)
	if err != nil {
		return metrics.UserData{}, err
	}
	if latest != nil {
		data.Raw = latest.Tracking
		data.Comparison = latest.Comparison
	}

	personal, err := results.LoadPersonal(ctx, username)
	if err != nil {
		return metrics.UserData{}, err
	}
	data.Personal = personal

	if data.Comparison == nil {
		comparisonDoc, err := results.LoadComparison(ctx, username)
		if err != nil {
			return metrics.UserData{}, err
		}
		data.Comparison = comparisonDoc
	}
	return data, nil
}
