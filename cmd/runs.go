package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/report"
	"github.com/bankops/bankctl/internal/storage"
)

var runsLimit int

// runsCmd represents the runs command group
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded deployment runs",
	Long: `View the run history recorded by deploy.

Examples:
  # List the most recent runs
  bankctl runs list

  # List the last 5 runs for staging
  bankctl runs list --env staging --limit 5

  # Show the full report of one run
  bankctl runs show 4f7c9ab2`,
}

// runsListCmd lists recorded runs newest first
var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openRunHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		reports, err := store.ListRuns(context.Background(), runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		report.NewPrinter(os.Stdout).RunList(reports)
		return nil
	},
}

// runsShowCmd prints the full report of a single run
var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openRunHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		rep, err := store.GetRun(context.Background(), args[0])
		if err != nil {
			if storage.IsNotFound(err) {
				return fmt.Errorf("run %s not found", args[0])
			}
			return fmt.Errorf("failed to load run: %w", err)
		}

		report.NewPrinter(os.Stdout).RunDetail(rep)
		return nil
	},
}

func openRunHistory(cfg *config.PipelineConfig) (*storage.BoltRunStore, error) {
	store := storage.NewBoltRunStore(&storage.BoltOptions{Path: cfg.HistoryPath()})
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().String("env", "local", "target environment name")
	runsListCmd.Flags().String("work-dir", ".bankctl", "working directory holding run history")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")

	runsShowCmd.Flags().String("env", "local", "target environment name")
	runsShowCmd.Flags().String("work-dir", ".bankctl", "working directory holding run history")
}
