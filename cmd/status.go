package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/pipeline"
	"github.com/bankops/bankctl/internal/report"
	"github.com/bankops/bankctl/internal/stack"
)

var (
	statusWatch    bool
	statusInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status [stack-file]",
	Short: "Show the state and health of every stack service",
	Long: `Status inspects every service container in the environment and probes
the running ones. All stack services are shown, including those a deploy
may have skipped through feature toggles.

Examples:
  # Show the local environment once
  bankctl status

  # Watch the staging environment (refresh every 5 seconds)
  bankctl status --env staging --watch --interval 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.StackFile = args[0]
		}

		st, err := stack.Load(cfg.StackFile, cfg)
		if err != nil {
			return err
		}

		orch, err := orchestrator.NewDockerOrchestrator(cfg.Environment, st.Network)
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}
		defer orch.Close()

		printer := report.NewPrinter(os.Stdout)
		ctx := context.Background()

		// If watch mode, loop
		if statusWatch {
			for {
				printer.StatusTable(cfg.Environment, statusRows(ctx, cfg, st, orch))
				time.Sleep(time.Duration(statusInterval) * time.Second)
				fmt.Print("\033[H\033[2J") // Clear screen
			}
		}

		printer.StatusTable(cfg.Environment, statusRows(ctx, cfg, st, orch))
		return nil
	},
}

// statusRows collects one row per stack service in stage order.
func statusRows(ctx context.Context, cfg *config.PipelineConfig, st *model.Stack, orch orchestrator.Orchestrator) []report.ServiceRow {
	probers := pipeline.StackProbers(cfg.Environment, orch)

	var rows []report.ServiceRow
	for i := range st.Stages {
		for j := range st.Stages[i].Steps {
			rows = append(rows, serviceRow(ctx, cfg, probers, orch, &st.Stages[i].Steps[j]))
		}
	}
	return rows
}

// serviceRow inspects one service container and, when it is running, probes
// it for health.
func serviceRow(ctx context.Context, cfg *config.PipelineConfig, probers pipeline.ProberFunc, orch orchestrator.Orchestrator, step *model.Step) report.ServiceRow {
	row := report.ServiceRow{Service: step.Service, Health: model.Unknown}

	status, err := orch.Status(ctx, model.ContainerName(cfg.Environment, step.Service))
	if err != nil {
		if orchestrator.IsNotFound(err) {
			row.State = "missing"
			row.Detail = "not deployed"
			return row
		}
		row.State = "error"
		row.Detail = err.Error()
		return row
	}

	row.State = status.State
	if !status.Running {
		row.Health = model.Unhealthy
		row.Detail = fmt.Sprintf("exit code %d", status.ExitCode)
		return row
	}
	if !status.StartedAt.IsZero() {
		row.Uptime = time.Since(status.StartedAt)
	}

	prober, err := probers(step)
	if err != nil {
		row.Detail = err.Error()
		return row
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ValidateTimeout)
	defer cancel()

	if err := prober.Probe(probeCtx); err != nil {
		row.Health = model.Unhealthy
		row.Detail = err.Error()
		return row
	}
	row.Health = model.Healthy
	return row
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("env", "local", "target environment name")
	statusCmd.Flags().String("stack-file", "", "stack definition file (default is the built-in banking stack)")
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "watch mode (refresh periodically)")
	statusCmd.Flags().IntVar(&statusInterval, "interval", 5, "watch interval in seconds")
}
