package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/build"
	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/fixtures"
	"github.com/bankops/bankctl/internal/launch"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/pipeline"
	"github.com/bankops/bankctl/internal/report"
	"github.com/bankops/bankctl/internal/stack"
	"github.com/bankops/bankctl/internal/storage"
	"github.com/bankops/bankctl/internal/utils/logger"
)

var deployWatch bool

var deployCmd = &cobra.Command{
	Use:   "deploy [stack-file]",
	Short: "Deploy and verify the banking stack",
	Long: `Deploy runs the full pipeline: prerequisite checks, environment setup,
cleanup of the previous deployment, image builds, fixture staging, staged
service startup with health gating, the test suites, and a final validation
gate. The run ends with a summary report and is recorded in run history.

Examples:
  # Deploy the default local environment
  bankctl deploy

  # Deploy a named environment from a stack file, without monitoring
  bankctl deploy ./stack.yaml --env staging --monitoring=false

  # Deploy, then re-run the validation gate whenever the stack file changes
  bankctl deploy ./stack.yaml --watch`,
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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if deployWatch {
			return watchAndDeploy(ctx, cfg)
		}
		return runDeployment(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().String("env", "local", "target environment name")
	deployCmd.Flags().String("stack-file", "", "stack definition file (default is the built-in banking stack)")
	deployCmd.Flags().String("work-dir", ".bankctl", "working directory for fixtures, logs, and run history")
	deployCmd.Flags().Bool("skip-unit", false, "skip the unit test suite")
	deployCmd.Flags().Bool("skip-integration", false, "skip the integration test suite")
	deployCmd.Flags().Bool("skip-e2e", false, "skip the end-to-end test suite")
	deployCmd.Flags().Bool("skip-api-tests", false, "skip the API test suite")
	deployCmd.Flags().Bool("force-rebuild", false, "clean before building application images")
	deployCmd.Flags().Bool("monitoring", true, "deploy the monitoring services")
	deployCmd.Flags().Bool("directory", false, "deploy the directory services")
	deployCmd.Flags().Int("parallel", 1, "maximum services starting concurrently within a stage")
	deployCmd.Flags().Duration("health-timeout", 120*time.Second, "how long to wait for each service to become healthy")
	deployCmd.Flags().Duration("poll-interval", 2*time.Second, "interval between health probe attempts")
	deployCmd.Flags().Duration("cleanup-timeout", 60*time.Second, "how long cleanup and teardown may take")
	deployCmd.Flags().Int("min-disk-gb", 5, "minimum free disk space required to start")
	deployCmd.Flags().BoolVar(&deployWatch, "watch", false, "watch the stack file and redeploy on change")
}

// runDeployment wires the pipeline together for one run and executes it.
func runDeployment(ctx context.Context, cfg *config.PipelineConfig) error {
	st, err := stack.Load(cfg.StackFile, cfg)
	if err != nil {
		return err
	}

	orch, err := orchestrator.NewDockerOrchestrator(cfg.Environment, st.Network)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orch.Close()

	// Run history is best effort: a locked or unwritable database must not
	// block a deployment.
	var store storage.RunStore
	history := storage.NewBoltRunStore(&storage.BoltOptions{Path: cfg.HistoryPath()})
	if err := history.Open(); err != nil {
		logger.Warn("Run history unavailable", zap.Error(err))
	} else {
		store = history
		defer history.Close()
	}

	targets, err := pipeline.GateTargets(cfg, st, orch)
	if err != nil {
		return err
	}

	runner := build.NewExecRunner()
	launcher := launch.New(cfg.Environment, st, orch)

	ctrl := pipeline.NewController(cfg, st, pipeline.Deps{
		Runtime:  orch,
		Stages:   pipeline.NewStageRunner(cfg, launcher, pipeline.StackProbers(cfg.Environment, orch)),
		Builder:  build.New(cfg.Build, runner),
		Fixtures: fixtures.New(cfg),
		Tests:    pipeline.NewTestRunner(cfg, runner),
		Gate:     pipeline.NewGate(cfg.ValidateTimeout, targets),
		Store:    store,
		Printer:  report.NewPrinter(os.Stdout),
	})

	_, err = ctrl.Run(ctx)
	return err
}

// watchAndDeploy deploys once, then re-runs the validation gate against the
// running stack whenever the stack file changes. A failed initial deploy
// keeps the watch alive so the next edit can fix it.
func watchAndDeploy(ctx context.Context, cfg *config.PipelineConfig) error {
	if cfg.StackFile == "" {
		return fmt.Errorf("--watch requires a stack file")
	}

	if err := runDeployment(ctx, cfg); err != nil {
		logger.Error("Deployment failed, watching for changes", zap.Error(err))
	}

	// Coalesce change events that arrive while a check is running.
	changed := make(chan string, 1)
	watcher, err := stack.NewWatcher(func(path string) error {
		select {
		case changed <- path:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create stack watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Watch(cfg.StackFile); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.StackFile, err)
	}

	logger.Info("Watching stack file for changes", zap.String("file", cfg.StackFile))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watch mode")
			return nil
		case path := <-changed:
			logger.Info("Stack file changed, revalidating", zap.String("file", path))
			if err := revalidate(ctx, cfg); err != nil {
				logger.Error("Validation failed", zap.Error(err))
			}
		}
	}
}

// revalidate reloads the stack file and runs the validation gate against the
// services that are already up.
func revalidate(ctx context.Context, cfg *config.PipelineConfig) error {
	st, err := stack.Load(cfg.StackFile, cfg)
	if err != nil {
		return err
	}

	orch, err := orchestrator.NewDockerOrchestrator(cfg.Environment, st.Network)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	defer orch.Close()

	targets, err := pipeline.GateTargets(cfg, st, orch)
	if err != nil {
		return err
	}

	result := pipeline.NewGate(cfg.ValidateTimeout, targets).Validate(ctx)
	report.NewPrinter(os.Stdout).Gate(result)
	return nil
}
