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

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/stack"
	"github.com/bankops/bankctl/internal/utils/logger"
)

var teardownVolumes bool

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Remove the deployed stack",
	Long: `Teardown removes every container belonging to the environment. Data
volumes are kept unless --volumes is given, so a stopped stack can be
inspected or redeployed against the same data.

Examples:
  # Stop and remove the local stack, keep data volumes
  bankctl teardown

  # Remove the staging stack including its data
  bankctl teardown --env staging --volumes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
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

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(sigCtx, cfg.CleanupTimeout)
		defer cancel()

		if err := orch.RemoveAll(ctx, orchestrator.RemoveOptions{Volumes: teardownVolumes}); err != nil {
			return fmt.Errorf("teardown incomplete: %w", err)
		}

		// The network only goes when the data does; a kept volume implies
		// the stack will come back.
		if teardownVolumes {
			if err := orch.RemoveNetwork(ctx); err != nil {
				logger.Warn("Failed to remove network", zap.String("network", st.Network), zap.Error(err))
			}
		}

		if teardownVolumes {
			fmt.Printf("Removed environment '%s' including data volumes\n", cfg.Environment)
		} else {
			fmt.Printf("Removed environment '%s' (data volumes kept)\n", cfg.Environment)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(teardownCmd)

	teardownCmd.Flags().String("env", "local", "target environment name")
	teardownCmd.Flags().String("stack-file", "", "stack definition file (default is the built-in banking stack)")
	teardownCmd.Flags().Duration("cleanup-timeout", 60*time.Second, "how long teardown may take")
	teardownCmd.Flags().BoolVar(&teardownVolumes, "volumes", false, "also remove data volumes and the network")
}
