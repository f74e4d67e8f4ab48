package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/orchestrator"
	"github.com/bankops/bankctl/internal/stack"
)

var (
	logsFollow bool
	logsTail   int
)

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "View service logs",
	Long: `View logs for a single stack service. Logs can be tailed and followed
in real time; follow mode stops on Ctrl-C.

Examples:
  # Print all banking-api logs
  bankctl logs banking-api

  # Follow the last 100 kafka lines
  bankctl logs kafka -f --tail 100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)
		service := args[0]

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

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		name := model.ContainerName(cfg.Environment, service)
		stream, err := orch.Logs(ctx, name, orchestrator.LogsOptions{
			Follow: logsFollow,
			Tail:   logsTail,
		})
		if err != nil {
			if orchestrator.IsNotFound(err) {
				return fmt.Errorf("service %s is not deployed in environment %s", service, cfg.Environment)
			}
			return err
		}
		defer stream.Close()

		if _, err := io.Copy(os.Stdout, stream); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("log stream interrupted: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().String("env", "local", "target environment name")
	logsCmd.Flags().String("stack-file", "", "stack definition file (default is the built-in banking stack)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow logs in real-time")
	logsCmd.Flags().IntVar(&logsTail, "tail", 0, "show last N lines")
}
