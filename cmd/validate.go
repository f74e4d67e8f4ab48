package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/stack"
)

var validateCmd = &cobra.Command{
	Use:   "validate [stack-file]",
	Short: "Validate a stack definition file",
	Long: `Validate a stack YAML file before deploying it.

This command checks for common configuration errors including:
- YAML structure and required fields
- Duplicate service names
- Host port conflicts
- Unknown, cross-stage, and cyclic dependencies
- Probe definitions and per-step timeout syntax
- Unknown feature toggles

Examples:
  # Validate a stack file
  bankctl validate my-stack.yaml

  # Validate the built-in banking stack
  bankctl validate`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindFlags(cmd)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		stackFile := cfg.StackFile
		if len(args) > 0 {
			stackFile = args[0]
		}

		// An empty path validates the built-in stack.
		if stackFile != "" {
			if _, err := os.Stat(stackFile); err != nil {
				return fmt.Errorf("stack file not found: %s", stackFile)
			}
		}

		_, result, err := stack.LoadAndValidate(stackFile, cfg)
		if err != nil {
			return fmt.Errorf("failed to load stack: %w", err)
		}

		// Print results
		fmt.Println(result.Format())

		// Exit with error code if validation failed
		if !result.Valid {
			os.Exit(1)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("env", "local", "target environment name")
	validateCmd.Flags().String("stack-file", "", "stack definition file (default is the built-in banking stack)")
}
