package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbyt/workflow-engine/internal/facade"
)

func newRunCmd(app *AppContext) *cobra.Command {
	var configPath string
	var timeout time.Duration
	var dryRun bool
	var continueOnError bool
	var triggeredBy string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate and execute a workflow document",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}

			plan, err := app.Facade.LoadAndValidate(source)
			if err != nil {
				return err
			}

			result, err := app.Facade.Run(plan, nil, facade.RunOptions{
				Timeout:         timeout,
				DryRun:          dryRun,
				ContinueOnError: continueOnError,
				TriggeredBy:     triggeredBy,
				Identity:        facade.Identity{ExecutedBy: triggeredBy, WorkflowOwner: plan.Workflow.Owner},
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run %s finished with status %s\n", result.RunID, result.Status)
			for id, step := range result.Steps {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", id, step.Status)
			}
			if result.Error != nil {
				return result.Error
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "", "path to the workflow document")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "workflow-level timeout")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and plan without executing steps")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "continue past a failed step")
	cmd.Flags().StringVar(&triggeredBy, "triggered-by", "", "identity recorded in the run's audit context")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
