package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExplainCmd(app *AppContext) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print a dry-run analysis of a workflow document",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}

			plan, err := app.Facade.LoadAndValidate(source)
			if err != nil {
				return err
			}

			exp, err := app.Facade.Explain(plan, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d steps, adapters: %v)\n", exp.Summary.Name, exp.Summary.StepCount, exp.Summary.Adapters)
			for _, phase := range exp.Phases {
				fmt.Fprintf(out, "phase %d: %v\n", phase.Index, phase.StepIDs)
			}
			fmt.Fprintf(out, "critical path: %v (est. %s)\n", exp.Time.CriticalPath, exp.Time.TotalEstimated)
			if len(exp.Time.Bottlenecks) > 0 {
				fmt.Fprintf(out, "bottlenecks: %v\n", exp.Time.Bottlenecks)
			}
			if len(exp.Cycles) > 0 {
				fmt.Fprintf(out, "cycles detected: %v\n", exp.Cycles)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "", "path to the workflow document")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
