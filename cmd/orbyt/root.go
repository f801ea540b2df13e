package main

import (
	"github.com/spf13/cobra"

	"github.com/orbyt/workflow-engine/internal/logger"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "orbyt",
		Short:         "orbyt validates, runs, and explains workflow definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.verbose {
				verboseLogger, err := logger.New(logger.Options{Level: "debug", HumanReadable: true, Layer: "cli", Component: "orbyt"})
				if err != nil {
					return err
				}
				app.Logger = verboseLogger
			}
			return app.Bootstrap()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose logging")

	cmd.AddCommand(newValidateCmd(app))
	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newExplainCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
