package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newValidateCmd(app *AppContext) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow document without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}

			result := app.Facade.Validate(source)
			if result.Valid {
				fmt.Fprintln(cmd.OutOrStdout(), "workflow is valid")
				return nil
			}

			for _, verr := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), verr.Error())
			}
			return result.Errors[0]
		},
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "", "path to the workflow document")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
