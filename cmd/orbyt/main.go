package main

import (
	"context"
	"fmt"
	"os"

	logginginfra "github.com/orbyt/workflow-engine/internal/infrastructure/logging"
	"github.com/orbyt/workflow-engine/internal/logger"
)

func main() {
	appLogger, err := logger.New(logger.Options{
		Level:         "info",
		HumanReadable: true,
		Layer:         "cli",
		Component:     "orbyt",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application logger: %v\n", err)
		os.Exit(1)
	}

	correlationID := logginginfra.GenerateCorrelationID()
	ctx := logginginfra.WithCorrelationID(context.Background(), correlationID)

	app := &AppContext{Logger: appLogger}
	rootCmd := newRootCmd(app)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
