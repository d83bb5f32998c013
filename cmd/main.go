package main

import (
	"context"
	"os"

	"github.com/desertthunder/maestro/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config: loadConfig("config.toml", logger),
		Logger: logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "maestro",
		Usage:    "Play music on a linked streaming account from plain-language requests",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
