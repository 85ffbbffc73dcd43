package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotalyze/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "spotalyze",
		Usage:    "Analyze your Spotify library's genres & audio features",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrMissingConfig) {
			logger.Fatalf("%v (run `spotalyze setup config` to create one)", err)
		}
		logger.Fatalf("application error: %v", err)
	}
}
