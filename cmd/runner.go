package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotalyze/internal/models"
	"github.com/desertthunder/spotalyze/internal/services"
	"github.com/desertthunder/spotalyze/internal/shared"
	"github.com/desertthunder/spotalyze/internal/tasks"
)

// Authorizer obtains a user token for the analyze command.
type Authorizer interface {
	Authorize(ctx context.Context) (*models.TokenInfo, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Config, Authorizer and Provider are resolved per command when not injected.
type Runner struct {
	config      *shared.Config
	logger      *log.Logger
	output      io.Writer
	status      io.Writer
	engine      tasks.Analyzer
	authorizer  Authorizer
	provider    services.MusicAPIProvider
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	Logger      *log.Logger
	Output      io.Writer // command results
	Status      io.Writer // progress and prompts
	Engine      tasks.Analyzer
	Authorizer  Authorizer
	Provider    services.MusicAPIProvider
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Status == nil {
		opts.Status = os.Stderr
	}
	if opts.Engine == nil {
		opts.Engine = tasks.NewAnalysisEngine(shared.WithLogger(opts.Logger, "component", "analysis"))
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		logger:      opts.Logger,
		output:      opts.Output,
		status:      opts.Status,
		engine:      opts.Engine,
		authorizer:  opts.Authorizer,
		provider:    opts.Provider,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, analyzeCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config or resolves the one named by the --config flag,
// then applies its log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config := r.config
	if config == nil {
		path := cmd.String("config")
		if _, err := os.Stat(path); err != nil && cmd.IsSet("config") {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		}

		var err error
		if config, err = shared.ResolveConfig(path); err != nil {
			return nil, err
		}
	}

	shared.ParseLogLevel(r.logger, config.Log.Level)
	return config, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeStatus(format string, args ...any) {
	fmt.Fprintf(r.status, format, args...)
}
