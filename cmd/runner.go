package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/maestro/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
	app    *app
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

// SetLogger replaces the runner's logger. Must be called before the app is opened.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// open builds the app on first use.
func (r *Runner) open() (*app, error) {
	if r.app != nil {
		return r.app, nil
	}
	a, err := newApp(r.config, r.logger)
	if err != nil {
		return nil, err
	}
	r.app = a
	return a, nil
}

// Close releases the database when the app was opened.
func (r *Runner) Close() error {
	if r.app == nil {
		return nil
	}
	return r.app.Close()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, linkCommand, unlinkCommand,
		playCommand, playlistCommand, pauseCommand, resumeCommand, skipCommand, devicesCommand,
		consoleCommand, serveCommand, maintainCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
