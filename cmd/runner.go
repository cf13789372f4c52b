package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/auth"
	"github.com/desertthunder/spin/internal/services"
	"github.com/desertthunder/spin/internal/shared"
	"github.com/desertthunder/spin/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	auth       *auth.Manager
	spotify    *services.SpotifyService
	sources    []services.SourceClient
	api        *services.APIService
	aggregator *tasks.Aggregator
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Auth       *auth.Manager
	Spotify    *services.SpotifyService
	Sources    []services.SourceClient
	API        *services.APIService
	Aggregator *tasks.Aggregator
	Logger     *log.Logger
	Output     io.Writer
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
	if opts.Aggregator == nil && opts.Spotify != nil {
		opts.Aggregator = tasks.NewAggregator(opts.Spotify, opts.Sources, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		auth:       opts.Auth,
		spotify:    opts.Spotify,
		sources:    opts.Sources,
		api:        opts.API,
		aggregator: opts.Aggregator,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the runner's logger. The TUI uses this to redirect logs
// to a file so they don't corrupt the rendered screen.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		authCommand, searchCommand, enhancedSearchCommand, similarCommand, infoCommand,
		playlistCommand, playbackCommand, queueCommand, apiCommand, setupCommand, browseCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireSpotify reports a usable error when the runner was built without
// Spotify client credentials.
func (r *Runner) requireSpotify() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client not configured, run 'spin setup config' and fill in config.toml", shared.ErrMissingCredentials)
	}
	return nil
}

func (r *Runner) requireAggregator() error {
	if r.aggregator == nil {
		return fmt.Errorf("%w: Spotify client not configured, run 'spin setup config' and fill in config.toml", shared.ErrMissingCredentials)
	}
	return nil
}

func (r *Runner) requireAPI() error {
	if r.api == nil {
		return fmt.Errorf("%w: Spotify client not configured, run 'spin setup config' and fill in config.toml", shared.ErrMissingCredentials)
	}
	return nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
