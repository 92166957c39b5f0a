package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/channel"
	"github.com/desertthunder/stemx/internal/repositories"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/desertthunder/stemx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	separator  services.Separator
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db   *sql.DB
	jobs *repositories.JobRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Separator  services.Separator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
//
// A nil Separator is built from the loaded config in [Runner.Configure].
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
		config:     opts.Config,
		configPath: opts.ConfigPath,
		separator:  opts.Separator,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, separateCommand, uploadCommand, statusCommand, downloadCommand, playCommand, watchCommand,
		historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the config file named by --config, when it exists, and builds the backend client from it.
//
// A missing default config falls back to the embedded defaults; a missing file passed explicitly is an error.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else if cmd.IsSet("config") && !isSetupConfig(cmd) {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	if r.separator == nil {
		if r.httpClient == nil {
			r.httpClient = services.NewHTTPClient(ctx, r.config.Server.Token)
		}
		r.separator = services.NewClient(r.config.Server.BaseURL, r.httpClient, r.config.Limits)
	}

	r.logger.Debug("configured", "config", path, "server", r.config.Server.BaseURL)
	return ctx, nil
}

// isSetupConfig reports whether the invoked command is `setup config`, which creates the file --config names.
func isSetupConfig(cmd *cli.Command) bool {
	args := cmd.Args().Slice()
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "setup" && args[i+1] == "config" {
			return true
		}
	}
	return false
}

// Close releases the history database, if a command opened it.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.jobs = nil, nil
	return err
}

// SetLogger replaces the logger, used by the TUI to move logs off the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// history opens the job history on first use.
func (r *Runner) history() (*repositories.JobRepository, error) {
	if r.jobs != nil {
		return r.jobs, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	r.db = db
	r.jobs = repositories.NewJobRepository(db)
	return r.jobs, nil
}

// recorder returns the history as a [tasks.Recorder], or nil when it cannot be opened. Separation keeps working
// without history.
func (r *Runner) recorder() tasks.Recorder {
	jobs, err := r.history()
	if err != nil {
		r.logger.Warn("job history disabled", "err", err)
		return nil
	}
	return jobs
}

// newTracker builds a tracker for one session. Each tracker gets its own push channel connection.
func (r *Runner) newTracker(ctx context.Context, useChannel bool) *tasks.Tracker {
	opts := tasks.TrackerOptions{
		PollInterval: r.config.Polling.Interval,
		ErrorDisplay: r.config.UI.ErrorDisplay,
		Recorder:     r.recorder(),
	}
	if useChannel && r.config.Channel.Enabled {
		opts.Channel = channel.New(channel.OptionsFromConfig(r.config.Server, r.config.Channel), r.logger)
	}

	tracker := tasks.NewTracker(ctx, r.separator, opts, r.logger)
	tracker.Start()
	return tracker
}

func (r *Runner) downloadDir(cmd *cli.Command) string {
	if dir := cmd.String("output"); dir != "" {
		return dir
	}
	return r.config.UI.DownloadDir
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
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

// jobNotFound turns a repository miss into a user-facing error.
func jobNotFound(ref string, err error) error {
	if errors.Is(err, shared.ErrJobNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, ref)
	}
	return err
}
