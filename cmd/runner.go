package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/auth"
	"github.com/desertthunder/dailyshuffle/internal/formatter"
	"github.com/desertthunder/dailyshuffle/internal/repositories"
	"github.com/desertthunder/dailyshuffle/internal/services"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"github.com/desertthunder/dailyshuffle/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *formatter.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config skips loading the config file when set.
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    formatter.DefaultPalette,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "dailyshuffle",
		Usage:    "Keep shuffled copies of Spotify playlists, refreshed every day",
		Version:  "0.1.0",
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, runCommand, jobsCommand, setupCommand, sweepCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig loads the config named by the command's --config flag, once.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config == nil {
		config, err := shared.Load(cmd.String("config"))
		if err != nil {
			return nil, err
		}
		r.config = config
	}

	if err := shared.SetLogLevel(r.logger, r.config.Log.Level); err != nil {
		return nil, err
	}
	return r.config, nil
}

// loadValidConfig is [Runner.loadConfig] for commands that talk to Spotify.
func (r *Runner) loadValidConfig(cmd *cli.Command) (*shared.Config, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// deps is the wired service graph shared by the serve, run and jobs commands.
type deps struct {
	db         *sql.DB
	creds      *repositories.CredentialRepository
	jobs       *repositories.JobRepository
	client     *services.SpotifyClient
	tokens     *auth.TokenManager
	authorizer *auth.Authorizer
	sessions   *auth.SessionAuthenticator
	runner     *tasks.Runner
	jobService *tasks.JobService
}

func (r *Runner) open(config *shared.Config) (*deps, error) {
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, err
	}

	httpClient := r.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Spotify.HTTPTimeout}
	}

	d := &deps{
		db:    db,
		creds: repositories.NewCredentialRepository(db),
		jobs:  repositories.NewJobRepository(db),
	}

	oauthConfig := auth.NewOAuthConfig(config.Spotify)
	locks := &shared.KeyedMutex{}
	d.client = services.NewSpotifyClient(config.Spotify, r.logger, services.WithHTTPClient(httpClient))
	d.tokens = auth.NewTokenManager(d.creds, locks, oauthConfig, httpClient, r.logger)
	d.authorizer = auth.NewAuthorizer(oauthConfig, auth.NewVerifierStore(), config.Session.VerifierTTL, d.client, d.creds, locks, httpClient, r.logger)
	d.sessions = auth.NewSessionAuthenticator(d.creds, locks, config.Session, r.logger)
	d.runner = tasks.NewRunner(d.jobs, d.tokens, d.client, d.authorizer, config.Scheduler, r.logger)
	d.jobService = tasks.NewJobService(d.jobs, d.creds, d.tokens, d.client, d.runner, r.logger)

	return d, nil
}

func (d *deps) Close() error {
	return d.db.Close()
}

// withDeps loads a validated config, wires the service graph and closes it after fn.
func (r *Runner) withDeps(cmd *cli.Command, fn func(config *shared.Config, d *deps) error) error {
	config, err := r.loadValidConfig(cmd)
	if err != nil {
		return err
	}

	d, err := r.open(config)
	if err != nil {
		return err
	}
	defer d.Close()

	return fn(config, d)
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

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
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
