package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/repositories"
	"github.com/hbarnett99/so-you-made-a-mix/internal/services"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"github.com/hbarnett99/so-you-made-a-mix/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Catalog clients are built from the resolved config unless injected through [RunnerOpts].
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.PlaylistSource
	matcher    services.CatalogMatcher
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     services.PlaylistSource
	Matcher    services.CatalogMatcher
	HTTPClient *http.Client
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.HTTP.Timeout}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		matcher:    opts.Matcher,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, workerCommand, matchCommand, statusCommand, watchCommand, downloadCommand, setupCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the config file named by --config plus environment overrides.
//
// Runs as the root command's Before hook so every subcommand sees the same config.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	config, err := shared.ResolveConfig(path)
	if err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	r.httpClient.Timeout = config.HTTP.Timeout

	level := shared.ParseLogLevel(config.LogLevel)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

func (r *Runner) retry() shared.RetryPolicy {
	return shared.NewRetryPolicy(r.config.HTTP)
}

// apiClient returns a client for the API server, preferring --server over the configured URL.
func (r *Runner) apiClient(cmd *cli.Command) *services.APIService {
	baseURL := r.config.Server.URL
	if s := cmd.String("server"); s != "" {
		baseURL = s
	}
	return services.NewAPIService(baseURL, r.httpClient, r.retry())
}

func (r *Runner) playlistSource() (services.PlaylistSource, error) {
	if r.source != nil {
		return r.source, nil
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	r.source = services.NewSpotifyService(creds,
		services.WithSpotifyHTTPClient(r.httpClient),
		services.WithSpotifyRetry(r.retry()),
		services.WithSpotifyLogger(shared.WithLogger(r.logger, "component", "spotify")),
	)
	return r.source, nil
}

func (r *Runner) catalogMatcher() (services.CatalogMatcher, error) {
	if r.matcher != nil {
		return r.matcher, nil
	}

	creds := r.config.Credentials.Tidal
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: tidal client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	auth := services.NewAuthCache(creds,
		services.WithAuthHTTPClient(r.httpClient),
		services.WithAuthRetry(r.retry()),
		services.WithAuthLogger(shared.WithLogger(r.logger, "component", "auth")),
	)
	r.matcher = services.NewTidalService(creds, auth,
		services.WithTidalHTTPClient(r.httpClient),
		services.WithTidalRetry(r.retry()),
		services.WithTidalLogger(shared.WithLogger(r.logger, "component", "tidal")),
	)
	return r.matcher, nil
}

// openCache opens the candidate cache when the database is enabled. The returned db is nil otherwise.
func (r *Runner) openCache() (*sql.DB, *repositories.CandidateRepository, error) {
	if !r.config.Database.Enabled {
		return nil, nil, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.NewCandidateRepository(db), nil
}

// buildEnhancer wires the source, matcher and optional candidate cache into a [tasks.PlaylistEnhancer].
//
// The caller closes the returned db when it is non-nil.
func (r *Runner) buildEnhancer(logger *log.Logger) (*tasks.PlaylistEnhancer, *sql.DB, error) {
	source, err := r.playlistSource()
	if err != nil {
		return nil, nil, err
	}
	matcher, err := r.catalogMatcher()
	if err != nil {
		return nil, nil, err
	}

	opts := []tasks.EngineOption{tasks.WithEngineLogger(shared.WithLogger(logger, "component", "matcher"))}
	db, cache, err := r.openCache()
	if err != nil {
		return nil, nil, err
	}
	if cache != nil {
		opts = append(opts, tasks.WithCache(cache))
	}

	engine := tasks.NewMatchEngineFromConfig(matcher, r.config.Matching, opts...)
	return tasks.NewPlaylistEnhancer(source, engine), db, nil
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
