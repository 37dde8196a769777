package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/aggregator"
	"github.com/desertthunder/tunefeed/internal/auth"
	"github.com/desertthunder/tunefeed/internal/cache"
	"github.com/desertthunder/tunefeed/internal/chords"
	"github.com/desertthunder/tunefeed/internal/metrics"
	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/services"
	"github.com/desertthunder/tunefeed/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the loaded configuration on first use.
type Runner struct {
	config      *shared.Config
	configFixed bool
	lookupEnv   func(string) (string, bool)
	catalog     services.Catalog
	issuer      auth.Issuer
	charts      services.Charts
	generator   services.TextGenerator
	httpClient  *http.Client
	metrics     *metrics.Metrics
	logger      *log.Logger
	output      io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Catalog    services.Catalog
	Issuer     auth.Issuer
	Charts     services.Charts
	Generator  services.TextGenerator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	LookupEnv  func(string) (string, bool)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	fixed := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}

	return &Runner{
		config:      opts.Config,
		configFixed: fixed,
		lookupEnv:   opts.LookupEnv,
		catalog:     opts.Catalog,
		issuer:      opts.Issuer,
		charts:      opts.Charts,
		generator:   opts.Generator,
		httpClient:  opts.HTTPClient,
		metrics:     metrics.New(),
		logger:      opts.Logger,
		output:      opts.Output,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "tunefeed",
		Usage:   "Aggregate new music releases, track matches, charts, and chord suggestions",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, releasesCommand, trackCommand, chartsCommand, chordsCommand, probeCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config and sets the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.configFixed {
		cfg, err := r.loadConfig(cmd.String("config"), cmd.IsSet("config"))
		if err != nil {
			return ctx, err
		}
		r.config = cfg
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// loadConfig reads path when it exists. A missing default path falls back to the embedded defaults
// with environment overrides; a missing explicit path is an error.
func (r *Runner) loadConfig(path string, explicit bool) (*shared.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("%w: config file %s not found", shared.ErrInvalidConfig, path)
		}
		cfg := shared.DefaultConfig()
		cfg.ApplyEnv(r.lookupEnv)
		return cfg, nil
	}

	cfg, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loaded config", "path", path)
	return cfg, nil
}

func (r *Runner) clientOptions() services.ClientOptions {
	opts := services.ClientOptionsFrom(r.config.Upstream, r.logger, r.metrics)
	opts.HTTPClient = r.httpClient
	return opts
}

// releaseStack is the catalog side of the service: token manager, release cache and aggregator.
type releaseStack struct {
	cache  *aggregator.ReleaseCache
	tokens *auth.TokenManager
	agg    *aggregator.Aggregator
}

// Close stops the background timers owned by the stack.
func (s *releaseStack) Close() {
	s.tokens.Stop()
	s.cache.Stop()
}

func (r *Runner) releaseStack() (*releaseStack, error) {
	catalog, issuer := r.catalog, r.issuer
	if catalog == nil {
		spotify, err := services.NewSpotifyService(r.config.Credentials.Spotify, r.clientOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to configure catalog: %w", err)
		}
		catalog = spotify
		if issuer == nil {
			issuer = spotify
		}
	}
	if issuer == nil {
		return nil, fmt.Errorf("%w: no credential issuer for %s", shared.ErrMissingCredentials, catalog.Name())
	}

	tokens := auth.NewTokenManager(issuer, auth.Options{
		SafetyMargin: r.config.Auth.SafetyMargin,
		RetryDelay:   r.config.Auth.RetryDelay,
		Timeout:      r.config.Auth.Timeout,
		Recorder:     r.metrics,
		Logger:       r.logger,
	})

	releases := cache.New[[]models.ReleaseSummary](cache.Options{
		DefaultTTL:    r.config.Cache.DefaultTTL,
		SweepInterval: r.config.Cache.SweepInterval,
		Recorder:      r.metrics,
		Logger:        r.logger,
	})

	opts := aggregator.OptionsFrom(r.config)
	opts.Recorder = r.metrics
	opts.Logger = r.logger

	return &releaseStack{
		cache:  releases,
		tokens: tokens,
		agg:    aggregator.New(catalog, tokens, releases, opts),
	}, nil
}

// chartsService returns the injected charts collaborator or builds one from the Last.fm credentials.
func (r *Runner) chartsService() (services.Charts, error) {
	if r.charts != nil {
		return r.charts, nil
	}

	charts, err := services.NewLastFMService(r.config.Credentials.LastFM, r.clientOptions())
	if err != nil {
		return nil, err
	}
	r.charts = charts
	return charts, nil
}

// chordService returns a chord generator backed by the injected or configured text generator.
func (r *Runner) chordService() (*chords.Service, error) {
	if r.generator == nil {
		gen, err := services.NewAnthropicService(r.config.Credentials.Anthropic, r.clientOptions())
		if err != nil {
			return nil, err
		}
		r.generator = gen
	}
	return chords.NewService(r.generator, r.logger), nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
