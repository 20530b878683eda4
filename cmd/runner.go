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
	"github.com/desertthunder/adder/internal/downloader"
	"github.com/desertthunder/adder/internal/services"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/desertthunder/adder/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	creds      tasks.CredentialSource
	downloader downloader.Downloader
	// ownsDownloader is set when downloader was built from config rather than injected.
	ownsDownloader bool
	httpClient     *http.Client
	logger         *log.Logger
	output         io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog, Credentials and Downloader are built from Config when left nil.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Catalog     services.Catalog
	Credentials tasks.CredentialSource
	Downloader  downloader.Downloader
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
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
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		creds:      opts.Credentials,
		downloader: opts.Downloader,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, resolveCommand, followCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// useConfig switches to the config file named by an explicit --config flag when it differs from the one loaded
// at startup. Services built from the previous config are discarded.
func (r *Runner) useConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if !cmd.IsSet("config") || path == "" || path == r.configPath {
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	shared.ApplyEnv(config, ".env")

	r.config = config
	r.configPath = path
	r.catalog = nil
	r.creds = nil
	r.downloader = nil
	r.ownsDownloader = false
	return nil
}

// spotifyCatalog returns the injected catalog or builds the Spotify Web API client from config.
func (r *Runner) spotifyCatalog() services.Catalog {
	if r.catalog == nil {
		r.catalog = services.NewSpotifyCatalog(services.SpotifyOpts{
			BaseURL:           r.config.Catalog.BaseURL,
			RequestsPerSecond: r.config.Catalog.RequestsPerSecond,
			HTTPClient:        r.httpClient,
		})
	}
	return r.catalog
}

// credentials returns a refreshing credential source over the stored token.
//
// Refreshed tokens are written back to the config file so the next run starts with them.
func (r *Runner) credentials(ctx context.Context) (tasks.CredentialSource, error) {
	if r.creds != nil {
		return r.creds, nil
	}

	spotifyConfig := r.config.Credentials.Spotify
	oauthConfig, err := services.NewOAuthConfig(spotifyConfig)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	creds, err := services.NewTokenCredentials(ctx, oauthConfig, spotifyConfig.Token(), r.persistToken)
	if err != nil {
		return nil, err
	}

	r.creds = creds
	return creds, nil
}

func (r *Runner) persistToken(token *oauth2.Token) {
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		r.logger.Warn("refreshed token rejected", "error", err)
		return
	}
	if r.configPath == "" {
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed token", "error", err)
		return
	}
	r.logger.Debug("refreshed token saved", "path", r.configPath)
}

// fallbackDownloader returns the injected downloader or a yt-dlp downloader built from config.
func (r *Runner) fallbackDownloader() downloader.Downloader {
	if r.downloader == nil {
		r.downloader = downloader.New(downloader.Opts{
			Directory:    r.config.Download.Directory,
			AudioFormat:  r.config.Download.AudioFormat,
			SearchPrefix: r.config.Download.SearchPrefix,
			Logger:       r.logger,
		})
		r.ownsDownloader = true
	}
	return r.downloader
}

// resetDownloader discards a downloader built from config so the next call rebuilds it with the current logger
// and directory. An injected downloader is kept.
func (r *Runner) resetDownloader() {
	if r.ownsDownloader {
		r.downloader = nil
		r.ownsDownloader = false
	}
}

// openDatabase opens the run history database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
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
