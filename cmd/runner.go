package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenithdesk/chord/internal/auth"
	"github.com/zenithdesk/chord/internal/player"
	"github.com/zenithdesk/chord/internal/repositories"
	"github.com/zenithdesk/chord/internal/secrets"
	"github.com/zenithdesk/chord/internal/shared"
	"github.com/zenithdesk/chord/internal/tokens"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	db         *sql.DB
	sessions   *repositories.SessionRepository
	tokenRepo  *repositories.TokenRepository
	oauthConf  *oauth2.Config
	bridge     tokens.Bridge
	store      *tokens.Store
	player     *player.Client
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Tests inject a Store and a player Client directly; production wiring builds
// them in [Runner.open].
type RunnerOpts struct {
	Config     *shared.Config
	Store      *tokens.Store
	Player     *player.Client
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
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Runner{
		config:     opts.Config,
		store:      opts.Store,
		player:     opts.Player,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger (the watch TUI redirects logs to a file).
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// open wires the full dependency graph: configuration, SQLite storage, the
// OAuth config, the secure token bridge, the token store, and the playback
// client. Idempotent; commands call it before touching any of those.
func (r *Runner) open(configPath string) error {
	if r.store != nil && r.player != nil {
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			config, err := shared.LoadConfig(configPath)
			if err != nil {
				return err
			}
			r.config = config
		}
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return err
	}

	r.db = db
	r.sessions = repositories.NewSessionRepository(db)
	r.tokenRepo = repositories.NewTokenRepository(db)
	r.oauthConf = auth.NewOAuthConfig(r.config.Credentials.Spotify)

	if r.bridge == nil {
		r.bridge = secrets.NewBridge(r.config.Secrets, r.oauthConf, r.logger)
	}

	if r.store == nil {
		store, err := tokens.NewStore(tokens.StoreOpts{
			Bridge:     r.bridge,
			Repo:       r.tokenRepo,
			Conf:       r.oauthConf,
			HTTPClient: r.httpClient,
			Logger:     r.logger,
		})
		if err != nil {
			return err
		}
		r.store = store
	}

	if r.player == nil {
		r.player = player.NewClient(player.ClientOpts{
			Tokens:     r.store,
			HTTPClient: r.httpClient,
			Logger:     r.logger,
		})
	}

	return nil
}

// Close releases the database handle.
func (r *Runner) Close() error {
	if r.db != nil {
		return r.db.Close()
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
