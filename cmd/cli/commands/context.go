package commands

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/nurse-duty/internal/config"
	"github.com/jakechorley/nurse-duty/pkg/clients/dutyclient"
	"github.com/jakechorley/nurse-duty/pkg/clients/sheetsclient"
	"github.com/jakechorley/nurse-duty/pkg/core/history"
	"github.com/jakechorley/nurse-duty/pkg/core/rosterstore"
	"github.com/jakechorley/nurse-duty/pkg/db"
	"github.com/jakechorley/nurse-duty/pkg/postgres"
	"github.com/jakechorley/nurse-duty/pkg/sqlite"
)

// AppContext holds the application dependencies shared across all commands.
// The roster store lives as long as the process so an interactive session edits one roster.
type AppContext struct {
	Env     string
	Cfg     *config.Config
	Logger  *zap.Logger
	Ctx     context.Context
	Client  *dutyclient.Client
	Roster  *rosterstore.Store
	History *history.Panel

	mu       sync.Mutex
	database db.Database
	sheets   *sheetsclient.Client
}

// Init wires the duty client, roster store and history panel. Commands are built before
// configuration is loaded, so they hold the AppContext and Init fills it in.
func (a *AppContext) Init(ctx context.Context, env string, cfg *config.Config, logger *zap.Logger) {
	client := dutyclient.NewClient(cfg.ServerURL, cfg.RequestTimeout, logger)

	var opts []rosterstore.Option
	if cfg.BatchDelay > 0 {
		opts = append(opts, rosterstore.WithBatchDelay(cfg.BatchDelay))
	}
	roster := rosterstore.New(client, logger, opts...)

	a.Env = env
	a.Cfg = cfg
	a.Logger = logger
	a.Ctx = ctx
	a.Client = client
	a.Roster = roster
	a.History = history.NewPanel(roster, logger)
}

// Ready reports whether Init has run
func (a *AppContext) Ready() bool {
	return a.Roster != nil
}

// Database opens the configured database on first use
func (a *AppContext) Database() (db.Database, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.database != nil {
		return a.database, nil
	}

	a.Logger.Info("Connecting to database", zap.String("driver", a.Cfg.Database.Driver))
	switch a.Cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.NewDB(a.Ctx, a.Cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.database = pg
	case config.DriverSQLite:
		store, err := sqlite.New(a.Cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.database = store
	default:
		return nil, fmt.Errorf("unsupported database driver %q", a.Cfg.Database.Driver)
	}
	a.Logger.Debug("Database initialized successfully")
	return a.database, nil
}

// SheetsClient authenticates with Google Sheets on first use
func (a *AppContext) SheetsClient() (*sheetsclient.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sheets != nil {
		return a.sheets, nil
	}

	a.Logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(a.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	a.Logger.Info("Initializing sheets client")
	a.sheets, err = sheetsclient.NewClient(a.Ctx, oauthCfg, a.Env, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return a.sheets, nil
}

// Close flushes pending edits and releases the database
func (a *AppContext) Close() {
	if err := a.Roster.Flush(a.Ctx); err != nil {
		a.Logger.Warn("Pending edits were not saved", zap.Error(err))
	}
	a.Roster.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.database != nil {
		a.database.Close()
		a.database = nil
	}
}
