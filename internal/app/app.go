package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"swcat/internal/catalog"
	"swcat/internal/config"
	"swcat/internal/database"
	"swcat/internal/store"
)

// App is the application layer between the CLI (or HTTP server) and the
// catalog. It constructs all dependencies from config, runs migrations,
// and manages the DB and log file lifecycle on Close.
type App struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	service *catalog.Service
	syncer  *catalog.Syncer
	logger  catalog.Logger
	logFile *os.File
	runID   string
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	runID := uuid.NewString()

	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, catalog.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	cache := db.Locations()
	index := db.Index()
	recStore := store.NewSuperWhisperStore(cfg.RecordingsDir, cache, logger)

	svc := catalog.NewService(recStore, cache, index, logger)
	syncer := catalog.NewSyncer(recStore, index, db.SyncLog(), logger, catalog.RealClock{})

	return &App{
		cfg:     cfg,
		db:      db,
		service: svc,
		syncer:  syncer,
		logger:  logger,
		logFile: logFile,
		runID:   runID,
	}, nil
}

// Config returns the config the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Service returns the catalog query service.
func (a *App) Service() *catalog.Service { return a.service }

// Syncer returns the filesystem-to-index reconciler.
func (a *App) Syncer() *catalog.Syncer { return a.syncer }

// Logger returns the application logger.
func (a *App) Logger() catalog.Logger { return a.logger }

// RunID returns the identifier stamped on every log line of this process.
func (a *App) RunID() string { return a.runID }

// Close closes the database and the log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}
