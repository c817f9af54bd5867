package database

import (
	"database/sql"
	"fmt"
	"time"

	"swcat/internal/catalog"
	"swcat/internal/database/migrations"

	_ "modernc.org/sqlite" // SQLite driver (FTS5 built in)
)

// SQLiteDatabase backs the location cache, the search index and the sync
// log with a single SQLite file. Every write is a single statement or an
// explicit transaction, so the FTS mirror (maintained by triggers) and
// the primary rows always change together.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock catalog.Clock
}

// LocationCache is the recording_locations table; implements
// catalog.LocationCache.
type LocationCache struct {
	s *SQLiteDatabase
}

// SearchIndex is the conversation_index table and its FTS mirror;
// implements catalog.SearchIndex.
type SearchIndex struct {
	s *SQLiteDatabase
}

// SyncLog is the sync_runs table; implements catalog.SyncLog.
type SyncLog struct {
	s *SQLiteDatabase
}

// Locations returns the location-cache view of the database.
func (s *SQLiteDatabase) Locations() *LocationCache { return &LocationCache{s: s} }

// Index returns the search-index view of the database.
func (s *SQLiteDatabase) Index() *SearchIndex { return &SearchIndex{s: s} }

// SyncLog returns the sync-run log view of the database.
func (s *SQLiteDatabase) SyncLog() *SyncLog { return &SyncLog{s: s} }

// NewSQLiteDatabase opens a SQLite database at path (":memory:" for an
// in-memory database). clock may be nil, in which case wall-clock time
// is used for created_at/updated_at columns.
func NewSQLiteDatabase(path string, clock catalog.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly
// configured (see OpenConnection).
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock catalog.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = catalog.RealClock{}
	}
	return &SQLiteDatabase{
		db:    db,
		path:  path,
		clock: clock,
	}
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. Exported for tools and tests that need a properly
// configured connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A pooled second connection to ":memory:" would see a different,
	// empty database. One connection also serializes writers, which is
	// all a single-process catalog needs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema to the latest version.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// now returns the current time formatted for storage.
func (s *SQLiteDatabase) now() string {
	return formatTime(s.clock.Now())
}

// formatTime renders a time for a TEXT column. The zero time is stored
// as the empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime is the inverse of formatTime; malformed values collapse to
// the zero time rather than failing a read.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Compile-time checks that the table views implement the catalog
// persistence interfaces.
var (
	_ catalog.LocationCache = (*LocationCache)(nil)
	_ catalog.SearchIndex   = (*SearchIndex)(nil)
	_ catalog.SyncLog       = (*SyncLog)(nil)
)
