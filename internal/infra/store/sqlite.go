// Package store provides SQLite-backed history and favorites storage.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the rooms database.
	DefaultDBPath = "data/rooms.db"
)

// DB represents the SQLite rooms database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new database instance. Pass ":memory:" for a throwaway database.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{path: path}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dsn := d.path
	if d.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = d.path + "?_journal=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open rooms database: %w", err)
	}

	// One connection: SQLite has a single writer and :memory: is per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Rooms database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping() error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	return db.Ping()
}

// conn returns the open handle or an error.
func (d *DB) conn() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.db == nil {
		return nil, fmt.Errorf("database not open")
	}
	return d.db, nil
}

func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating rooms schema")
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (d *DB) createSchema() error {
	schema := `
	-- Tracks that left rotation, one row per (identity, event)
	CREATE TABLE IF NOT EXISTS history_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room TEXT NOT NULL,
		identity TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		external_id TEXT,
		album_art TEXT,
		source_ref TEXT,
		duration_label TEXT,
		requested_by TEXT,
		recorded_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	-- Liked tracks per room
	CREATE TABLE IF NOT EXISTS favorites (
		room TEXT NOT NULL,
		fav_key TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		external_id TEXT,
		album_art TEXT,
		source_ref TEXT,
		duration_label TEXT,
		requested_by TEXT,
		added_at TEXT DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room, fav_key)
	);

	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_room_identity ON history_entries(room, identity, id);
	CREATE INDEX IF NOT EXISTS idx_favorites_room ON favorites(room, added_at);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Rooms schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM store_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO store_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

// SchemaVersion returns the stored schema version.
func (d *DB) SchemaVersion() (string, error) {
	db, err := d.conn()
	if err != nil {
		return "", err
	}
	var value string
	err = db.QueryRow("SELECT value FROM store_meta WHERE key = 'schema_version'").Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Stats summarises stored rows.
type Stats struct {
	HistoryEntries int `json:"historyEntries"`
	Favorites      int `json:"favorites"`
}

// GetStats returns row counts.
func (d *DB) GetStats() (*Stats, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	if err := db.QueryRow("SELECT COUNT(*) FROM history_entries").Scan(&stats.HistoryEntries); err != nil {
		return nil, err
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM favorites").Scan(&stats.Favorites); err != nil {
		return nil, err
	}
	return stats, nil
}
