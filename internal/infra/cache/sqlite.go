// Package cache provides the SQLite-backed persistence layer for track
// metadata, lyrics and artwork bookkeeping.
package cache

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

	// DefaultDBPath is the default path for the cache database.
	DefaultDBPath = "data/cache.db"
)

// DB represents the SQLite cache database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new cache database instance.
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

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Cache database opened")
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

// initSchema initializes the database schema.
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
			Msg("Migrating cache schema")
		// Add migration logic here when schema changes
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

// createSchema creates all database tables.
func (d *DB) createSchema() error {
	schema := `
	-- Extracted per-file metadata, fingerprinted by size and mtime
	CREATE TABLE IF NOT EXISTS track_metadata (
		path TEXT PRIMARY KEY,
		size_bytes INTEGER,
		mtime_ms INTEGER,
		metadata TEXT NOT NULL,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	-- Fetched lyrics, keyed the way the lookup service addresses them
	CREATE TABLE IF NOT EXISTS lyrics (
		artist TEXT NOT NULL,
		title TEXT NOT NULL,
		album TEXT NOT NULL,
		duration_sec INTEGER NOT NULL,
		synced TEXT,
		plain TEXT,
		fetched_at TEXT,
		PRIMARY KEY (artist, title, album, duration_sec)
	);

	-- Pending lyrics lookups
	CREATE TABLE IF NOT EXISTS lyrics_jobs (
		id TEXT PRIMARY KEY,
		track_path TEXT NOT NULL UNIQUE,
		artist TEXT,
		title TEXT,
		album TEXT,
		duration_sec INTEGER DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER DEFAULT 0,
		max_retries INTEGER DEFAULT 3,
		next_retry_at TEXT,
		last_error TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
		completed_at TEXT
	);

	-- Artwork cache index; image bytes live on disk
	CREATE TABLE IF NOT EXISTS artwork (
		key TEXT PRIMARY KEY,
		track_path TEXT,
		file_path TEXT,
		mime_type TEXT,
		width INTEGER,
		height INTEGER,
		file_size INTEGER,
		source TEXT,
		fetched_at TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	-- Cache metadata
	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_track_metadata_updated ON track_metadata(updated_at);
	CREATE INDEX IF NOT EXISTS idx_lyrics_jobs_status ON lyrics_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_lyrics_jobs_next_retry ON lyrics_jobs(next_retry_at);
	CREATE INDEX IF NOT EXISTS idx_artwork_track ON artwork(track_path);
	`

	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Cache schema created")
	return nil
}

// getSchemaVersion returns the current schema version.
func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// setMeta sets a metadata value.
func (d *DB) setMeta(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, time.Now().Format(time.RFC3339), value, time.Now().Format(time.RFC3339))
	return err
}

// getMeta gets a metadata value.
func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Stats returns cache statistics.
func (d *DB) Stats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, fmt.Errorf("database not open")
	}

	stats := &Stats{}

	var err error
	err = d.db.QueryRow("SELECT COUNT(*) FROM track_metadata").Scan(&stats.TrackCount)
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRow("SELECT COUNT(*) FROM lyrics").Scan(&stats.LyricsCount)
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRow("SELECT COUNT(*) FROM lyrics_jobs WHERE status = 'pending'").Scan(&stats.PendingLyricsJobs)
	if err != nil {
		return nil, err
	}

	err = d.db.QueryRow("SELECT COUNT(*) FROM artwork WHERE file_path IS NOT NULL").Scan(&stats.ArtworkCount)
	if err != nil {
		return nil, err
	}

	stats.SchemaVersion, _ = d.getMeta("schema_version")

	lastUpdated, _ := d.getMeta("last_updated")
	if lastUpdated != "" {
		stats.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
	}

	return stats, nil
}

// Clear removes all data from the cache (but keeps schema).
func (d *DB) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return fmt.Errorf("database not open")
	}

	tables := []string{"track_metadata", "lyrics", "lyrics_jobs", "artwork"}
	for _, table := range tables {
		if _, err := d.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	now := time.Now().Format(time.RFC3339)
	d.setMeta("last_updated", now)

	log.Info().Msg("Cache cleared")
	return nil
}

// MarkUpdated records the last mutation time.
func (d *DB) MarkUpdated() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database not open")
	}
	return d.setMeta("last_updated", time.Now().Format(time.RFC3339))
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer the DAO methods.
func (d *DB) DB() *sql.DB {
	return d.db
}
