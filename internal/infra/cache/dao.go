package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
)

// DAO provides data access operations for the cache.
type DAO struct {
	db *DB
}

// NewDAO creates a new DAO instance.
func NewDAO(db *DB) *DAO {
	return &DAO{db: db}
}

// --- Track Metadata Operations ---

// UpsertTrack writes one extracted metadata row.
func (dao *DAO) UpsertTrack(path string, fp *metadata.Fingerprint, md *metadata.TrackMetadata) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	raw, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var size, mtime interface{}
	if fp != nil {
		size, mtime = fp.SizeBytes, fp.MTimeMs
	}

	now := time.Now().Format(time.RFC3339)
	_, err = db.Exec(`
		INSERT INTO track_metadata (path, size_bytes, mtime_ms, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size_bytes = ?, mtime_ms = ?, metadata = ?, updated_at = ?
	`, path, size, mtime, string(raw), now, size, mtime, string(raw), now)
	return err
}

// GetTrack reads one metadata row; (nil, nil) when absent.
func (dao *DAO) GetTrack(path string) (*metadata.CacheEntry, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, fmt.Errorf("database not open")
	}

	var raw string
	var size, mtime sql.NullInt64
	err := db.QueryRow(`
		SELECT size_bytes, mtime_ms, metadata FROM track_metadata WHERE path = ?
	`, path).Scan(&size, &mtime, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry := &metadata.CacheEntry{}
	if err := json.Unmarshal([]byte(raw), &entry.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", path, err)
	}
	if size.Valid && mtime.Valid {
		entry.Fingerprint = &metadata.Fingerprint{SizeBytes: size.Int64, MTimeMs: mtime.Int64}
	}
	return entry, nil
}

// DeleteTrack removes one metadata row.
func (dao *DAO) DeleteTrack(path string) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}
	_, err := db.Exec(`DELETE FROM track_metadata WHERE path = ?`, path)
	return err
}

// LoadAllTracks reads the whole metadata table. Rows with broken JSON are
// skipped with a warning instead of failing the startup load.
func (dao *DAO) LoadAllTracks() (map[string]metadata.CacheEntry, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, fmt.Errorf("database not open")
	}

	rows, err := db.Query(`SELECT path, size_bytes, mtime_ms, metadata FROM track_metadata`)
	if err != nil {
		return nil, fmt.Errorf("query track metadata: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]metadata.CacheEntry)
	for rows.Next() {
		var path, raw string
		var size, mtime sql.NullInt64
		if err := rows.Scan(&path, &size, &mtime, &raw); err != nil {
			return nil, fmt.Errorf("scan track metadata: %w", err)
		}
		var entry metadata.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry.Metadata); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Dropping unreadable metadata row")
			continue
		}
		if size.Valid && mtime.Valid {
			entry.Fingerprint = &metadata.Fingerprint{SizeBytes: size.Int64, MTimeMs: mtime.Int64}
		}
		entries[path] = entry
	}
	return entries, rows.Err()
}

// ReplaceAllTracks swaps the metadata table for the given snapshot in one
// transaction.
func (dao *DAO) ReplaceAllTracks(entries map[string]metadata.CacheEntry) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM track_metadata`); err != nil {
		return fmt.Errorf("clear track metadata: %w", err)
	}

	now := time.Now().Format(time.RFC3339)
	stmt, err := tx.Prepare(`
		INSERT INTO track_metadata (path, size_bytes, mtime_ms, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for path, entry := range entries {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", path, err)
		}
		var size, mtime interface{}
		if entry.Fingerprint != nil {
			size, mtime = entry.Fingerprint.SizeBytes, entry.Fingerprint.MTimeMs
		}
		if _, err := stmt.Exec(path, size, mtime, string(raw), now); err != nil {
			return fmt.Errorf("insert %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// TrackMetadataStore adapts the DAO to the in-memory metadata cache's
// load/flush contract.
type TrackMetadataStore struct {
	dao *DAO
}

// TrackMetadata returns the store view over the track_metadata table.
func (dao *DAO) TrackMetadata() *TrackMetadataStore {
	return &TrackMetadataStore{dao: dao}
}

func (s *TrackMetadataStore) LoadAll() (map[string]metadata.CacheEntry, error) {
	return s.dao.LoadAllTracks()
}

func (s *TrackMetadataStore) SaveAll(entries map[string]metadata.CacheEntry) error {
	return s.dao.ReplaceAllTracks(entries)
}

// --- Lyrics Operations ---

// PutLyrics stores a fetched lyrics result. Empty synced and plain together
// record a confirmed miss so the job is not retried forever.
func (dao *DAO) PutLyrics(key LyricsKey, synced, plain string) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	now := time.Now().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO lyrics (artist, title, album, duration_sec, synced, plain, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(artist, title, album, duration_sec) DO UPDATE SET
			synced = ?, plain = ?, fetched_at = ?
	`, key.Artist, key.Title, key.Album, key.DurationSec, synced, plain, now, synced, plain, now)
	return err
}

// GetLyrics reads a cached lyrics row; (nil, nil) when absent.
func (dao *DAO) GetLyrics(key LyricsKey) (*CachedLyrics, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, fmt.Errorf("database not open")
	}

	var synced, plain, fetchedAt sql.NullString
	err := db.QueryRow(`
		SELECT synced, plain, fetched_at FROM lyrics
		WHERE artist = ? AND title = ? AND album = ? AND duration_sec = ?
	`, key.Artist, key.Title, key.Album, key.DurationSec).Scan(&synced, &plain, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &CachedLyrics{Synced: synced.String, Plain: plain.String}
	if fetchedAt.Valid {
		out.FetchedAt = parseTime(fetchedAt.String)
	}
	return out, nil
}

// --- Lyrics Job Operations ---

// AddLyricsJob enqueues a lookup. An existing job for the same track wins;
// re-adding does not reset its retry state.
func (dao *DAO) AddLyricsJob(job *LyricsJob) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	_, err := db.Exec(`
		INSERT INTO lyrics_jobs
		(id, track_path, artist, title, album, duration_sec, status, retry_count, max_retries, next_retry_at, last_error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_path) DO NOTHING
	`,
		job.ID,
		job.TrackPath,
		job.Artist,
		job.Title,
		job.Album,
		job.DurationSec,
		string(job.Status),
		job.RetryCount,
		job.MaxRetries,
		formatTime(job.NextRetryAt),
		job.LastError,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		formatTimePtr(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert lyrics job: %w", err)
	}
	return nil
}

// PendingLyricsJobs retrieves jobs ready for processing.
func (dao *DAO) PendingLyricsJobs(limit int) ([]*LyricsJob, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, fmt.Errorf("database not open")
	}

	now := formatTime(time.Now())
	rows, err := db.Query(`
		SELECT id, track_path, artist, title, album, duration_sec, status, retry_count, max_retries, next_retry_at, last_error, created_at, updated_at, completed_at
		FROM lyrics_jobs
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at = '' OR next_retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*LyricsJob
	for rows.Next() {
		job, err := scanLyricsJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateLyricsJob updates an existing job's progress fields.
func (dao *DAO) UpdateLyricsJob(job *LyricsJob) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	_, err := db.Exec(`
		UPDATE lyrics_jobs
		SET status = ?, retry_count = ?, next_retry_at = ?, last_error = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`,
		string(job.Status),
		job.RetryCount,
		formatTime(job.NextRetryAt),
		job.LastError,
		formatTime(job.UpdatedAt),
		formatTimePtr(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update lyrics job: %w", err)
	}
	return nil
}

// DeleteLyricsJob removes a job.
func (dao *DAO) DeleteLyricsJob(id string) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}
	_, err := db.Exec(`DELETE FROM lyrics_jobs WHERE id = ?`, id)
	return err
}

// CleanupLyricsJobs removes completed jobs older than the given duration.
func (dao *DAO) CleanupLyricsJobs(olderThan time.Duration) (int64, error) {
	db := dao.db.DB()
	if db == nil {
		return 0, fmt.Errorf("database not open")
	}

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.Exec(`
		DELETE FROM lyrics_jobs
		WHERE status = 'completed' AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return result.RowsAffected()
}

// --- Artwork Operations ---

// UpsertArtwork records one artwork file.
func (dao *DAO) UpsertArtwork(art *CachedArtwork) error {
	db := dao.db.DB()
	if db == nil {
		return fmt.Errorf("database not open")
	}

	_, err := db.Exec(`
		INSERT INTO artwork (key, track_path, file_path, mime_type, width, height, file_size, source, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			track_path = ?, file_path = ?, mime_type = ?, width = ?, height = ?, file_size = ?, source = ?, fetched_at = ?
	`,
		art.Key, art.TrackPath, art.FilePath, art.MimeType, art.Width, art.Height, art.FileSize, art.Source, formatTime(art.FetchedAt),
		art.TrackPath, art.FilePath, art.MimeType, art.Width, art.Height, art.FileSize, art.Source, formatTime(art.FetchedAt),
	)
	return err
}

// GetArtwork reads one artwork row; (nil, nil) when absent.
func (dao *DAO) GetArtwork(key string) (*CachedArtwork, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, fmt.Errorf("database not open")
	}

	art := &CachedArtwork{}
	var trackPath, filePath, mimeType, source, fetchedAt sql.NullString
	err := db.QueryRow(`
		SELECT key, track_path, file_path, mime_type, width, height, file_size, source, fetched_at
		FROM artwork WHERE key = ?
	`, key).Scan(&art.Key, &trackPath, &filePath, &mimeType, &art.Width, &art.Height, &art.FileSize, &source, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	art.TrackPath = trackPath.String
	art.FilePath = filePath.String
	art.MimeType = mimeType.String
	art.Source = source.String
	if fetchedAt.Valid {
		art.FetchedAt = parseTime(fetchedAt.String)
	}
	return art, nil
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func scanLyricsJob(rows *sql.Rows) (*LyricsJob, error) {
	var job LyricsJob
	var status string
	var artist, title, album, nextRetryAt, lastError, createdAt, updatedAt, completedAt sql.NullString

	err := rows.Scan(
		&job.ID,
		&job.TrackPath,
		&artist,
		&title,
		&album,
		&job.DurationSec,
		&status,
		&job.RetryCount,
		&job.MaxRetries,
		&nextRetryAt,
		&lastError,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = JobStatus(status)
	job.Artist = artist.String
	job.Title = title.String
	job.Album = album.String
	job.NextRetryAt = parseTime(nextRetryAt.String)
	job.LastError = lastError.String
	job.CreatedAt = parseTime(createdAt.String)
	job.UpdatedAt = parseTime(updatedAt.String)
	if completedAt.Valid && completedAt.String != "" {
		t := parseTime(completedAt.String)
		job.CompletedAt = &t
	}
	return &job, nil
}
