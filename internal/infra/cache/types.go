// Package cache provides the SQLite-backed persistence layer for track
// metadata, lyrics and artwork bookkeeping.
package cache

import "time"

// Stats describes cache contents for diagnostics.
type Stats struct {
	TrackCount        int       `json:"trackCount"`
	LyricsCount       int       `json:"lyricsCount"`
	PendingLyricsJobs int       `json:"pendingLyricsJobs"`
	ArtworkCount      int       `json:"artworkCount"`
	SchemaVersion     string    `json:"schemaVersion"`
	LastUpdated       time.Time `json:"lastUpdated,omitempty"`
}

// LyricsKey addresses a cached lyrics row the way the lookup service does:
// normalized artist, title and album plus the rounded duration.
type LyricsKey struct {
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Album       string `json:"album"`
	DurationSec int    `json:"durationSec"`
}

// CachedLyrics is a fetched lyrics row.
type CachedLyrics struct {
	Synced    string    `json:"synced,omitempty"`
	Plain     string    `json:"plain,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// JobStatus represents the state of a lyrics job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// LyricsJob is a pending or finished lyrics lookup for one track.
type LyricsJob struct {
	ID          string     `json:"id"`
	TrackPath   string     `json:"trackPath"`
	Artist      string     `json:"artist"`
	Title       string     `json:"title"`
	Album       string     `json:"album"`
	DurationSec int        `json:"durationSec"`
	Status      JobStatus  `json:"status"`
	RetryCount  int        `json:"retryCount"`
	MaxRetries  int        `json:"maxRetries"`
	NextRetryAt time.Time  `json:"nextRetryAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// CachedArtwork indexes one artwork file on disk.
type CachedArtwork struct {
	Key       string    `json:"key"`
	TrackPath string    `json:"trackPath"`
	FilePath  string    `json:"filePath"`
	MimeType  string    `json:"mimeType"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FileSize  int64     `json:"fileSize"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
}
