// Package enrichment fetches lyrics for library tracks from the LRCLIB web
// service in the background.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/chorale-player/chorale-backend/internal/infra/cache"
)

// Common errors
var (
	// ErrLyricsNotFound indicates the service has no lyrics for the track
	// (permanent failure)
	ErrLyricsNotFound = errors.New("lyrics not found")

	// ErrTemporaryFailure indicates a temporary failure (should retry)
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrRateLimited indicates rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrJobNotFound indicates the job was not found in the store
	ErrJobNotFound = errors.New("job not found")
)

// FetchedLyrics contains the result of a lyrics fetch operation.
type FetchedLyrics struct {
	Synced       string
	Plain        string
	Instrumental bool
}

// LyricsProvider defines the interface for fetching lyrics from an external
// source.
type LyricsProvider interface {
	FetchLyrics(ctx context.Context, artist, title, album string, durationSec int) (*FetchedLyrics, error)
}

// JobStore defines the interface for storing and retrieving lyrics jobs.
// The cache DAO satisfies it.
type JobStore interface {
	AddLyricsJob(job *cache.LyricsJob) error
	PendingLyricsJobs(limit int) ([]*cache.LyricsJob, error)
	UpdateLyricsJob(job *cache.LyricsJob) error
	DeleteLyricsJob(id string) error
}

// SaveFunc is a callback for persisting and announcing fetched lyrics.
type SaveFunc func(job *cache.LyricsJob, result *FetchedLyrics) error

// WorkerConfig contains configuration for the lyrics worker.
type WorkerConfig struct {
	BatchSize  int
	Interval   time.Duration
	MaxRetries int
	SaveFunc   SaveFunc
}

// DefaultWorkerConfig returns the default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:  10,
		Interval:   60 * time.Second,
		MaxRetries: 3,
	}
}

// IsPermanentError returns true if the error indicates a permanent failure.
func IsPermanentError(err error) bool {
	return errors.Is(err, ErrLyricsNotFound)
}

// IsTemporaryError returns true if the error indicates a temporary failure.
func IsTemporaryError(err error) bool {
	return errors.Is(err, ErrTemporaryFailure) || errors.Is(err, ErrRateLimited)
}

// CalculateBackoff returns the next retry delay using exponential backoff.
func CalculateBackoff(retryCount int) time.Duration {
	// Base delay of 1 minute, doubles with each retry
	// Max backoff of 24 hours
	base := time.Minute
	delay := base * time.Duration(1<<retryCount) // 1, 2, 4, 8, 16... minutes

	maxDelay := 24 * time.Hour
	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
