package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/infra/cache"
)

// Worker processes lyrics jobs in the background
type Worker struct {
	provider LyricsProvider
	store    JobStore
	config   WorkerConfig
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
}

// WorkerOption is a functional option for configuring the worker
type WorkerOption func(*Worker)

// WithBatchSize sets the number of jobs to process per batch
func WithBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		w.config.BatchSize = size
	}
}

// WithWorkerInterval sets the interval between batch processing
func WithWorkerInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		w.config.Interval = interval
	}
}

// WithMaxRetries sets the maximum number of retries for failed jobs
func WithMaxRetries(max int) WorkerOption {
	return func(w *Worker) {
		w.config.MaxRetries = max
	}
}

// WithSaveFunc sets the callback function for saving fetched lyrics
func WithSaveFunc(fn SaveFunc) WorkerOption {
	return func(w *Worker) {
		w.config.SaveFunc = fn
	}
}

// NewWorker creates a new lyrics worker
func NewWorker(provider LyricsProvider, store JobStore, opts ...WorkerOption) *Worker {
	w := &Worker{
		provider: provider,
		store:    store,
		config:   DefaultWorkerConfig(),
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins processing jobs in the background
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	log.Info().
		Int("batchSize", w.config.BatchSize).
		Dur("interval", w.config.Interval).
		Msg("Lyrics worker started")

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Process immediately on start
	w.processBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Lyrics worker stopping (context cancelled)")
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-w.stopCh:
			log.Info().Msg("Lyrics worker stopping (stop requested)")
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		close(w.stopCh)
	}
}

// IsRunning returns whether the worker is currently running
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processBatch processes a batch of pending jobs
func (w *Worker) processBatch(ctx context.Context) {
	jobs, err := w.store.PendingLyricsJobs(w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get pending lyrics jobs")
		return
	}

	if len(jobs) == 0 {
		return
	}

	log.Debug().Int("count", len(jobs)).Msg("Processing lyrics jobs")

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
			w.processJob(ctx, job)
		}
	}
}

// processJob processes a single lyrics job
func (w *Worker) processJob(ctx context.Context, job *cache.LyricsJob) {
	log.Debug().
		Str("jobID", job.ID).
		Str("path", job.TrackPath).
		Str("title", job.Title).
		Int("retry", job.RetryCount).
		Msg("Processing lyrics job")

	// Mark as running
	job.Status = cache.JobStatusRunning
	job.UpdatedAt = time.Now()
	w.store.UpdateLyricsJob(job)

	result, err := w.provider.FetchLyrics(ctx, job.Artist, job.Title, job.Album, job.DurationSec)
	if err != nil {
		w.handleJobError(job, err)
		return
	}

	if w.config.SaveFunc != nil {
		if err := w.config.SaveFunc(job, result); err != nil {
			log.Error().
				Err(err).
				Str("jobID", job.ID).
				Msg("Failed to save lyrics")
			w.handleJobError(job, ErrTemporaryFailure)
			return
		}
	}

	// Mark as completed
	now := time.Now()
	job.Status = cache.JobStatusCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now
	w.store.UpdateLyricsJob(job)

	log.Info().
		Str("jobID", job.ID).
		Str("path", job.TrackPath).
		Bool("instrumental", result.Instrumental).
		Msg("Lyrics job completed successfully")
}

// handleJobError handles errors during job processing
func (w *Worker) handleJobError(job *cache.LyricsJob, err error) {
	job.LastError = err.Error()
	job.UpdatedAt = time.Now()

	// Check if this is a permanent error
	if IsPermanentError(err) {
		log.Debug().
			Str("jobID", job.ID).
			Str("error", err.Error()).
			Msg("Permanent failure, marking lyrics job as failed")
		job.Status = cache.JobStatusFailed
		w.store.UpdateLyricsJob(job)
		return
	}

	// Temporary error - check retry count
	job.RetryCount++
	if job.RetryCount >= w.config.MaxRetries {
		log.Warn().
			Str("jobID", job.ID).
			Int("retries", job.RetryCount).
			Msg("Max retries exceeded, marking lyrics job as failed")
		job.Status = cache.JobStatusFailed
		w.store.UpdateLyricsJob(job)
		return
	}

	// Schedule retry with exponential backoff
	backoff := CalculateBackoff(job.RetryCount)
	job.NextRetryAt = time.Now().Add(backoff)
	job.Status = cache.JobStatusPending

	log.Debug().
		Str("jobID", job.ID).
		Int("retryCount", job.RetryCount).
		Dur("backoff", backoff).
		Time("nextRetry", job.NextRetryAt).
		Msg("Scheduling lyrics job retry")

	w.store.UpdateLyricsJob(job)
}

// AddJob enqueues a lookup for one track. Tracks without a usable title are
// skipped since the service cannot match them.
func (w *Worker) AddJob(trackPath, artist, title, album string, durationSec int) error {
	if title == "" {
		log.Debug().Str("path", trackPath).Msg("Skipping lyrics job for untitled track")
		return nil
	}

	now := time.Now()
	job := &cache.LyricsJob{
		ID:          uuid.New().String(),
		TrackPath:   trackPath,
		Artist:      artist,
		Title:       title,
		Album:       album,
		DurationSec: durationSec,
		Status:      cache.JobStatusPending,
		RetryCount:  0,
		MaxRetries:  w.config.MaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return w.store.AddLyricsJob(job)
}
