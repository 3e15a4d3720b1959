package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"
)

const (
	// DefaultLrclibBaseURL is the LRCLIB API base URL
	DefaultLrclibBaseURL = "https://lrclib.net/api"

	// DefaultLrclibUserAgent follows LRCLIB guidelines of identifying clients
	DefaultLrclibUserAgent = "Chorale/0.3.0 (https://github.com/chorale-player/chorale-backend)"

	// DefaultLrclibRateLimit is a polite 2 requests per second
	DefaultLrclibRateLimit = 2

	// DefaultLrclibTimeout for HTTP requests
	DefaultLrclibTimeout = 15 * time.Second
)

// LrclibClient looks up lyrics on LRCLIB by track signature.
type LrclibClient struct {
	client  *resty.Client
	limiter *rateLimiter
}

// LrclibOption is a functional option for configuring the LRCLIB client.
type LrclibOption func(*LrclibClient)

// WithLrclibBaseURL sets a custom base URL (useful for testing).
func WithLrclibBaseURL(url string) LrclibOption {
	return func(c *LrclibClient) {
		c.client.SetBaseURL(url)
	}
}

// WithLrclibUserAgent sets a custom User-Agent header.
func WithLrclibUserAgent(ua string) LrclibOption {
	return func(c *LrclibClient) {
		c.client.SetHeader("User-Agent", ua)
	}
}

// WithLrclibTimeout sets the request timeout.
func WithLrclibTimeout(timeout time.Duration) LrclibOption {
	return func(c *LrclibClient) {
		c.client.SetTimeout(timeout)
	}
}

// NewLrclibClient creates a new LRCLIB API client.
func NewLrclibClient(opts ...LrclibOption) *LrclibClient {
	c := &LrclibClient{
		client: resty.New().
			SetBaseURL(DefaultLrclibBaseURL).
			SetTimeout(DefaultLrclibTimeout).
			SetHeader("User-Agent", DefaultLrclibUserAgent).
			SetHeader("Accept", "application/json"),
		limiter: newRateLimiter(DefaultLrclibRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Close releases the underlying HTTP client.
func (c *LrclibClient) Close() error {
	return c.client.Close()
}

// lrclibTrack is the LRCLIB /get response body.
type lrclibTrack struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// FetchLyrics queries LRCLIB for one track. A 404 means the catalog has
// nothing for this signature and maps to ErrLyricsNotFound.
func (c *LrclibClient) FetchLyrics(ctx context.Context, artist, title, album string, durationSec int) (*FetchedLyrics, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	log.Debug().
		Str("artist", artist).
		Str("title", title).
		Str("album", album).
		Int("duration", durationSec).
		Msg("Searching LRCLIB for lyrics")

	var track lrclibTrack
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("artist_name", artist).
		SetQueryParam("track_name", title).
		SetResult(&track)
	if album != "" {
		req.SetQueryParam("album_name", album)
	}
	if durationSec > 0 {
		req.SetQueryParam("duration", strconv.Itoa(durationSec))
	}

	res, err := req.Get("/get")
	if err != nil {
		return nil, fmt.Errorf("lrclib request: %w", err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
		// Success
	case http.StatusNotFound:
		return nil, ErrLyricsNotFound
	case http.StatusTooManyRequests:
		log.Warn().Msg("LRCLIB rate limit exceeded")
		return nil, ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Int("status", res.StatusCode()).Msg("LRCLIB temporary error")
		return nil, ErrTemporaryFailure
	default:
		return nil, fmt.Errorf("unexpected status: %d", res.StatusCode())
	}

	if track.Instrumental {
		return &FetchedLyrics{Instrumental: true}, nil
	}
	if track.SyncedLyrics == "" && track.PlainLyrics == "" {
		return nil, ErrLyricsNotFound
	}

	log.Debug().
		Str("artist", artist).
		Str("title", title).
		Bool("synced", track.SyncedLyrics != "").
		Msg("Found LRCLIB lyrics")

	return &FetchedLyrics{
		Synced: track.SyncedLyrics,
		Plain:  track.PlainLyrics,
	}, nil
}

// rateLimiter implements a simple token bucket rate limiter
type rateLimiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	interval := time.Second / time.Duration(requestsPerSecond)
	return &rateLimiter{
		interval: interval,
	}
}

// Wait blocks until a request can be made
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	nextAllowed := r.lastRequest.Add(r.interval)

	if now.Before(nextAllowed) {
		waitTime := nextAllowed.Sub(now)
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.lastRequest = time.Now()
	return nil
}
