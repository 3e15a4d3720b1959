// Package artwork locates cover images for local tracks and prepares
// thumbnails for the UI.
package artwork

import (
	"context"
	"errors"
	"time"
)

// ErrNoArtwork is returned when no artwork is found.
var ErrNoArtwork = errors.New("no artwork found")

// Artwork sources in resolution order.
const (
	SourceCache    = "cache"
	SourceFolder   = "folder"
	SourceEmbedded = "embedded"
)

// ResolveResult contains the result of artwork resolution.
type ResolveResult struct {
	FilePath string // Path to the artwork file
	Source   string // Where it came from: 'cache', 'folder', 'embedded'
	MimeType string // MIME type of the artwork
	FileSize int64  // File size in bytes
}

// CachedArtwork represents artwork metadata stored in the cache.
type CachedArtwork struct {
	Key       string    `json:"key"`       // MD5 of the track's directory
	TrackPath string    `json:"trackPath"` // Track the artwork was resolved for
	FilePath  string    `json:"filePath"`  // Artwork file on disk
	MimeType  string    `json:"mimeType"`  // MIME type
	Width     int       `json:"width"`     // Image width (0 if unknown)
	Height    int       `json:"height"`    // Image height (0 if unknown)
	FileSize  int64     `json:"fileSize"`  // File size in bytes
	Source    string    `json:"source"`    // 'folder', 'embedded'
	FetchedAt time.Time `json:"fetchedAt"` // When resolved
}

// EmbeddedExtractor pulls the cover picture out of an audio file's tags.
type EmbeddedExtractor interface {
	ExtractCover(ctx context.Context, trackPath string) ([]byte, error)
}

// Store defines the interface for artwork persistence.
type Store interface {
	// GetArtwork retrieves cached artwork metadata by key
	GetArtwork(key string) (*CachedArtwork, error)
	// SaveArtwork saves artwork metadata to the cache
	SaveArtwork(art *CachedArtwork) error
}
