package artwork

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Resolver handles artwork resolution with multi-source fallback.
// Resolution order:
// 1. Check cache (artwork table + file on disk)
// 2. Cover file next to the track (cover.jpg, folder.jpg, etc.)
// 3. Picture embedded in the audio file's tags
type Resolver struct {
	finder    *Finder
	extractor EmbeddedExtractor
	store     Store
	cacheDir  string
}

// NewResolver creates a new artwork resolver.
func NewResolver(finder *Finder, extractor EmbeddedExtractor, store Store, cacheDir string) *Resolver {
	return &Resolver{
		finder:    finder,
		extractor: extractor,
		store:     store,
		cacheDir:  cacheDir,
	}
}

// CacheKey derives the artwork key for a track. Tracks in the same directory
// share one key, so an album folder resolves its cover once.
func CacheKey(trackPath string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(filepath.Dir(trackPath))))
}

// Resolve attempts to find artwork for a track. rootDir bounds the folder
// search. Returns ErrNoArtwork when every source comes up empty.
func (r *Resolver) Resolve(ctx context.Context, trackPath, rootDir string) (*ResolveResult, error) {
	if trackPath == "" {
		return nil, ErrNoArtwork
	}

	key := CacheKey(trackPath)

	// 1. Check cache first
	if result := r.checkCache(key); result != nil {
		return result, nil
	}

	// 2. Try a cover file in the track's directory tree
	if coverPath := r.finder.FindCover(trackPath, rootDir); coverPath != "" {
		return r.recordFolderCover(key, trackPath, coverPath)
	}

	// 3. Try the picture embedded in the file's tags
	if result, err := r.tryEmbedded(ctx, key, trackPath); err == nil && result != nil {
		return result, nil
	}

	return nil, ErrNoArtwork
}

// checkCache checks if artwork exists in cache.
func (r *Resolver) checkCache(key string) *ResolveResult {
	if r.store == nil {
		return nil
	}

	cached, err := r.store.GetArtwork(key)
	if err != nil || cached == nil {
		return nil
	}
	if cached.FilePath == "" {
		return nil
	}

	// Verify the file still exists on disk
	info, err := os.Stat(cached.FilePath)
	if err != nil {
		log.Debug().Str("key", key).Str("path", cached.FilePath).Msg("Cached artwork file missing")
		return nil
	}

	return &ResolveResult{
		FilePath: cached.FilePath,
		Source:   SourceCache,
		MimeType: cached.MimeType,
		FileSize: info.Size(),
	}
}

// recordFolderCover registers an on-disk cover file without copying it.
func (r *Resolver) recordFolderCover(key, trackPath, coverPath string) (*ResolveResult, error) {
	info, err := os.Stat(coverPath)
	if err != nil {
		return nil, ErrNoArtwork
	}

	mimeType := mimeForExtension(filepath.Ext(coverPath))
	r.saveMetadata(&CachedArtwork{
		Key:       key,
		TrackPath: trackPath,
		FilePath:  coverPath,
		MimeType:  mimeType,
		FileSize:  info.Size(),
		Source:    SourceFolder,
		FetchedAt: time.Now(),
	})

	return &ResolveResult{
		FilePath: coverPath,
		Source:   SourceFolder,
		MimeType: mimeType,
		FileSize: info.Size(),
	}, nil
}

// tryEmbedded extracts the tagged picture and stores it in the cache directory.
func (r *Resolver) tryEmbedded(ctx context.Context, key, trackPath string) (*ResolveResult, error) {
	if r.extractor == nil {
		return nil, ErrNoArtwork
	}

	data, err := r.extractor.ExtractCover(ctx, trackPath)
	if err != nil || len(data) == 0 {
		return nil, ErrNoArtwork
	}

	mimeType := DetectMimeType(data)
	ext := GetExtensionForMime(mimeType)

	coversDir := filepath.Join(r.cacheDir, "covers")
	if err := os.MkdirAll(coversDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	filePath := filepath.Join(coversDir, key+ext)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write artwork file: %w", err)
	}

	log.Debug().
		Str("key", key).
		Str("path", filePath).
		Int("size", len(data)).
		Msg("Cached embedded artwork")

	r.saveMetadata(&CachedArtwork{
		Key:       key,
		TrackPath: trackPath,
		FilePath:  filePath,
		MimeType:  mimeType,
		FileSize:  int64(len(data)),
		Source:    SourceEmbedded,
		FetchedAt: time.Now(),
	})

	return &ResolveResult{
		FilePath: filePath,
		Source:   SourceEmbedded,
		MimeType: mimeType,
		FileSize: int64(len(data)),
	}, nil
}

func (r *Resolver) saveMetadata(art *CachedArtwork) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveArtwork(art); err != nil {
		log.Warn().Err(err).Str("key", art.Key).Msg("Failed to save artwork metadata")
	}
}

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// DetectMimeType detects the MIME type from image data magic bytes.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	// JPEG: starts with FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}

	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "image/png"
	}

	// GIF: starts with GIF87a or GIF89a
	if data[0] == 'G' && data[1] == 'I' && data[2] == 'F' && data[3] == '8' {
		return "image/gif"
	}

	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return "image/webp"
	}

	return "application/octet-stream"
}

// GetExtensionForMime returns the file extension for a MIME type.
func GetExtensionForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
