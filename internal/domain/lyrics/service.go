package lyrics

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/infra/cache"
)

// Source labels where resolved lyrics came from.
const (
	SourceSidecar  = "sidecar"
	SourceEmbedded = "embedded"
	SourceCached   = "cached"
)

// Result is resolved lyric content for one track.
type Result struct {
	Source string `json:"source"`
	Synced bool   `json:"synced"`
	Lines  []Line `json:"lines"`
}

// CacheReader is the slice of the cache DAO the service reads from.
type CacheReader interface {
	GetLyrics(key cache.LyricsKey) (*cache.CachedLyrics, error)
}

// Service resolves lyrics with a fixed precedence: a sidecar .lrc next to
// the audio file, then the embedded tag, then previously fetched content.
type Service struct {
	cache CacheReader
}

// NewService creates a lyrics service. cache may be nil when fetching is
// disabled.
func NewService(cache CacheReader) *Service {
	return &Service{cache: cache}
}

// Lookup resolves lyrics for a track. Returns nil when no source has any.
func (s *Service) Lookup(path string, md *metadata.TrackMetadata) *Result {
	if raw, ok := readSidecar(path); ok {
		parsed := Parse(raw)
		if len(parsed.Lines) > 0 {
			return &Result{Source: SourceSidecar, Synced: parsed.Synced, Lines: parsed.Lines}
		}
	}

	if md != nil && strings.TrimSpace(md.Lyrics) != "" {
		parsed := Parse(md.Lyrics)
		if len(parsed.Lines) > 0 {
			return &Result{Source: SourceEmbedded, Synced: parsed.Synced, Lines: parsed.Lines}
		}
	}

	if s.cache != nil && md != nil {
		if cached, err := s.cache.GetLyrics(KeyFor(md)); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Lyrics cache lookup failed")
		} else if cached != nil {
			if cached.Synced != "" {
				parsed := Parse(cached.Synced)
				if len(parsed.Lines) > 0 {
					return &Result{Source: SourceCached, Synced: parsed.Synced, Lines: parsed.Lines}
				}
			}
			if cached.Plain != "" {
				parsed := Parse(cached.Plain)
				if len(parsed.Lines) > 0 {
					return &Result{Source: SourceCached, Synced: parsed.Synced, Lines: parsed.Lines}
				}
			}
		}
	}

	return nil
}

// KeyFor derives the cache key for a track's metadata.
func KeyFor(md *metadata.TrackMetadata) cache.LyricsKey {
	key := cache.LyricsKey{
		Artist: normalize(md.Artist),
		Title:  normalize(md.Title),
		Album:  normalize(md.Album),
	}
	if md.DurationSec != nil {
		key.DurationSec = int(*md.DurationSec + 0.5)
	}
	return key
}

// normalize lower-cases and collapses whitespace so tag variations hit the
// same cache row.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func readSidecar(audioPath string) (string, bool) {
	if audioPath == "" {
		return "", false
	}
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	data, err := os.ReadFile(base + ".lrc")
	if err != nil {
		return "", false
	}
	return string(data), true
}
