// Package history keeps a persistent play history: which tracks started
// playing, when, and how often. Backing storage is a JSON file in the data
// directory, written asynchronously so playback never waits on disk.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// maxEntries bounds the on-disk log; the oldest plays fall off.
	maxEntries = 1000

	// dedupWindow merges repeated starts of the same track. Seeks and
	// engine reloads can replay the start notification within seconds.
	dedupWindow = 5 * time.Second
)

// Entry is one recorded play.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist,omitempty"`
	Album     string    `json:"album,omitempty"`
	PlayedAt  time.Time `json:"playedAt"`
	PlayCount int       `json:"playCount"`
}

// Store manages playback history persistence.
type Store struct {
	mu       sync.RWMutex
	filePath string
	entries  []Entry
}

// NewStore creates a history store backed by filePath, loading whatever
// history is already there.
func NewStore(filePath string) *Store {
	s := &Store{
		filePath: filePath,
		entries:  []Entry{},
	}
	s.load()
	return s
}

// RecordPlay records that a track started playing. A start of the same track
// within the dedup window updates the previous entry instead of appending.
func (s *Store) RecordPlay(path, title, artist, album string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := len(s.entries) - 1; i >= 0 && i >= len(s.entries)-5; i-- {
		if s.entries[i].Path == path && now.Sub(s.entries[i].PlayedAt) < dedupWindow {
			s.entries[i].PlayedAt = now
			s.entries[i].PlayCount++
			log.Debug().Str("path", path).Msg("Merged repeated play into history entry")
			s.saveAsync()
			return
		}
	}

	s.entries = append(s.entries, Entry{
		ID:        uuid.New().String(),
		Path:      path,
		Title:     title,
		Artist:    artist,
		Album:     album,
		PlayedAt:  now,
		PlayCount: 1,
	})

	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}

	log.Debug().Str("path", path).Str("title", title).Msg("Recorded play")
	s.saveAsync()
}

// Recent returns the most recently played tracks, newest first, one entry
// per track. limit <= 0 uses a default of 50.
func (s *Store) Recent(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		out = append(out, e)
	}

	return clampEntries(out, limit)
}

// MostPlayed returns tracks ordered by total play count, ties broken by the
// most recent play. limit <= 0 uses a default of 50.
func (s *Store) MostPlayed(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPath := make(map[string]*Entry)
	order := make([]string, 0)
	for _, e := range s.entries {
		agg, ok := byPath[e.Path]
		if !ok {
			copied := e
			byPath[e.Path] = &copied
			order = append(order, e.Path)
			continue
		}
		agg.PlayCount += e.PlayCount
		if e.PlayedAt.After(agg.PlayedAt) {
			agg.PlayedAt = e.PlayedAt
			agg.Title = e.Title
			agg.Artist = e.Artist
			agg.Album = e.Album
		}
	}

	out := make([]Entry, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlayCount != out[j].PlayCount {
			return out[i].PlayCount > out[j].PlayCount
		}
		return out[i].PlayedAt.After(out[j].PlayedAt)
	})

	return clampEntries(out, limit)
}

// PlayCount returns the total recorded play count for a track.
func (s *Store) PlayCount(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.Path == path {
			count += e.PlayCount
		}
	}
	return count
}

// Clear drops all history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}
	s.saveAsync()
	log.Info().Msg("Play history cleared")
}

// Len returns the number of raw log entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func clampEntries(entries []Entry, limit int) []Entry {
	if limit <= 0 {
		limit = 50
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// load reads history from disk.
func (s *Store) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", s.filePath).Msg("Failed to read play history")
		}
		return
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Msg("Failed to parse play history")
		return
	}

	s.entries = entries
	log.Info().Int("count", len(entries)).Msg("Loaded play history")
}

// saveAsync writes history to disk without blocking the caller.
func (s *Store) saveAsync() {
	go func() {
		s.mu.RLock()
		snapshot := make([]Entry, len(s.entries))
		copy(snapshot, s.entries)
		s.mu.RUnlock()

		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal play history")
			return
		}

		if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
			log.Error().Err(err).Msg("Failed to create history directory")
			return
		}

		if err := os.WriteFile(s.filePath, data, 0644); err != nil {
			log.Error().Err(err).Msg("Failed to save play history")
		}
	}()
}
