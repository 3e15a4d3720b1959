// Package session persists the player session between runs: the playlist as
// file paths, pointers into it, playback position and sound settings.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Session is the on-disk snapshot. Tracks are stored as file paths, not ids;
// ids are minted per process and mean nothing across restarts.
type Session struct {
	PlaylistPaths           []string  `json:"playlistPaths"`
	SelectedTrackPath       string    `json:"selectedTrackPath,omitempty"`
	CurrentTrackPath        string    `json:"currentTrackPath,omitempty"`
	CurrentTrackPositionSec float64   `json:"currentTrackPositionSec,omitempty"`
	RepeatMode              string    `json:"repeatMode,omitempty"`
	ShuffleEnabled          bool      `json:"shuffleEnabled,omitempty"`
	VolumePercent           *int      `json:"volumePercent,omitempty"`
	MusicRoot               string    `json:"musicRoot,omitempty"`
	ReplayGainMode          string    `json:"replayGainMode,omitempty"`
	ReplayGainPreampDb      float64   `json:"replayGainPreampDb,omitempty"`
	ReplayGainFallbackDb    float64   `json:"replayGainFallbackDb,omitempty"`
	AudioDevice             string    `json:"audioDevice,omitempty"`
	SavedAt                 time.Time `json:"savedAt,omitempty"`
}

// Store reads and writes the session file.
type Store struct {
	mu       sync.Mutex
	filePath string
}

// NewStore creates a store for the given file path.
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

// Load reads the session. A missing file returns (nil, nil); an unreadable
// one returns the error so the caller can decide to start fresh.
func (s *Store) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	log.Info().Str("file", s.filePath).Int("tracks", len(sess.PlaylistPaths)).Msg("Loaded session")
	return &sess, nil
}

// Save writes the session to disk, stamping SavedAt.
func (s *Store) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.SavedAt = time.Now()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
