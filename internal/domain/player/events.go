package player

import (
	"github.com/chorale-player/chorale-backend/internal/domain/lyrics"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
)

// StatusInfo is the status line state. Transient lines clear themselves after
// a fixed display time; an empty message means no line is showing.
type StatusInfo struct {
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
}

// LyricsSnapshot is the lyrics view for the current track. ActiveIndex is the
// line playing at the current position, -1 before the first line or for
// unsynced content.
type LyricsSnapshot struct {
	TrackID     string        `json:"trackId"`
	Source      string        `json:"source,omitempty"`
	Synced      bool          `json:"synced"`
	Lines       []lyrics.Line `json:"lines"`
	ActiveIndex int           `json:"activeIndex"`
}

// Replay gain modes as exposed to the UI.
const (
	ReplayGainOff   = "off"
	ReplayGainTrack = "track"
	ReplayGainAlbum = "album"
)

// Settings are the user-tunable sound and library settings, persisted with
// the session.
type Settings struct {
	ReplayGainMode       string  `json:"replayGainMode"`
	ReplayGainPreampDb   float64 `json:"replayGainPreampDb"`
	ReplayGainFallbackDb float64 `json:"replayGainFallbackDb"`
	AudioDevice          string  `json:"audioDevice,omitempty"`
	MusicRoot            string  `json:"musicRoot,omitempty"`
}

// SettingsPatch updates a subset of settings; nil fields stay untouched.
type SettingsPatch struct {
	ReplayGainMode       *string  `json:"replayGainMode"`
	ReplayGainPreampDb   *float64 `json:"replayGainPreampDb"`
	ReplayGainFallbackDb *float64 `json:"replayGainFallbackDb"`
	AudioDevice          *string  `json:"audioDevice"`
	MusicRoot            *string  `json:"musicRoot"`
}

// EventSink receives controller pushes for the presentation layer.
//
// Playback and status change at engine property-tick rate and should be
// coalesced by the receiver; the remaining pushes are rare and fire
// immediately. Implementations must not call back into the controller from
// inside a notification, the controller holds its command lock while
// delivering.
type EventSink interface {
	PlaybackChanged(st PlaybackStatus)
	StatusChanged(st StatusInfo)
	PlaylistChanged(snap playlist.Snapshot)
	TrackMetadataChanged(trackID string, md *metadata.TrackMetadata)
	LyricsChanged(snap LyricsSnapshot)
	SettingsChanged(s Settings)
	BackendErrorChanged(message string)
}
