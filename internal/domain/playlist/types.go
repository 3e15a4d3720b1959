// Package playlist implements the ordered track collection with selection,
// sort state, shuffle ordering and repeat-aware navigation.
package playlist

import (
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
)

// RepeatMode selects how navigation behaves at playlist boundaries.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// ParseRepeatMode maps a wire value onto a RepeatMode, defaulting to off.
func ParseRepeatMode(s string) RepeatMode {
	switch RepeatMode(s) {
	case RepeatAll:
		return RepeatAll
	case RepeatOne:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// SortColumn names a sortable playlist column. SortNone means insertion order.
type SortColumn string

const (
	SortNone        SortColumn = ""
	SortTitle       SortColumn = "title"
	SortArtist      SortColumn = "artist"
	SortAlbum       SortColumn = "album"
	SortGenre       SortColumn = "genre"
	SortYear        SortColumn = "year"
	SortTrackNumber SortColumn = "trackNumber"
	SortDuration    SortColumn = "duration"
	SortPLR         SortColumn = "plr"
	SortPath        SortColumn = "path"
)

// ParseSortColumn maps a wire value onto a SortColumn. Unknown columns are
// rejected rather than silently treated as a path sort.
func ParseSortColumn(s string) (SortColumn, bool) {
	switch col := SortColumn(s); col {
	case SortTitle, SortArtist, SortAlbum, SortGenre, SortYear,
		SortTrackNumber, SortDuration, SortPLR, SortPath:
		return col, true
	default:
		return SortNone, false
	}
}

// SortDirection is the active sort direction.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Item is one playlist entry. The id is assigned at insertion time and never
// reused or derived from the path, so duplicate paths may coexist.
type Item struct {
	ID       string                  `json:"id"`
	Path     string                  `json:"path"`
	Metadata *metadata.TrackMetadata `json:"metadata"`
}

// Snapshot is an immutable-at-emit-time view of the playlist state.
type Snapshot struct {
	Items            []Item        `json:"items"`
	SelectedTrackID  string        `json:"selectedTrackId"`
	SelectedTrackIDs []string      `json:"selectedTrackIds"`
	CurrentTrackID   string        `json:"currentTrackId"`
	SortColumn       SortColumn    `json:"sortColumn"`
	SortDirection    SortDirection `json:"sortDirection"`
}

// RemovalResult reports how a RemoveTracks call affected the current track,
// letting the controller decide whether to auto-advance playback.
type RemovalResult struct {
	// RemovedCurrent is true when the current track was among the removed.
	RemovedCurrent bool
	// NextCurrentTrackID is the replacement candidate at the same clamped
	// index in the post-removal list, empty when the playlist emptied.
	NextCurrentTrackID string
}
