// Package metadata defines track metadata, the extraction result cache and
// the priority load queue that feeds it.
package metadata

import (
	"math"
	"os"
	"path/filepath"
)

// DefaultReferenceLoudnessLUFS is the reference loudness used when deriving
// PLR from replaygain tags.
const DefaultReferenceLoudnessLUFS = -18.0

// TrackMetadata holds the displayed and technical fields for one track.
// Nullable numerics are pointers; nil means unknown.
type TrackMetadata struct {
	Title               string   `json:"title"`
	Artist              string   `json:"artist,omitempty"`
	Album               string   `json:"album,omitempty"`
	Genre               string   `json:"genre,omitempty"`
	Year                *int     `json:"year,omitempty"`
	TrackNumber         *int     `json:"trackNumber,omitempty"`
	DurationSec         *float64 `json:"durationSec,omitempty"`
	SampleRateHz        *int     `json:"sampleRateHz,omitempty"`
	BitDepth            *int     `json:"bitDepth,omitempty"`
	Channels            *int     `json:"channels,omitempty"`
	BitrateKbps         *int     `json:"bitrateKbps,omitempty"`
	Codec               string   `json:"codec,omitempty"`
	ReplayGainTrackDb   *float64 `json:"replayGainTrackDb,omitempty"`
	ReplayGainAlbumDb   *float64 `json:"replayGainAlbumDb,omitempty"`
	ReplayGainTrackPeak *float64 `json:"replayGainTrackPeak,omitempty"`
	PLRDb               *float64 `json:"plrDb,omitempty"`
	Lyrics              string   `json:"lyrics,omitempty"`
}

// Placeholder returns the metadata a track carries before extraction
// completes: the file name as title, everything else unknown.
func Placeholder(path string) *TrackMetadata {
	return &TrackMetadata{Title: filepath.Base(path)}
}

// Fingerprint is a cheap proxy for "file unchanged since last extraction".
type Fingerprint struct {
	SizeBytes int64 `json:"sizeBytes"`
	MTimeMs   int64 `json:"mtimeMs"`
}

// FingerprintFile stats the file and builds its fingerprint.
func FingerprintFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		SizeBytes: info.Size(),
		MTimeMs:   info.ModTime().UnixMilli(),
	}, nil
}

// ComputePLR derives the peak-to-loudness ratio in dB from a replaygain
// gain/peak pair. The track loudness follows from the gain relative to the
// reference; the peak converts to dBTP. Returns nil for non-positive peaks.
func ComputePLR(gainDb, peak, referenceLUFS float64) *float64 {
	if peak <= 0 {
		return nil
	}
	plr := 20*math.Log10(peak) - referenceLUFS + gainDb
	return &plr
}
