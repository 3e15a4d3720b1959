// Package player coordinates the engine, playlist, metadata pipeline and
// session state behind a single command surface for the UI bridge.
package player

import (
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
	"github.com/chorale-player/chorale-backend/internal/infra/mpv"
)

// PlaybackState is the coarse player state shown to the UI.
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// Readout is the live audio chain readout sourced from observed engine
// properties. It describes what the engine is actually decoding and putting
// out right now, as opposed to what the file's tags claim.
type Readout struct {
	Codec           string   `json:"codec,omitempty"`
	Container       string   `json:"container,omitempty"`
	SampleFormatIn  string   `json:"sampleFormatIn,omitempty"`
	SampleFormatOut string   `json:"sampleFormatOut,omitempty"`
	SampleRateInHz  *int     `json:"sampleRateInHz,omitempty"`
	SampleRateOutHz *int     `json:"sampleRateOutHz,omitempty"`
	AudioDevice     string   `json:"audioDevice,omitempty"`
	AppliedGainDb   *float64 `json:"appliedGainDb,omitempty"`
}

// PlaybackStatus is the playback snapshot pushed to the UI. The controller
// owns the live instance and mutates it only under its command lock; anything
// handed out is a Clone.
type PlaybackStatus struct {
	State           PlaybackState       `json:"state"`
	CurrentTimeSec  float64             `json:"currentTimeSec"`
	DurationSec     *float64            `json:"durationSec"`
	VolumePercent   int                 `json:"volumePercent"`
	Muted           bool                `json:"muted"`
	RepeatMode      playlist.RepeatMode `json:"repeatMode"`
	ShuffleEnabled  bool                `json:"shuffleEnabled"`
	LiveBitrateKbps *int                `json:"liveBitrateKbps"`
	CurrentTrackID  string              `json:"currentTrackId,omitempty"`
	Readout
}

// NewPlaybackStatus creates a stopped snapshot with default values.
func NewPlaybackStatus() PlaybackStatus {
	return PlaybackStatus{
		State:         StateStopped,
		VolumePercent: 100,
		RepeatMode:    playlist.RepeatOff,
	}
}

// ApplyProperty merges one observed engine property into the snapshot.
// Unknown property names are ignored; a nil value means the engine reports
// the property as unavailable.
func (s *PlaybackStatus) ApplyProperty(name string, value any) {
	switch name {
	case "pause":
		// Pause flips playing/paused only while a track is linked; a stopped
		// player stays stopped no matter what the idle engine reports.
		paused, ok := value.(bool)
		if !ok || s.CurrentTrackID == "" {
			return
		}
		if paused {
			s.State = StatePaused
		} else {
			s.State = StatePlaying
		}
	case "time-pos":
		if v, ok := asFloat(value); ok && v >= 0 {
			s.CurrentTimeSec = v
		}
	case "duration":
		if v, ok := asFloat(value); ok && v > 0 {
			s.DurationSec = &v
		} else {
			s.DurationSec = nil
		}
	case "volume":
		if v, ok := asFloat(value); ok {
			s.VolumePercent = clampVolume(int(v + 0.5))
		}
	case "mute":
		if v, ok := value.(bool); ok {
			s.Muted = v
		}
	case "audio-bitrate":
		// The engine reports bits per second.
		if v, ok := asFloat(value); ok && v > 0 {
			kbps := int(v/1000 + 0.5)
			s.LiveBitrateKbps = &kbps
		} else {
			s.LiveBitrateKbps = nil
		}
	case "audio-codec-name":
		s.Codec, _ = value.(string)
	case "file-format":
		s.Container, _ = value.(string)
	case "audio-params":
		s.SampleFormatIn, s.SampleRateInHz = audioParams(value)
	case "audio-out-params":
		s.SampleFormatOut, s.SampleRateOutHz = audioParams(value)
	case "audio-device":
		s.AudioDevice, _ = value.(string)
	case "replaygain-preamp":
		if v, ok := asFloat(value); ok {
			s.AppliedGainDb = &v
		} else {
			s.AppliedGainDb = nil
		}
	}
}

// ResetReadout clears the live audio readout so values from the previous
// track never show up against the next one.
func (s *PlaybackStatus) ResetReadout() {
	s.Readout = Readout{}
	s.LiveBitrateKbps = nil
}

// Clone returns a copy with its own pointer fields.
func (s PlaybackStatus) Clone() PlaybackStatus {
	out := s
	out.DurationSec = copyFloatPtr(s.DurationSec)
	out.LiveBitrateKbps = copyIntPtr(s.LiveBitrateKbps)
	out.SampleRateInHz = copyIntPtr(s.SampleRateInHz)
	out.SampleRateOutHz = copyIntPtr(s.SampleRateOutHz)
	out.AppliedGainDb = copyFloatPtr(s.AppliedGainDb)
	return out
}

func audioParams(value any) (format string, sampleRate *int) {
	params, ok := value.(map[string]any)
	if !ok {
		return "", nil
	}
	format, _ = params["format"].(string)
	if v, ok := asFloat(params["samplerate"]); ok && v > 0 {
		rate := int(v + 0.5)
		sampleRate = &rate
	}
	return format, sampleRate
}

// asFloat coerces the numeric shapes JSON decoding produces.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > mpv.MaxVolume {
		return mpv.MaxVolume
	}
	return v
}

func copyFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
