package mpv

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MaxVolume is the engine volume ceiling in percent. Values above 100 drive
// the engine's software amplification.
const MaxVolume = 130

// ReplayGain property-name candidates, tried in order. Engine builds differ
// in which option surface they expose.
var (
	replayGainModeProps    = []string{"replaygain", "options/replaygain"}
	replayGainPreampProps  = []string{"replaygain-preamp", "options/replaygain-preamp"}
	replayGainFallbackProp = []string{"replaygain-fallback", "options/replaygain-fallback"}
)

// ReplayGainSettings is the engine-facing loudness normalization state.
type ReplayGainSettings struct {
	// Mode is one of "no", "track" or "album" in engine vocabulary.
	Mode string
	// PreampDb applies to files carrying gain tags.
	PreampDb float64
	// FallbackDb applies to untagged files.
	FallbackDb float64
}

// Commander is the transport surface the facade needs. Satisfied by
// *Transport; tests substitute a scripted fake.
type Commander interface {
	Send(command ...any) (json.RawMessage, error)
}

// Facade provides the typed command surface over the engine transport.
type Facade struct {
	c          Commander
	softErrors []string
}

// NewFacade wraps a transport. softErrors is the allowlist of engine error
// substrings treated as "option unsupported" in fallback chains.
func NewFacade(c Commander, softErrors []string) *Facade {
	return &Facade{c: c, softErrors: softErrors}
}

// SetCommander swaps the underlying transport, used when the engine is
// restarted.
func (f *Facade) SetCommander(c Commander) {
	f.c = c
}

// Load opens a media file. With replace true the engine drops whatever it is
// playing; otherwise the file is appended to the engine's internal list.
func (f *Facade) Load(path string, replace bool) error {
	mode := "replace"
	if !replace {
		mode = "append-play"
	}
	_, err := f.c.Send("loadfile", path, mode)
	return err
}

// Play resumes playback.
func (f *Facade) Play() error {
	_, err := f.c.Send("set_property", "pause", false)
	return err
}

// Pause pauses playback.
func (f *Facade) Pause() error {
	_, err := f.c.Send("set_property", "pause", true)
	return err
}

// TogglePause flips the pause state.
func (f *Facade) TogglePause() error {
	_, err := f.c.Send("cycle", "pause")
	return err
}

// StopPlayback unloads the current file and leaves the engine idle.
func (f *Facade) StopPlayback() error {
	_, err := f.c.Send("stop")
	return err
}

// SeekRelative moves the position by the given number of seconds.
func (f *Facade) SeekRelative(seconds float64) error {
	_, err := f.c.Send("seek", seconds, "relative")
	return err
}

// SeekAbsolute moves the position to the given second.
func (f *Facade) SeekAbsolute(seconds float64) error {
	_, err := f.c.Send("seek", seconds, "absolute")
	return err
}

// SetVolume sets the output volume, clamped to [0, MaxVolume].
func (f *Facade) SetVolume(percent int) error {
	if percent < 0 {
		percent = 0
	} else if percent > MaxVolume {
		percent = MaxVolume
	}
	_, err := f.c.Send("set_property", "volume", percent)
	return err
}

// SetMuted sets the mute flag.
func (f *Facade) SetMuted(muted bool) error {
	_, err := f.c.Send("set_property", "mute", muted)
	return err
}

// SetAudioDevice selects the engine output device.
func (f *Facade) SetAudioDevice(device string) error {
	_, err := f.c.Send("set_property", "audio-device", device)
	return err
}

// GetProperty reads a raw engine property value.
func (f *Facade) GetProperty(name string) (json.RawMessage, error) {
	return f.c.Send("get_property", name)
}

// ApplyReplayGain pushes the loudness normalization settings to the engine.
// Mode and preamp are strict: exhausting every candidate property name
// propagates the failure. The untagged-file fallback preamp is best effort,
// some engine builds simply lack it.
func (f *Facade) ApplyReplayGain(s ReplayGainSettings) error {
	mode := s.Mode
	if mode == "" {
		mode = "no"
	}
	if err := f.setFirstSupported(replayGainModeProps, mode); err != nil {
		return fmt.Errorf("failed to set replaygain mode: %w", err)
	}
	if err := f.setFirstSupported(replayGainPreampProps, s.PreampDb); err != nil {
		return fmt.Errorf("failed to set replaygain preamp: %w", err)
	}
	if err := f.setFirstSupported(replayGainFallbackProp, s.FallbackDb); err != nil {
		log.Debug().Err(err).Msg("Replaygain fallback preamp not supported by this engine build")
	}
	return nil
}

// setFirstSupported tries each candidate property name in order. Soft
// "option unsupported" rejections fall through to the next candidate, any
// other error propagates immediately. Exhausting all candidates returns an
// OptionUnsupportedError for the last one tried.
func (f *Facade) setFirstSupported(candidates []string, value any) error {
	var lastErr error
	for _, name := range candidates {
		_, err := f.c.Send("set_property", name, value)
		if err == nil {
			return nil
		}
		if !IsOptionUnsupported(err, f.softErrors) {
			return err
		}
		log.Debug().Str("property", name).Msg("Engine build lacks property, trying next candidate")
		lastErr = err
	}
	last := candidates[len(candidates)-1]
	return &OptionUnsupportedError{Property: last, Reason: fmt.Sprintf("no supported candidate: %v", lastErr)}
}
