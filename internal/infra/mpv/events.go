package mpv

// Event is a message the engine pushes outside of command responses.
type Event interface {
	isEvent()
}

// PropertyChange reports a new value for an observed playback property.
type PropertyChange struct {
	Name  string
	Value any
}

// FileLoaded signals the engine finished opening the current media file.
type FileLoaded struct{}

// EndFile signals playback of the current file ended. Only the reason "eof"
// means a natural end of media; other reasons are informational.
type EndFile struct {
	Reason string
}

// Exited signals the engine process died or the socket closed unexpectedly.
// It is not emitted during an orderly Stop.
type Exited struct {
	Err error
}

func (PropertyChange) isEvent() {}
func (FileLoaded) isEvent()     {}
func (EndFile) isEvent()        {}
func (Exited) isEvent()         {}

// EndFileEOF is the end-file reason code for a natural end of media.
const EndFileEOF = "eof"

// DefaultObservedProperties are registered right after connecting so the
// engine starts streaming change events for the playback readout.
// replaygain-preamp is observed best effort, not every build exposes it.
var DefaultObservedProperties = []string{
	"pause",
	"time-pos",
	"duration",
	"volume",
	"mute",
	"audio-bitrate",
	"audio-codec-name",
	"file-format",
	"audio-params",
	"audio-out-params",
	"audio-device",
	"replaygain-preamp",
}
