package mpv_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/chorale-player/chorale-backend/internal/infra/mpv"
)

// scriptedCommander records every command and answers from a scripted
// response function.
type scriptedCommander struct {
	mu      sync.Mutex
	calls   [][]any
	respond func(command []any) (json.RawMessage, error)
}

func (s *scriptedCommander) Send(command ...any) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, command)
	s.mu.Unlock()
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(command)
}

func (s *scriptedCommander) propertySets(name string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var values []any
	for _, call := range s.calls {
		if len(call) == 3 && call[0] == "set_property" && call[1] == name {
			values = append(values, call[2])
		}
	}
	return values
}

func TestSetVolumeClamps(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  int
	}{
		{"negative clamps to zero", -10, 0},
		{"above ceiling clamps to max", 200, 130},
		{"in range passes through", 65, 65},
		{"ceiling is inclusive", 130, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdr := &scriptedCommander{}
			f := mpv.NewFacade(cmdr, testAllowlist)

			if err := f.SetVolume(tt.input); err != nil {
				t.Fatalf("SetVolume failed: %v", err)
			}
			sets := cmdr.propertySets("volume")
			if len(sets) != 1 {
				t.Fatalf("Expected one volume set, got %d", len(sets))
			}
			if sets[0] != tt.want {
				t.Errorf("Expected volume %d, got %v", tt.want, sets[0])
			}
		})
	}
}

func TestLoadModes(t *testing.T) {
	cmdr := &scriptedCommander{}
	f := mpv.NewFacade(cmdr, testAllowlist)

	if err := f.Load("/music/a.flac", true); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := f.Load("/music/b.flac", false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cmdr.calls) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(cmdr.calls))
	}
	if cmdr.calls[0][2] != "replace" {
		t.Errorf("Expected replace mode, got %v", cmdr.calls[0][2])
	}
	if cmdr.calls[1][2] != "append-play" {
		t.Errorf("Expected append-play mode, got %v", cmdr.calls[1][2])
	}
}

func TestStopPlaybackSendsStop(t *testing.T) {
	cmdr := &scriptedCommander{}
	f := mpv.NewFacade(cmdr, testAllowlist)

	if err := f.StopPlayback(); err != nil {
		t.Fatalf("StopPlayback failed: %v", err)
	}
	if len(cmdr.calls) != 1 || cmdr.calls[0][0] != "stop" {
		t.Fatalf("Expected a single stop command, got %v", cmdr.calls)
	}
}

func TestApplyReplayGainFallsThroughSoftErrors(t *testing.T) {
	cmdr := &scriptedCommander{}
	cmdr.respond = func(command []any) (json.RawMessage, error) {
		if command[0] != "set_property" {
			return nil, nil
		}
		switch command[1] {
		case "replaygain-preamp":
			return nil, &mpv.CommandRejectedError{Command: "set_property", Reason: "property unavailable"}
		case "replaygain-fallback", "options/replaygain-fallback":
			return nil, &mpv.CommandRejectedError{Command: "set_property", Reason: "unknown property"}
		default:
			return nil, nil
		}
	}
	f := mpv.NewFacade(cmdr, testAllowlist)

	err := f.ApplyReplayGain(mpv.ReplayGainSettings{Mode: "track", PreampDb: 3.5, FallbackDb: -2})
	if err != nil {
		t.Fatalf("ApplyReplayGain should tolerate soft failures: %v", err)
	}

	// The preamp must have fallen through to the alternate property name.
	if got := cmdr.propertySets("options/replaygain-preamp"); len(got) != 1 || got[0] != 3.5 {
		t.Errorf("Expected preamp set via fallback property name, got %v", got)
	}
}

func TestApplyReplayGainHardErrorStopsChain(t *testing.T) {
	hard := &mpv.CommandRejectedError{Command: "set_property", Reason: "engine on fire"}
	cmdr := &scriptedCommander{}
	cmdr.respond = func(command []any) (json.RawMessage, error) {
		if command[1] == "replaygain-preamp" {
			return nil, hard
		}
		return nil, nil
	}
	f := mpv.NewFacade(cmdr, testAllowlist)

	err := f.ApplyReplayGain(mpv.ReplayGainSettings{Mode: "track", PreampDb: 1})
	if !errors.Is(err, hard) {
		t.Fatalf("Expected the hard error to propagate, got %v", err)
	}
	if got := cmdr.propertySets("options/replaygain-preamp"); len(got) != 0 {
		t.Error("Alternate candidate must not be tried after a hard error")
	}
}

func TestApplyReplayGainStrictPreampExhausted(t *testing.T) {
	cmdr := &scriptedCommander{}
	cmdr.respond = func(command []any) (json.RawMessage, error) {
		switch command[1] {
		case "replaygain-preamp", "options/replaygain-preamp":
			return nil, &mpv.CommandRejectedError{Command: "set_property", Reason: "property unavailable"}
		default:
			return nil, nil
		}
	}
	f := mpv.NewFacade(cmdr, testAllowlist)

	err := f.ApplyReplayGain(mpv.ReplayGainSettings{Mode: "track", PreampDb: 1})
	if err == nil {
		t.Fatal("Exhausting every preamp candidate must propagate")
	}
	if !mpv.IsOptionUnsupported(err, testAllowlist) {
		t.Errorf("Expected an option-unsupported classification, got %v", err)
	}
}

func TestApplyReplayGainFallbackExhaustionTolerated(t *testing.T) {
	cmdr := &scriptedCommander{}
	cmdr.respond = func(command []any) (json.RawMessage, error) {
		switch command[1] {
		case "replaygain-fallback", "options/replaygain-fallback":
			return nil, &mpv.CommandRejectedError{Command: "set_property", Reason: "unknown property"}
		default:
			return nil, nil
		}
	}
	f := mpv.NewFacade(cmdr, testAllowlist)

	if err := f.ApplyReplayGain(mpv.ReplayGainSettings{Mode: "album", PreampDb: 0, FallbackDb: -6}); err != nil {
		t.Fatalf("Fallback preamp exhaustion must be tolerated, got %v", err)
	}
}

func TestApplyReplayGainDefaultsModeOff(t *testing.T) {
	cmdr := &scriptedCommander{}
	f := mpv.NewFacade(cmdr, testAllowlist)

	if err := f.ApplyReplayGain(mpv.ReplayGainSettings{}); err != nil {
		t.Fatalf("ApplyReplayGain failed: %v", err)
	}
	if got := cmdr.propertySets("replaygain"); len(got) != 1 || got[0] != "no" {
		t.Errorf("Expected mode default 'no', got %v", got)
	}
}
