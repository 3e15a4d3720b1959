// Package socketio provides the Socket.IO server for client communication.
// This file contains playback and engine control event handlers.
package socketio

import (
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"

	"github.com/chorale-player/chorale-backend/internal/domain/player"
)

// registerPlaybackHandlers registers transport and engine control events.
// Command errors are logged at debug level only; the controller already
// reports them to clients through status and backend error pushes.
func (s *Server) registerPlaybackHandlers(client *socket.Socket, clientID string, ctrl *player.Controller) {
	client.On("play", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("play")
		if err := ctrl.Play(); err != nil {
			log.Debug().Err(err).Msg("Play failed")
		}
	})

	client.On("pause", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("pause")
		if err := ctrl.Pause(); err != nil {
			log.Debug().Err(err).Msg("Pause failed")
		}
	})

	client.On("playPause", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("playPause")
		if err := ctrl.PlayPause(); err != nil {
			log.Debug().Err(err).Msg("PlayPause failed")
		}
	})

	client.On("playTrack", func(args ...any) {
		m := eventPayload(args)
		id, ok := m["trackId"].(string)
		if !ok || id == "" {
			log.Debug().Str("id", clientID).Msg("playTrack without trackId")
			return
		}
		log.Debug().Str("id", clientID).Str("trackId", id).Msg("playTrack")
		if err := ctrl.PlayTrack(id); err != nil {
			log.Debug().Err(err).Msg("PlayTrack failed")
		}
	})

	client.On("stop", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("stop")
		if err := ctrl.Stop(); err != nil {
			log.Debug().Err(err).Msg("Stop failed")
		}
	})

	client.On("next", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("next")
		if err := ctrl.Next(); err != nil {
			log.Debug().Err(err).Msg("Next failed")
		}
	})

	client.On("previous", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("previous")
		if err := ctrl.Previous(); err != nil {
			log.Debug().Err(err).Msg("Previous failed")
		}
	})

	client.On("seek", func(args ...any) {
		m := eventPayload(args)
		offset, ok := numberFromMap(m, "offsetSec")
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Float64("offsetSec", offset).Msg("seek")
		if err := ctrl.SeekRelative(offset); err != nil {
			log.Debug().Err(err).Msg("Seek failed")
		}
	})

	client.On("seekAbsolute", func(args ...any) {
		m := eventPayload(args)
		pos, ok := numberFromMap(m, "positionSec")
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Float64("positionSec", pos).Msg("seekAbsolute")
		if err := ctrl.SeekAbsolute(pos); err != nil {
			log.Debug().Err(err).Msg("SeekAbsolute failed")
		}
	})

	client.On("setVolume", func(args ...any) {
		m := eventPayload(args)
		vol, ok := numberFromMap(m, "percent")
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Float64("percent", vol).Msg("setVolume")
		if err := ctrl.SetVolume(int(vol)); err != nil {
			log.Debug().Err(err).Msg("SetVolume failed")
		}
	})

	client.On("setMuted", func(args ...any) {
		m := eventPayload(args)
		muted, ok := m["muted"].(bool)
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Bool("muted", muted).Msg("setMuted")
		if err := ctrl.SetMuted(muted); err != nil {
			log.Debug().Err(err).Msg("SetMuted failed")
		}
	})

	client.On("setRepeatMode", func(args ...any) {
		m := eventPayload(args)
		mode, ok := m["mode"].(string)
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Str("mode", mode).Msg("setRepeatMode")
		if err := ctrl.SetRepeatMode(mode); err != nil {
			log.Debug().Err(err).Msg("SetRepeatMode failed")
		}
	})

	client.On("cycleRepeat", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("cycleRepeat")
		if err := ctrl.CycleRepeat(); err != nil {
			log.Debug().Err(err).Msg("CycleRepeat failed")
		}
	})

	client.On("setShuffle", func(args ...any) {
		m := eventPayload(args)
		enabled, ok := m["enabled"].(bool)
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Bool("enabled", enabled).Msg("setShuffle")
		if err := ctrl.SetShuffle(enabled); err != nil {
			log.Debug().Err(err).Msg("SetShuffle failed")
		}
	})

	client.On("toggleShuffle", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("toggleShuffle")
		if err := ctrl.ToggleShuffle(); err != nil {
			log.Debug().Err(err).Msg("ToggleShuffle failed")
		}
	})

	client.On("restartEngine", func(args ...any) {
		log.Info().Str("id", clientID).Msg("restartEngine")
		if err := ctrl.RestartEngine(); err != nil {
			log.Debug().Err(err).Msg("RestartEngine failed")
		}
	})
}

// eventPayload extracts the first event argument as a JSON object.
// Returns nil when the event carried none.
func eventPayload(args []any) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	m, _ := args[0].(map[string]interface{})
	return m
}

// numberFromMap extracts a numeric payload field. Decoded JSON numbers
// arrive as float64 but int is tolerated too.
func numberFromMap(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// getIntFromMap extracts an integer payload field, falling back to
// defaultVal when absent or non-numeric.
func getIntFromMap(m map[string]interface{}, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case int64:
		return int(v)
	}
	return defaultVal
}

// stringsFromMap extracts a string array payload field. Non-string
// elements are skipped.
func stringsFromMap(m map[string]interface{}, key string) []string {
	if m == nil {
		return nil
	}
	arr, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
