// Package socketio provides the Socket.IO server for client communication.
// This file contains library browsing, settings and history event handlers.
package socketio

import (
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"

	"github.com/chorale-player/chorale-backend/internal/domain/history"
	"github.com/chorale-player/chorale-backend/internal/domain/player"
)

// registerLibraryHandlers registers library browsing and settings events.
func (s *Server) registerLibraryHandlers(client *socket.Socket, clientID string, ctrl *player.Controller) {
	client.On("browse", func(args ...any) {
		m := eventPayload(args)
		path, _ := m["path"].(string)
		log.Debug().Str("id", clientID).Str("path", path).Msg("browse")

		if s.library == nil {
			client.Emit("pushBrowse", map[string]interface{}{
				"path":  path,
				"error": "library is not configured",
			})
			return
		}

		res, err := s.library.Browse(path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Browse failed")
			client.Emit("pushBrowse", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return
		}
		client.Emit("pushBrowse", res)
	})

	client.On("setMusicRoot", func(args ...any) {
		m := eventPayload(args)
		path, ok := m["path"].(string)
		if !ok || path == "" {
			return
		}
		log.Info().Str("id", clientID).Str("path", path).Msg("setMusicRoot")
		if err := ctrl.SetMusicRoot(path); err != nil {
			log.Debug().Err(err).Msg("SetMusicRoot failed")
		}
	})

	client.On("updateSettings", func(args ...any) {
		m := eventPayload(args)
		if m == nil {
			return
		}
		patch := player.SettingsPatch{}
		if v, ok := m["replayGainMode"].(string); ok {
			patch.ReplayGainMode = &v
		}
		if v, ok := numberFromMap(m, "replayGainPreampDb"); ok {
			patch.ReplayGainPreampDb = &v
		}
		if v, ok := numberFromMap(m, "replayGainFallbackDb"); ok {
			patch.ReplayGainFallbackDb = &v
		}
		if v, ok := m["audioDevice"].(string); ok {
			patch.AudioDevice = &v
		}
		if v, ok := m["musicRoot"].(string); ok {
			patch.MusicRoot = &v
		}
		log.Debug().Str("id", clientID).Msg("updateSettings")
		if err := ctrl.UpdateSettings(patch); err != nil {
			log.Debug().Err(err).Msg("UpdateSettings failed")
		}
	})

	client.On("getHistory", func(args ...any) {
		m := eventPayload(args)
		limit := getIntFromMap(m, "limit", 50)
		sortBy, _ := m["sort"].(string)
		log.Debug().Str("id", clientID).Str("sort", sortBy).Int("limit", limit).Msg("getHistory")
		client.Emit("pushHistory", s.historyPayload(sortBy, limit))
	})

	client.On("clearHistory", func(args ...any) {
		if s.history == nil {
			return
		}
		log.Info().Str("id", clientID).Msg("clearHistory")
		s.history.Clear()
		client.Emit("pushHistory", s.historyPayload("", 50))
	})
}

// historyPayload builds the pushHistory body for the requested ordering.
func (s *Server) historyPayload(sortBy string, limit int) map[string]interface{} {
	if sortBy != "mostPlayed" {
		sortBy = "recent"
	}
	entries := []history.Entry{}
	if s.history != nil {
		if sortBy == "mostPlayed" {
			entries = s.history.MostPlayed(limit)
		} else {
			entries = s.history.Recent(limit)
		}
	}
	return map[string]interface{}{
		"sort":    sortBy,
		"entries": entries,
	}
}
