// Package socketio provides the Socket.IO server for client communication.
// This file contains playlist manipulation event handlers.
package socketio

import (
	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"

	"github.com/chorale-player/chorale-backend/internal/domain/player"
)

// registerPlaylistHandlers registers playlist manipulation events.
func (s *Server) registerPlaylistHandlers(client *socket.Socket, clientID string, ctrl *player.Controller) {
	client.On("addPaths", func(args ...any) {
		m := eventPayload(args)
		paths := stringsFromMap(m, "paths")
		if len(paths) == 0 {
			log.Debug().Str("id", clientID).Msg("addPaths without paths")
			return
		}
		index := getIntFromMap(m, "index", -1)
		log.Debug().Str("id", clientID).Int("count", len(paths)).Int("index", index).Msg("addPaths")
		if err := ctrl.AddPaths(paths, index); err != nil {
			log.Debug().Err(err).Msg("AddPaths failed")
		}
	})

	client.On("replaceWithPaths", func(args ...any) {
		m := eventPayload(args)
		paths := stringsFromMap(m, "paths")
		log.Debug().Str("id", clientID).Int("count", len(paths)).Msg("replaceWithPaths")
		if err := ctrl.ReplaceWithPaths(paths, false); err != nil {
			log.Debug().Err(err).Msg("ReplaceWithPaths failed")
		}
	})

	client.On("replaceWithPathsAndPlay", func(args ...any) {
		m := eventPayload(args)
		paths := stringsFromMap(m, "paths")
		log.Debug().Str("id", clientID).Int("count", len(paths)).Msg("replaceWithPathsAndPlay")
		if err := ctrl.ReplaceWithPaths(paths, true); err != nil {
			log.Debug().Err(err).Msg("ReplaceWithPathsAndPlay failed")
		}
	})

	client.On("removeTracks", func(args ...any) {
		m := eventPayload(args)
		ids := stringsFromMap(m, "trackIds")
		if len(ids) == 0 {
			return
		}
		log.Debug().Str("id", clientID).Int("count", len(ids)).Msg("removeTracks")
		if err := ctrl.RemoveTracks(ids); err != nil {
			log.Debug().Err(err).Msg("RemoveTracks failed")
		}
	})

	client.On("moveTracks", func(args ...any) {
		m := eventPayload(args)
		ids := stringsFromMap(m, "trackIds")
		target, ok := numberFromMap(m, "targetIndex")
		if len(ids) == 0 || !ok {
			return
		}
		log.Debug().Str("id", clientID).Int("count", len(ids)).Int("targetIndex", int(target)).Msg("moveTracks")
		if err := ctrl.MoveTracks(ids, int(target)); err != nil {
			log.Debug().Err(err).Msg("MoveTracks failed")
		}
	})

	client.On("clearPlaylist", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("clearPlaylist")
		if err := ctrl.Clear(); err != nil {
			log.Debug().Err(err).Msg("Clear failed")
		}
	})

	client.On("sortPlaylist", func(args ...any) {
		m := eventPayload(args)
		column, ok := m["column"].(string)
		if !ok {
			return
		}
		log.Debug().Str("id", clientID).Str("column", column).Msg("sortPlaylist")
		if err := ctrl.SortPlaylist(column); err != nil {
			log.Debug().Err(err).Msg("SortPlaylist failed")
		}
	})

	client.On("selectTrack", func(args ...any) {
		m := eventPayload(args)
		primary, _ := m["trackId"].(string)
		ids := stringsFromMap(m, "trackIds")
		if primary == "" && len(ids) == 0 {
			return
		}
		log.Debug().Str("id", clientID).Str("trackId", primary).Int("count", len(ids)).Msg("selectTrack")
		if err := ctrl.SelectTracks(primary, ids); err != nil {
			log.Debug().Err(err).Msg("SelectTracks failed")
		}
	})
}
