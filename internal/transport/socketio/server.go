// Package socketio provides the Socket.IO server for client communication.
package socketio

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/chorale-player/chorale-backend/internal/config"
	"github.com/chorale-player/chorale-backend/internal/domain/history"
	"github.com/chorale-player/chorale-backend/internal/domain/library"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/player"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
)

// Server handles Socket.IO connections and events. It also implements
// player.EventSink: playback and status pushes pass through a debouncer,
// the remaining pushes broadcast immediately.
type Server struct {
	io       *socket.Server
	library  *library.Service
	history  *history.Store
	limiter  *ConnectionLimiter
	debounce *PushDebouncer

	mu           sync.RWMutex
	ctrl         *player.Controller
	clients      map[string]*socket.Socket
	lastPlayback player.PlaybackStatus
	lastStatus   player.StatusInfo
}

// NewServer creates a new Socket.IO server. Bind must attach the player
// controller before the server starts accepting connections.
func NewServer(cfg *config.Config, lib *library.Service, hist *history.Store) (*Server, error) {
	// Configure Socket.IO server options
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	cors := &types.Cors{
		Origin:      "*",
		Credentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 {
		cors.Origin = cfg.AllowedOrigins
	}
	opts.SetCors(cors)

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:      server,
		library: lib,
		history: hist,
		limiter: NewConnectionLimiter(cfg.MaxExternalClients),
		clients: make(map[string]*socket.Socket),
	}
	s.debounce = NewPushDebouncer(cfg.DebounceWindow, cfg.DebounceMaxWindow, s.flushPending)

	s.setupHandlers()

	return s, nil
}

// Bind attaches the player controller the command handlers dispatch to.
func (s *Server) Bind(ctrl *player.Controller) {
	s.mu.Lock()
	s.ctrl = ctrl
	s.mu.Unlock()
}

func (s *Server) controller() *player.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctrl
}

// setupHandlers registers the connection handler and, per client, all
// command event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		remote := ""
		if hs := client.Handshake(); hs != nil {
			remote = hs.Address
		}

		_, evictedID := s.limiter.TryAdd(clientID, remote)
		if evictedID != "" {
			s.mu.RLock()
			evicted := s.clients[evictedID]
			s.mu.RUnlock()
			if evicted != nil {
				log.Info().Str("id", evictedID).Msg("Evicting oldest external client")
				evicted.Disconnect(true)
			}
		}

		log.Info().Str("id", clientID).Str("remote", remote).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushFullState(client)
		}()

		// Handle disconnect
		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushFullState(client)
		})

		ctrl := s.controller()
		if ctrl == nil {
			log.Warn().Str("id", clientID).Msg("No controller bound, command events unavailable")
			return
		}

		s.registerPlaybackHandlers(client, clientID, ctrl)
		s.registerPlaylistHandlers(client, clientID, ctrl)
		s.registerLibraryHandlers(client, clientID, ctrl)
	})
}

// pushFullState sends the complete player state to a client.
func (s *Server) pushFullState(client *socket.Socket) {
	ctrl := s.controller()
	if ctrl == nil {
		return
	}
	client.Emit("pushPlayback", ctrl.PlaybackSnapshot())
	client.Emit("pushPlaylist", ctrl.PlaylistSnapshot())
	client.Emit("pushSettings", ctrl.SettingsSnapshot())
	client.Emit("pushLyrics", ctrl.LyricsState())
	client.Emit("pushStatus", ctrl.StatusLine())
	client.Emit("pushBackendError", backendErrorPayload(ctrl.BackendError()))
}

// PlaybackChanged implements player.EventSink. The push is debounced.
func (s *Server) PlaybackChanged(st player.PlaybackStatus) {
	s.mu.Lock()
	s.lastPlayback = st
	s.mu.Unlock()
	s.debounce.TriggerPlayback()
}

// StatusChanged implements player.EventSink. The push is debounced.
func (s *Server) StatusChanged(st player.StatusInfo) {
	s.mu.Lock()
	s.lastStatus = st
	s.mu.Unlock()
	s.debounce.TriggerStatus()
}

// flushPending broadcasts the latest debounced payloads.
func (s *Server) flushPending(playback, status bool) {
	s.mu.RLock()
	pb := s.lastPlayback
	st := s.lastStatus
	s.mu.RUnlock()

	if playback {
		s.io.Emit("pushPlayback", pb)

		if log.Debug().Enabled() {
			data, _ := json.Marshal(pb)
			s.mu.RLock()
			clientCount := len(s.clients)
			s.mu.RUnlock()
			log.Debug().RawJSON("playback", data).Int("clients", clientCount).Msg("Broadcast playback")
		}
	}
	if status {
		s.io.Emit("pushStatus", st)
	}
}

// PlaylistChanged implements player.EventSink.
func (s *Server) PlaylistChanged(snap playlist.Snapshot) {
	s.io.Emit("pushPlaylist", snap)
}

// TrackMetadataChanged implements player.EventSink.
func (s *Server) TrackMetadataChanged(trackID string, md *metadata.TrackMetadata) {
	s.io.Emit("pushPlaylistTrack", map[string]interface{}{
		"trackId":  trackID,
		"metadata": md,
	})
}

// LyricsChanged implements player.EventSink.
func (s *Server) LyricsChanged(snap player.LyricsSnapshot) {
	s.io.Emit("pushLyrics", snap)
}

// SettingsChanged implements player.EventSink.
func (s *Server) SettingsChanged(set player.Settings) {
	s.io.Emit("pushSettings", set)
}

// BackendErrorChanged implements player.EventSink. An empty message clears
// the error on clients.
func (s *Server) BackendErrorChanged(message string) {
	s.io.Emit("pushBackendError", backendErrorPayload(message))
}

func backendErrorPayload(message string) map[string]interface{} {
	if message == "" {
		return map[string]interface{}{"message": nil}
	}
	return map[string]interface{}{"message": message}
}

// ServeHTTP implements http.Handler for the Socket.IO server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops the debouncer and closes the Socket.IO server.
func (s *Server) Close() error {
	s.debounce.Stop()
	s.io.Close(nil)
	return nil
}
