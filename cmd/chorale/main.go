// Package main is the entry point for the Chorale audio player backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/chorale-player/chorale-backend/internal/config"
	"github.com/chorale-player/chorale-backend/internal/domain/artwork"
	"github.com/chorale-player/chorale-backend/internal/domain/history"
	"github.com/chorale-player/chorale-backend/internal/domain/identity"
	"github.com/chorale-player/chorale-backend/internal/domain/library"
	"github.com/chorale-player/chorale-backend/internal/domain/lyrics"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/player"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
	"github.com/chorale-player/chorale-backend/internal/infra/cache"
	"github.com/chorale-player/chorale-backend/internal/infra/enrichment"
	"github.com/chorale-player/chorale-backend/internal/infra/mpv"
	"github.com/chorale-player/chorale-backend/internal/infra/probe"
	"github.com/chorale-player/chorale-backend/internal/infra/session"
	"github.com/chorale-player/chorale-backend/internal/transport/socketio"
	"github.com/chorale-player/chorale-backend/internal/version"
)

func main() {
	// Command line flags override the environment configuration
	port := flag.Int("port", 0, "HTTP server port (overrides CHORALE_PORT)")
	musicRoot := flag.String("music-root", "", "Music library root directory (overrides CHORALE_MUSIC_ROOT)")
	logLevel := flag.String("log-level", "", "Log level: trace, debug, info, warn, error (overrides CHORALE_LOG_LEVEL)")
	flag.Parse()

	// Setup logging before anything else logs
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	if *port != 0 {
		cfg.Port = *port
	}
	if *musicRoot != "" {
		cfg.MusicRoot = *musicRoot
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	applyLogConfig(cfg)

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Desktop Audio Player Backend")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Int("port", cfg.Port).
		Str("music_root", cfg.MusicRoot).
		Str("data_dir", cfg.DataDir).
		Str("mpv_bin", cfg.MPVBinary).
		Bool("lyrics_fetch", cfg.LyricsFetch).
		Msg("Configuration")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	libraryService := library.NewService(cfg.MusicRoot)

	// Metadata cache database. A failed open is not fatal: the player runs
	// without persistence, re-probing files as they come up.
	var dao *cache.DAO
	db := cache.NewDB(cfg.CachePath())
	if err := db.Open(); err != nil {
		log.Warn().Err(err).Str("path", cfg.CachePath()).Msg("Metadata cache unavailable, running without persistence")
		db = nil
	} else {
		defer db.Close()
		dao = cache.NewDAO(db)
	}

	mdCache := metadata.NewCache()
	if dao != nil {
		if err := mdCache.LoadFrom(dao.TrackMetadata()); err != nil {
			log.Warn().Err(err).Msg("Failed to load metadata cache")
		} else {
			log.Info().Int("tracks", mdCache.Len()).Msg("Metadata cache loaded")
		}
	}

	sessionStore := session.NewStore(cfg.SessionPath())
	playHistory := history.NewStore(filepath.Join(cfg.DataDir, "playback_history.json"))

	instance, err := identity.NewService(filepath.Join(cfg.DataDir, "instance.json"))
	if err != nil {
		log.Warn().Err(err).Msg("Instance identity unavailable")
	}

	var lyricsReader lyrics.CacheReader
	if dao != nil {
		lyricsReader = dao
	}
	lyricsService := lyrics.NewService(lyricsReader)

	// Locate the playback engine. Absence is not fatal either: the controller
	// reports a backend error and playback commands are rejected until a
	// restart finds the binary.
	engineBinary := cfg.MPVBinary
	if info, err := mpv.ResolveBinary(cfg.MPVBinary); err != nil {
		log.Warn().Err(err).Msg("Engine binary not found, playback will be unavailable")
	} else {
		engineBinary = info.Path
		log.Info().Str("path", info.Path).Str("version", info.Version).Msg("Engine binary")
	}

	prober := probe.NewProber("", cfg.ReferenceLoudnessLUFS)
	coverExtractor := probe.NewCoverExtractor("")

	var artworkStore artwork.Store
	if dao != nil {
		artworkStore = artwork.NewCacheDAOAdapter(dao)
	}
	artworkDir := filepath.Join(cfg.DataDir, "artwork")
	artworkResolver := artwork.NewResolver(artwork.NewFinder(), coverExtractor, artworkStore, artworkDir)
	thumbnails := artwork.NewThumbnailGenerator(artworkDir)

	// Background lyrics fetcher. The save hook writes through to the cache
	// and pokes the controller so an already-playing track picks up the
	// freshly fetched lyrics.
	var ctrl *player.Controller
	var lyricsWorker *enrichment.Worker
	if cfg.LyricsFetch && dao != nil {
		lrclib := enrichment.NewLrclibClient()
		defer lrclib.Close()
		lyricsWorker = enrichment.NewWorker(lrclib, dao,
			enrichment.WithSaveFunc(func(job *cache.LyricsJob, result *enrichment.FetchedLyrics) error {
				// Key the lyrics the same way lookups do, from track tags.
				dur := float64(job.DurationSec)
				key := lyrics.KeyFor(&metadata.TrackMetadata{
					Artist:      job.Artist,
					Title:       job.Title,
					Album:       job.Album,
					DurationSec: &dur,
				})
				if err := dao.PutLyrics(key, result.Synced, result.Plain); err != nil {
					return err
				}
				if ctrl != nil {
					ctrl.NotifyLyricsFetched(job.TrackPath)
				}
				return nil
			}))
	}

	// Create Socket.io server
	socketServer, err := socketio.NewServer(cfg, libraryService, playHistory)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	deps := player.Deps{
		Config:     cfg,
		Playlist:   playlist.NewManager(),
		Library:    libraryService,
		Cache:      mdCache,
		Probe:      prober.Probe,
		Lyrics:     lyricsService,
		Artwork:    artworkResolver,
		Sessions:   sessionStore,
		History:    playHistory,
		Sink:       socketServer,
		NewEngine: func() player.Engine {
			return mpv.NewTransport(mpv.Options{
				Binary:         engineBinary,
				CommandTimeout: cfg.CommandTimeout,
			})
		},
	}
	if dao != nil {
		deps.CacheStore = dao.TrackMetadata()
	}
	if lyricsWorker != nil {
		deps.LyricsJobs = lyricsWorker
	}
	ctrl = player.NewController(deps)
	socketServer.Bind(ctrl)
	ctrl.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if lyricsWorker != nil {
		go lyricsWorker.Start(ctx)
	}

	// Setup HTTP server
	startedAt := time.Now()
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socketServer)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		engine := "stopped"
		if ctrl.EngineRunning() {
			engine = "running"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"engine": engine,
			"uptime": time.Since(startedAt).Round(time.Second).String(),
		})
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			version.Info
			Instance identity.Info `json:"instance"`
		}{Info: version.GetInfo()}
		if instance != nil {
			resp.Instance = instance.Info()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	// Artwork endpoints
	mux.HandleFunc("/artwork/current", func(w http.ResponseWriter, r *http.Request) {
		serveArtwork(w, r, ctrl, artworkResolver, thumbnails, ctrl.PlaybackSnapshot().CurrentTrackID)
	})
	mux.HandleFunc("/artwork/track/", func(w http.ResponseWriter, r *http.Request) {
		trackID := strings.TrimPrefix(r.URL.Path, "/artwork/track/")
		serveArtwork(w, r, ctrl, artworkResolver, thumbnails, trackID)
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      corsMiddleware(cfg.AllowedOrigins, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()
		ctrl.Shutdown()
		if lyricsWorker != nil {
			lyricsWorker.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// applyLogConfig reconfigures the global logger from the loaded configuration:
// level plus an optional rotating file sink next to the console output.
func applyLogConfig(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFile == "" {
		log.Logger = log.Output(console)
		return
	}
	fileSink := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.Logger = log.Output(zerolog.MultiLevelWriter(console, fileSink))
}

// serveArtwork resolves cover art for a playlist track and writes the image,
// optionally downscaled to the requested size.
func serveArtwork(w http.ResponseWriter, r *http.Request, ctrl *player.Controller, resolver *artwork.Resolver, thumbnails *artwork.ThumbnailGenerator, trackID string) {
	if trackID == "" {
		http.Error(w, "no track", http.StatusNotFound)
		return
	}

	trackPath := ""
	for _, item := range ctrl.PlaylistSnapshot().Items {
		if item.ID == trackID {
			trackPath = item.Path
			break
		}
	}
	if trackPath == "" {
		http.Error(w, "track not found", http.StatusNotFound)
		return
	}

	result, err := resolver.Resolve(r.Context(), trackPath, ctrl.SettingsSnapshot().MusicRoot)
	if err != nil {
		log.Debug().Err(err).Str("path", trackPath).Msg("Artwork not found")
		http.Error(w, "artwork not found", http.StatusNotFound)
		return
	}

	if sizeParam := r.URL.Query().Get("size"); sizeParam != "" {
		px, err := strconv.Atoi(sizeParam)
		if err != nil {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		thumbPath, err := thumbnails.GenerateThumbnail(result.FilePath, artwork.CacheKey(trackPath), artwork.ParseThumbnailSize(px))
		if err == nil {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Cache-Control", "public, max-age=86400")
			http.ServeFile(w, r, thumbPath)
			return
		}
		log.Debug().Err(err).Str("source", result.FilePath).Msg("Thumbnail generation failed, serving original")
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, result.FilePath)
}
