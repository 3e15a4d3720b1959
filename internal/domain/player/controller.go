package player

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/config"
	"github.com/chorale-player/chorale-backend/internal/domain/artwork"
	"github.com/chorale-player/chorale-backend/internal/domain/history"
	"github.com/chorale-player/chorale-backend/internal/domain/library"
	"github.com/chorale-player/chorale-backend/internal/domain/lyrics"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
	"github.com/chorale-player/chorale-backend/internal/infra/mpv"
	"github.com/chorale-player/chorale-backend/internal/infra/session"
)

const (
	// benignEngineError is the engine's generic command failure text. It shows
	// up for recoverable conditions like seeking while nothing is loaded, so
	// it maps to a transient status instead of a sticky backend error.
	benignEngineError = "error running command"

	// statusMessageDuration is how long a transient status line stays up.
	statusMessageDuration = 5 * time.Second

	// highPriorityPrefetch is how many freshly added tracks get their metadata
	// extracted on the high priority lane, bounding first-screen latency.
	highPriorityPrefetch = 20

	// eventBacklog bounds engine events queued behind a held command lock.
	eventBacklog = 256
)

var (
	// ErrTrackNotFound rejects commands naming a track id the playlist does
	// not contain.
	ErrTrackNotFound = errors.New("track not found")

	// ErrEngineUnavailable rejects playback commands while no engine is up.
	ErrEngineUnavailable = errors.New("playback engine unavailable")
)

// Engine is the transport surface the controller manages. Implemented by
// *mpv.Transport.
type Engine interface {
	mpv.Commander
	Start() error
	Stop()
	Running() bool
	Events() <-chan mpv.Event
}

// ProbeFunc extracts metadata for one file.
type ProbeFunc func(ctx context.Context, path string) (*metadata.TrackMetadata, error)

// LyricsJobEnqueuer hands tracks without local lyrics to the background
// fetcher. Implemented by enrichment.Worker.
type LyricsJobEnqueuer interface {
	AddJob(trackPath, artist, title, album string, durationSec int) error
}

// ArtworkResolver locates cover art for a track. Implemented by
// artwork.Resolver.
type ArtworkResolver interface {
	Resolve(ctx context.Context, trackPath, rootDir string) (*artwork.ResolveResult, error)
}

// Deps wires the controller's collaborators. Config, Playlist and Sink are
// required; the rest degrade to reduced functionality when nil.
type Deps struct {
	Config     *config.Config
	Playlist   *playlist.Manager
	Library    *library.Service
	Cache      *metadata.Cache
	CacheStore metadata.Store
	Probe      ProbeFunc
	Lyrics     *lyrics.Service
	LyricsJobs LyricsJobEnqueuer
	Artwork    ArtworkResolver
	Sessions   *session.Store
	History    *history.Store
	Sink       EventSink
	NewEngine  func() Engine
}

// Controller is the single mutator of playback state. Commands and engine
// events serialize on one mutex, which gives the same effect as a single
// threaded event loop: between engine round-trips nothing else touches the
// state.
type Controller struct {
	mu sync.Mutex

	cfg        *config.Config
	playlist   *playlist.Manager
	library    *library.Service
	cache      *metadata.Cache
	cacheStore metadata.Store
	probe      ProbeFunc
	lyricsSvc  *lyrics.Service
	lyricsJobs LyricsJobEnqueuer
	artwork    ArtworkResolver
	sessions   *session.Store
	history    *history.Store
	sink       EventSink

	newEngine  func() Engine
	engine     Engine
	engineDone chan struct{}
	engineIdle bool
	facade     *mpv.Facade

	queue *metadata.LoadQueue

	status     PlaybackStatus
	settings   Settings
	statusLine StatusInfo
	statusGen  int
	backendErr string

	curLyrics    lyrics.Lyrics
	lyricsTrack  string
	lyricsSource string
	activeLine   int

	loadMu sync.Mutex
	loadCh chan struct{}

	saveStop chan struct{}
	closed   bool
}

// disconnectedEngine stands in for the facade's commander while no engine is
// up, failing commands fast instead of hanging.
type disconnectedEngine struct{}

func (disconnectedEngine) Send(command ...any) (json.RawMessage, error) {
	return nil, ErrEngineUnavailable
}

// NewController wires a controller. Call Start to bring the engine up and
// restore the previous session.
func NewController(deps Deps) *Controller {
	c := &Controller{
		cfg:        deps.Config,
		playlist:   deps.Playlist,
		library:    deps.Library,
		cache:      deps.Cache,
		cacheStore: deps.CacheStore,
		probe:      deps.Probe,
		lyricsSvc:  deps.Lyrics,
		lyricsJobs: deps.LyricsJobs,
		artwork:    deps.Artwork,
		sessions:   deps.Sessions,
		history:    deps.History,
		sink:       deps.Sink,
		newEngine:  deps.NewEngine,
		status:     NewPlaybackStatus(),
		settings:   Settings{ReplayGainMode: ReplayGainOff},
		activeLine: -1,
		saveStop:   make(chan struct{}),
	}
	if deps.Library != nil {
		c.settings.MusicRoot = deps.Library.Root()
	}
	c.facade = mpv.NewFacade(disconnectedEngine{}, deps.Config.SoftOptionErrors)
	c.queue = metadata.NewLoadQueue(deps.Config.MetadataWorkers, c.loadTrackMetadata)
	return c
}

// Start brings the controller up: engine first (a failure degrades to a
// sticky backend error, the app stays usable without playback), then session
// restore, then the periodic session save.
func (c *Controller) Start() {
	c.mu.Lock()
	if err := c.startEngineLocked(); err != nil {
		log.Error().Err(err).Msg("Engine startup failed, playback disabled")
		c.setBackendErrorLocked("Playback engine failed to start: " + err.Error())
	}
	c.restoreSessionLocked()
	c.mu.Unlock()

	if c.sessions != nil && c.cfg.SessionSaveEvery > 0 {
		go c.saveLoop()
	}
}

// RestartEngine tears the engine down and brings a fresh one up, reapplying
// sound settings and reloading the current track paused at its position.
func (c *Controller) RestartEngine() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resumeID := c.playlist.CurrentTrackID()
	resumePos := c.status.CurrentTimeSec

	c.retireEngineLocked()
	c.status.State = StateStopped
	c.status.CurrentTrackID = ""
	c.status.CurrentTimeSec = 0
	c.status.ResetReadout()

	if err := c.startEngineLocked(); err != nil {
		log.Error().Err(err).Msg("Engine restart failed")
		c.setBackendErrorLocked("Engine restart failed: " + err.Error())
		c.pushPlaybackLocked()
		return err
	}
	c.clearBackendErrorLocked()

	if resumeID != "" {
		if err := c.playTrackLocked(resumeID, false, resumePos); err != nil {
			log.Warn().Err(err).Str("trackId", resumeID).Msg("Could not reload track after restart")
		}
	}
	c.pushPlaybackLocked()
	log.Info().Msg("Engine restarted")
	return nil
}

func (c *Controller) startEngineLocked() error {
	if c.newEngine == nil {
		return ErrEngineUnavailable
	}
	eng := c.newEngine()
	if err := eng.Start(); err != nil {
		eng.Stop()
		return err
	}

	done := make(chan struct{})
	c.engine = eng
	c.engineDone = done
	c.engineIdle = true
	c.facade.SetCommander(eng)
	go c.dispatchEvents(eng, done)

	c.applyEngineSettingsLocked()
	return nil
}

// retireEngineLocked detaches and stops the current engine generation.
func (c *Controller) retireEngineLocked() {
	if c.engineDone != nil {
		close(c.engineDone)
		c.engineDone = nil
	}
	if c.engine != nil {
		eng := c.engine
		c.engine = nil
		eng.Stop()
	}
	c.engineIdle = true
	c.facade.SetCommander(disconnectedEngine{})
}

// applyEngineSettingsLocked pushes volume, replaygain and the output device
// to a fresh engine, best effort.
func (c *Controller) applyEngineSettingsLocked() {
	if err := c.facade.SetVolume(c.status.VolumePercent); err != nil {
		log.Debug().Err(err).Msg("Could not restore volume")
	}
	if err := c.facade.ApplyReplayGain(c.engineReplayGain()); err != nil {
		log.Warn().Err(err).Msg("Could not apply replaygain settings")
	}
	if c.settings.AudioDevice != "" {
		if err := c.facade.SetAudioDevice(c.settings.AudioDevice); err != nil {
			log.Warn().Err(err).Str("device", c.settings.AudioDevice).Msg("Could not select audio device")
		}
	}
}

// engineReplayGain maps the UI-facing settings onto engine vocabulary.
func (c *Controller) engineReplayGain() mpv.ReplayGainSettings {
	mode := "no"
	switch c.settings.ReplayGainMode {
	case ReplayGainTrack:
		mode = "track"
	case ReplayGainAlbum:
		mode = "album"
	}
	return mpv.ReplayGainSettings{
		Mode:       mode,
		PreampDb:   c.settings.ReplayGainPreampDb,
		FallbackDb: c.settings.ReplayGainFallbackDb,
	}
}

// dispatchEvents pumps one engine generation. The pump stage never takes the
// command lock, so the file-loaded signal can overtake property events queued
// behind a held lock; the handle stage serializes events against commands.
func (c *Controller) dispatchEvents(eng Engine, done chan struct{}) {
	handoff := make(chan mpv.Event, eventBacklog)
	go func() {
		for {
			select {
			case ev := <-handoff:
				c.handleEngineEvent(eng, ev)
			case <-done:
				return
			}
		}
	}()

	events := eng.Events()
	for {
		select {
		case ev := <-events:
			if _, ok := ev.(mpv.FileLoaded); ok {
				c.signalFileLoaded()
			}
			select {
			case handoff <- ev:
			default:
				log.Warn().Msg("Engine event backlog full, dropping event")
			}
		case <-done:
			return
		}
	}
}

func (c *Controller) handleEngineEvent(eng Engine, ev mpv.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine != eng {
		// Stale generation, the engine was swapped while this event waited.
		return
	}

	switch e := ev.(type) {
	case mpv.PropertyChange:
		c.status.ApplyProperty(e.Name, e.Value)
		if e.Name == "time-pos" {
			c.refreshLyricsIndexLocked()
		}
		c.pushPlaybackLocked()
	case mpv.FileLoaded:
		c.engineIdle = false
	case mpv.EndFile:
		if e.Reason == mpv.EndFileEOF {
			c.engineIdle = true
			// Advancing loads a file and waits for its confirmation, which
			// must not run on the goroutine that delivers it.
			go c.autoAdvance()
		} else {
			log.Debug().Str("reason", e.Reason).Msg("Playback ended")
		}
	case mpv.Exited:
		c.handleEngineExitLocked(e.Err)
	}
}

// autoAdvance moves to the next track after a natural end of file.
func (c *Controller) autoAdvance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := c.playlist.NextTrackID()
	if !ok {
		c.enterIdleLocked("End of playlist")
		return
	}
	if err := c.playTrackLocked(next, true, 0); err != nil {
		log.Warn().Err(err).Str("trackId", next).Msg("Auto-advance failed")
		c.classifyLocked(err)
		return
	}
	c.clearBackendErrorLocked()
}

// enterIdleLocked parks the player paused when navigation finds no further
// track. The message distinguishes a natural end of playlist from a manual
// skip with nothing queued.
func (c *Controller) enterIdleLocked(message string) {
	if c.status.CurrentTrackID != "" {
		if err := c.facade.Pause(); err != nil {
			log.Debug().Err(err).Msg("Pause at playlist end failed")
		}
		c.status.State = StatePaused
	}
	c.setTransientStatusLocked(message)
	c.pushPlaybackLocked()
}

func (c *Controller) handleEngineExitLocked(err error) {
	log.Error().Err(err).Msg("Engine backend lost")
	c.retireEngineLocked()
	c.status.State = StateStopped
	c.status.CurrentTrackID = ""
	c.status.CurrentTimeSec = 0
	c.status.ResetReadout()
	c.setBackendErrorLocked("Playback engine exited unexpectedly")
	c.pushPlaybackLocked()
}

// playTrackLocked runs the full load flow for one track: pointer update,
// readout reset, replaygain reapply, load with a bounded wait for the
// file-loaded confirmation, optional resume seek, play or pause per the
// autoplay flag, then metadata, lyrics and artwork refreshes.
func (c *Controller) playTrackLocked(id string, autoplay bool, resumeSec float64) error {
	path, ok := c.playlist.PathForID(id)
	if !ok {
		return ErrTrackNotFound
	}

	c.playlist.SetCurrentAndSelect(id)
	c.pushPlaylistLocked()

	c.status.CurrentTrackID = id
	c.status.CurrentTimeSec = 0
	c.status.DurationSec = nil
	c.status.ResetReadout()

	// Gain settings are track independent but engines forget them across
	// certain loads, so they are reissued on every load.
	if err := c.facade.ApplyReplayGain(c.engineReplayGain()); err != nil {
		log.Warn().Err(err).Msg("Replaygain settings not applied")
	}

	loaded := c.armFileLoaded()
	if err := c.facade.Load(path, true); err != nil {
		c.disarmFileLoaded()
		c.status.State = StateStopped
		c.status.CurrentTrackID = ""
		c.pushPlaybackLocked()
		return err
	}
	c.engineIdle = false

	select {
	case <-loaded:
	case <-time.After(c.fileLoadedTimeout()):
		// Proceed anyway; property events catch the state up when the load
		// eventually lands.
		log.Debug().Str("path", path).Msg("No file-loaded confirmation, continuing")
		c.disarmFileLoaded()
	}

	if resumeSec > 0 {
		if err := c.facade.SeekAbsolute(resumeSec); err != nil {
			log.Debug().Err(err).Float64("position", resumeSec).Msg("Resume seek rejected")
		} else {
			c.status.CurrentTimeSec = resumeSec
		}
	}

	var err error
	if autoplay {
		err = c.facade.Play()
		c.status.State = StatePlaying
	} else {
		err = c.facade.Pause()
		c.status.State = StatePaused
	}
	if err != nil {
		log.Warn().Err(err).Msg("Could not set pause state after load")
	}

	c.queue.Enqueue(id, path, true)
	c.reloadLyricsLocked()
	c.warmArtwork(path)
	if autoplay {
		c.recordPlay(id, path)
	}
	c.pushPlaybackLocked()

	log.Info().Str("trackId", id).Str("path", path).Bool("autoplay", autoplay).Msg("Track loaded")
	return nil
}

// lazyStartLocked starts playback from the selection, or the first item when
// nothing is selected. An empty playlist is a no-op.
func (c *Controller) lazyStartLocked() error {
	id := c.playlist.SelectedTrackID()
	if id == "" {
		items := c.playlist.Items()
		if len(items) == 0 {
			log.Debug().Msg("Play with an empty playlist")
			return nil
		}
		id = items[0].ID
	}
	return c.playTrackLocked(id, true, 0)
}

func (c *Controller) fileLoadedTimeout() time.Duration {
	if c.cfg.FileLoadedTimeout > 0 {
		return c.cfg.FileLoadedTimeout
	}
	return 3 * time.Second
}

// armFileLoaded prepares a one-shot signal for the next file-loaded event.
func (c *Controller) armFileLoaded() <-chan struct{} {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.loadCh = make(chan struct{})
	return c.loadCh
}

func (c *Controller) disarmFileLoaded() {
	c.loadMu.Lock()
	c.loadCh = nil
	c.loadMu.Unlock()
}

func (c *Controller) signalFileLoaded() {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.loadCh != nil {
		close(c.loadCh)
		c.loadCh = nil
	}
}

// finishCommandLocked funnels every playback command result through the error
// classification: failures surface per classifyLocked, success clears any
// sticky backend error.
func (c *Controller) finishCommandLocked(err error) error {
	if err != nil {
		c.classifyLocked(err)
		return err
	}
	c.clearBackendErrorLocked()
	return nil
}

// classifyLocked sorts a command failure into the user-visible buckets. The
// engine's generic failure text and purely local conditions become transient
// status lines; everything else is a sticky backend error until the next
// success.
func (c *Controller) classifyLocked(err error) {
	var rej *mpv.CommandRejectedError
	if errors.As(err, &rej) && strings.EqualFold(strings.TrimSpace(rej.Reason), benignEngineError) {
		c.setTransientStatusLocked("Command failed")
		return
	}
	if errors.Is(err, ErrEngineUnavailable) {
		c.setTransientStatusLocked("Playback engine is not available")
		return
	}
	if errors.Is(err, ErrTrackNotFound) {
		c.setTransientStatusLocked("Track is no longer in the playlist")
		return
	}
	c.setBackendErrorLocked(err.Error())
}

func (c *Controller) setTransientStatusLocked(message string) {
	c.statusGen++
	gen := c.statusGen
	c.statusLine = StatusInfo{Message: message, Transient: true}
	c.pushStatusLocked()

	time.AfterFunc(statusMessageDuration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.statusGen != gen {
			return
		}
		c.statusLine = StatusInfo{}
		c.pushStatusLocked()
	})
}

func (c *Controller) setBackendErrorLocked(message string) {
	c.backendErr = message
	c.sink.BackendErrorChanged(message)
}

func (c *Controller) clearBackendErrorLocked() {
	if c.backendErr == "" {
		return
	}
	c.backendErr = ""
	c.sink.BackendErrorChanged("")
}

func (c *Controller) pushPlaybackLocked() { c.sink.PlaybackChanged(c.status.Clone()) }
func (c *Controller) pushStatusLocked()   { c.sink.StatusChanged(c.statusLine) }
func (c *Controller) pushPlaylistLocked() { c.sink.PlaylistChanged(c.playlist.Snapshot()) }
func (c *Controller) pushSettingsLocked() { c.sink.SettingsChanged(c.settings) }
func (c *Controller) pushLyricsLocked()   { c.sink.LyricsChanged(c.lyricsSnapshotLocked()) }

// PlaybackSnapshot returns a copy of the current playback state.
func (c *Controller) PlaybackSnapshot() PlaybackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Clone()
}

// PlaylistSnapshot returns the current playlist view.
func (c *Controller) PlaylistSnapshot() playlist.Snapshot {
	return c.playlist.Snapshot()
}

// SettingsSnapshot returns the current settings.
func (c *Controller) SettingsSnapshot() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// LyricsState returns the current lyrics view.
func (c *Controller) LyricsState() LyricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lyricsSnapshotLocked()
}

// StatusLine returns the current status line.
func (c *Controller) StatusLine() StatusInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLine
}

// BackendError returns the sticky backend error, empty when healthy.
func (c *Controller) BackendError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backendErr
}

// EngineRunning reports whether an engine connection is up.
func (c *Controller) EngineRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine != nil && c.engine.Running()
}
