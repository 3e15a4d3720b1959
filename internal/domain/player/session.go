package player

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/domain/library"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
	"github.com/chorale-player/chorale-backend/internal/infra/session"
)

// buildSessionLocked snapshots the state worth keeping across restarts.
// Tracks go out as paths; ids are minted per process.
func (c *Controller) buildSessionLocked() *session.Session {
	items := c.playlist.Items()
	paths := make([]string, 0, len(items))
	byID := make(map[string]string, len(items))
	for _, it := range items {
		paths = append(paths, it.Path)
		byID[it.ID] = it.Path
	}

	vol := c.status.VolumePercent
	sess := &session.Session{
		PlaylistPaths:        paths,
		SelectedTrackPath:    byID[c.playlist.SelectedTrackID()],
		CurrentTrackPath:     byID[c.playlist.CurrentTrackID()],
		RepeatMode:           string(c.playlist.RepeatMode()),
		ShuffleEnabled:       c.playlist.ShuffleEnabled(),
		VolumePercent:        &vol,
		MusicRoot:            c.settings.MusicRoot,
		ReplayGainMode:       c.settings.ReplayGainMode,
		ReplayGainPreampDb:   c.settings.ReplayGainPreampDb,
		ReplayGainFallbackDb: c.settings.ReplayGainFallbackDb,
		AudioDevice:          c.settings.AudioDevice,
	}

	// The position is only meaningful while the loaded track and the playlist
	// pointer agree; after an explicit stop it restarts from zero.
	if c.status.CurrentTrackID != "" && c.status.CurrentTrackID == c.playlist.CurrentTrackID() {
		sess.CurrentTrackPositionSec = c.status.CurrentTimeSec
	}
	return sess
}

// SaveSession writes the current session to disk.
func (c *Controller) SaveSession() {
	if c.sessions == nil {
		return
	}
	c.mu.Lock()
	sess := c.buildSessionLocked()
	c.mu.Unlock()

	if err := c.sessions.Save(sess); err != nil {
		log.Warn().Err(err).Msg("Could not save session")
	}
}

func (c *Controller) saveLoop() {
	ticker := time.NewTicker(c.cfg.SessionSaveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.SaveSession()
		case <-c.saveStop:
			return
		}
	}
}

// restoreSessionLocked rebuilds state from the previous run. Paths that no
// longer exist or stopped being audio files are dropped; the current track
// comes back paused at its saved position, never auto-playing.
func (c *Controller) restoreSessionLocked() {
	if c.sessions == nil {
		return
	}
	sess, err := c.sessions.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Session unreadable, starting fresh")
		return
	}
	if sess == nil {
		return
	}

	if sess.MusicRoot != "" && c.library != nil {
		if err := c.library.SetRoot(sess.MusicRoot); err != nil {
			log.Warn().Err(err).Str("root", sess.MusicRoot).Msg("Saved music root unusable")
		} else {
			c.settings.MusicRoot = c.library.Root()
		}
	}

	switch sess.ReplayGainMode {
	case ReplayGainOff, ReplayGainTrack, ReplayGainAlbum:
		c.settings.ReplayGainMode = sess.ReplayGainMode
	}
	c.settings.ReplayGainPreampDb = sess.ReplayGainPreampDb
	c.settings.ReplayGainFallbackDb = sess.ReplayGainFallbackDb
	c.settings.AudioDevice = sess.AudioDevice

	c.playlist.SetRepeatMode(playlist.ParseRepeatMode(sess.RepeatMode))
	c.playlist.SetShuffle(sess.ShuffleEnabled)
	c.status.RepeatMode = c.playlist.RepeatMode()
	c.status.ShuffleEnabled = c.playlist.ShuffleEnabled()
	if sess.VolumePercent != nil {
		c.status.VolumePercent = clampVolume(*sess.VolumePercent)
	}

	keep := make([]string, 0, len(sess.PlaylistPaths))
	for _, p := range sess.PlaylistPaths {
		if library.FileExists(p) && library.IsAudioFile(p) {
			keep = append(keep, p)
		}
	}
	if dropped := len(sess.PlaylistPaths) - len(keep); dropped > 0 {
		log.Info().Int("dropped", dropped).Msg("Dropped vanished tracks from saved playlist")
	}

	var added []playlist.Item
	if len(keep) > 0 {
		added = c.playlist.AddPaths(keep, -1)
	}

	if id := firstIDForPath(added, sess.SelectedTrackPath); id != "" {
		c.playlist.Select(id)
	}
	curID := firstIDForPath(added, sess.CurrentTrackPath)
	if curID != "" {
		c.playlist.SetCurrent(curID)
	}

	if c.engine != nil {
		c.applyEngineSettingsLocked()
		if curID != "" {
			if err := c.playTrackLocked(curID, false, sess.CurrentTrackPositionSec); err != nil {
				log.Warn().Err(err).Str("trackId", curID).Msg("Could not reload saved track")
			}
		}
	}

	c.enqueueMetadataLocked(added)
	c.pushPlaylistLocked()
	c.pushPlaybackLocked()
	c.pushSettingsLocked()
	log.Info().Int("tracks", len(added)).Str("current", sess.CurrentTrackPath).Msg("Session restored")
}

// firstIDForPath re-joins a saved path onto the restored playlist. Duplicate
// paths resolve to the first occurrence.
func firstIDForPath(items []playlist.Item, path string) string {
	if path == "" {
		return ""
	}
	for _, it := range items {
		if it.Path == path {
			return it.ID
		}
	}
	return ""
}

// Shutdown winds the controller down: final session save, metadata cache
// flush, queue drain, engine retire. Repeat calls are no-ops.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.saveStop)
	c.SaveSession()

	if c.cache != nil && c.cacheStore != nil {
		if err := c.cache.FlushTo(c.cacheStore); err != nil {
			log.Warn().Err(err).Msg("Could not flush metadata cache")
		}
	}
	c.queue.Shutdown()

	c.mu.Lock()
	c.retireEngineLocked()
	c.mu.Unlock()

	log.Info().Msg("Player controller stopped")
}
