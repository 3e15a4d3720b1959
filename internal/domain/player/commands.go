package player

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
)

// Play starts or resumes playback. With no current track it starts from the
// selection, or the first item; after the engine unloaded the file at end of
// file it reloads the current track from the beginning.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.playlist.CurrentTrackID()
	if current == "" {
		return c.finishCommandLocked(c.lazyStartLocked())
	}
	if c.engineIdle {
		return c.finishCommandLocked(c.playTrackLocked(current, true, 0))
	}
	err := c.facade.Play()
	if err == nil {
		c.status.CurrentTrackID = current
		c.status.State = StatePlaying
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// Pause pauses playback. Without a loaded track it does nothing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.CurrentTrackID == "" {
		return nil
	}
	err := c.facade.Pause()
	if err == nil {
		c.status.State = StatePaused
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// PlayPause toggles between playing and paused, with the same lazy start and
// reload behavior as Play when nothing is loaded.
func (c *Controller) PlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.playlist.CurrentTrackID()
	if current == "" {
		return c.finishCommandLocked(c.lazyStartLocked())
	}
	if c.engineIdle {
		return c.finishCommandLocked(c.playTrackLocked(current, true, 0))
	}
	err := c.facade.TogglePause()
	if err == nil {
		c.status.CurrentTrackID = current
		if c.status.State == StatePlaying {
			c.status.State = StatePaused
		} else {
			c.status.State = StatePlaying
		}
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// PlayTrack loads and plays the given playlist track from the beginning.
func (c *Controller) PlayTrack(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishCommandLocked(c.playTrackLocked(id, true, 0))
}

// Stop pauses the engine, rewinds to the start and presents as fully stopped
// with no current track. The playlist keeps its pointer, so Play picks the
// same track back up. Stopping when already stopped is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.State == StateStopped && c.status.CurrentTrackID == "" {
		return nil
	}

	err := c.facade.Pause()
	if err == nil {
		if seekErr := c.facade.SeekAbsolute(0); seekErr != nil {
			log.Debug().Err(seekErr).Msg("Rewind on stop rejected")
		}
	}
	c.status.State = StateStopped
	c.status.CurrentTimeSec = 0
	c.status.CurrentTrackID = ""
	c.pushPlaybackLocked()
	return c.finishCommandLocked(err)
}

// Next moves to the next track under the active order and repeat mode. At the
// boundary with repeat off it parks paused and reports there is nothing
// further. A paused player stays paused on the new track.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := c.playlist.NextTrackID()
	if !ok {
		c.enterIdleLocked("No next track")
		return nil
	}
	autoplay := c.status.State != StatePaused
	return c.finishCommandLocked(c.playTrackLocked(next, autoplay, 0))
}

// Previous moves to the previous track under the active order and repeat
// mode, mirroring Next.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.playlist.PreviousTrackID()
	if !ok {
		c.enterIdleLocked("No previous track")
		return nil
	}
	autoplay := c.status.State != StatePaused
	return c.finishCommandLocked(c.playTrackLocked(prev, autoplay, 0))
}

// SeekRelative seeks by a signed offset in seconds.
func (c *Controller) SeekRelative(offsetSec float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.facade.SeekRelative(offsetSec)
	if err == nil {
		pos := c.status.CurrentTimeSec + offsetSec
		if pos < 0 {
			pos = 0
		}
		c.status.CurrentTimeSec = pos
		c.refreshLyricsIndexLocked()
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// SeekAbsolute seeks to a position in seconds from the start.
func (c *Controller) SeekAbsolute(positionSec float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if positionSec < 0 {
		positionSec = 0
	}
	err := c.facade.SeekAbsolute(positionSec)
	if err == nil {
		c.status.CurrentTimeSec = positionSec
		c.refreshLyricsIndexLocked()
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// SetVolume sets the output volume, clamped to the engine's range.
func (c *Controller) SetVolume(percent int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	percent = clampVolume(percent)
	err := c.facade.SetVolume(percent)
	if err == nil {
		c.status.VolumePercent = percent
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// SetMuted mutes or unmutes the output.
func (c *Controller) SetMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.facade.SetMuted(muted)
	if err == nil {
		c.status.Muted = muted
		c.pushPlaybackLocked()
	}
	return c.finishCommandLocked(err)
}

// SetRepeatMode sets the repeat mode from its wire value. Unknown values fall
// back to off.
func (c *Controller) SetRepeatMode(mode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist.SetRepeatMode(playlist.ParseRepeatMode(mode))
	c.syncOrderFlagsLocked()
	return nil
}

// CycleRepeat steps the repeat mode off, all, one and back to off.
func (c *Controller) CycleRepeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist.CycleRepeat()
	c.syncOrderFlagsLocked()
	return nil
}

// SetShuffle enables or disables shuffled playback order.
func (c *Controller) SetShuffle(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist.SetShuffle(enabled)
	c.syncOrderFlagsLocked()
	return nil
}

// ToggleShuffle flips the shuffle order.
func (c *Controller) ToggleShuffle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist.ToggleShuffle()
	c.syncOrderFlagsLocked()
	return nil
}

func (c *Controller) syncOrderFlagsLocked() {
	c.status.RepeatMode = c.playlist.RepeatMode()
	c.status.ShuffleEnabled = c.playlist.ShuffleEnabled()
	c.pushPlaybackLocked()
}

// UpdateSettings applies a partial settings change. Engine-facing fields are
// pushed to the engine immediately and the music root goes through library
// validation; the first failure stops the patch, fields already applied stay
// applied.
func (c *Controller) UpdateSettings(patch SettingsPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	gainChanged := false
	if patch.ReplayGainMode != nil {
		switch *patch.ReplayGainMode {
		case ReplayGainOff, ReplayGainTrack, ReplayGainAlbum:
		default:
			return fmt.Errorf("unknown replaygain mode %q", *patch.ReplayGainMode)
		}
		if c.settings.ReplayGainMode != *patch.ReplayGainMode {
			c.settings.ReplayGainMode = *patch.ReplayGainMode
			gainChanged = true
		}
	}
	if patch.ReplayGainPreampDb != nil && c.settings.ReplayGainPreampDb != *patch.ReplayGainPreampDb {
		c.settings.ReplayGainPreampDb = *patch.ReplayGainPreampDb
		gainChanged = true
	}
	if patch.ReplayGainFallbackDb != nil && c.settings.ReplayGainFallbackDb != *patch.ReplayGainFallbackDb {
		c.settings.ReplayGainFallbackDb = *patch.ReplayGainFallbackDb
		gainChanged = true
	}
	if gainChanged {
		if err := c.facade.ApplyReplayGain(c.engineReplayGain()); err != nil {
			c.pushSettingsLocked()
			return c.finishCommandLocked(err)
		}
	}

	if patch.AudioDevice != nil && *patch.AudioDevice != c.settings.AudioDevice {
		if err := c.facade.SetAudioDevice(*patch.AudioDevice); err != nil {
			c.pushSettingsLocked()
			return c.finishCommandLocked(err)
		}
		c.settings.AudioDevice = *patch.AudioDevice
	}

	if patch.MusicRoot != nil && *patch.MusicRoot != c.settings.MusicRoot {
		if c.library == nil {
			return errors.New("library is not configured")
		}
		if err := c.library.SetRoot(*patch.MusicRoot); err != nil {
			return err
		}
		c.settings.MusicRoot = c.library.Root()
		log.Info().Str("root", c.settings.MusicRoot).Msg("Music root changed")
	}

	c.pushSettingsLocked()
	return c.finishCommandLocked(nil)
}

// SetMusicRoot points the library at a new root directory.
func (c *Controller) SetMusicRoot(dir string) error {
	return c.UpdateSettings(SettingsPatch{MusicRoot: &dir})
}
