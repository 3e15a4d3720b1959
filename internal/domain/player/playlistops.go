package player

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/domain/artwork"
	"github.com/chorale-player/chorale-backend/internal/domain/library"
	"github.com/chorale-player/chorale-backend/internal/domain/lyrics"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
)

// expandPaths normalizes the incoming path list: directories expand to their
// audio files via the library (which confines them to the music root), files
// pass an extension check, everything else is dropped.
func (c *Controller) expandPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if library.DirExists(p) {
			if c.library == nil {
				log.Warn().Str("path", p).Msg("Directory given without a library, skipping")
				continue
			}
			files, err := c.library.ListAudioFilesRecursive(p)
			if err != nil {
				log.Warn().Err(err).Str("path", p).Msg("Could not expand directory")
				continue
			}
			out = append(out, files...)
			continue
		}
		if library.IsAudioFile(p) {
			out = append(out, p)
			continue
		}
		log.Debug().Str("path", p).Msg("Skipping non-audio path")
	}
	return out
}

// AddPaths appends or inserts tracks. Directories expand recursively; a
// negative index appends.
func (c *Controller) AddPaths(paths []string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expanded := c.expandPaths(paths)
	if len(expanded) == 0 {
		return nil
	}
	added := c.playlist.AddPaths(expanded, index)
	c.pushPlaylistLocked()
	c.enqueueMetadataLocked(added)
	log.Info().Int("count", len(added)).Msg("Tracks added")
	return nil
}

// ReplaceWithPaths swaps the whole playlist, optionally starting playback on
// the first new track.
func (c *Controller) ReplaceWithPaths(paths []string, play bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expanded := c.expandPaths(paths)

	c.unloadEngineLocked()
	c.status.State = StateStopped
	c.status.CurrentTrackID = ""
	c.status.CurrentTimeSec = 0
	c.status.DurationSec = nil
	c.status.ResetReadout()

	added := c.playlist.ReplaceWithPaths(expanded)
	c.pushPlaylistLocked()
	c.enqueueMetadataLocked(added)
	c.reloadLyricsLocked()
	log.Info().Int("count", len(added)).Msg("Playlist replaced")

	if play && len(added) > 0 {
		return c.finishCommandLocked(c.playTrackLocked(added[0].ID, true, 0))
	}
	c.pushPlaybackLocked()
	return nil
}

// RemoveTracks removes tracks by id. When the playing track goes away its
// replacement at the same position starts playing; when only the pointer was
// on it the pointer moves without starting playback.
func (c *Controller) RemoveTracks(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasLoaded := c.status.CurrentTrackID != ""
	res := c.playlist.RemoveTracks(ids)
	c.pushPlaylistLocked()

	if !res.RemovedCurrent {
		return nil
	}

	if res.NextCurrentTrackID == "" {
		// Playlist emptied under the current track.
		c.unloadEngineLocked()
		c.status.State = StateStopped
		c.status.CurrentTrackID = ""
		c.status.CurrentTimeSec = 0
		c.status.DurationSec = nil
		c.status.ResetReadout()
		c.reloadLyricsLocked()
		c.pushPlaybackLocked()
		return nil
	}

	if wasLoaded {
		return c.finishCommandLocked(c.playTrackLocked(res.NextCurrentTrackID, true, 0))
	}
	c.playlist.SetCurrent(res.NextCurrentTrackID)
	c.pushPlaylistLocked()
	return nil
}

// MoveTracks moves a contiguous-or-not id selection in front of targetIndex.
func (c *Controller) MoveTracks(ids []string, targetIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playlist.MoveTracks(ids, targetIndex) {
		c.pushPlaylistLocked()
	}
	return nil
}

// SortPlaylist sorts by the named column, toggling direction on a repeat.
// Unknown columns are ignored.
func (c *Controller) SortPlaylist(column string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := playlist.ParseSortColumn(column)
	if !ok {
		log.Debug().Str("column", column).Msg("Ignoring unknown sort column")
		return nil
	}
	c.playlist.SortBy(col)
	c.pushPlaylistLocked()
	return nil
}

// SelectTracks updates the selection. With only a primary id it is a single
// select; with ids it is a multi-select anchored on primary.
func (c *Controller) SelectTracks(primary string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		c.playlist.Select(primary)
	} else {
		c.playlist.SetSelection(primary, ids)
	}
	c.pushPlaylistLocked()
	return nil
}

// Clear empties the playlist and fully resets playback.
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playlist.Clear()
	c.unloadEngineLocked()
	c.status.State = StateStopped
	c.status.CurrentTrackID = ""
	c.status.CurrentTimeSec = 0
	c.status.DurationSec = nil
	c.status.ResetReadout()
	c.reloadLyricsLocked()
	c.pushPlaylistLocked()
	c.pushPlaybackLocked()
	log.Info().Msg("Playlist cleared")
	return nil
}

// unloadEngineLocked drops whatever the engine has loaded. Used when the
// playlist content under the current track goes away; a rejection just means
// nothing was loaded.
func (c *Controller) unloadEngineLocked() {
	if err := c.facade.StopPlayback(); err != nil {
		log.Debug().Err(err).Msg("Engine stop rejected")
	}
	c.engineIdle = true
}

// enqueueMetadataLocked queues extraction for freshly added tracks. The first
// few ride the high priority lane so the visible playlist fills in fast.
func (c *Controller) enqueueMetadataLocked(items []playlist.Item) {
	for i, it := range items {
		c.queue.Enqueue(it.ID, it.Path, i < highPriorityPrefetch)
	}
}

// loadTrackMetadata is the queue's load function, running on queue workers.
// It consults the fingerprint cache before paying for an extraction and
// re-checks the playlist under the lock before applying, the track may have
// been removed while the probe ran.
func (c *Controller) loadTrackMetadata(trackID, path string) {
	if cur, ok := c.playlist.PathForID(trackID); !ok || cur != path {
		return
	}

	var fp *metadata.Fingerprint
	if f, err := metadata.FingerprintFile(path); err == nil {
		fp = &f
	}

	var md metadata.TrackMetadata
	hit := false
	if c.cache != nil {
		if cached, ok := c.cache.Lookup(path, fp); ok {
			md = cached
			hit = true
		}
	}
	if !hit {
		if c.probe == nil {
			return
		}
		probed, err := c.probe(context.Background(), path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Metadata extraction failed, keeping placeholder")
			return
		}
		md = *probed
		if c.cache != nil {
			c.cache.Put(path, md, fp)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.playlist.PathForID(trackID); !ok || cur != path {
		return
	}
	c.playlist.UpdateMetadata(trackID, &md)
	c.sink.TrackMetadataChanged(trackID, &md)

	if c.playlist.CurrentTrackID() == trackID {
		c.reloadLyricsLocked()
	}
}

// reloadLyricsLocked resolves lyrics for the current track and pushes the
// result. With nothing current, or no lyric source, it pushes an empty view.
func (c *Controller) reloadLyricsLocked() {
	current := c.playlist.CurrentTrackID()
	if current == "" || c.lyricsSvc == nil {
		c.curLyrics = lyrics.Lyrics{}
		c.lyricsTrack = ""
		c.lyricsSource = ""
		c.activeLine = -1
		c.pushLyricsLocked()
		return
	}

	item, ok := c.playlist.ItemByID(current)
	if !ok {
		return
	}
	res := c.lyricsSvc.Lookup(item.Path, item.Metadata)
	if res == nil {
		c.curLyrics = lyrics.Lyrics{}
		c.lyricsTrack = current
		c.lyricsSource = ""
		c.activeLine = -1
		c.maybeQueueLyricsFetchLocked(item)
		c.pushLyricsLocked()
		return
	}

	c.curLyrics = lyrics.Lyrics{Synced: res.Synced, Lines: res.Lines}
	c.lyricsTrack = current
	c.lyricsSource = res.Source
	c.activeLine = c.curLyrics.ActiveIndex(c.status.CurrentTimeSec)
	c.pushLyricsLocked()
}

// maybeQueueLyricsFetchLocked hands a track without local lyrics to the
// background fetcher. Needs extracted tags, a placeholder title alone is not
// enough to search on.
func (c *Controller) maybeQueueLyricsFetchLocked(item playlist.Item) {
	if c.lyricsJobs == nil || item.Metadata == nil {
		return
	}
	md := item.Metadata
	if md.Artist == "" || md.Title == "" {
		return
	}
	durationSec := 0
	if md.DurationSec != nil {
		durationSec = int(*md.DurationSec + 0.5)
	}
	if err := c.lyricsJobs.AddJob(item.Path, md.Artist, md.Title, md.Album, durationSec); err != nil {
		log.Debug().Err(err).Str("path", item.Path).Msg("Could not queue lyrics fetch")
	}
}

// refreshLyricsIndexLocked advances the highlighted line with the position.
// Only synced lyrics track the position; a push happens only on change.
func (c *Controller) refreshLyricsIndexLocked() {
	if !c.curLyrics.Synced || len(c.curLyrics.Lines) == 0 {
		return
	}
	idx := c.curLyrics.ActiveIndex(c.status.CurrentTimeSec)
	if idx == c.activeLine {
		return
	}
	c.activeLine = idx
	c.pushLyricsLocked()
}

func (c *Controller) lyricsSnapshotLocked() LyricsSnapshot {
	lines := make([]lyrics.Line, len(c.curLyrics.Lines))
	copy(lines, c.curLyrics.Lines)
	return LyricsSnapshot{
		TrackID:     c.lyricsTrack,
		Source:      c.lyricsSource,
		Synced:      c.curLyrics.Synced,
		Lines:       lines,
		ActiveIndex: c.activeLine,
	}
}

// NotifyLyricsFetched reloads lyrics when a background fetch landed for the
// track currently playing. Called from the enrichment pipeline.
func (c *Controller) NotifyLyricsFetched(trackPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.playlist.CurrentTrackID()
	if current == "" {
		return
	}
	if path, ok := c.playlist.PathForID(current); ok && path == trackPath {
		c.reloadLyricsLocked()
	}
}

// warmArtwork primes the artwork resolver for a track so the HTTP endpoint
// answers from cache. Fire and forget.
func (c *Controller) warmArtwork(path string) {
	if c.artwork == nil {
		return
	}
	root := c.settings.MusicRoot
	go func() {
		if _, err := c.artwork.Resolve(context.Background(), path, root); err != nil && !errors.Is(err, artwork.ErrNoArtwork) {
			log.Debug().Err(err).Str("path", path).Msg("Artwork resolve failed")
		}
	}()
}

// recordPlay logs a started track to the play history, with whatever tags
// the playlist item carries at this point.
func (c *Controller) recordPlay(id, path string) {
	if c.history == nil {
		return
	}
	title := filepath.Base(path)
	artist, album := "", ""
	if item, ok := c.playlist.ItemByID(id); ok && item.Metadata != nil {
		if item.Metadata.Title != "" {
			title = item.Metadata.Title
		}
		artist = item.Metadata.Artist
		album = item.Metadata.Album
	}
	c.history.RecordPlay(path, title, artist, album)
}
