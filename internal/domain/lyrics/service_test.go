package lyrics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chorale-player/chorale-backend/internal/domain/lyrics"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/infra/cache"
)

type fakeCache struct {
	rows map[cache.LyricsKey]*cache.CachedLyrics
	err  error
}

func (f *fakeCache) GetLyrics(key cache.LyricsKey) (*cache.CachedLyrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[key], nil
}

func writeAudioWithSidecar(t *testing.T, lrc string) string {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(audio, []byte("flac bytes"), 0644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if lrc != "" {
		if err := os.WriteFile(filepath.Join(dir, "track.lrc"), []byte(lrc), 0644); err != nil {
			t.Fatalf("write sidecar: %v", err)
		}
	}
	return audio
}

func TestLookupPrefersSidecar(t *testing.T) {
	audio := writeAudioWithSidecar(t, "[00:05.00]from sidecar")
	svc := lyrics.NewService(&fakeCache{})

	md := &metadata.TrackMetadata{Title: "t", Lyrics: "from tag"}
	got := svc.Lookup(audio, md)
	if got == nil || got.Source != lyrics.SourceSidecar {
		t.Fatalf("result = %+v, want sidecar", got)
	}
	if !got.Synced || got.Lines[0].Text != "from sidecar" {
		t.Fatalf("lines = %+v", got.Lines)
	}
}

func TestLookupFallsBackToEmbedded(t *testing.T) {
	audio := writeAudioWithSidecar(t, "")
	svc := lyrics.NewService(&fakeCache{})

	md := &metadata.TrackMetadata{Title: "t", Lyrics: "plain embedded words"}
	got := svc.Lookup(audio, md)
	if got == nil || got.Source != lyrics.SourceEmbedded {
		t.Fatalf("result = %+v, want embedded", got)
	}
	if got.Synced {
		t.Fatal("plain tag text parsed as synced")
	}
}

func TestLookupFallsBackToCache(t *testing.T) {
	audio := writeAudioWithSidecar(t, "")
	md := &metadata.TrackMetadata{Title: "Aja", Artist: "Steely Dan"}

	store := &fakeCache{rows: map[cache.LyricsKey]*cache.CachedLyrics{
		lyrics.KeyFor(md): {Synced: "[00:01.00]fetched line"},
	}}
	svc := lyrics.NewService(store)

	got := svc.Lookup(audio, md)
	if got == nil || got.Source != lyrics.SourceCached {
		t.Fatalf("result = %+v, want cached", got)
	}
	if !got.Synced || got.Lines[0].Text != "fetched line" {
		t.Fatalf("lines = %+v", got.Lines)
	}
}

func TestLookupCachedPlainOnly(t *testing.T) {
	audio := writeAudioWithSidecar(t, "")
	md := &metadata.TrackMetadata{Title: "Aja", Artist: "Steely Dan"}

	store := &fakeCache{rows: map[cache.LyricsKey]*cache.CachedLyrics{
		lyrics.KeyFor(md): {Plain: "unsynced fetched text"},
	}}
	svc := lyrics.NewService(store)

	got := svc.Lookup(audio, md)
	if got == nil || got.Source != lyrics.SourceCached || got.Synced {
		t.Fatalf("result = %+v, want unsynced cached", got)
	}
}

func TestLookupNothingFound(t *testing.T) {
	audio := writeAudioWithSidecar(t, "")
	svc := lyrics.NewService(&fakeCache{})

	if got := svc.Lookup(audio, &metadata.TrackMetadata{Title: "t"}); got != nil {
		t.Fatalf("result = %+v, want nil", got)
	}
}

func TestKeyForNormalizes(t *testing.T) {
	dur := 478.4
	a := lyrics.KeyFor(&metadata.TrackMetadata{Title: "  Aja ", Artist: "STEELY   Dan", Album: "Aja", DurationSec: &dur})
	b := lyrics.KeyFor(&metadata.TrackMetadata{Title: "aja", Artist: "steely dan", Album: "AJA", DurationSec: &dur})
	if a != b {
		t.Fatalf("keys differ: %+v vs %+v", a, b)
	}
	if a.DurationSec != 478 {
		t.Fatalf("duration = %d, want 478", a.DurationSec)
	}
}
