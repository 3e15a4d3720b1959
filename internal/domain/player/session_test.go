package player

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
	"github.com/chorale-player/chorale-backend/internal/infra/session"
)

func writeTrack(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.flac")
	b := writeTrack(t, dir, "b.flac")
	store := session.NewStore(filepath.Join(dir, "session.json"))

	eng1 := newFakeEngine()
	deps1, _ := testDeps(eng1)
	deps1.Sessions = store
	c1 := startController(t, deps1)

	if err := c1.AddPaths([]string{a, b}, -1); err != nil {
		t.Fatalf("AddPaths failed: %v", err)
	}
	items := c1.PlaylistSnapshot().Items
	if len(items) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(items))
	}
	if err := c1.PlayTrack(items[1].ID); err != nil {
		t.Fatalf("PlayTrack failed: %v", err)
	}
	if err := c1.SeekAbsolute(25); err != nil {
		t.Fatalf("SeekAbsolute failed: %v", err)
	}
	if err := c1.SetVolume(80); err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	if err := c1.SetRepeatMode("all"); err != nil {
		t.Fatalf("SetRepeatMode failed: %v", err)
	}
	c1.Shutdown()

	eng2 := newFakeEngine()
	deps2, _ := testDeps(eng2)
	deps2.Sessions = store
	c2 := startController(t, deps2)

	pl := c2.PlaylistSnapshot()
	if len(pl.Items) != 2 {
		t.Fatalf("Expected 2 restored tracks, got %d", len(pl.Items))
	}
	var curPath string
	for _, it := range pl.Items {
		if it.ID == pl.CurrentTrackID {
			curPath = it.Path
		}
	}
	if curPath != b {
		t.Errorf("Expected current track %q, got %q", b, curPath)
	}

	st := c2.PlaybackSnapshot()
	if st.State != StatePaused {
		t.Errorf("Expected the restored track paused, got %q", st.State)
	}
	if st.CurrentTimeSec != 25 {
		t.Errorf("Expected position 25, got %v", st.CurrentTimeSec)
	}
	if st.VolumePercent != 80 {
		t.Errorf("Expected volume 80, got %d", st.VolumePercent)
	}
	if st.RepeatMode != playlist.RepeatAll {
		t.Errorf("Expected repeat all, got %q", st.RepeatMode)
	}

	if loads := eng2.loads(); len(loads) != 1 || loads[0] != b {
		t.Errorf("Expected the saved track reloaded, got %v", loads)
	}
	pauses := eng2.propertySets("pause")
	if len(pauses) == 0 || pauses[len(pauses)-1] != true {
		t.Error("Expected restore to leave the engine paused")
	}
}

func TestSessionRestoreDropsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.flac")
	b := writeTrack(t, dir, "b.flac")
	store := session.NewStore(filepath.Join(dir, "session.json"))

	eng1 := newFakeEngine()
	deps1, _ := testDeps(eng1)
	deps1.Sessions = store
	c1 := startController(t, deps1)
	if err := c1.AddPaths([]string{a, b}, -1); err != nil {
		t.Fatalf("AddPaths failed: %v", err)
	}
	c1.Shutdown()

	if err := os.Remove(b); err != nil {
		t.Fatal(err)
	}

	eng2 := newFakeEngine()
	deps2, _ := testDeps(eng2)
	deps2.Sessions = store
	c2 := startController(t, deps2)

	pl := c2.PlaylistSnapshot()
	if len(pl.Items) != 1 || pl.Items[0].Path != a {
		t.Errorf("Expected only the surviving track, got %+v", pl.Items)
	}
	if st := c2.PlaybackSnapshot(); st.State != StateStopped {
		t.Errorf("Expected stopped without a saved current track, got %q", st.State)
	}
	if loads := eng2.loads(); len(loads) != 0 {
		t.Errorf("Expected no loads, got %v", loads)
	}
}

func TestSessionNeverAutoplaysOnRestore(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.flac")
	store := session.NewStore(filepath.Join(dir, "session.json"))

	eng1 := newFakeEngine()
	deps1, _ := testDeps(eng1)
	deps1.Sessions = store
	c1 := startController(t, deps1)
	if err := c1.AddPaths([]string{a}, -1); err != nil {
		t.Fatalf("AddPaths failed: %v", err)
	}
	items := c1.PlaylistSnapshot().Items
	if err := c1.PlayTrack(items[0].ID); err != nil {
		t.Fatalf("PlayTrack failed: %v", err)
	}
	if st := c1.PlaybackSnapshot(); st.State != StatePlaying {
		t.Fatalf("Expected playing before shutdown, got %q", st.State)
	}
	c1.Shutdown()

	eng2 := newFakeEngine()
	deps2, _ := testDeps(eng2)
	deps2.Sessions = store
	c2 := startController(t, deps2)

	if st := c2.PlaybackSnapshot(); st.State != StatePaused {
		t.Errorf("Expected restore paused, never playing, got %q", st.State)
	}
	pauses := eng2.propertySets("pause")
	if len(pauses) == 0 || pauses[len(pauses)-1] != true {
		t.Error("Expected the engine left paused after restore")
	}
}
