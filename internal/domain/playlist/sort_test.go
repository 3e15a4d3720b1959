package playlist_test

import (
	"testing"

	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func TestSortByPathToggleReversesExactly(t *testing.T) {
	m := newManagerWith(t, "/m/c.flac", "/m/a.flac", "/m/b.flac")

	m.SortBy(playlist.SortPath)
	assertPaths(t, m, "/m/a.flac", "/m/b.flac", "/m/c.flac")
	if snap := m.Snapshot(); snap.SortDirection != playlist.SortAsc {
		t.Fatalf("direction = %q, want asc", snap.SortDirection)
	}

	m.SortBy(playlist.SortPath)
	assertPaths(t, m, "/m/c.flac", "/m/b.flac", "/m/a.flac")
	if snap := m.Snapshot(); snap.SortDirection != playlist.SortDesc {
		t.Fatalf("direction = %q, want desc", snap.SortDirection)
	}
}

func TestSortByTitleIsCaseInsensitive(t *testing.T) {
	m := newManagerWith(t, "/m/1.flac", "/m/2.flac", "/m/3.flac")
	ids := itemIDs(m.Items())
	m.UpdateMetadata(ids[0], &metadata.TrackMetadata{Title: "banana"})
	m.UpdateMetadata(ids[1], &metadata.TrackMetadata{Title: "Apple"})
	m.UpdateMetadata(ids[2], &metadata.TrackMetadata{Title: "cherry"})

	m.SortBy(playlist.SortTitle)
	assertPaths(t, m, "/m/2.flac", "/m/1.flac", "/m/3.flac")
}

func TestSortNumericMissingValuesOrderLast(t *testing.T) {
	m := newManagerWith(t, "/m/short.flac", "/m/long.flac", "/m/unknown.flac")
	ids := itemIDs(m.Items())
	m.UpdateMetadata(ids[0], &metadata.TrackMetadata{Title: "short", DurationSec: floatPtr(100)})
	m.UpdateMetadata(ids[1], &metadata.TrackMetadata{Title: "long", DurationSec: floatPtr(200)})
	m.UpdateMetadata(ids[2], &metadata.TrackMetadata{Title: "unknown"})

	m.SortBy(playlist.SortDuration)
	assertPaths(t, m, "/m/short.flac", "/m/long.flac", "/m/unknown.flac")

	m.SortBy(playlist.SortDuration)
	assertPaths(t, m, "/m/unknown.flac", "/m/long.flac", "/m/short.flac")
}

func TestSortByYear(t *testing.T) {
	m := newManagerWith(t, "/m/new.flac", "/m/old.flac")
	ids := itemIDs(m.Items())
	m.UpdateMetadata(ids[0], &metadata.TrackMetadata{Title: "new", Year: intPtr(2019)})
	m.UpdateMetadata(ids[1], &metadata.TrackMetadata{Title: "old", Year: intPtr(1974)})

	m.SortBy(playlist.SortYear)
	assertPaths(t, m, "/m/old.flac", "/m/new.flac")
}

func TestSortNewColumnStartsAscending(t *testing.T) {
	m := newManagerWith(t, "/m/b.flac", "/m/a.flac")

	m.SortBy(playlist.SortPath)
	m.SortBy(playlist.SortPath)
	if snap := m.Snapshot(); snap.SortDirection != playlist.SortDesc {
		t.Fatalf("direction = %q, want desc", snap.SortDirection)
	}

	m.SortBy(playlist.SortTitle)
	snap := m.Snapshot()
	if snap.SortColumn != playlist.SortTitle || snap.SortDirection != playlist.SortAsc {
		t.Fatalf("after new column: %q/%q, want title/asc", snap.SortColumn, snap.SortDirection)
	}
}

func TestSortBreaksTiesByPath(t *testing.T) {
	m := newManagerWith(t, "/m/z.flac", "/m/a.flac")
	ids := itemIDs(m.Items())
	m.UpdateMetadata(ids[0], &metadata.TrackMetadata{Title: "Same"})
	m.UpdateMetadata(ids[1], &metadata.TrackMetadata{Title: "same"})

	m.SortBy(playlist.SortTitle)
	assertPaths(t, m, "/m/a.flac", "/m/z.flac")
}

func TestSortResyncsSelectionOrder(t *testing.T) {
	m := newManagerWith(t, "/m/c.flac", "/m/a.flac", "/m/b.flac")
	ids := itemIDs(m.Items())
	m.SetSelection(ids[0], []string{ids[0], ids[1], ids[2]})

	m.SortBy(playlist.SortPath)
	snap := m.Snapshot()
	wantOrder := []string{ids[1], ids[2], ids[0]}
	if len(snap.SelectedTrackIDs) != 3 {
		t.Fatalf("selection set = %v, want 3 ids", snap.SelectedTrackIDs)
	}
	for i, want := range wantOrder {
		if snap.SelectedTrackIDs[i] != want {
			t.Fatalf("selection order = %v, want %v", snap.SelectedTrackIDs, wantOrder)
		}
	}
	if snap.SelectedTrackID != ids[0] {
		t.Fatalf("primary = %q changed by sort, want %q", snap.SelectedTrackID, ids[0])
	}
}

func TestSortKeepsCurrentPointer(t *testing.T) {
	m := newManagerWith(t, "/m/c.flac", "/m/a.flac")
	ids := itemIDs(m.Items())
	m.SetCurrent(ids[0])

	m.SortBy(playlist.SortPath)
	if got := m.CurrentTrackID(); got != ids[0] {
		t.Fatalf("current = %q after sort, want %q", got, ids[0])
	}
}

func TestSortNoneIsIgnored(t *testing.T) {
	m := newManagerWith(t, "/m/b.flac", "/m/a.flac")

	m.SortBy(playlist.SortNone)
	assertPaths(t, m, "/m/b.flac", "/m/a.flac")
	if snap := m.Snapshot(); snap.SortColumn != playlist.SortNone {
		t.Fatalf("sort column = %q, want none", snap.SortColumn)
	}
}

func TestParseSortColumn(t *testing.T) {
	if col, ok := playlist.ParseSortColumn("title"); !ok || col != playlist.SortTitle {
		t.Fatalf("ParseSortColumn(title) = %q, %v", col, ok)
	}
	if col, ok := playlist.ParseSortColumn("plr"); !ok || col != playlist.SortPLR {
		t.Fatalf("ParseSortColumn(plr) = %q, %v", col, ok)
	}
	for _, bad := range []string{"", "bogus", "TITLE"} {
		if _, ok := playlist.ParseSortColumn(bad); ok {
			t.Fatalf("ParseSortColumn(%q) accepted", bad)
		}
	}
}
