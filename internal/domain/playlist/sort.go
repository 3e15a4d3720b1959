package playlist

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// stringCollator wraps a case-insensitive Unicode collator. Collators keep
// internal buffers, so every call happens under the manager lock.
type stringCollator struct {
	c *collate.Collator
}

func newStringCollator() *stringCollator {
	return &stringCollator{c: collate.New(language.Und, collate.IgnoreCase)}
}

func (s *stringCollator) compare(a, b string) int {
	return s.c.CompareString(a, b)
}

// SortBy orders the playlist by the given column. Sorting by the same column
// again flips the direction; a new column starts ascending. Missing numeric
// values order after present ones in the ascending direction. The
// multi-selection is resynced to the new item order and the shuffle
// permutation rebuilt.
func (m *Manager) SortBy(column SortColumn) {
	if column == SortNone {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sortColumn == column {
		if m.sortDirection == SortAsc {
			m.sortDirection = SortDesc
		} else {
			m.sortDirection = SortAsc
		}
	} else {
		m.sortColumn = column
		m.sortDirection = SortAsc
	}

	cmp := m.comparator(column)
	desc := m.sortDirection == SortDesc
	sort.SliceStable(m.items, func(i, j int) bool {
		c := cmp(m.items[i], m.items[j])
		if desc {
			return c > 0
		}
		return c < 0
	})

	m.resyncSelectionLocked()
	m.recomputeShuffleLocked()
}

// comparator builds the ascending three-way compare for a column. Ties fall
// through to the file path so the order is total for distinct files.
func (m *Manager) comparator(column SortColumn) func(a, b Item) int {
	var key func(a, b Item) int
	switch column {
	case SortTitle:
		key = m.stringKey(func(it Item) string { return it.Metadata.Title })
	case SortArtist:
		key = m.stringKey(func(it Item) string { return it.Metadata.Artist })
	case SortAlbum:
		key = m.stringKey(func(it Item) string { return it.Metadata.Album })
	case SortGenre:
		key = m.stringKey(func(it Item) string { return it.Metadata.Genre })
	case SortYear:
		key = numericKey(func(it Item) (float64, bool) {
			if it.Metadata == nil || it.Metadata.Year == nil {
				return 0, false
			}
			return float64(*it.Metadata.Year), true
		})
	case SortTrackNumber:
		key = numericKey(func(it Item) (float64, bool) {
			if it.Metadata == nil || it.Metadata.TrackNumber == nil {
				return 0, false
			}
			return float64(*it.Metadata.TrackNumber), true
		})
	case SortDuration:
		key = numericKey(func(it Item) (float64, bool) {
			if it.Metadata == nil || it.Metadata.DurationSec == nil {
				return 0, false
			}
			return *it.Metadata.DurationSec, true
		})
	case SortPLR:
		key = numericKey(func(it Item) (float64, bool) {
			if it.Metadata == nil || it.Metadata.PLRDb == nil {
				return 0, false
			}
			return *it.Metadata.PLRDb, true
		})
	default: // SortPath
		key = func(a, b Item) int { return strings.Compare(a.Path, b.Path) }
	}
	return func(a, b Item) int {
		if c := key(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	}
}

func (m *Manager) stringKey(get func(Item) string) func(a, b Item) int {
	field := func(it Item) string {
		if it.Metadata == nil {
			return ""
		}
		return get(it)
	}
	return func(a, b Item) int {
		return m.collator.compare(field(a), field(b))
	}
}

func numericKey(get func(Item) (float64, bool)) func(a, b Item) int {
	return func(a, b Item) int {
		av, aok := get(a)
		bv, bok := get(b)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
}

// resyncSelectionLocked reorders the multi-selection to match item order
// after a sort changed positions.
func (m *Manager) resyncSelectionLocked() {
	if len(m.selectedIDs) < 2 {
		return
	}
	sel := make(map[string]bool, len(m.selectedIDs))
	for _, id := range m.selectedIDs {
		sel[id] = true
	}
	ordered := make([]string, 0, len(m.selectedIDs))
	for _, it := range m.items {
		if sel[it.ID] {
			ordered = append(ordered, it.ID)
		}
	}
	m.selectedIDs = ordered
}
