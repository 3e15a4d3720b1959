package playlist

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
)

// Manager owns the ordered playlist and all of its derived state. Exactly one
// instance exists per player; command handlers are its only mutators.
type Manager struct {
	mu            sync.RWMutex
	items         []Item
	selectedID    string
	selectedIDs   []string
	currentID     string
	sortColumn    SortColumn
	sortDirection SortDirection
	repeat        RepeatMode
	shuffle       bool
	shuffleOrder  []string
	collator      *stringCollator
}

// NewManager creates an empty playlist.
func NewManager() *Manager {
	return &Manager{
		repeat:        RepeatOff,
		sortDirection: SortAsc,
		collator:      newStringCollator(),
	}
}

// AddPaths creates items with placeholder metadata and splices them in at the
// clamped index; a negative index appends. Insertion invalidates any active
// sort. When nothing was selected, the first inserted item becomes selected.
// Returns the created items.
func (m *Manager) AddPaths(paths []string, index int) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(paths, index)
}

// ReplaceWithPaths clears the playlist, selection, current track and shuffle
// order, then adds the given paths, selecting the first new item.
func (m *Manager) ReplaceWithPaths(paths []string) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
	return m.addLocked(paths, -1)
}

// Clear empties the playlist and resets every derived state.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	m.items = nil
	m.selectedID = ""
	m.selectedIDs = nil
	m.currentID = ""
	m.shuffleOrder = nil
	m.sortColumn = SortNone
	m.sortDirection = SortAsc
}

func (m *Manager) addLocked(paths []string, index int) []Item {
	if len(paths) == 0 {
		return nil
	}

	added := make([]Item, 0, len(paths))
	for _, p := range paths {
		added = append(added, Item{
			ID:       uuid.New().String(),
			Path:     p,
			Metadata: metadata.Placeholder(p),
		})
	}

	if index < 0 || index > len(m.items) {
		index = len(m.items)
	}
	next := make([]Item, 0, len(m.items)+len(added))
	next = append(next, m.items[:index]...)
	next = append(next, added...)
	next = append(next, m.items[index:]...)
	m.items = next

	// Insertion breaks any explicit ordering.
	m.sortColumn = SortNone

	if m.selectedID == "" && len(m.selectedIDs) == 0 {
		m.selectedID = added[0].ID
		m.selectedIDs = []string{added[0].ID}
	}

	m.recomputeShuffleLocked()
	return added
}

// RemoveTracks removes the given ids and reports whether the current track
// went with them, plus a replacement candidate the controller can decide to
// play. Selection falls back to surviving selected ids, else the item now
// occupying the first removed slot, else its predecessor, else the first
// item, else nothing.
func (m *Manager) RemoveTracks(ids []string) RemovalResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 || len(m.items) == 0 {
		return RemovalResult{}
	}
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}

	kept := make([]Item, 0, len(m.items))
	removedAny := false
	keptBeforeFirst := -1
	keptBeforeCurrent := 0
	for _, it := range m.items {
		if removed[it.ID] {
			removedAny = true
			if keptBeforeFirst == -1 {
				keptBeforeFirst = len(kept)
			}
			if it.ID == m.currentID {
				keptBeforeCurrent = len(kept)
			}
			continue
		}
		kept = append(kept, it)
	}
	if !removedAny {
		return RemovalResult{}
	}

	res := RemovalResult{RemovedCurrent: m.currentID != "" && removed[m.currentID]}
	m.items = kept

	if res.RemovedCurrent {
		m.currentID = ""
		if len(kept) > 0 {
			idx := keptBeforeCurrent
			if idx >= len(kept) {
				idx = len(kept) - 1
			}
			res.NextCurrentTrackID = kept[idx].ID
		}
	}

	survivors := make([]string, 0, len(m.selectedIDs))
	for _, id := range m.selectedIDs {
		if !removed[id] {
			survivors = append(survivors, id)
		}
	}
	switch {
	case len(survivors) > 0:
		m.selectedIDs = survivors
		if m.selectedID == "" || removed[m.selectedID] {
			m.selectedID = survivors[0]
		}
	case len(kept) > 0:
		idx := keptBeforeFirst
		if idx >= len(kept) {
			idx = len(kept) - 1
		}
		m.selectedID = kept[idx].ID
		m.selectedIDs = []string{m.selectedID}
	default:
		m.selectedID = ""
		m.selectedIDs = nil
	}

	m.recomputeShuffleLocked()
	return res
}

// MoveTracks relocates the subset of items with the given ids to the target
// index, preserving their relative order. The insertion point among the
// non-moved remainder accounts for moved items counted before the raw target.
// Returns false when nothing actually changes position.
func (m *Manager) MoveTracks(ids []string, targetIndex int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 || len(m.items) == 0 {
		return false
	}
	moving := make(map[string]bool, len(ids))
	for _, id := range ids {
		moving[id] = true
	}

	moved := make([]Item, 0, len(ids))
	rest := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		if moving[it.ID] {
			moved = append(moved, it)
		} else {
			rest = append(rest, it)
		}
	}
	if len(moved) == 0 {
		return false
	}

	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex > len(m.items) {
		targetIndex = len(m.items)
	}
	movedBefore := 0
	for i := 0; i < targetIndex; i++ {
		if moving[m.items[i].ID] {
			movedBefore++
		}
	}
	insert := targetIndex - movedBefore

	next := make([]Item, 0, len(m.items))
	next = append(next, rest[:insert]...)
	next = append(next, moved...)
	next = append(next, rest[insert:]...)

	if sameOrder(next, m.items) {
		return false
	}
	m.items = next
	m.sortColumn = SortNone
	m.recomputeShuffleLocked()
	return true
}

func sameOrder(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// SetCurrent moves the current-track pointer. An empty id clears it. Returns
// false when the id is not in the playlist. Advancing the pointer does not
// regenerate the shuffle permutation; navigation walks the existing one.
func (m *Manager) SetCurrent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" && !m.containsLocked(id) {
		return false
	}
	m.currentID = id
	return true
}

// SetCurrentAndSelect points both the current track and the selection at id,
// as one transition.
func (m *Manager) SetCurrentAndSelect(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.containsLocked(id) {
		return false
	}
	m.currentID = id
	m.selectedID = id
	m.selectedIDs = []string{id}
	return true
}

// Select makes id the only selected track.
func (m *Manager) Select(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.containsLocked(id) {
		return false
	}
	m.selectedID = id
	m.selectedIDs = []string{id}
	return true
}

// SetSelection replaces the multi-selection. The stored set keeps playlist
// order; unknown ids are dropped; primary falls back to the first kept id.
func (m *Manager) SetSelection(primary string, ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	ordered := make([]string, 0, len(ids))
	for _, it := range m.items {
		if want[it.ID] {
			ordered = append(ordered, it.ID)
		}
	}
	if len(ordered) == 0 {
		m.selectedID = ""
		m.selectedIDs = nil
		return
	}
	m.selectedIDs = ordered
	m.selectedID = ordered[0]
	for _, id := range ordered {
		if id == primary {
			m.selectedID = primary
			break
		}
	}
}

// NextTrackID resolves the id playback should advance to, honoring repeat
// and shuffle. ok is false when no further track exists.
func (m *Manager) NextTrackID() (id string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.neighborLocked(1)
}

// PreviousTrackID resolves the id playback should step back to.
func (m *Manager) PreviousTrackID() (id string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.neighborLocked(-1)
}

func (m *Manager) neighborLocked(step int) (string, bool) {
	if m.repeat == RepeatOne && m.currentID != "" {
		return m.currentID, true
	}

	order := m.activeOrderLocked()
	if len(order) == 0 {
		return "", false
	}
	if m.currentID == "" {
		return order[0], true
	}

	idx := -1
	for i, id := range order {
		if id == m.currentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Stale current pointer, restart from the head of the order.
		return order[0], true
	}

	next := idx + step
	if next >= 0 && next < len(order) {
		return order[next], true
	}
	if m.repeat == RepeatAll {
		if step > 0 {
			return order[0], true
		}
		return order[len(order)-1], true
	}
	return "", false
}

// activeOrderLocked is the shuffle permutation when shuffle is on, insertion
// order otherwise.
func (m *Manager) activeOrderLocked() []string {
	if m.shuffle && len(m.shuffleOrder) == len(m.items) {
		return m.shuffleOrder
	}
	ids := make([]string, len(m.items))
	for i, it := range m.items {
		ids[i] = it.ID
	}
	return ids
}

// recomputeShuffleLocked rebuilds the derived permutation: current track
// pinned first when present, remainder shuffled uniformly.
func (m *Manager) recomputeShuffleLocked() {
	pinned := false
	rest := make([]string, 0, len(m.items))
	for _, it := range m.items {
		if !pinned && it.ID == m.currentID {
			pinned = true
			continue
		}
		rest = append(rest, it.ID)
	}
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	if pinned {
		m.shuffleOrder = append([]string{m.currentID}, rest...)
	} else {
		m.shuffleOrder = rest
	}
}

// SetRepeatMode sets the repeat mode.
func (m *Manager) SetRepeatMode(mode RepeatMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = mode
}

// CycleRepeat advances off -> all -> one -> off and returns the new mode.
func (m *Manager) CycleRepeat() RepeatMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.repeat {
	case RepeatOff:
		m.repeat = RepeatAll
	case RepeatAll:
		m.repeat = RepeatOne
	default:
		m.repeat = RepeatOff
	}
	return m.repeat
}

// RepeatMode returns the active repeat mode.
func (m *Manager) RepeatMode() RepeatMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repeat
}

// SetShuffle enables or disables shuffle,
// recomputing the derived permutation.
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuffle == enabled {
		return
	}
	m.shuffle = enabled
	m.recomputeShuffleLocked()
}

// ToggleShuffle flips the shuffle flag and returns the new state.
func (m *Manager) ToggleShuffle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shuffle = !m.shuffle
	m.recomputeShuffleLocked()
	return m.shuffle
}

// ShuffleEnabled reports whether shuffle is on.
func (m *Manager) ShuffleEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shuffle
}

// UpdateMetadata replaces the metadata of the item with the given id. This is
// the queue-driven mutation path.
func (m *Manager) UpdateMetadata(id string, md *metadata.TrackMetadata) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Metadata = md
			return true
		}
	}
	return false
}

// PathForID returns the file path of the item with the given id. Extraction
// tasks use it to re-validate id-to-path bindings around blocking work.
func (m *Manager) PathForID(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.ID == id {
			return it.Path, true
		}
	}
	return "", false
}

// ItemByID returns a copy of the item with the given id.
func (m *Manager) ItemByID(id string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.ID == id {
			return m.copyItemLocked(it), true
		}
	}
	return Item{}, false
}

// Items returns a copy of the ordered items.
func (m *Manager) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, len(m.items))
	for i, it := range m.items {
		out[i] = m.copyItemLocked(it)
	}
	return out
}

// Len returns the number of items.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// CurrentTrackID returns the current-track pointer, empty when unset.
func (m *Manager) CurrentTrackID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

// SelectedTrackID returns the primary selection, empty when unset.
func (m *Manager) SelectedTrackID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectedID
}

// Snapshot captures an immutable view of the playlist state. Metadata is
// copied so later in-place updates never leak into an emitted snapshot.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Item, len(m.items))
	for i, it := range m.items {
		items[i] = m.copyItemLocked(it)
	}
	return Snapshot{
		Items:            items,
		SelectedTrackID:  m.selectedID,
		SelectedTrackIDs: append([]string(nil), m.selectedIDs...),
		CurrentTrackID:   m.currentID,
		SortColumn:       m.sortColumn,
		SortDirection:    m.sortDirection,
	}
}

func (m *Manager) copyItemLocked(it Item) Item {
	if it.Metadata != nil {
		md := *it.Metadata
		it.Metadata = &md
	}
	return it
}

func (m *Manager) containsLocked(id string) bool {
	for _, it := range m.items {
		if it.ID == id {
			return true
		}
	}
	return false
}
