// Package lyrics parses LRC text and resolves lyrics for tracks from
// sidecar files, embedded tags and the fetch cache.
package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Line is one display line, timestamped when the source is synced.
type Line struct {
	TimeSec float64 `json:"timeSec"`
	Text    string  `json:"text"`
}

// Lyrics is parsed lyric content. Unsynced content keeps the raw lines with
// zero timestamps.
type Lyrics struct {
	Synced bool   `json:"synced"`
	Lines  []Line `json:"lines"`
}

var (
	timestampRe = regexp.MustCompile(`^\[(\d+):(\d{1,2}(?:\.\d+)?)\]`)
	metaTagRe   = regexp.MustCompile(`^\[(ar|ti|al|au|by|re|ve|length|offset):(.*)\]$`)
)

// Parse reads LRC text. Lines may carry several timestamps; the offset tag
// shifts every timestamp. Text without any timestamp parses as unsynced.
func Parse(raw string) Lyrics {
	var (
		synced   []Line
		plain    []string
		offsetMs int
	)

	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := metaTagRe.FindStringSubmatch(trimmed); m != nil {
			if m[1] == "offset" {
				if v, err := strconv.Atoi(strings.TrimSpace(m[2])); err == nil {
					offsetMs = v
				}
			}
			continue
		}

		var times []float64
		rest := trimmed
		for {
			m := timestampRe.FindStringSubmatch(rest)
			if m == nil {
				break
			}
			min, _ := strconv.Atoi(m[1])
			sec, err := strconv.ParseFloat(m[2], 64)
			if err == nil {
				times = append(times, float64(min)*60+sec)
			}
			rest = rest[len(m[0]):]
		}

		text := strings.TrimSpace(rest)
		if len(times) == 0 {
			plain = append(plain, trimmed)
			continue
		}
		for _, t := range times {
			synced = append(synced, Line{TimeSec: t, Text: text})
		}
	}

	if len(synced) == 0 {
		lines := make([]Line, len(plain))
		for i, text := range plain {
			lines[i] = Line{Text: text}
		}
		return Lyrics{Synced: false, Lines: lines}
	}

	if offsetMs != 0 {
		shift := float64(offsetMs) / 1000
		for i := range synced {
			t := synced[i].TimeSec - shift
			if t < 0 {
				t = 0
			}
			synced[i].TimeSec = t
		}
	}

	sort.SliceStable(synced, func(i, j int) bool {
		return synced[i].TimeSec < synced[j].TimeSec
	})
	return Lyrics{Synced: true, Lines: synced}
}

// ActiveIndex returns the index of the line playing at the given position,
// or -1 before the first line or for unsynced content.
func (l Lyrics) ActiveIndex(positionSec float64) int {
	if !l.Synced || len(l.Lines) == 0 {
		return -1
	}
	// First line at a time strictly greater than the position.
	idx := sort.Search(len(l.Lines), func(i int) bool {
		return l.Lines[i].TimeSec > positionSec
	})
	return idx - 1
}
