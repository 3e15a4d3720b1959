// Package probe extracts technical and tag metadata from local audio files
// by shelling out to ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
)

const defaultBinary = "ffprobe"

// Prober runs ffprobe against single files and maps the output onto the
// track metadata model.
type Prober struct {
	binary        string
	referenceLUFS float64
}

// NewProber creates a Prober. An empty binary falls back to "ffprobe" on
// PATH. referenceLUFS anchors the PLR derivation.
func NewProber(binary string, referenceLUFS float64) *Prober {
	if binary == "" {
		binary = defaultBinary
	}
	return &Prober{binary: binary, referenceLUFS: referenceLUFS}
}

// Probe extracts metadata for one file. Unparsable individual fields are
// skipped; only a failed ffprobe run or unusable JSON is an error.
func (p *Prober) Probe(ctx context.Context, path string) (*metadata.TrackMetadata, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=duration,bit_rate:format_tags:stream=codec_name,sample_rate,channels,bits_per_raw_sample,bits_per_sample:stream_tags",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Debug().Err(err).Str("path", path).Str("stderr", strings.TrimSpace(stderr.String())).Msg("ffprobe run failed")
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbeOutput(out.Bytes(), path, p.referenceLUFS)
}

type probeDocument struct {
	Format struct {
		Duration string            `json:"duration"`
		BitRate  string            `json:"bit_rate"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecName        string            `json:"codec_name"`
		SampleRate       string            `json:"sample_rate"`
		Channels         int               `json:"channels"`
		BitsPerRawSample string            `json:"bits_per_raw_sample"`
		BitsPerSample    int               `json:"bits_per_sample"`
		Tags             map[string]string `json:"tags"`
	} `json:"streams"`
}

// ParseProbeOutput maps raw ffprobe JSON onto track metadata. The title
// falls back to the file name so every track stays displayable.
func ParseProbeOutput(raw []byte, path string, referenceLUFS float64) (*metadata.TrackMetadata, error) {
	var doc probeDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal ffprobe output: %w", err)
	}

	md := metadata.Placeholder(path)

	tags := mergeTags(doc.Format.Tags)
	if len(doc.Streams) > 0 {
		tags = mergeTagsInto(tags, doc.Streams[0].Tags)
	}

	if v, ok := tagValue(tags, "title"); ok {
		md.Title = v
	}
	if v, ok := tagValue(tags, "artist", "album_artist"); ok {
		md.Artist = v
	}
	if v, ok := tagValue(tags, "album"); ok {
		md.Album = v
	}
	if v, ok := tagValue(tags, "genre"); ok {
		md.Genre = v
	}
	if v, ok := tagValue(tags, "date", "year", "originalyear"); ok {
		if y, ok := parseYear(v); ok {
			md.Year = &y
		}
	}
	if v, ok := tagValue(tags, "track", "tracknumber"); ok {
		if n, ok := parseTrackNumber(v); ok {
			md.TrackNumber = &n
		}
	}
	if v := lyricsTag(tags); v != "" {
		md.Lyrics = v
	}

	if d, err := strconv.ParseFloat(doc.Format.Duration, 64); err == nil && d > 0 {
		md.DurationSec = &d
	}
	if bps, err := strconv.Atoi(doc.Format.BitRate); err == nil && bps > 0 {
		kbps := (bps + 500) / 1000
		md.BitrateKbps = &kbps
	}

	if len(doc.Streams) > 0 {
		s := doc.Streams[0]
		md.Codec = s.CodecName
		if sr, err := strconv.Atoi(s.SampleRate); err == nil && sr > 0 {
			md.SampleRateHz = &sr
		}
		if s.Channels > 0 {
			ch := s.Channels
			md.Channels = &ch
		}
		if bits, err := strconv.Atoi(s.BitsPerRawSample); err == nil && bits > 0 {
			md.BitDepth = &bits
		} else if s.BitsPerSample > 0 {
			bits := s.BitsPerSample
			md.BitDepth = &bits
		}
	}

	if v, ok := tagValue(tags, "replaygain_track_gain"); ok {
		if g, ok := parseGainDb(v); ok {
			md.ReplayGainTrackDb = &g
		}
	}
	if v, ok := tagValue(tags, "replaygain_album_gain"); ok {
		if g, ok := parseGainDb(v); ok {
			md.ReplayGainAlbumDb = &g
		}
	}
	if v, ok := tagValue(tags, "replaygain_track_peak"); ok {
		if pk, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			md.ReplayGainTrackPeak = &pk
		}
	}

	if md.ReplayGainTrackDb != nil && md.ReplayGainTrackPeak != nil {
		md.PLRDb = metadata.ComputePLR(*md.ReplayGainTrackDb, *md.ReplayGainTrackPeak, referenceLUFS)
	}

	return md, nil
}

// mergeTags lower-cases tag keys. ffprobe emits ID3 and Vorbis keys in mixed
// case depending on the container.
func mergeTags(tags map[string]string) map[string]string {
	return mergeTagsInto(make(map[string]string, len(tags)), tags)
}

// mergeTagsInto adds tags into dst without overwriting existing keys, so
// format-level tags win over stream-level duplicates.
func mergeTagsInto(dst, tags map[string]string) map[string]string {
	for k, v := range tags {
		key := strings.ToLower(k)
		if _, exists := dst[key]; !exists {
			dst[key] = v
		}
	}
	return dst
}

func tagValue(tags map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := tags[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// lyricsTag finds embedded lyrics. ID3 USLT frames surface as "lyrics-XXX"
// with a language suffix, Vorbis files use LYRICS or UNSYNCEDLYRICS.
func lyricsTag(tags map[string]string) string {
	if v, ok := tagValue(tags, "lyrics", "unsyncedlyrics", "unsynced lyrics"); ok {
		return v
	}
	for k, v := range tags {
		if strings.HasPrefix(k, "lyrics-") && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseYear accepts plain years and date strings like "1974-05-17".
func parseYear(v string) (int, bool) {
	if len(v) > 4 {
		v = v[:4]
	}
	y, err := strconv.Atoi(v)
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

// parseTrackNumber accepts "7" and "7/12".
func parseTrackNumber(v string) (int, bool) {
	if i := strings.IndexByte(v, '/'); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseGainDb accepts replaygain values like "-8.33 dB", "+1.20 dB" or a
// bare number.
func parseGainDb(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(strings.TrimSuffix(v, "dB"), "DB")
	v = strings.TrimSuffix(strings.TrimSuffix(v, "db"), "Db")
	v = strings.TrimSpace(v)
	g, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return g, true
}
