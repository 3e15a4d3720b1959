package probe_test

import (
	"math"
	"testing"

	"github.com/chorale-player/chorale-backend/internal/infra/probe"
)

const flacProbeJSON = `{
  "streams": [
    {
      "codec_name": "flac",
      "sample_rate": "96000",
      "channels": 2,
      "bits_per_raw_sample": "24",
      "bits_per_sample": 0
    }
  ],
  "format": {
    "duration": "261.493333",
    "bit_rate": "2354201",
    "tags": {
      "TITLE": "Aja",
      "ARTIST": "Steely Dan",
      "ALBUM": "Aja",
      "GENRE": "Jazz Rock",
      "DATE": "1977-09-23",
      "track": "2/7",
      "REPLAYGAIN_TRACK_GAIN": "-8.33 dB",
      "REPLAYGAIN_TRACK_PEAK": "0.988525",
      "REPLAYGAIN_ALBUM_GAIN": "-7.90 dB"
    }
  }
}`

func TestParseProbeOutputFlac(t *testing.T) {
	md, err := probe.ParseProbeOutput([]byte(flacProbeJSON), "/music/aja.flac", -18.0)
	if err != nil {
		t.Fatalf("ParseProbeOutput: %v", err)
	}

	if md.Title != "Aja" || md.Artist != "Steely Dan" || md.Album != "Aja" || md.Genre != "Jazz Rock" {
		t.Fatalf("tag fields wrong: %+v", md)
	}
	if md.Year == nil || *md.Year != 1977 {
		t.Fatalf("year = %v, want 1977", md.Year)
	}
	if md.TrackNumber == nil || *md.TrackNumber != 2 {
		t.Fatalf("track number = %v, want 2", md.TrackNumber)
	}
	if md.DurationSec == nil || math.Abs(*md.DurationSec-261.493333) > 1e-6 {
		t.Fatalf("duration = %v", md.DurationSec)
	}
	if md.BitrateKbps == nil || *md.BitrateKbps != 2354 {
		t.Fatalf("bitrate = %v, want 2354", md.BitrateKbps)
	}
	if md.Codec != "flac" {
		t.Fatalf("codec = %q", md.Codec)
	}
	if md.SampleRateHz == nil || *md.SampleRateHz != 96000 {
		t.Fatalf("sample rate = %v", md.SampleRateHz)
	}
	if md.BitDepth == nil || *md.BitDepth != 24 {
		t.Fatalf("bit depth = %v, want 24", md.BitDepth)
	}
	if md.Channels == nil || *md.Channels != 2 {
		t.Fatalf("channels = %v, want 2", md.Channels)
	}
	if md.ReplayGainTrackDb == nil || math.Abs(*md.ReplayGainTrackDb+8.33) > 1e-9 {
		t.Fatalf("track gain = %v, want -8.33", md.ReplayGainTrackDb)
	}
	if md.ReplayGainAlbumDb == nil || math.Abs(*md.ReplayGainAlbumDb+7.90) > 1e-9 {
		t.Fatalf("album gain = %v, want -7.90", md.ReplayGainAlbumDb)
	}
	if md.ReplayGainTrackPeak == nil || math.Abs(*md.ReplayGainTrackPeak-0.988525) > 1e-9 {
		t.Fatalf("track peak = %v", md.ReplayGainTrackPeak)
	}

	// PLR = 20*log10(peak) - reference + gain.
	wantPLR := 20*math.Log10(0.988525) - (-18.0) + (-8.33)
	if md.PLRDb == nil || math.Abs(*md.PLRDb-wantPLR) > 1e-9 {
		t.Fatalf("PLR = %v, want %v", md.PLRDb, wantPLR)
	}
}

const mp3ProbeJSON = `{
  "streams": [
    {
      "codec_name": "mp3",
      "sample_rate": "44100",
      "channels": 2,
      "bits_per_raw_sample": "",
      "bits_per_sample": 0,
      "tags": {
        "lyrics-eng": "[00:12.00]First line"
      }
    }
  ],
  "format": {
    "duration": "183.2",
    "bit_rate": "320000",
    "tags": {
      "title": "Some Song",
      "artist": "Somebody",
      "date": "1999"
    }
  }
}`

func TestParseProbeOutputMp3StreamTags(t *testing.T) {
	md, err := probe.ParseProbeOutput([]byte(mp3ProbeJSON), "/music/song.mp3", -18.0)
	if err != nil {
		t.Fatalf("ParseProbeOutput: %v", err)
	}

	if md.Title != "Some Song" {
		t.Fatalf("title = %q", md.Title)
	}
	if md.Year == nil || *md.Year != 1999 {
		t.Fatalf("year = %v, want 1999", md.Year)
	}
	if md.Lyrics != "[00:12.00]First line" {
		t.Fatalf("lyrics from stream tags = %q", md.Lyrics)
	}
	if md.BitDepth != nil {
		t.Fatalf("bit depth = %v for mp3, want nil", md.BitDepth)
	}
	if md.BitrateKbps == nil || *md.BitrateKbps != 320 {
		t.Fatalf("bitrate = %v, want 320", md.BitrateKbps)
	}
	if md.PLRDb != nil {
		t.Fatalf("PLR = %v without replaygain tags, want nil", md.PLRDb)
	}
}

func TestParseProbeOutputBareFile(t *testing.T) {
	raw := `{"streams":[{"codec_name":"pcm_s16le","sample_rate":"44100","channels":2,"bits_per_sample":16}],"format":{"duration":"10.0","bit_rate":"1411200"}}`

	md, err := probe.ParseProbeOutput([]byte(raw), "/music/untagged.wav", -18.0)
	if err != nil {
		t.Fatalf("ParseProbeOutput: %v", err)
	}
	if md.Title != "untagged.wav" {
		t.Fatalf("title = %q, want file name fallback", md.Title)
	}
	if md.BitDepth == nil || *md.BitDepth != 16 {
		t.Fatalf("bit depth = %v, want 16 via bits_per_sample", md.BitDepth)
	}
}

func TestParseProbeOutputGarbage(t *testing.T) {
	if _, err := probe.ParseProbeOutput([]byte("not json"), "/music/x.flac", -18.0); err == nil {
		t.Fatal("expected an error for non-JSON output")
	}
}

func TestParseProbeOutputGainFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`{"format":{"tags":{"REPLAYGAIN_TRACK_GAIN":"-8.33 dB","REPLAYGAIN_TRACK_PEAK":"1.0"}}}`, -8.33},
		{`{"format":{"tags":{"replaygain_track_gain":"+1.20 dB","replaygain_track_peak":"1.0"}}}`, 1.20},
		{`{"format":{"tags":{"REPLAYGAIN_TRACK_GAIN":"-3.5","REPLAYGAIN_TRACK_PEAK":"1.0"}}}`, -3.5},
	}
	for _, tc := range cases {
		md, err := probe.ParseProbeOutput([]byte(tc.raw), "/music/g.flac", -18.0)
		if err != nil {
			t.Fatalf("ParseProbeOutput(%s): %v", tc.raw, err)
		}
		if md.ReplayGainTrackDb == nil || math.Abs(*md.ReplayGainTrackDb-tc.want) > 1e-9 {
			t.Errorf("gain for %s = %v, want %v", tc.raw, md.ReplayGainTrackDb, tc.want)
		}
	}
}
