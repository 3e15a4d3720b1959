package metadata_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
)

func TestPlaceholder(t *testing.T) {
	md := metadata.Placeholder("/music/album/01 - Intro.flac")

	if md.Title != "01 - Intro.flac" {
		t.Errorf("Expected file name as title, got %q", md.Title)
	}
	if md.DurationSec != nil || md.ReplayGainTrackDb != nil || md.SampleRateHz != nil {
		t.Error("Placeholder technical fields must be unknown")
	}
}

func TestComputePLR(t *testing.T) {
	tests := []struct {
		name   string
		gainDb float64
		peak   float64
		want   float64
	}{
		// loudness = reference - gain, PLR = peakDb - loudness
		{"full scale peak with cut", -8.0, 1.0, 10.0},
		{"half scale peak", 0.0, 0.5, 18.0 + 20*math.Log10(0.5)},
		{"boosted quiet track", 6.0, 1.0, 24.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := metadata.ComputePLR(tt.gainDb, tt.peak, metadata.DefaultReferenceLoudnessLUFS)
			if got == nil {
				t.Fatal("Expected a PLR value")
			}
			if math.Abs(*got-tt.want) > 1e-9 {
				t.Errorf("ComputePLR() = %f, want %f", *got, tt.want)
			}
		})
	}

	t.Run("non-positive peak yields no PLR", func(t *testing.T) {
		if metadata.ComputePLR(0, 0, metadata.DefaultReferenceLoudnessLUFS) != nil {
			t.Error("Zero peak must not produce a PLR")
		}
		if metadata.ComputePLR(0, -1, metadata.DefaultReferenceLoudnessLUFS) != nil {
			t.Error("Negative peak must not produce a PLR")
		}
	})
}

func TestFingerprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.flac")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	fp, err := metadata.FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile failed: %v", err)
	}
	if fp.SizeBytes != 10 {
		t.Errorf("Expected size 10, got %d", fp.SizeBytes)
	}
	if fp.MTimeMs == 0 {
		t.Error("Expected a non-zero mtime")
	}

	if _, err := metadata.FingerprintFile(filepath.Join(t.TempDir(), "missing.flac")); err == nil {
		t.Error("Missing file must fail to fingerprint")
	}
}
