package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

const defaultFfmpegBinary = "ffmpeg"

// CoverExtractor pulls the attached picture out of an audio file's tags by
// shelling out to ffmpeg.
type CoverExtractor struct {
	binary string
}

// NewCoverExtractor creates a CoverExtractor. An empty binary falls back to
// "ffmpeg" on PATH.
func NewCoverExtractor(binary string) *CoverExtractor {
	if binary == "" {
		binary = defaultFfmpegBinary
	}
	return &CoverExtractor{binary: binary}
}

// ExtractCover copies the file's attached picture stream to stdout without
// re-encoding. Files without an attached picture fail the ffmpeg run.
func (e *CoverExtractor) ExtractCover(ctx context.Context, path string) ([]byte, error) {
	args := []string{
		"-v", "error",
		"-i", path,
		"-an",
		"-codec:v", "copy",
		"-f", "image2pipe",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Debug().Err(err).Str("path", path).Str("stderr", strings.TrimSpace(stderr.String())).Msg("ffmpeg cover extraction failed")
		return nil, fmt.Errorf("ffmpeg cover %s: %w", path, err)
	}

	data := out.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("no attached picture in %s", path)
	}
	return data, nil
}
