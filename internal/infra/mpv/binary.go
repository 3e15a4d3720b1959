package mpv

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// BinaryInfo describes the engine executable resolved for this host.
type BinaryInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

var versionRe = regexp.MustCompile(`mpv\s+v?([0-9][^\s]*)`)

// ResolveBinary locates the engine executable and probes its version. The
// configured value may be a bare name (resolved via PATH) or a full path.
// A resolution failure puts the application into degraded, playback-disabled
// mode; it is surfaced, not fatal.
func ResolveBinary(configured string) (BinaryInfo, error) {
	name := configured
	if name == "" {
		name = "mpv"
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("engine binary %q not found: %w", name, err)
	}

	info := BinaryInfo{Path: path}
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		return info, fmt.Errorf("engine binary %q failed version probe: %w", path, err)
	}
	info.Version = ParseVersionOutput(string(out))
	return info, nil
}

// ParseVersionOutput extracts the engine version from "--version" output.
// Returns an empty string when the output has an unexpected shape.
func ParseVersionOutput(output string) string {
	firstLine := output
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		firstLine = output[:idx]
	}
	match := versionRe.FindStringSubmatch(firstLine)
	if match == nil {
		return ""
	}
	return match[1]
}
