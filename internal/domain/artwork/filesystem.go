package artwork

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// CoverFilenames defines common cover filenames in priority order.
var CoverFilenames = []string{
	"cover",
	"folder",
	"front",
	"album",
	"artwork",
}

// CoverExtensions defines supported image extensions.
var CoverExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".webp",
}

// Finder searches for cover files on the filesystem.
type Finder struct {
	maxLevels int // Maximum parent directories to search
}

// NewFinder creates a new filesystem cover finder.
func NewFinder() *Finder {
	return &Finder{maxLevels: 3}
}

// FindCover searches for a cover image starting from the track's directory,
// walking up to three parent directories. The walk never leaves rootDir; with
// an empty rootDir only the track's own directory is searched.
// Returns the full path to the cover file if found, empty string otherwise.
func (f *Finder) FindCover(trackPath, rootDir string) string {
	if trackPath == "" {
		return ""
	}

	trackDir := filepath.Dir(trackPath)

	levels := f.maxLevels
	rootAbs := ""
	if rootDir == "" {
		levels = 0
	} else if abs, err := filepath.Abs(rootDir); err == nil {
		rootAbs = abs
	} else {
		levels = 0
	}

	currentDir := trackDir
	for level := 0; level <= levels; level++ {
		if rootAbs != "" {
			currentAbs, err := filepath.Abs(currentDir)
			if err != nil {
				break
			}
			if !strings.HasPrefix(currentAbs, rootAbs) {
				log.Debug().
					Str("currentDir", currentAbs).
					Str("rootDir", rootAbs).
					Msg("Reached music root boundary, stopping cover search")
				break
			}
		}

		if coverPath := searchDirectory(currentDir); coverPath != "" {
			log.Debug().
				Str("coverPath", coverPath).
				Int("level", level).
				Msg("Found cover file")
			return coverPath
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// searchDirectory searches a single directory for cover files. Known cover
// names win over other images regardless of case; failing those, the first
// image file in directory order is taken.
func searchDirectory(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	best := ""
	bestRank := len(CoverFilenames)
	fallback := ""

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Skip macOS AppleDouble resource fork files (._filename)
		if strings.HasPrefix(name, "._") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !validCoverExt(ext) {
			continue
		}

		if fallback == "" {
			fallback = filepath.Join(dir, name)
		}

		base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		for rank, known := range CoverFilenames {
			if base == known && rank < bestRank {
				bestRank = rank
				best = filepath.Join(dir, name)
				break
			}
		}
	}

	if best != "" {
		return best
	}
	return fallback
}

func validCoverExt(ext string) bool {
	for _, valid := range CoverExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}
