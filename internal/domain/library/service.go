package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// AudioExtensions is the set of file extensions treated as playable audio.
var AudioExtensions = map[string]bool{
	".flac": true, ".mp3": true, ".wav": true, ".aiff": true,
	".aif": true, ".ogg": true, ".m4a": true, ".aac": true,
	".wma": true, ".dsf": true, ".dff": true, ".dsd": true,
	".ape": true, ".wv": true, ".mpc": true, ".opus": true,
	".alac": true,
}

// IsAudioFile checks if a path is an audio file.
func IsAudioFile(filePath string) bool {
	return AudioExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// DirExists reports whether path names an existing directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Service provides directory browsing bounded by a configurable music root.
type Service struct {
	mu      sync.RWMutex
	rootDir string
}

// NewService creates a library service. rootDir may be empty; browsing then
// fails with ErrNoRoot until SetRoot is called.
func NewService(rootDir string) *Service {
	s := &Service{}
	if rootDir != "" {
		if err := s.SetRoot(rootDir); err != nil {
			log.Warn().Err(err).Str("rootDir", rootDir).Msg("Ignoring unusable music root")
		}
	}
	return s
}

// SetRoot changes the music root. An empty dir clears it.
func (s *Service) SetRoot(dir string) error {
	if dir == "" {
		s.mu.Lock()
		s.rootDir = ""
		s.mu.Unlock()
		return nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("music root %s: %w", dir, err)
	}
	if !DirExists(abs) {
		return fmt.Errorf("music root %s: %w", dir, ErrNotDirectory)
	}

	s.mu.Lock()
	s.rootDir = abs
	s.mu.Unlock()

	log.Info().Str("rootDir", abs).Msg("Music root set")
	return nil
}

// Root returns the current music root, empty when unset.
func (s *Service) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootDir
}

// Browse lists one directory inside the music root. An empty dirPath lists
// the root itself. Hidden entries and non-audio files are skipped.
func (s *Service) Browse(dirPath string) (*BrowseResult, error) {
	root := s.Root()
	if root == "" {
		return nil, ErrNoRoot
	}

	target := root
	if dirPath != "" {
		abs, err := filepath.Abs(dirPath)
		if err != nil {
			return nil, fmt.Errorf("browse %s: %w", dirPath, err)
		}
		target = abs
	}

	if !within(root, target) {
		return nil, fmt.Errorf("browse %s: %w", dirPath, ErrOutsideRoot)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) || errorIsNotDir(err) {
			return nil, fmt.Errorf("browse %s: %w", dirPath, ErrNotDirectory)
		}
		return nil, fmt.Errorf("browse %s: %w", dirPath, err)
	}

	var dirs, files []Entry
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(target, name)
		if entry.IsDir() {
			dirs = append(dirs, Entry{Name: name, Path: full, IsDir: true})
		} else if IsAudioFile(name) {
			e := Entry{Name: name, Path: full}
			if info, err := entry.Info(); err == nil {
				e.SizeBytes = info.Size()
			}
			files = append(files, e)
		}
	}

	sortEntries(dirs)
	sortEntries(files)

	result := &BrowseResult{
		Path:    target,
		Entries: append(dirs, files...),
	}
	if target != root {
		result.Parent = filepath.Dir(target)
	}

	log.Debug().
		Str("path", target).
		Int("entries", len(result.Entries)).
		Msg("Browsed directory")

	return result, nil
}

// ListAudioFilesRecursive walks a directory inside the music root and returns
// every audio file under it in sorted order. Hidden directories are skipped.
func (s *Service) ListAudioFilesRecursive(dirPath string) ([]string, error) {
	root := s.Root()
	if root == "" {
		return nil, ErrNoRoot
	}

	abs, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dirPath, err)
	}
	if !within(root, abs) {
		return nil, fmt.Errorf("list %s: %w", dirPath, ErrOutsideRoot)
	}

	var paths []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != abs {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsAudioFile(name) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dirPath, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// within reports whether target equals root or lives under it.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if a == b {
			return entries[i].Name < entries[j].Name
		}
		return a < b
	})
}

func errorIsNotDir(err error) bool {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return strings.Contains(pathErr.Err.Error(), "not a directory")
	}
	return false
}
