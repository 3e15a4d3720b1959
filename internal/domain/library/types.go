// Package library browses the local music tree and classifies audio files.
package library

import "errors"

// ErrNoRoot is returned when browsing without a configured music root.
var ErrNoRoot = errors.New("music root is not set")

// ErrOutsideRoot is returned for paths that escape the music root.
var ErrOutsideRoot = errors.New("path is outside the music root")

// ErrNotDirectory is returned when a directory path points elsewhere.
var ErrNotDirectory = errors.New("not a directory")

// Entry is one browsable item inside the music root. SizeBytes is zero for
// directories.
type Entry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsDir     bool   `json:"isDir"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
}

// BrowseResult is one directory listing. Directories come first, then audio
// files, both sorted case-insensitively.
type BrowseResult struct {
	Path    string  `json:"path"`
	Parent  string  `json:"parent,omitempty"`
	Entries []Entry `json:"entries"`
}
