package artwork

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

type mockStore struct {
	rows  map[string]*CachedArtwork
	saves int
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]*CachedArtwork)}
}

func (m *mockStore) GetArtwork(key string) (*CachedArtwork, error) {
	if art, ok := m.rows[key]; ok {
		cp := *art
		return &cp, nil
	}
	return nil, nil
}

func (m *mockStore) SaveArtwork(art *CachedArtwork) error {
	m.saves++
	cp := *art
	m.rows[art.Key] = &cp
	return nil
}

type mockExtractor struct {
	data  []byte
	err   error
	calls int
}

func (m *mockExtractor) ExtractCover(ctx context.Context, trackPath string) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

func TestResolver_Resolve_FolderCover(t *testing.T) {
	rootDir := t.TempDir()
	albumDir := filepath.Join(rootDir, "Album")

	coverPath := filepath.Join(albumDir, "cover.jpg")
	writeFile(t, coverPath, jpegBytes)
	trackPath := filepath.Join(albumDir, "01.flac")
	writeFile(t, trackPath, []byte("audio"))

	store := newMockStore()
	resolver := NewResolver(NewFinder(), &mockExtractor{err: errors.New("unused")}, store, t.TempDir())

	result, err := resolver.Resolve(context.Background(), trackPath, rootDir)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Source != SourceFolder {
		t.Errorf("Source = %q, want folder", result.Source)
	}
	if result.FilePath != coverPath {
		t.Errorf("FilePath = %q, want %q", result.FilePath, coverPath)
	}
	if result.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q", result.MimeType)
	}
	if store.saves != 1 {
		t.Errorf("store saves = %d, want 1", store.saves)
	}
}

func TestResolver_Resolve_CacheHit(t *testing.T) {
	rootDir := t.TempDir()
	albumDir := filepath.Join(rootDir, "Album")

	coverPath := filepath.Join(albumDir, "cover.jpg")
	writeFile(t, coverPath, jpegBytes)
	trackPath := filepath.Join(albumDir, "01.flac")
	writeFile(t, trackPath, []byte("audio"))

	store := newMockStore()
	resolver := NewResolver(NewFinder(), nil, store, t.TempDir())

	// First resolve populates the cache
	if _, err := resolver.Resolve(context.Background(), trackPath, rootDir); err != nil {
		t.Fatal(err)
	}

	result, err := resolver.Resolve(context.Background(), trackPath, rootDir)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Source != SourceCache {
		t.Errorf("Source = %q, want cache", result.Source)
	}
	if result.FilePath != coverPath {
		t.Errorf("FilePath = %q, want %q", result.FilePath, coverPath)
	}
	if store.saves != 1 {
		t.Errorf("store saves = %d, want 1 (cache hit must not re-save)", store.saves)
	}
}

func TestResolver_Resolve_StaleCacheFallsThrough(t *testing.T) {
	rootDir := t.TempDir()
	albumDir := filepath.Join(rootDir, "Album")

	trackPath := filepath.Join(albumDir, "01.flac")
	writeFile(t, trackPath, []byte("audio"))
	coverPath := filepath.Join(albumDir, "cover.jpg")
	writeFile(t, coverPath, jpegBytes)

	store := newMockStore()
	store.rows[CacheKey(trackPath)] = &CachedArtwork{
		Key:      CacheKey(trackPath),
		FilePath: filepath.Join(albumDir, "deleted.jpg"),
		MimeType: "image/jpeg",
		Source:   SourceFolder,
	}

	resolver := NewResolver(NewFinder(), nil, store, t.TempDir())

	result, err := resolver.Resolve(context.Background(), trackPath, rootDir)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Source != SourceFolder {
		t.Errorf("Source = %q, want folder after stale cache", result.Source)
	}
	if result.FilePath != coverPath {
		t.Errorf("FilePath = %q, want %q", result.FilePath, coverPath)
	}
}

func TestResolver_Resolve_EmbeddedFallback(t *testing.T) {
	rootDir := t.TempDir()
	albumDir := filepath.Join(rootDir, "Album")

	trackPath := filepath.Join(albumDir, "01.flac")
	writeFile(t, trackPath, []byte("audio"))

	cacheDir := t.TempDir()
	store := newMockStore()
	extractor := &mockExtractor{data: jpegBytes}
	resolver := NewResolver(NewFinder(), extractor, store, cacheDir)

	result, err := resolver.Resolve(context.Background(), trackPath, rootDir)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if result.Source != SourceEmbedded {
		t.Errorf("Source = %q, want embedded", result.Source)
	}
	if !strings.HasPrefix(result.FilePath, filepath.Join(cacheDir, "covers")) {
		t.Errorf("FilePath = %q, want under covers dir", result.FilePath)
	}
	if !strings.HasSuffix(result.FilePath, ".jpg") {
		t.Errorf("FilePath = %q, want .jpg", result.FilePath)
	}

	data, err := os.ReadFile(result.FilePath)
	if err != nil {
		t.Fatalf("reading extracted cover: %v", err)
	}
	if string(data) != string(jpegBytes) {
		t.Error("extracted cover bytes differ")
	}
	if extractor.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", extractor.calls)
	}
}

func TestResolver_Resolve_NoArtwork(t *testing.T) {
	rootDir := t.TempDir()
	trackPath := filepath.Join(rootDir, "Album", "01.flac")
	writeFile(t, trackPath, []byte("audio"))

	resolver := NewResolver(NewFinder(), &mockExtractor{err: errors.New("no picture")}, newMockStore(), t.TempDir())

	_, err := resolver.Resolve(context.Background(), trackPath, rootDir)
	if !errors.Is(err, ErrNoArtwork) {
		t.Errorf("error = %v, want ErrNoArtwork", err)
	}
}

func TestResolver_Resolve_EmptyPath(t *testing.T) {
	resolver := NewResolver(NewFinder(), nil, nil, t.TempDir())
	if _, err := resolver.Resolve(context.Background(), "", ""); !errors.Is(err, ErrNoArtwork) {
		t.Errorf("error = %v, want ErrNoArtwork", err)
	}
}

func TestCacheKey_SharedPerDirectory(t *testing.T) {
	a := CacheKey("/music/Album/01.flac")
	b := CacheKey("/music/Album/02.flac")
	c := CacheKey("/music/Other/01.flac")

	if a != b {
		t.Error("tracks in the same directory should share a key")
	}
	if a == c {
		t.Error("tracks in different directories should not share a key")
	}
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", jpegBytes, "image/jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0}, "image/png"},
		{"gif", []byte("GIF89a..."), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"garbage", []byte("nope"), "application/octet-stream"},
		{"short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMimeType(tt.data); got != tt.want {
				t.Errorf("DetectMimeType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetExtensionForMime(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"image/gif", ".gif"},
		{"image/webp", ".webp"},
		{"application/pdf", ".bin"},
	}

	for _, tt := range tests {
		if got := GetExtensionForMime(tt.mime); got != tt.want {
			t.Errorf("GetExtensionForMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
