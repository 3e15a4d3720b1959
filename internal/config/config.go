// Package config loads the Chorale backend configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config stores the application configuration.
type Config struct {
	Port           int
	MusicRoot      string // Base directory the browser and library scanner are confined to
	DataDir        string // Session file, metadata cache DB and logs live here
	MPVBinary      string // Path or name of the mpv binary
	LogLevel       string
	LogFile        string // Optional rotating log file, empty disables the file sink
	AllowedOrigins []string

	MetadataWorkers   int
	CommandTimeout    time.Duration // Per engine command
	FileLoadedTimeout time.Duration // Bounded wait after a load
	DebounceWindow    time.Duration // Playback/status push coalescing
	DebounceMaxWindow time.Duration // Upper bound under continuous triggering
	SessionSaveEvery  time.Duration

	// Engine error substrings treated as "option unsupported" when applying
	// replaygain properties. Matching is case-insensitive substring.
	SoftOptionErrors []string

	LyricsFetch        bool // Background synced-lyrics fetch from LRCLIB
	MaxExternalClients int

	ReferenceLoudnessLUFS float64
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// getEnvList splits a comma-separated environment variable, trimming blanks.
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// DefaultSoftOptionErrors are the engine error substrings that mark a
// property/option as unsupported by the running engine build.
func DefaultSoftOptionErrors() []string {
	return []string{"property unavailable", "unknown property", "property not found", "option"}
}

func defaultMusicRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Music")
	}
	return "."
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "chorale")
	}
	return ".chorale"
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, relying on environment variables and defaults")
	}

	return &Config{
		Port:           getEnvInt("CHORALE_PORT", 3616),
		MusicRoot:      getEnv("CHORALE_MUSIC_ROOT", defaultMusicRoot()),
		DataDir:        getEnv("CHORALE_DATA_DIR", defaultDataDir()),
		MPVBinary:      getEnv("CHORALE_MPV_BIN", "mpv"),
		LogLevel:       getEnv("CHORALE_LOG_LEVEL", "info"),
		LogFile:        getEnv("CHORALE_LOG_FILE", ""),
		AllowedOrigins: getEnvList("CHORALE_ALLOWED_ORIGINS", nil),

		MetadataWorkers:   getEnvInt("CHORALE_METADATA_WORKERS", 4),
		CommandTimeout:    time.Duration(getEnvInt("CHORALE_COMMAND_TIMEOUT_MS", 5000)) * time.Millisecond,
		FileLoadedTimeout: time.Duration(getEnvInt("CHORALE_FILE_LOADED_TIMEOUT_MS", 3000)) * time.Millisecond,
		DebounceWindow:    time.Duration(getEnvInt("CHORALE_DEBOUNCE_MS", 250)) * time.Millisecond,
		DebounceMaxWindow: time.Duration(getEnvInt("CHORALE_DEBOUNCE_MAX_MS", 1000)) * time.Millisecond,
		SessionSaveEvery:  time.Duration(getEnvInt("CHORALE_SESSION_SAVE_SEC", 30)) * time.Second,

		SoftOptionErrors: getEnvList("CHORALE_SOFT_OPTION_ERRORS", DefaultSoftOptionErrors()),

		LyricsFetch:        getEnvBool("CHORALE_LYRICS_FETCH", true),
		MaxExternalClients: getEnvInt("CHORALE_MAX_EXTERNAL_CLIENTS", 4),

		ReferenceLoudnessLUFS: getEnvFloat("CHORALE_REFERENCE_LUFS", -18.0),
	}
}

// SessionPath returns the session file location inside the data dir.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

// CachePath returns the metadata cache database location inside the data dir.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}
