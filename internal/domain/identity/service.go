// Package identity manages the persistent instance identity. Every backend
// carries a stable UUID and a display name so clients can tell instances
// apart when more than one Chorale is reachable.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Info is the instance identity exposed to clients.
type Info struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Service loads the instance identity from disk, generating and persisting a
// fresh one on first run.
type Service struct {
	mu       sync.RWMutex
	filePath string
	info     Info
}

// NewService loads the identity stored at filePath or creates a new one. A
// file that cannot be written is an error; the identity must survive
// restarts to be of any use.
func NewService(filePath string) (*Service, error) {
	svc := &Service{filePath: filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}

	if err := svc.load(); err != nil {
		log.Debug().Err(err).Msg("No existing instance identity, generating a new one")
		svc.info = Info{
			UUID: uuid.New().String(),
			Name: defaultName(),
		}
		if err := svc.save(); err != nil {
			return nil, fmt.Errorf("failed to save instance identity: %w", err)
		}
	}

	log.Info().
		Str("uuid", svc.info.UUID).
		Str("name", svc.info.Name).
		Msg("Instance identity")

	return svc, nil
}

// Info returns the current identity.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// SetName updates the display name and persists it. Empty names reset to the
// hostname default.
func (s *Service) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = defaultName()
	}
	s.info.Name = name
	return s.save()
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("invalid identity file: %w", err)
	}
	if info.UUID == "" {
		return fmt.Errorf("identity file missing uuid")
	}
	if info.Name == "" {
		info.Name = defaultName()
	}

	s.info = info
	return nil
}

func (s *Service) save() error {
	data, err := json.MarshalIndent(s.info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "Chorale"
	}
	return hostname
}
