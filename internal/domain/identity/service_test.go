package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewService_GeneratesUUID(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "instance.json")

	svc, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	info := svc.Info()

	if info.UUID == "" {
		t.Error("UUID should not be empty")
	}
	// UUID should be valid format (36 chars with dashes)
	if len(info.UUID) != 36 {
		t.Errorf("UUID should be 36 characters, got %d: %s", len(info.UUID), info.UUID)
	}
	if info.Name == "" {
		t.Error("Name should not be empty")
	}
}

func TestNewService_PersistsUUID(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "instance.json")

	svc1, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService (1) failed: %v", err)
	}
	uuid1 := svc1.Info().UUID

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Fatal("Identity file should have been created")
	}

	svc2, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService (2) failed: %v", err)
	}
	uuid2 := svc2.Info().UUID

	if uuid1 != uuid2 {
		t.Errorf("UUID should persist across restarts: %s != %s", uuid1, uuid2)
	}
}

func TestNewService_LoadsExistingIdentity(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "instance.json")

	knownUUID := "550e8400-e29b-41d4-a716-446655440000"
	content := `{"uuid":"` + knownUUID + `","name":"Living Room"}`
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test identity: %v", err)
	}

	svc, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	info := svc.Info()
	if info.UUID != knownUUID {
		t.Errorf("Should load existing UUID: got %s, want %s", info.UUID, knownUUID)
	}
	if info.Name != "Living Room" {
		t.Errorf("Should load existing name: got %s, want Living Room", info.Name)
	}
}

func TestNewService_RegeneratesOnCorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "instance.json")

	if err := os.WriteFile(filePath, []byte("not json at all"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt identity: %v", err)
	}

	svc, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if svc.Info().UUID == "" {
		t.Error("Corrupt file should be replaced with a fresh identity")
	}
}

func TestSetName(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "instance.json")

	svc, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	newName := "Study Player"
	if err := svc.SetName(newName); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if svc.Info().Name != newName {
		t.Errorf("Name should be updated: got %s, want %s", svc.Info().Name, newName)
	}

	// Verify persisted
	svc2, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService (2) failed: %v", err)
	}
	if svc2.Info().Name != newName {
		t.Error("Name should persist")
	}
}

func TestSetName_EmptyResetsToDefault(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "instance.json")

	svc, err := NewService(filePath)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.SetName(""); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if svc.Info().Name == "" {
		t.Error("Empty name should fall back to the default, not stick")
	}
}
