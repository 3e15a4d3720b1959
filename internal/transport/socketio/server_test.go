package socketio_test

import (
	"testing"
	"time"

	"github.com/chorale-player/chorale-backend/internal/config"
	"github.com/chorale-player/chorale-backend/internal/domain/library"
	"github.com/chorale-player/chorale-backend/internal/domain/metadata"
	"github.com/chorale-player/chorale-backend/internal/domain/player"
	"github.com/chorale-player/chorale-backend/internal/domain/playlist"
	"github.com/chorale-player/chorale-backend/internal/transport/socketio"
)

func testConfig() *config.Config {
	return &config.Config{
		DebounceWindow:     20 * time.Millisecond,
		DebounceMaxWindow:  50 * time.Millisecond,
		MaxExternalClients: 2,
	}
}

func TestNewServer(t *testing.T) {
	server, err := socketio.NewServer(testConfig(), library.NewService(""), nil)
	if err != nil {
		t.Errorf("NewServer should not return error: %v", err)
	}
	if server == nil {
		t.Fatal("NewServer should return a non-nil server")
	}
	defer server.Close()

	// The server doubles as the controller's push sink
	var sink player.EventSink = server
	_ = sink
}

func TestServerPushesWithoutClients(t *testing.T) {
	server, err := socketio.NewServer(testConfig(), library.NewService(""), nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	// Pushes with no connected clients must not panic
	server.PlaybackChanged(player.NewPlaybackStatus())
	server.StatusChanged(player.StatusInfo{Message: "End of playlist", Transient: true})
	server.PlaylistChanged(playlist.Snapshot{})
	server.TrackMetadataChanged("t1", &metadata.TrackMetadata{Title: "Song"})
	server.LyricsChanged(player.LyricsSnapshot{ActiveIndex: -1})
	server.SettingsChanged(player.Settings{ReplayGainMode: player.ReplayGainOff})
	server.BackendErrorChanged("engine exited")
	server.BackendErrorChanged("")

	// Let the debounced playback/status flush fire clientless too
	time.Sleep(100 * time.Millisecond)
}

func TestServerCloseIsClean(t *testing.T) {
	server, err := socketio.NewServer(testConfig(), library.NewService(""), nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	// A pending debounced push must not fire after Close
	server.PlaybackChanged(player.NewPlaybackStatus())

	if err := server.Close(); err != nil {
		t.Errorf("Close should not error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
}
