package socketio

import (
	"fmt"
	"testing"
)

func TestConnectionLimiterLocalhostAlwaysAdmitted(t *testing.T) {
	cl := NewConnectionLimiter(1)

	// Local connections in every address form the transport hands us
	addrs := []string{"127.0.0.1", "::1", "127.0.0.1:58211", "[::1]:40000", "::ffff:127.0.0.1", "localhost"}
	for i, addr := range addrs {
		admitted, evicted := cl.TryAdd(fmt.Sprintf("local-%d", i), addr)
		if !admitted {
			t.Errorf("local connection from %q should be admitted", addr)
		}
		if evicted != "" {
			t.Errorf("local connection from %q should not evict anyone, got %s", addr, evicted)
		}
	}
}

func TestConnectionLimiterSecondExternalEvictsOldest(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")

	admitted, evicted := cl.TryAdd("ext-2", "192.168.1.101")
	if !admitted {
		t.Error("second external connection should be admitted")
	}
	if evicted != "ext-1" {
		t.Errorf("expected eviction of ext-1, got %q", evicted)
	}

	// Third evicts second, oldest first
	_, evicted = cl.TryAdd("ext-3", "192.168.1.102")
	if evicted != "ext-2" {
		t.Errorf("expected eviction of ext-2, got %q", evicted)
	}
}

func TestConnectionLimiterLocalExemptFromCap(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")

	admitted, evicted := cl.TryAdd("local-1", "127.0.0.1:39001")
	if !admitted {
		t.Error("local should be admitted with the external cap reached")
	}
	if evicted != "" {
		t.Errorf("local connection should not evict anyone, got %s", evicted)
	}

	// The external slot is still occupied by ext-1
	_, evicted = cl.TryAdd("ext-2", "192.168.1.101")
	if evicted != "ext-1" {
		t.Errorf("expected eviction of ext-1, got %q", evicted)
	}
}

func TestConnectionLimiterRemoveFreesSlot(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")
	cl.Remove("ext-1")

	admitted, evicted := cl.TryAdd("ext-2", "192.168.1.101")
	if !admitted {
		t.Error("external should be admitted after removal")
	}
	if evicted != "" {
		t.Errorf("should not evict after removal freed a slot, got %s", evicted)
	}
}

func TestConnectionLimiterMappedIPv6CountsAsLocal(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")

	// IPv4-mapped loopback, as engine.io reports local clients
	admitted, evicted := cl.TryAdd("local-1", "::ffff:127.0.0.1")
	if !admitted {
		t.Error("mapped loopback should be admitted")
	}
	if evicted != "" {
		t.Errorf("mapped loopback should not evict anyone, got %s", evicted)
	}
}

func TestConnectionLimiterDuplicateAddIsIdempotent(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")

	admitted, evicted := cl.TryAdd("ext-1", "192.168.1.100")
	if !admitted {
		t.Error("duplicate add should be admitted")
	}
	if evicted != "" {
		t.Errorf("duplicate add should not evict, got %s", evicted)
	}
	if got := cl.Count(); got != 1 {
		t.Errorf("expected 1 tracked connection, got %d", got)
	}
}

func TestConnectionLimiterZeroCapDisablesLimit(t *testing.T) {
	cl := NewConnectionLimiter(0)

	for i := 0; i < 5; i++ {
		_, evicted := cl.TryAdd(fmt.Sprintf("ext-%d", i), fmt.Sprintf("10.0.0.%d", i+1))
		if evicted != "" {
			t.Errorf("no eviction expected with the cap disabled, got %s", evicted)
		}
	}
	if got := cl.Count(); got != 5 {
		t.Errorf("expected 5 tracked connections, got %d", got)
	}
}

func TestConnectionLimiterRemoveNonexistent(t *testing.T) {
	cl := NewConnectionLimiter(1)

	// Should not panic
	cl.Remove("nonexistent")
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
	}{
		{"127.0.0.1", "127.0.0.1"},
		{"127.0.0.1:58211", "127.0.0.1"},
		{"::1", "::1"},
		{"[::1]:40000", "::1"},
		{"::ffff:127.0.0.1", "127.0.0.1"},
		{"::ffff:192.168.1.50", "192.168.1.50"},
		{"localhost:3000", "localhost"},
		{"203.0.113.7", "203.0.113.7"},
	}

	for _, tc := range tests {
		if got := normalizeHost(tc.addr); got != tc.expected {
			t.Errorf("normalizeHost(%q) = %q, want %q", tc.addr, got, tc.expected)
		}
	}
}

func TestIsLocalHost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"127.0.0.1", true},
		{"127.0.0.2", true},
		{"::1", true},
		{"localhost", true},
		{"192.168.1.100", false},
		{"10.0.0.1", false},
		{"0.0.0.0", false},
	}

	for _, tc := range tests {
		if got := isLocalHost(tc.host); got != tc.expected {
			t.Errorf("isLocalHost(%q) = %v, want %v", tc.host, got, tc.expected)
		}
	}
}
