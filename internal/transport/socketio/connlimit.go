package socketio

import (
	"net"
	"strings"
	"sync"
)

// ConnectionLimiter caps the number of concurrent external (non-localhost)
// clients. Local connections are always admitted without limit. When a new
// external connection exceeds the cap, the oldest external client is evicted
// in its favor. A non-positive cap disables the limit.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// ordered slice of external client IDs (oldest first)
	external []string
	// all tracked connections: clientID -> normalized remote host
	connections map[string]string
}

// NewConnectionLimiter creates a limiter that admits up to maxExternal
// concurrent non-localhost clients.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		external:    make([]string, 0),
		connections: make(map[string]string),
	}
}

// TryAdd registers a new connection. It returns whether the connection is
// admitted and the ID of any evicted client (empty string if none).
// remoteAddr may carry a port or an IPv4-mapped IPv6 form; both are
// normalized before the local check.
func (cl *ConnectionLimiter) TryAdd(clientID, remoteAddr string) (admitted bool, evictedID string) {
	host := normalizeHost(remoteAddr)

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Already tracked - admit
	if _, exists := cl.connections[clientID]; exists {
		return true, ""
	}

	cl.connections[clientID] = host

	if isLocalHost(host) {
		// Local connections never count against the external cap
		return true, ""
	}

	cl.external = append(cl.external, clientID)

	if cl.maxExternal > 0 && len(cl.external) > cl.maxExternal {
		// Evict the oldest external client
		evictedID = cl.external[0]
		cl.external = cl.external[1:]
		delete(cl.connections, evictedID)
		return true, evictedID
	}

	return true, ""
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	host, exists := cl.connections[clientID]
	if !exists {
		return
	}

	delete(cl.connections, clientID)

	if isLocalHost(host) {
		return
	}

	for i, id := range cl.external {
		if id == clientID {
			cl.external = append(cl.external[:i], cl.external[i+1:]...)
			break
		}
	}
}

// Count returns the number of tracked connections.
func (cl *ConnectionLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections)
}

// normalizeHost strips a port and IPv6 brackets from a remote address and
// unwraps IPv4-mapped IPv6 addresses like ::ffff:127.0.0.1.
func normalizeHost(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return ip.String()
	}
	return host
}

// isLocalHost reports whether the normalized host is the local machine.
func isLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
