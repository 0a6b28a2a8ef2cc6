package socketio

import (
	"net"
	"slices"
	"sync"
)

// ConnectionLimiter caps concurrent connections per remote address.
// Local connections (127.0.0.1, ::1) are always allowed without limit.
// When an address exceeds its limit, its oldest connection is evicted.
type ConnectionLimiter struct {
	mu       sync.Mutex
	maxPerIP int
	// per-address client IDs, oldest first
	byAddr map[string][]string
	// clientID -> address
	connections map[string]string
}

// NewConnectionLimiter creates a limiter allowing maxPerIP connections per
// external address. A non-positive maxPerIP disables the limit.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxPerIP:    maxPerIP,
		byAddr:      make(map[string][]string),
		connections: make(map[string]string),
	}
}

// TryAdd registers a connection and returns the ID of any evicted client
// (empty string if none).
func (cl *ConnectionLimiter) TryAdd(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return ""
	}

	ip := hostOf(remoteAddr)
	cl.connections[clientID] = ip
	if isLocalIP(ip) || cl.maxPerIP <= 0 {
		return ""
	}

	ids := append(cl.byAddr[ip], clientID)
	if len(ids) > cl.maxPerIP {
		evictedID = ids[0]
		ids = ids[1:]
		delete(cl.connections, evictedID)
	}
	cl.byAddr[ip] = ids
	return evictedID
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, exists := cl.connections[clientID]
	if !exists {
		return
	}
	delete(cl.connections, clientID)

	ids := slices.DeleteFunc(cl.byAddr[ip], func(id string) bool { return id == clientID })
	if len(ids) == 0 {
		delete(cl.byAddr, ip)
		return
	}
	cl.byAddr[ip] = ids
}

// Count returns the number of tracked connections.
func (cl *ConnectionLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections)
}

// hostOf strips a port from addr when present.
func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isLocalIP(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1"
}
