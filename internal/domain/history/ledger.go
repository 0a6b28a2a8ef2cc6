// Package history records tracks that have left active rotation.
package history

import (
	"slices"
	"sync"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

// Global is the identity of the unpartitioned history stream.
const Global = "global"

// Ledger is an append-only log of tracks partitioned by identity.
type Ledger interface {
	Append(identity string, track queue.Track) error
	ReadAll(identity string) ([]queue.Track, error)
	Clear(identity string) error
}

// Identity normalises a caller-supplied identity; empty means Global.
func Identity(id string) string {
	if id == "" {
		return Global
	}
	return id
}

// Record appends track to the global stream and, for a non-global caller,
// to that caller's own stream as well.
func Record(l Ledger, identity string, track queue.Track) error {
	if err := l.Append(Global, track); err != nil {
		return err
	}
	if id := Identity(identity); id != Global {
		return l.Append(id, track)
	}
	return nil
}

// MemoryLedger keeps history in process memory.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string][]queue.Track
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string][]queue.Track)}
}

// Append adds a track to identity's log.
func (m *MemoryLedger) Append(identity string, track queue.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := Identity(identity)
	m.entries[id] = append(m.entries[id], track)
	return nil
}

// ReadAll returns identity's log in append order.
func (m *MemoryLedger) ReadAll(identity string) ([]queue.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.entries[Identity(identity)])
	if out == nil {
		out = []queue.Track{}
	}
	return out, nil
}

// Clear empties identity's log only.
func (m *MemoryLedger) Clear(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Identity(identity))
	return nil
}
