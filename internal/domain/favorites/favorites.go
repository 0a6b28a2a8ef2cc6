// Package favorites keeps a deduplicated list of liked tracks per room.
package favorites

import (
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

// Store persists favorites for one room.
type Store interface {
	// Add stores track unless an equivalent one exists; it reports whether it was added.
	Add(track queue.Track) (bool, error)
	List() ([]queue.Track, error)
}

// Key identifies a favorite: the dedup key when present, else title/artist/source.
func Key(t queue.Track) string {
	if t.ExternalID != "" {
		return "id:" + t.ExternalID
	}
	return "meta:" + strings.ToLower(t.Title) + "\x1f" + strings.ToLower(t.Artist) + "\x1f" + t.SourceRef
}

// MemoryStore keeps favorites in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tracks []queue.Track
}

// NewMemoryStore creates an empty in-memory favorites store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tracks: []queue.Track{}}
}

// Add stores track unless an equivalent one exists.
func (m *MemoryStore) Add(track queue.Track) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(track)
	if lo.ContainsBy(m.tracks, func(t queue.Track) bool { return Key(t) == key }) {
		return false, nil
	}
	m.tracks = append(m.tracks, track)
	return true, nil
}

// List returns favorites in insertion order.
func (m *MemoryStore) List() ([]queue.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]queue.Track{}, m.tracks...), nil
}
