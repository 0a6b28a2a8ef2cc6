package room

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-rooms/internal/domain/favorites"
	"github.com/edumarques81/stellar-rooms/internal/domain/history"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
)

// DefaultRoom is the room used when a caller names none.
const DefaultRoom = "global"

// ErrRoomNotFound is returned for a room id that was never created.
var ErrRoomNotFound = errors.New("room not found")

// RegistryConfig wires the collaborators shared by every room.
type RegistryConfig struct {
	Store SnapshotStore
	Hub   Hub

	// Ledger and Favorites return the per-room stores. Nil selects in-memory stores.
	Ledger    func(room string) history.Ledger
	Favorites func(room string) favorites.Store
}

// Registry owns one Gateway per room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Gateway
	cfg   RegistryConfig
}

// NewRegistry creates an empty registry. Call Restore to load persisted rooms.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Ledger == nil {
		cfg.Ledger = func(string) history.Ledger { return history.NewMemoryLedger() }
	}
	if cfg.Favorites == nil {
		cfg.Favorites = func(string) favorites.Store { return favorites.NewMemoryStore() }
	}
	return &Registry{
		rooms: make(map[string]*Gateway),
		cfg:   cfg,
	}
}

// Restore opens every persisted room plus the default room. A malformed
// snapshot starts that room empty.
func (r *Registry) Restore() error {
	ids := []string{}
	if r.cfg.Store != nil {
		found, err := r.cfg.Store.Rooms()
		if err != nil {
			return fmt.Errorf("list rooms: %w", err)
		}
		ids = found
	}
	if !slices.Contains(ids, DefaultRoom) {
		ids = append(ids, DefaultRoom)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.rooms[id]; ok {
			continue
		}
		r.rooms[id] = r.openLocked(id)
	}
	log.Info().Int("rooms", len(r.rooms)).Msg("Rooms restored")
	return nil
}

// openLocked builds a gateway seeded from its snapshot (must hold lock).
func (r *Registry) openLocked(id string) *Gateway {
	var rec snapshot.Record
	if r.cfg.Store != nil {
		loaded, err := r.cfg.Store.Load(id)
		if err != nil {
			log.Warn().Err(err).Str("room", id).Msg("Starting room with empty queue")
		}
		rec = loaded
	}
	return NewGateway(id, Deps{
		Store:     r.cfg.Store,
		Ledger:    r.cfg.Ledger(id),
		Favorites: r.cfg.Favorites(id),
		Hub:       r.cfg.Hub,
	}, rec)
}

// Default returns the default room, opening it on first use.
func (r *Registry) Default() *Gateway {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.rooms[DefaultRoom]
	if !ok {
		g = r.openLocked(DefaultRoom)
		r.rooms[DefaultRoom] = g
	}
	return g
}

// Get returns the gateway of id. An empty id selects the default room.
func (r *Registry) Get(id string) (*Gateway, error) {
	if id == "" {
		return r.Default(), nil
	}
	r.mu.RLock()
	g, ok := r.rooms[id]
	r.mu.RUnlock()
	if !ok {
		if id == DefaultRoom {
			return r.Default(), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return g, nil
}

// Create opens a new room with a short random id and persists its empty
// queue so the room survives a restart.
func (r *Registry) Create() (*Gateway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id = uuid.New().String()[:8]
		if _, taken := r.rooms[id]; !taken {
			break
		}
	}

	g := NewGateway(id, Deps{
		Store:     r.cfg.Store,
		Ledger:    r.cfg.Ledger(id),
		Favorites: r.cfg.Favorites(id),
		Hub:       r.cfg.Hub,
	}, snapshot.Record{})
	if r.cfg.Store != nil {
		if err := r.cfg.Store.Save(id, snapshot.Record{}); err != nil {
			return nil, fmt.Errorf("persist room %s: %w", id, err)
		}
	}
	r.rooms[id] = g

	log.Info().Str("room", id).Msg("Room created")
	return g, nil
}

// IDs returns the open room ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
