// Package room serializes all mutations of a room queue.
package room

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-rooms/internal/broadcast"
	"github.com/edumarques81/stellar-rooms/internal/domain/favorites"
	"github.com/edumarques81/stellar-rooms/internal/domain/history"
	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
)

// SnapshotStore persists room queues.
type SnapshotStore interface {
	Save(room string, rec snapshot.Record) error
	Load(room string) (snapshot.Record, error)
	Rooms() ([]string, error)
}

// Hub delivers room events to observers.
type Hub interface {
	Attach(room, id string, state queue.Snapshot) *broadcast.Observer
	Detach(room, id string)
	PublishState(room string, state queue.Snapshot)
	Post(room string, msg broadcast.Message)
}

// Gateway is the only path through which a room queue changes.
//
// Every mutation runs validate, apply, persist, record history and publish
// under one lock, so mutations are linearized and observers see them in order.
// Reads share the lock and always see a state produced by a whole mutation.
//
// Persistence policy: when the snapshot write fails the mutation is kept in
// memory and still published, the outcome is OutcomePersistFailed, and the
// next accepted mutation rewrites the full snapshot.
type Gateway struct {
	id        string
	mu        sync.RWMutex
	state     *queue.State
	store     SnapshotStore
	ledger    history.Ledger
	favorites favorites.Store
	hub       Hub
}

// Deps are the collaborators of a Gateway.
type Deps struct {
	Store     SnapshotStore
	Ledger    history.Ledger
	Favorites favorites.Store
	Hub       Hub
}

// NewGateway creates the gateway of room id seeded from rec.
func NewGateway(id string, deps Deps, rec snapshot.Record) *Gateway {
	if deps.Ledger == nil {
		deps.Ledger = history.NewMemoryLedger()
	}
	if deps.Favorites == nil {
		deps.Favorites = favorites.NewMemoryStore()
	}
	if deps.Hub == nil {
		deps.Hub = broadcast.NewHub(broadcast.Options{})
	}
	state := queue.NewState()
	state.Restore(rec.Tracks, rec.Current)
	return &Gateway{
		id:        id,
		state:     state,
		store:     deps.Store,
		ledger:    deps.Ledger,
		favorites: deps.Favorites,
		hub:       deps.Hub,
	}
}

// ID returns the room id.
func (g *Gateway) ID() string {
	return g.id
}

// mutate applies fn under the write lock. On a changed state it persists
// (when persist is set) and publishes the new snapshot.
func (g *Gateway) mutate(op string, persist bool, fn func(s *queue.State) queue.Outcome) (queue.Snapshot, queue.Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := fn(g.state)
	snap := g.state.Snapshot()

	if out != queue.OutcomeApplied {
		log.Debug().Str("room", g.id).Str("op", op).Str("outcome", string(out)).Msg("Mutation not applied")
		return snap, out
	}

	if persist && g.store != nil {
		rec := snapshot.Record{Tracks: snap.Tracks, Current: snap.CurrentIndex}
		if err := g.store.Save(g.id, rec); err != nil {
			log.Error().Err(err).Str("room", g.id).Str("op", op).Msg("Snapshot write failed, keeping in-memory state")
			out = queue.OutcomePersistFailed
		}
	}

	g.hub.PublishState(g.id, snap)

	log.Info().
		Str("room", g.id).
		Str("op", op).
		Str("outcome", string(out)).
		Int("tracks", len(snap.Tracks)).
		Int("current", snap.CurrentIndex).
		Bool("paused", snap.Paused).
		Msg("Queue mutated")
	return snap, out
}

// record appends to history; failures are logged and do not fail the mutation.
func (g *Gateway) record(op, identity string, t queue.Track) {
	if err := history.Record(g.ledger, identity, t); err != nil {
		log.Error().Err(err).Str("room", g.id).Str("op", op).Str("identity", identity).Msg("History append failed")
	}
}

// State returns the current queue.
func (g *Gateway) State() queue.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Snapshot()
}

// Enqueue validates and appends a track. A duplicate still returns the
// current state so callers can render "already in queue".
func (g *Gateway) Enqueue(t queue.Track) (queue.Snapshot, queue.Outcome) {
	if err := t.Validate(); err != nil {
		log.Debug().Err(err).Str("room", g.id).Msg("Rejected invalid track")
		return g.State(), queue.OutcomeInvalid
	}
	return g.mutate("enqueue", true, func(s *queue.State) queue.Outcome {
		return s.Enqueue(t)
	})
}

// Next rotates the cursor forward.
func (g *Gateway) Next() (queue.Snapshot, queue.Outcome) {
	return g.mutate("next", true, (*queue.State).Next)
}

// Prev rotates the cursor backward.
func (g *Gateway) Prev() (queue.Snapshot, queue.Outcome) {
	return g.mutate("prev", true, (*queue.State).Prev)
}

// Pause sets the pause flag. The flag is session state and is not persisted.
func (g *Gateway) Pause() (queue.Snapshot, queue.Outcome) {
	return g.mutate("pause", false, func(s *queue.State) queue.Outcome {
		return s.SetPaused(true)
	})
}

// Resume clears the pause flag.
func (g *Gateway) Resume() (queue.Snapshot, queue.Outcome) {
	return g.mutate("resume", false, func(s *queue.State) queue.Outcome {
		return s.SetPaused(false)
	})
}

// Skip records the current track in history on behalf of identity and
// advances the cursor. The track stays queued.
func (g *Gateway) Skip(identity string) (queue.Snapshot, queue.Outcome) {
	return g.mutate("skip", true, func(s *queue.State) queue.Outcome {
		played, out := s.Skip()
		if out == queue.OutcomeApplied {
			g.record("skip", identity, played)
		}
		return out
	})
}

// Clear drains every track into history on behalf of identity, then resets
// the queue, cursor and pause flag.
func (g *Gateway) Clear(identity string) (queue.Snapshot, queue.Outcome) {
	return g.mutate("clear", true, func(s *queue.State) queue.Outcome {
		for _, t := range s.Snapshot().Tracks {
			g.record("clear", identity, t)
		}
		s.Clear()
		return queue.OutcomeApplied
	})
}

// JumpTo moves the cursor to index.
func (g *Gateway) JumpTo(index int) (queue.Snapshot, queue.Outcome) {
	return g.mutate("jump", true, func(s *queue.State) queue.Outcome {
		return s.JumpTo(index)
	})
}

// RemoveAt deletes the track at index without recording it in history.
func (g *Gateway) RemoveAt(index int) (queue.Snapshot, queue.Outcome) {
	return g.mutate("remove", true, func(s *queue.State) queue.Outcome {
		_, out := s.RemoveAt(index)
		return out
	})
}

// History returns identity's history in append order.
func (g *Gateway) History(identity string) ([]queue.Track, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ledger.ReadAll(history.Identity(identity))
}

// ClearHistory empties identity's history. Clearing a caller's history never
// touches the global stream; pass history.Global to clear that.
func (g *Gateway) ClearHistory(identity string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.ledger.Clear(history.Identity(identity)); err != nil {
		return err
	}
	log.Info().Str("room", g.id).Str("identity", history.Identity(identity)).Msg("History cleared")
	return nil
}

// AddFavorite stores t in the room favorites unless already present.
func (g *Gateway) AddFavorite(t queue.Track) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	added, err := g.favorites.Add(t)
	if err != nil {
		return false, err
	}
	if added {
		log.Info().Str("room", g.id).Str("title", t.Title).Msg("Favorite added")
	}
	return added, nil
}

// FavoriteCurrent stores the track under the cursor. ok is false on an empty queue.
func (g *Gateway) FavoriteCurrent() (t queue.Track, added, ok bool, err error) {
	t, ok = g.State().Current()
	if !ok {
		return queue.Track{}, false, false, nil
	}
	added, err = g.AddFavorite(t)
	return t, added, true, err
}

// Favorites lists the room favorites.
func (g *Gateway) Favorites() ([]queue.Track, error) {
	return g.favorites.List()
}

// Subscribe attaches an observer. Its first event is the state as of the
// attach, taken under the read lock so no mutation can slip in between.
func (g *Gateway) Subscribe(observerID string) *broadcast.Observer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hub.Attach(g.id, observerID, g.state.Snapshot())
}

// Unsubscribe detaches an observer.
func (g *Gateway) Unsubscribe(observerID string) {
	g.hub.Detach(g.id, observerID)
}

// Post sends a chat line or reaction to the room's observers.
func (g *Gateway) Post(kind broadcast.MessageKind, from, body string) broadcast.Message {
	msg := broadcast.NewMessage(kind, from, body)
	g.hub.Post(g.id, msg)
	return msg
}
