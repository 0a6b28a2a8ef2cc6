// Package broadcast fans room state and ephemeral messages out to observers.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

const (
	// DefaultBacklogSize is the number of ephemeral messages replayed to a new observer.
	DefaultBacklogSize = 50

	// DefaultBufferSize is the number of undelivered events an observer may lag behind.
	DefaultBufferSize = 32
)

// Options configures a Hub.
type Options struct {
	BufferSize  int
	BacklogSize int
}

// Observer is one connected subscriber of a room.
type Observer struct {
	ID     string
	Room   string
	events chan Event
	closed bool
}

// Events returns the observer's event stream. It is closed when the observer
// is detached or dropped for falling behind.
func (o *Observer) Events() <-chan Event {
	return o.events
}

type roomObservers struct {
	observers map[string]*Observer
	backlog   *ringBuffer[Message]
}

// Hub delivers events to the observers of each room. Sends never block:
// an observer whose buffer is full is considered dead and dropped.
type Hub struct {
	mu          sync.Mutex
	rooms       map[string]*roomObservers
	bufferSize  int
	backlogSize int
}

// NewHub creates a hub.
func NewHub(opts Options) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.BacklogSize <= 0 {
		opts.BacklogSize = DefaultBacklogSize
	}
	return &Hub{
		rooms:       make(map[string]*roomObservers),
		bufferSize:  opts.BufferSize,
		backlogSize: opts.BacklogSize,
	}
}

// roomLocked returns the room entry, creating it (must hold lock).
func (h *Hub) roomLocked(room string) *roomObservers {
	r, ok := h.rooms[room]
	if !ok {
		r = &roomObservers{
			observers: make(map[string]*Observer),
			backlog:   newRingBuffer[Message](h.backlogSize),
		}
		h.rooms[room] = r
	}
	return r
}

// Attach registers an observer and queues its initial events: the given state
// first, then the room's ephemeral backlog oldest first. Re-attaching an id
// replaces the previous observer.
func (h *Hub) Attach(room, id string, state queue.Snapshot) *Observer {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomLocked(room)
	if old, ok := r.observers[id]; ok {
		h.dropLocked(r, old)
	}

	backlog := r.backlog.snapshot()
	o := &Observer{
		ID:     id,
		Room:   room,
		events: make(chan Event, h.bufferSize+len(backlog)+1),
	}
	o.events <- stateEvent(room, state)
	for _, msg := range backlog {
		o.events <- messageEvent(room, msg)
	}
	r.observers[id] = o

	log.Debug().Str("room", room).Str("observer", id).Int("backlog", len(backlog)).Msg("Observer attached")
	return o
}

// Detach removes an observer. It is safe to call more than once.
func (h *Hub) Detach(room, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		return
	}
	if o, ok := r.observers[id]; ok {
		h.dropLocked(r, o)
		log.Debug().Str("room", room).Str("observer", id).Msg("Observer detached")
	}
}

// dropLocked unregisters and closes an observer (must hold lock).
func (h *Hub) dropLocked(r *roomObservers, o *Observer) {
	delete(r.observers, o.ID)
	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

// PublishState pushes the room state to every observer of room.
func (h *Hub) PublishState(room string, state queue.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		return
	}
	h.fanoutLocked(r, stateEvent(room, state))
}

// Post records an ephemeral message in the room backlog and delivers it live.
func (h *Hub) Post(room string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomLocked(room)
	r.backlog.push(msg)
	h.fanoutLocked(r, messageEvent(room, msg))
}

func (h *Hub) fanoutLocked(r *roomObservers, ev Event) {
	for _, o := range r.observers {
		select {
		case o.events <- ev:
		default:
			log.Warn().Str("room", o.Room).Str("observer", o.ID).Msg("Observer fell behind, dropping")
			h.dropLocked(r, o)
		}
	}
}

// Backlog returns the room's retained ephemeral messages, oldest first.
func (h *Hub) Backlog(room string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		return []Message{}
	}
	return r.backlog.snapshot()
}

// ObserverCount returns the number of observers attached to room.
func (h *Hub) ObserverCount(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[room]; ok {
		return len(r.observers)
	}
	return 0
}

// Close drops every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range h.rooms {
		for _, o := range r.observers {
			h.dropLocked(r, o)
		}
	}
}
