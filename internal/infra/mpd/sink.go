package mpd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-rooms/internal/broadcast"
	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

// Player is the playback side of the sink.
type Player interface {
	Load(uri string) error
	Pause(pause bool) error
	Stop() error
}

// Subscriber is a room that can be observed.
type Subscriber interface {
	ID() string
	Subscribe(observerID string) *broadcast.Observer
	Unsubscribe(observerID string)
}

const sinkObserverID = "mpd-sink"

// Sink plays a room's current track. It loads the new source when the cursor
// moves to a different track and mirrors the pause flag.
type Sink struct {
	player Player
	retry  time.Duration

	loaded string
	paused bool
}

// NewSink creates a sink driving player.
func NewSink(player Player) *Sink {
	return &Sink{player: player, retry: time.Second}
}

// Follow observes room until ctx is done, resubscribing if the observer is dropped.
func (s *Sink) Follow(ctx context.Context, room Subscriber) {
	log.Info().Str("room", room.ID()).Msg("MPD sink started")
	defer log.Info().Str("room", room.ID()).Msg("MPD sink stopped")

	for {
		obs := room.Subscribe(sinkObserverID)
		s.consume(ctx, obs.Events())
		room.Unsubscribe(sinkObserverID)
		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("room", room.ID()).Msg("MPD sink observer dropped, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
	}
}

func (s *Sink) consume(ctx context.Context, events <-chan broadcast.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == broadcast.EventState && ev.State != nil {
				s.apply(*ev.State)
			}
		}
	}
}

// apply drives the player towards snap.
func (s *Sink) apply(snap queue.Snapshot) {
	current, ok := snap.Current()
	if !ok {
		if s.loaded != "" {
			if err := s.player.Stop(); err != nil {
				log.Error().Err(err).Msg("MPD stop failed")
			}
			s.loaded = ""
		}
		s.paused = snap.Paused
		return
	}

	if current.SourceRef == "" {
		log.Debug().Str("title", current.Title).Msg("Track has no playable source, skipping MPD load")
	} else if current.SourceRef != s.loaded {
		if err := s.player.Load(current.SourceRef); err != nil {
			log.Error().Err(err).Str("src", current.SourceRef).Msg("MPD load failed")
			return
		}
		log.Info().Str("title", current.Title).Str("src", current.SourceRef).Msg("MPD playing")
		s.loaded = current.SourceRef
		s.paused = false
	}

	if snap.Paused != s.paused {
		if err := s.player.Pause(snap.Paused); err != nil {
			log.Error().Err(err).Bool("paused", snap.Paused).Msg("MPD pause failed")
			return
		}
		s.paused = snap.Paused
	}
}
