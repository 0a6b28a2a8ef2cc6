package broadcast

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

// MessageKind distinguishes ephemeral side-channel messages.
type MessageKind string

const (
	KindChat     MessageKind = "chat"
	KindReaction MessageKind = "reaction"
)

// MaxBodyLength bounds chat lines and reactions, in bytes.
const MaxBodyLength = 500

// Message is a short-lived chat line or emoji reaction. It is never persisted.
type Message struct {
	ID   string      `json:"id"`
	Kind MessageKind `json:"kind"`
	From string      `json:"user"`
	Body string      `json:"message"`
	Time time.Time   `json:"time"`
}

// NewMessage creates a message stamped with a fresh id and the current time.
func NewMessage(kind MessageKind, from, body string) Message {
	if len(body) > MaxBodyLength {
		cut := MaxBodyLength
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return Message{
		ID:   uuid.New().String(),
		Kind: kind,
		From: from,
		Body: body,
		Time: time.Now().UTC(),
	}
}

// EventType names a hub event.
type EventType string

const (
	EventState    EventType = "state"
	EventChat     EventType = "chat"
	EventReaction EventType = "reaction"
)

// Event is delivered to observers. Exactly one of State or Message is set.
type Event struct {
	Type    EventType       `json:"type"`
	Room    string          `json:"room"`
	State   *queue.Snapshot `json:"state,omitempty"`
	Message *Message        `json:"message,omitempty"`
}

func stateEvent(room string, snap queue.Snapshot) Event {
	return Event{Type: EventState, Room: room, State: &snap}
}

func messageEvent(room string, msg Message) Event {
	typ := EventChat
	if msg.Kind == KindReaction {
		typ = EventReaction
	}
	return Event{Type: typ, Room: room, Message: &msg}
}
