// Package command maps realtime client commands onto room mutations.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
)

// Command names accepted from realtime clients.
const (
	AddToQueue      = "add_to_queue"
	NextSong        = "next_song"
	PrevSong        = "prev_song"
	Pause           = "pause"
	Resume          = "resume"
	Skip            = "skip"
	End             = "end"
	PlayIndex       = "play_index"
	RemoveFromQueue = "remove_from_queue"
)

var (
	// ErrUnknownCommand is returned for a command name that is not a mutation.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBadIndex is returned when an index argument is missing or not an integer.
	ErrBadIndex = errors.New("index must be an integer")
)

// Result reports a mutation back to the client that issued it.
type Result struct {
	Op        string         `json:"op"`
	Outcome   queue.Outcome  `json:"outcome"`
	Persisted bool           `json:"persisted"`
	State     queue.Snapshot `json:"state"`
}

// NewResult builds a Result from a gateway reply.
func NewResult(op string, snap queue.Snapshot, out queue.Outcome) Result {
	return Result{
		Op:        op,
		Outcome:   out,
		Persisted: out != queue.OutcomePersistFailed,
		State:     snap,
	}
}

// Dispatch applies op to g. A payload that fails to decode yields an invalid
// or outOfRange result rather than an error; err is reserved for unknown ops.
func Dispatch(g *room.Gateway, op string, payload map[string]any) (Result, error) {
	var (
		snap queue.Snapshot
		out  queue.Outcome
	)
	switch op {
	case AddToQueue:
		t, err := decodeTrack(payload)
		if err != nil {
			return NewResult(op, g.State(), queue.OutcomeInvalid), nil
		}
		snap, out = g.Enqueue(t)
	case NextSong:
		snap, out = g.Next()
	case PrevSong:
		snap, out = g.Prev()
	case Pause:
		snap, out = g.Pause()
	case Resume:
		snap, out = g.Resume()
	case Skip:
		snap, out = g.Skip(Identity(payload))
	case End:
		snap, out = g.Clear(Identity(payload))
	case PlayIndex, RemoveFromQueue:
		i, err := Index(payload)
		if err != nil {
			return NewResult(op, g.State(), queue.OutcomeOutOfRange), nil
		}
		if op == PlayIndex {
			snap, out = g.JumpTo(i)
		} else {
			snap, out = g.RemoveAt(i)
		}
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, op)
	}
	return NewResult(op, snap, out), nil
}

func decodeTrack(payload map[string]any) (queue.Track, error) {
	if song, ok := payload["song"].(map[string]any); ok {
		payload = song
	}
	p, err := queue.ParsePayload(payload)
	if err != nil {
		return queue.Track{}, err
	}
	return p.Track()
}

// Identity reads the caller identity from a payload. Absent means global.
func Identity(payload map[string]any) string {
	for _, key := range []string{"user_id", "user"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// Index reads an integer "index" argument. JSON numbers arrive as float64;
// numeric strings are accepted too.
func Index(payload map[string]any) (int, error) {
	switch v := payload["index"].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, ErrBadIndex
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, ErrBadIndex
		}
		return i, nil
	}
	return 0, ErrBadIndex
}
