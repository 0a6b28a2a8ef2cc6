package command_test

import (
	"errors"
	"testing"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
	"github.com/edumarques81/stellar-rooms/internal/transport/command"
)

func song(id string) map[string]any {
	return map[string]any{"title": "Song " + id, "artist": "Band", "video_id": id, "src": "https://cdn.example/" + id}
}

func TestDispatch(t *testing.T) {
	g := room.NewGateway("global", room.Deps{}, snapshot.Record{})

	tests := []struct {
		op      string
		payload map[string]any
		want    queue.Outcome
		tracks  int
		current int
	}{
		{command.NextSong, nil, queue.OutcomeEmpty, 0, 0},
		{command.AddToQueue, song("a"), queue.OutcomeApplied, 1, 0},
		{command.AddToQueue, map[string]any{"song": song("b")}, queue.OutcomeApplied, 2, 1},
		{command.AddToQueue, song("a"), queue.OutcomeDuplicate, 2, 1},
		{command.AddToQueue, map[string]any{"title": 7}, queue.OutcomeInvalid, 2, 1},
		{command.AddToQueue, map[string]any{"title": "no source"}, queue.OutcomeInvalid, 2, 1},
		{command.NextSong, nil, queue.OutcomeApplied, 2, 0},
		{command.PrevSong, nil, queue.OutcomeApplied, 2, 1},
		{command.PlayIndex, map[string]any{"index": float64(0)}, queue.OutcomeApplied, 2, 0},
		{command.PlayIndex, map[string]any{"index": float64(5)}, queue.OutcomeOutOfRange, 2, 0},
		{command.PlayIndex, map[string]any{"index": "x"}, queue.OutcomeOutOfRange, 2, 0},
		{command.Pause, nil, queue.OutcomeApplied, 2, 0},
		{command.Skip, map[string]any{"user_id": "sam"}, queue.OutcomeApplied, 2, 1},
		{command.RemoveFromQueue, map[string]any{"index": "0"}, queue.OutcomeApplied, 1, 0},
		{command.End, nil, queue.OutcomeApplied, 0, 0},
	}
	for i, tt := range tests {
		res, err := command.Dispatch(g, tt.op, tt.payload)
		if err != nil {
			t.Fatalf("step %d %s: unexpected error %v", i, tt.op, err)
		}
		if res.Outcome != tt.want {
			t.Errorf("step %d %s: outcome %s, want %s", i, tt.op, res.Outcome, tt.want)
		}
		if len(res.State.Tracks) != tt.tracks || res.State.CurrentIndex != tt.current {
			t.Errorf("step %d %s: state %d tracks cursor %d, want %d/%d",
				i, tt.op, len(res.State.Tracks), res.State.CurrentIndex, tt.tracks, tt.current)
		}
		if !res.Persisted {
			t.Errorf("step %d %s: expected persisted", i, tt.op)
		}
	}

	mine, _ := g.History("sam")
	if len(mine) != 1 {
		t.Errorf("expected skip to record sam history, got %d", len(mine))
	}
}

func TestDispatchUnknown(t *testing.T) {
	g := room.NewGateway("global", room.Deps{}, snapshot.Record{})
	if _, err := command.Dispatch(g, "shuffle", nil); !errors.Is(err, command.ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestIndex(t *testing.T) {
	tests := []struct {
		v    any
		want int
		ok   bool
	}{
		{float64(3), 3, true},
		{3, 3, true},
		{"2", 2, true},
		{float64(1.5), 0, false},
		{"a", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, err := command.Index(map[string]any{"index": tt.v})
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("Index(%v) = %d, %v", tt.v, got, err)
		}
	}
}

func TestIdentity(t *testing.T) {
	if got := command.Identity(nil); got != "" {
		t.Errorf("expected empty identity, got %q", got)
	}
	if got := command.Identity(map[string]any{"user": "kim"}); got != "kim" {
		t.Errorf("expected kim, got %q", got)
	}
	if got := command.Identity(map[string]any{"user_id": "sam", "user": "kim"}); got != "sam" {
		t.Errorf("user_id should win, got %q", got)
	}
	if got := command.Identity(map[string]any{"user_id": float64(42)}); got != "42" {
		t.Errorf("expected numeric user_id as 42, got %q", got)
	}
}
