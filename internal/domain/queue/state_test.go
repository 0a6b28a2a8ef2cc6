package queue_test

import (
	"testing"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

func track(id string) queue.Track {
	return queue.Track{Title: "Song " + id, Artist: "Artist", ExternalID: id, SourceRef: id + ".mp3"}
}

func filled(ids ...string) *queue.State {
	s := queue.NewState()
	for _, id := range ids {
		s.Enqueue(track(id))
	}
	return s
}

func TestNewStateIsEmpty(t *testing.T) {
	snap := queue.NewState().Snapshot()

	if len(snap.Tracks) != 0 {
		t.Errorf("expected empty queue, got %d tracks", len(snap.Tracks))
	}
	if snap.CurrentIndex != 0 {
		t.Errorf("expected current 0, got %d", snap.CurrentIndex)
	}
	if snap.Paused {
		t.Error("expected paused to be false")
	}
	if snap.Tracks == nil {
		t.Error("expected non-nil track slice so JSON renders []")
	}
}

func TestEnqueueMovesCursorToNewTrack(t *testing.T) {
	s := filled("a", "b")
	s.JumpTo(0)

	if out := s.Enqueue(track("c")); out != queue.OutcomeApplied {
		t.Fatalf("expected applied, got %s", out)
	}
	if got := s.Snapshot().CurrentIndex; got != 2 {
		t.Errorf("expected current 2, got %d", got)
	}
}

func TestEnqueueRejectsDuplicateExternalID(t *testing.T) {
	s := filled("a", "b")

	if out := s.Enqueue(track("a")); out != queue.OutcomeDuplicate {
		t.Errorf("expected duplicate, got %s", out)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 tracks, got %d", s.Len())
	}
	if got := s.Snapshot().CurrentIndex; got != 1 {
		t.Errorf("duplicate must not move the cursor, got %d", got)
	}
}

func TestEnqueueTrimsDedupKey(t *testing.T) {
	s := filled("a")

	padded := track("a")
	padded.ExternalID = " a\t"
	if out := s.Enqueue(padded); out != queue.OutcomeDuplicate {
		t.Errorf("expected duplicate for padded id, got %s", out)
	}

	fresh := queue.Track{Title: " Song b ", Artist: "Artist", ExternalID: " b ", SourceRef: "b.mp3"}
	if out := s.Enqueue(fresh); out != queue.OutcomeApplied {
		t.Fatalf("expected applied, got %s", out)
	}
	stored := s.Snapshot().Tracks[1]
	if stored.ExternalID != "b" || stored.Title != "Song b" {
		t.Errorf("expected stored track to be trimmed, got %+v", stored)
	}
	if out := s.Enqueue(track("b")); out != queue.OutcomeDuplicate {
		t.Errorf("expected duplicate against trimmed key, got %s", out)
	}
}

func TestEnqueueAllowsRepeatsWithoutExternalID(t *testing.T) {
	s := queue.NewState()
	t1 := queue.Track{Title: "Local", Artist: "Me", SourceRef: "local.mp3"}

	s.Enqueue(t1)
	if out := s.Enqueue(t1); out != queue.OutcomeApplied {
		t.Errorf("expected applied for track without dedup key, got %s", out)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 tracks, got %d", s.Len())
	}
}

func TestNextPrevWrapAround(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		op       func(*queue.State) queue.Outcome
		expected int
	}{
		{"next from middle", 1, (*queue.State).Next, 2},
		{"next from last wraps", 2, (*queue.State).Next, 0},
		{"prev from middle", 1, (*queue.State).Prev, 0},
		{"prev from first wraps", 0, (*queue.State).Prev, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := filled("a", "b", "c")
			s.JumpTo(tt.start)

			if out := tt.op(s); out != queue.OutcomeApplied {
				t.Fatalf("expected applied, got %s", out)
			}
			if got := s.Snapshot().CurrentIndex; got != tt.expected {
				t.Errorf("expected current %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestNavigationOnEmptyQueue(t *testing.T) {
	s := queue.NewState()

	if out := s.Next(); out != queue.OutcomeEmpty {
		t.Errorf("Next: expected empty, got %s", out)
	}
	if out := s.Prev(); out != queue.OutcomeEmpty {
		t.Errorf("Prev: expected empty, got %s", out)
	}
	if _, out := s.Skip(); out != queue.OutcomeEmpty {
		t.Errorf("Skip: expected empty, got %s", out)
	}
}

func TestCursorStaysInBoundsUnderRotation(t *testing.T) {
	s := filled("a", "b", "c")
	ops := []func(*queue.State) queue.Outcome{
		(*queue.State).Next, (*queue.State).Next, (*queue.State).Next, (*queue.State).Next,
		(*queue.State).Prev, (*queue.State).Prev, (*queue.State).Prev, (*queue.State).Prev, (*queue.State).Prev,
	}

	for i, op := range ops {
		op(s)
		snap := s.Snapshot()
		if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(snap.Tracks) {
			t.Fatalf("step %d: current %d out of bounds for %d tracks", i, snap.CurrentIndex, len(snap.Tracks))
		}
	}
}

func TestSetPaused(t *testing.T) {
	s := queue.NewState()

	s.SetPaused(true)
	if !s.Snapshot().Paused {
		t.Error("expected paused to be true on empty queue")
	}

	s.SetPaused(false)
	if s.Snapshot().Paused {
		t.Error("expected paused to be false")
	}
}

func TestClearResetsEverything(t *testing.T) {
	s := filled("a", "b", "c")
	s.SetPaused(true)

	drained := s.Clear()

	if len(drained) != 3 {
		t.Fatalf("expected 3 drained tracks, got %d", len(drained))
	}
	if drained[0].ExternalID != "a" || drained[2].ExternalID != "c" {
		t.Errorf("drained tracks out of order: %v", drained)
	}
	snap := s.Snapshot()
	if len(snap.Tracks) != 0 || snap.CurrentIndex != 0 || snap.Paused {
		t.Errorf("expected empty unpaused queue at 0, got %+v", snap)
	}
}

func TestJumpTo(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		outcome  queue.Outcome
		expected int
	}{
		{"first", 0, queue.OutcomeApplied, 0},
		{"last", 2, queue.OutcomeApplied, 2},
		{"past end", 5, queue.OutcomeOutOfRange, 1},
		{"exactly len", 3, queue.OutcomeOutOfRange, 1},
		{"negative", -1, queue.OutcomeOutOfRange, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := filled("a", "b", "c")
			s.JumpTo(1)

			if out := s.JumpTo(tt.index); out != tt.outcome {
				t.Errorf("expected %s, got %s", tt.outcome, out)
			}
			if got := s.Snapshot().CurrentIndex; got != tt.expected {
				t.Errorf("expected current %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestSkipKeepsTrackAndAdvances(t *testing.T) {
	s := filled("a", "b", "c")
	s.JumpTo(2)

	played, out := s.Skip()

	if out != queue.OutcomeApplied {
		t.Fatalf("expected applied, got %s", out)
	}
	if played.ExternalID != "c" {
		t.Errorf("expected skipped track c, got %s", played.ExternalID)
	}
	if s.Len() != 3 {
		t.Errorf("skip must keep the track in the list, got %d tracks", s.Len())
	}
	if got := s.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("expected cursor to wrap to 0, got %d", got)
	}
}

func TestRemoveAt(t *testing.T) {
	tests := []struct {
		name     string
		cursor   int
		index    int
		outcome  queue.Outcome
		expected int
		length   int
	}{
		{"before cursor keeps same track", 2, 0, queue.OutcomeApplied, 1, 2},
		{"after cursor", 0, 2, queue.OutcomeApplied, 0, 2},
		{"at last cursor clamps", 2, 2, queue.OutcomeApplied, 1, 2},
		{"out of range", 1, 3, queue.OutcomeOutOfRange, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := filled("a", "b", "c")
			s.JumpTo(tt.cursor)

			_, out := s.RemoveAt(tt.index)
			if out != tt.outcome {
				t.Errorf("expected %s, got %s", tt.outcome, out)
			}
			snap := s.Snapshot()
			if snap.CurrentIndex != tt.expected {
				t.Errorf("expected current %d, got %d", tt.expected, snap.CurrentIndex)
			}
			if len(snap.Tracks) != tt.length {
				t.Errorf("expected %d tracks, got %d", tt.length, len(snap.Tracks))
			}
		})
	}
}

func TestRemoveLastTrackResetsCursor(t *testing.T) {
	s := filled("a")

	s.RemoveAt(0)
	if got := s.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("expected current 0, got %d", got)
	}
}

func TestRestoreClampsCursor(t *testing.T) {
	s := queue.NewState()
	s.Restore([]queue.Track{track("a"), track("b")}, 7)

	if got := s.Snapshot().CurrentIndex; got != 1 {
		t.Errorf("expected clamped current 1, got %d", got)
	}

	s.Restore(nil, 3)
	snap := s.Snapshot()
	if snap.CurrentIndex != 0 || snap.Tracks == nil {
		t.Errorf("expected empty non-nil queue at 0, got %+v", snap)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := filled("a")
	snap := s.Snapshot()

	s.Enqueue(track("b"))
	if len(snap.Tracks) != 1 {
		t.Errorf("snapshot must not observe later mutations, got %d tracks", len(snap.Tracks))
	}

	cur, ok := snap.Current()
	if !ok || cur.ExternalID != "a" {
		t.Errorf("expected current track a, got %+v (ok=%v)", cur, ok)
	}
}
