package queue

import "slices"

// State is the mutable queue of one room.
// It is not safe for concurrent use; the room gateway owns it exclusively.
//
// Invariant: 0 <= current < len(tracks) when tracks is non-empty, current == 0 otherwise.
type State struct {
	tracks  []Track
	current int
	paused  bool
}

// NewState creates an empty queue.
func NewState() *State {
	return &State{tracks: []Track{}}
}

// Restore seeds the queue from persisted data, clamping the cursor into range.
func (s *State) Restore(tracks []Track, current int) {
	s.tracks = slices.Clone(tracks)
	if s.tracks == nil {
		s.tracks = []Track{}
	}
	s.paused = false
	s.current = clampIndex(current, len(s.tracks))
}

// Len returns the number of queued tracks.
func (s *State) Len() int {
	return len(s.tracks)
}

// Enqueue appends a track and moves the cursor onto it.
// A track whose non-empty ExternalID is already queued is rejected as a duplicate.
// The track is stored normalized, so the dedup key ignores surrounding whitespace.
func (s *State) Enqueue(t Track) Outcome {
	t = t.Normalize()
	if t.ExternalID != "" {
		for _, existing := range s.tracks {
			if existing.SameSource(t) {
				return OutcomeDuplicate
			}
		}
	}
	s.tracks = append(s.tracks, t)
	s.current = len(s.tracks) - 1
	return OutcomeApplied
}

// Next rotates the cursor forward, wrapping from the last track to the first.
func (s *State) Next() Outcome {
	if len(s.tracks) == 0 {
		return OutcomeEmpty
	}
	s.current = (s.current + 1) % len(s.tracks)
	return OutcomeApplied
}

// Prev rotates the cursor backward, wrapping from the first track to the last.
func (s *State) Prev() Outcome {
	if len(s.tracks) == 0 {
		return OutcomeEmpty
	}
	s.current = (s.current - 1 + len(s.tracks)) % len(s.tracks)
	return OutcomeApplied
}

// SetPaused sets the pause flag unconditionally.
func (s *State) SetPaused(paused bool) Outcome {
	s.paused = paused
	return OutcomeApplied
}

// Clear empties the queue and returns the drained tracks in queue order.
func (s *State) Clear() []Track {
	drained := s.tracks
	s.tracks = []Track{}
	s.current = 0
	s.paused = false
	return drained
}

// JumpTo moves the cursor to index when it is in range.
func (s *State) JumpTo(index int) Outcome {
	if index < 0 || index >= len(s.tracks) {
		return OutcomeOutOfRange
	}
	s.current = index
	return OutcomeApplied
}

// Skip returns the track under the cursor and advances the cursor.
// The skipped track stays in the list and replays after a full rotation.
func (s *State) Skip() (Track, Outcome) {
	if len(s.tracks) == 0 {
		return Track{}, OutcomeEmpty
	}
	played := s.tracks[s.current]
	s.current = (s.current + 1) % len(s.tracks)
	return played, OutcomeApplied
}

// RemoveAt deletes the track at index. The cursor keeps pointing at the same
// track when an earlier entry is removed and clamps to the new end otherwise.
func (s *State) RemoveAt(index int) (Track, Outcome) {
	if index < 0 || index >= len(s.tracks) {
		return Track{}, OutcomeOutOfRange
	}
	removed := s.tracks[index]
	s.tracks = slices.Delete(s.tracks, index, index+1)
	if index < s.current {
		s.current--
	}
	s.current = clampIndex(s.current, len(s.tracks))
	return removed, OutcomeApplied
}

// Snapshot returns an immutable copy of the queue.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Tracks:       slices.Clone(s.tracks),
		CurrentIndex: s.current,
		Paused:       s.paused,
	}
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Snapshot is a point-in-time copy of a room queue.
type Snapshot struct {
	Tracks       []Track `json:"queue"`
	CurrentIndex int     `json:"current"`
	Paused       bool    `json:"is_paused"`
}

// Current returns the track under the cursor.
func (s Snapshot) Current() (Track, bool) {
	if len(s.Tracks) == 0 {
		return Track{}, false
	}
	return s.Tracks[s.CurrentIndex], true
}
