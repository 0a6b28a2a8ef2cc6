// Package queue provides the room playback queue: tracks, cursor and pause state.
package queue

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidTrack is returned when a track payload fails validation.
var ErrInvalidTrack = errors.New("invalid track")

// Defaults applied to payloads that omit a title or artist.
const (
	UnknownTitle  = "Unknown"
	UnknownArtist = "Unknown"
)

// Track describes one playable item. It is immutable once enqueued.
type Track struct {
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	ExternalID    string `json:"video_id,omitempty"` // dedup key
	AlbumArt      string `json:"albumArt,omitempty"`
	SourceRef     string `json:"src"`
	DurationLabel string `json:"duration,omitempty"`
	RequestedBy   string `json:"requested_by,omitempty"`
}

// Validate checks the fixed track schema for a newly submitted track.
func (t Track) Validate() error {
	if err := t.ValidateMetadata(); err != nil {
		return err
	}
	if strings.TrimSpace(t.SourceRef) == "" && strings.TrimSpace(t.ExternalID) == "" {
		return fmt.Errorf("%w: src or video_id is required", ErrInvalidTrack)
	}
	return nil
}

// ValidateMetadata checks everything but the source reference. Persisted
// queues are checked with it: older queue files carry entries without a source.
func (t Track) ValidateMetadata() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTrack)
	}
	if strings.TrimSpace(t.Artist) == "" {
		return fmt.Errorf("%w: artist is required", ErrInvalidTrack)
	}
	if t.AlbumArt != "" {
		u, err := url.Parse(t.AlbumArt)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("%w: albumArt must be an absolute URI", ErrInvalidTrack)
		}
	}
	return nil
}

// Normalize returns a copy with surrounding whitespace trimmed from every field.
func (t Track) Normalize() Track {
	return Track{
		Title:         strings.TrimSpace(t.Title),
		Artist:        strings.TrimSpace(t.Artist),
		ExternalID:    strings.TrimSpace(t.ExternalID),
		AlbumArt:      strings.TrimSpace(t.AlbumArt),
		SourceRef:     strings.TrimSpace(t.SourceRef),
		DurationLabel: strings.TrimSpace(t.DurationLabel),
		RequestedBy:   strings.TrimSpace(t.RequestedBy),
	}
}

// SameSource reports whether two tracks share a non-empty dedup key.
func (t Track) SameSource(other Track) bool {
	id := strings.TrimSpace(t.ExternalID)
	return id != "" && id == strings.TrimSpace(other.ExternalID)
}

// TrackPayload is the inbound wire shape of a track.
// Both "video_id" and "external_id" are accepted for the dedup key.
type TrackPayload struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	VideoID     string `json:"video_id"`
	ExternalID  string `json:"external_id"`
	AlbumArt    string `json:"albumArt"`
	Src         string `json:"src"`
	Duration    string `json:"duration"`
	RequestedBy string `json:"requested_by"`
}

// Track normalises the payload and validates the result.
func (p TrackPayload) Track() (Track, error) {
	t := Track{
		Title:         p.Title,
		Artist:        p.Artist,
		ExternalID:    p.ExternalID,
		AlbumArt:      p.AlbumArt,
		SourceRef:     p.Src,
		DurationLabel: p.Duration,
		RequestedBy:   p.RequestedBy,
	}.Normalize()
	if t.ExternalID == "" {
		t.ExternalID = strings.TrimSpace(p.VideoID)
	}
	if t.Title == "" {
		t.Title = UnknownTitle
	}
	if t.Artist == "" {
		t.Artist = UnknownArtist
	}
	if err := t.Validate(); err != nil {
		return Track{}, err
	}
	return t, nil
}

// ParsePayload decodes an untyped transport payload (Socket.IO arguments).
// Non-string values are rejected rather than coerced.
func ParsePayload(m map[string]any) (TrackPayload, error) {
	var p TrackPayload
	fields := map[string]*string{
		"title":        &p.Title,
		"artist":       &p.Artist,
		"video_id":     &p.VideoID,
		"external_id":  &p.ExternalID,
		"albumArt":     &p.AlbumArt,
		"src":          &p.Src,
		"duration":     &p.Duration,
		"requested_by": &p.RequestedBy,
	}
	for key, dst := range fields {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return TrackPayload{}, fmt.Errorf("%w: field %q must be a string", ErrInvalidTrack, key)
		}
		*dst = s
	}
	return p, nil
}
