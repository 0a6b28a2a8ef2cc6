// Package snapshot persists room queues as JSON files.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

var (
	// ErrIO is returned when a snapshot cannot be written.
	ErrIO = errors.New("snapshot io error")
	// ErrMalformedSnapshot is returned by Load when stored data cannot be decoded.
	// The accompanying Record is always empty and usable.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrInvalidRoom is returned for room ids that are unsafe as file names.
	ErrInvalidRoom = errors.New("invalid room id")
)

const fileExt = ".json"

var safeRoomRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidRoomID reports whether id can be used as a room key.
func ValidRoomID(id string) bool {
	return safeRoomRe.MatchString(id)
}

// Record is the persisted form of a room queue.
// The pause flag is session state and is not stored.
type Record struct {
	Tracks  []queue.Track `json:"tracks"`
	Current int           `json:"current"`
}

// FileStore keeps one JSON file per room under dir.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created lazily.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(room string) string {
	return filepath.Join(s.dir, room+fileExt)
}

// Save writes rec atomically: temp file in the same directory, fsync, rename.
func (s *FileStore) Save(room string, rec Record) error {
	if !ValidRoomID(room) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}
	if rec.Tracks == nil {
		rec.Tracks = []queue.Track{}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrIO, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: create dir: %v", ErrIO, err)
	}

	tmp, err := os.CreateTemp(s.dir, room+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	if err := os.Rename(tmpName, s.path(room)); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename: %v", ErrIO, err)
	}

	log.Debug().Str("room", room).Int("tracks", len(rec.Tracks)).Msg("Snapshot saved")
	return nil
}

// Load reads the room snapshot. A missing file yields an empty record and no
// error; unreadable or malformed data yields an empty record and an error the
// caller may log, never a failed boot.
func (s *FileStore) Load(room string) (Record, error) {
	empty := Record{Tracks: []queue.Track{}}
	if !ValidRoomID(room) {
		return empty, fmt.Errorf("%w: %q", ErrInvalidRoom, room)
	}

	data, err := os.ReadFile(s.path(room))
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		log.Warn().Err(err).Str("room", room).Msg("Failed to read snapshot, starting empty")
		return empty, fmt.Errorf("%w: read: %v", ErrMalformedSnapshot, err)
	}

	rec, err := decode(data)
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("Discarding malformed snapshot")
		return empty, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	for i, t := range rec.Tracks {
		if err := t.ValidateMetadata(); err != nil {
			log.Warn().Err(err).Str("room", room).Int("index", i).Msg("Discarding snapshot with invalid track")
			return empty, fmt.Errorf("%w: track %d: %v", ErrMalformedSnapshot, i, err)
		}
	}

	log.Info().Str("room", room).Int("tracks", len(rec.Tracks)).Msg("Snapshot loaded")
	return rec, nil
}

// decode accepts the current object form and the legacy bare track array.
func decode(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	var rec Record

	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rec.Tracks); err != nil {
			return Record{}, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec); err != nil {
			return Record{}, err
		}
	}

	if rec.Tracks == nil {
		rec.Tracks = []queue.Track{}
	}
	return rec, nil
}

// Rooms lists room ids that have a snapshot on disk, sorted.
func (s *FileStore) Rooms() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list: %v", ErrIO, err)
	}

	var rooms []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ValidRoomID(id) {
			rooms = append(rooms, id)
		}
	}
	sort.Strings(rooms)
	return rooms, nil
}
