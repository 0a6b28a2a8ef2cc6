package snapshot_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
)

func sampleTracks() []queue.Track {
	return []queue.Track{
		{Title: "Mann Mera", Artist: "Gajendra Verma", ExternalID: "a1", SourceRef: "mann-mera.mp3"},
		{
			Title:         "Shape of You",
			Artist:        "Ed Sheeran",
			ExternalID:    "b2",
			AlbumArt:      "https://i.ytimg.com/vi/b2/hqdefault.jpg",
			SourceRef:     "https://example.com/b2.m4a",
			DurationLabel: "3:54",
			RequestedBy:   "sam",
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  snapshot.Record
	}{
		{"empty", snapshot.Record{Tracks: []queue.Track{}}},
		{"two tracks", snapshot.Record{Tracks: sampleTracks(), Current: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := snapshot.NewFileStore(t.TempDir())

			if err := store.Save("global", tt.rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := store.Load("global")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.rec) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tt.rec)
			}
		})
	}
}

func TestSaveNilTracksLoadsEmpty(t *testing.T) {
	store := snapshot.NewFileStore(t.TempDir())
	if err := store.Save("global", snapshot.Record{}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, _ := store.Load("global")
	if got.Tracks == nil || len(got.Tracks) != 0 {
		t.Errorf("expected empty non-nil tracks, got %v", got.Tracks)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := snapshot.NewFileStore(filepath.Join(t.TempDir(), "does-not-exist"))

	got, err := store.Load("global")
	if err != nil {
		t.Errorf("missing snapshot should not error, got %v", err)
	}
	if len(got.Tracks) != 0 {
		t.Errorf("expected no tracks, got %d", len(got.Tracks))
	}
}

func TestLoadMalformedIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "{not json"},
		{"truncated", `{"tracks": [{"title": "A"`},
		{"empty file", ""},
		{"wrong types", `{"tracks": "nope"}`},
		{"invalid track", `{"tracks": [{"title": "", "artist": "B", "src": "x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "global.json"), []byte(tt.content), 0644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			got, err := snapshot.NewFileStore(dir).Load("global")
			if !errors.Is(err, snapshot.ErrMalformedSnapshot) {
				t.Errorf("expected ErrMalformedSnapshot, got %v", err)
			}
			if got.Tracks == nil || len(got.Tracks) != 0 {
				t.Errorf("expected empty usable record, got %+v", got)
			}
		})
	}
}

func TestLoadLegacyArray(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"title": "Blinding Lights", "artist": "The Weeknd", "video_id": "x", "albumArt": "", "src": ""}]`
	if err := os.WriteFile(filepath.Join(dir, "global.json"), []byte(legacy), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := snapshot.NewFileStore(dir).Load("global")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Tracks) != 1 || got.Tracks[0].ExternalID != "x" {
		t.Errorf("unexpected legacy decode: %+v", got)
	}
}

func TestLoadLegacySeedQueue(t *testing.T) {
	dir := t.TempDir()
	legacy := `[
		{"title": "Mann Mera", "artist": "Gajendra Verma", "albumArt": "", "src": ""},
		{"title": "Tum Hi Ho", "artist": "Arijit Singh", "albumArt": "", "src": ""},
		{"title": "Song X", "artist": "Y", "video_id": "abc", "src": ""}
	]`
	if err := os.WriteFile(filepath.Join(dir, "global.json"), []byte(legacy), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	store := snapshot.NewFileStore(dir)

	got, err := store.Load("global")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Tracks) != 3 || got.Tracks[0].Title != "Mann Mera" || got.Tracks[2].ExternalID != "abc" {
		t.Fatalf("unexpected legacy decode: %+v", got)
	}

	if err := store.Save("global", got); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again, err := store.Load("global")
	if err != nil {
		t.Fatalf("reload after migration failed: %v", err)
	}
	if !reflect.DeepEqual(again, got) {
		t.Errorf("migrated snapshot mismatch:\n got %+v\nwant %+v", again, got)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.NewFileStore(dir)

	for i := 0; i < 3; i++ {
		if err := store.Save("global", snapshot.Record{Tracks: sampleTracks()}); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "global.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only global.json, got %v", names)
	}
}

func TestSaveFailsOnUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	err := snapshot.NewFileStore(filepath.Join(blocker, "rooms")).Save("global", snapshot.Record{})
	if !errors.Is(err, snapshot.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestRejectsUnsafeRoomID(t *testing.T) {
	store := snapshot.NewFileStore(t.TempDir())

	if err := store.Save("../escape", snapshot.Record{}); !errors.Is(err, snapshot.ErrInvalidRoom) {
		t.Errorf("expected ErrInvalidRoom, got %v", err)
	}
	if _, err := store.Load("a/b"); !errors.Is(err, snapshot.ErrInvalidRoom) {
		t.Errorf("expected ErrInvalidRoom, got %v", err)
	}
}

func TestRooms(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.NewFileStore(dir)
	store.Save("zeta", snapshot.Record{})
	store.Save("global", snapshot.Record{})
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	rooms, err := store.Rooms()
	if err != nil {
		t.Fatalf("Rooms failed: %v", err)
	}
	if !reflect.DeepEqual(rooms, []string{"global", "zeta"}) {
		t.Errorf("unexpected rooms: %v", rooms)
	}
}
