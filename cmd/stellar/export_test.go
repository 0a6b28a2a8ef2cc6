package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
)

func writeConfig(t *testing.T, snapshotDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[storage]\nsnapshot_dir = \"" + filepath.ToSlash(snapshotDir) + "\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	rec := snapshot.Record{Tracks: []queue.Track{
		{Title: "Song A", Artist: "Band", SourceRef: "https://cdn.example/a"},
		{Title: "Song B", Artist: "Band", ExternalID: "yt-b"},
	}}
	if err := snapshot.NewFileStore(dir).Save("party", rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	args := []string{"stellar", "export", "--config", writeConfig(t, dir), "--room", "party"}
	if err := app.Run(context.Background(), args); err != nil {
		t.Fatalf("export: %v", err)
	}

	want := "Title,Artist,Source\nSong A,Band,https://cdn.example/a\nSong B,Band,yt-b\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestExportRejectsUnsafeRoom(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	args := []string{"stellar", "export", "--config", writeConfig(t, t.TempDir()), "--room", "../etc"}
	if err := app.Run(context.Background(), args); err == nil {
		t.Error("expected error for unsafe room id")
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	if err := app.Run(context.Background(), []string{"stellar", "version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("Stellar Rooms v")) {
		t.Errorf("unexpected version output %q", buf.String())
	}
}
