package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
)

// export prints a room's persisted playlist without starting the server.
func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	id := cmd.String("room")
	if !snapshot.ValidRoomID(id) {
		return fmt.Errorf("%w: %q", snapshot.ErrInvalidRoom, id)
	}
	rec, err := snapshot.NewFileStore(cfg.Storage.SnapshotDir).Load(id)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.Root().Writer
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return room.WritePlaylistCSV(out, room.PlaylistRows(rec.Tracks))
}
