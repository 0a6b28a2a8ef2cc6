package room

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/samber/lo"

	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

// PlaylistRow is one exported queue entry.
type PlaylistRow struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Source string `json:"src"`
}

var playlistHeader = []string{"Title", "Artist", "Source"}

// ExportPlaylist returns the queue as rows in queue order.
func (g *Gateway) ExportPlaylist() []PlaylistRow {
	return PlaylistRows(g.State().Tracks)
}

// PlaylistRows converts tracks into export rows. The source falls back to the
// external id when no playable reference is set.
func PlaylistRows(tracks []queue.Track) []PlaylistRow {
	return lo.Map(tracks, func(t queue.Track, _ int) PlaylistRow {
		src := t.SourceRef
		if src == "" {
			src = t.ExternalID
		}
		return PlaylistRow{Title: t.Title, Artist: t.Artist, Source: src}
	})
}

// WritePlaylistCSV writes rows as CSV with a Title,Artist,Source header.
func WritePlaylistCSV(w io.Writer, rows []PlaylistRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(playlistHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Title, r.Artist, r.Source}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
