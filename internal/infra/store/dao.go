package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/edumarques81/stellar-rooms/internal/domain/favorites"
	"github.com/edumarques81/stellar-rooms/internal/domain/history"
	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
)

const trackColumns = "title, artist, external_id, album_art, source_ref, duration_label, requested_by"

func trackArgs(t queue.Track) []any {
	return []any{t.Title, t.Artist, t.ExternalID, t.AlbumArt, t.SourceRef, t.DurationLabel, t.RequestedBy}
}

func scanTracks(rows *sql.Rows) ([]queue.Track, error) {
	defer rows.Close()

	tracks := []queue.Track{}
	for rows.Next() {
		var t queue.Track
		var externalID, albumArt, sourceRef, duration, requestedBy sql.NullString
		if err := rows.Scan(&t.Title, &t.Artist, &externalID, &albumArt, &sourceRef, &duration, &requestedBy); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.ExternalID = externalID.String
		t.AlbumArt = albumArt.String
		t.SourceRef = sourceRef.String
		t.DurationLabel = duration.String
		t.RequestedBy = requestedBy.String
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// RoomHistory is a history.Ledger for one room.
type RoomHistory struct {
	db   *DB
	room string
}

var _ history.Ledger = (*RoomHistory)(nil)

// HistoryFor returns the ledger of room.
func (d *DB) HistoryFor(room string) *RoomHistory {
	return &RoomHistory{db: d, room: room}
}

// Append adds a track to identity's log.
func (h *RoomHistory) Append(identity string, track queue.Track) error {
	db, err := h.db.conn()
	if err != nil {
		return err
	}
	args := append([]any{h.room, history.Identity(identity)}, trackArgs(track)...)
	_, err = db.Exec(
		"INSERT INTO history_entries (room, identity, "+trackColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ReadAll returns identity's log in append order.
func (h *RoomHistory) ReadAll(identity string) ([]queue.Track, error) {
	db, err := h.db.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+trackColumns+" FROM history_entries WHERE room = ? AND identity = ? ORDER BY id",
		h.room, history.Identity(identity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanTracks(rows)
}

// Clear empties identity's log only.
func (h *RoomHistory) Clear(identity string) error {
	db, err := h.db.conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM history_entries WHERE room = ? AND identity = ?", h.room, history.Identity(identity)); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// RoomFavorites is a favorites.Store for one room.
type RoomFavorites struct {
	db   *DB
	room string
}

var _ favorites.Store = (*RoomFavorites)(nil)

// FavoritesFor returns the favorites store of room.
func (d *DB) FavoritesFor(room string) *RoomFavorites {
	return &RoomFavorites{db: d, room: room}
}

// Add stores track unless an equivalent one exists.
func (f *RoomFavorites) Add(track queue.Track) (bool, error) {
	db, err := f.db.conn()
	if err != nil {
		return false, err
	}
	args := append([]any{f.room, favorites.Key(track)}, trackArgs(track)...)
	_, err = db.Exec(
		"INSERT INTO favorites (room, fav_key, "+trackColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		args...,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return false, nil
		}
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}
	return true, nil
}

// List returns favorites in insertion order.
func (f *RoomFavorites) List() ([]queue.Track, error) {
	db, err := f.db.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+trackColumns+" FROM favorites WHERE room = ? ORDER BY rowid",
		f.room,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	return scanTracks(rows)
}
