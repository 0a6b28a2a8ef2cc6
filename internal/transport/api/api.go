// Package api serves the room REST endpoints and the WebSocket observer feed.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-rooms/internal/broadcast"
	"github.com/edumarques81/stellar-rooms/internal/domain/history"
	"github.com/edumarques81/stellar-rooms/internal/domain/queue"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/infra/store"
	"github.com/edumarques81/stellar-rooms/internal/transport/command"
	"github.com/edumarques81/stellar-rooms/internal/version"
)

const maxBodyBytes = 64 << 10

// StoreStatus reports on the database backing history and favorites.
type StoreStatus interface {
	Ping() error
	SchemaVersion() (string, error)
	GetStats() (*store.Stats, error)
}

// Options configures a Handler.
type Options struct {
	// Store is reported by /health. Nil means no database is configured.
	Store StoreStatus

	// Chat limits for WebSocket clients.
	ChatRate  float64
	ChatBurst int
}

// Handler serves the HTTP API for every room.
type Handler struct {
	rooms *room.Registry
	opts  Options
}

// NewHandler creates a Handler over rooms.
func NewHandler(rooms *room.Registry, opts Options) *Handler {
	if opts.ChatRate <= 0 {
		opts.ChatRate = 2
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}
	return &Handler{rooms: rooms, opts: opts}
}

type roomHandler func(w http.ResponseWriter, r *http.Request, g *room.Gateway)

// Register mounts the API on mux. Room routes exist under /api/rooms/{room}
// and, for the default room, directly under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		method string
		path   string
		fn     roomHandler
	}{
		{http.MethodGet, "/queue", h.getQueue},
		{http.MethodPost, "/queue", h.postQueue},
		{http.MethodDelete, "/queue/{index}", h.removeAt},
		{http.MethodPost, "/next", h.mutation(command.NextSong, (*room.Gateway).Next)},
		{http.MethodPost, "/prev", h.mutation(command.PrevSong, (*room.Gateway).Prev)},
		{http.MethodPost, "/pause", h.mutation(command.Pause, (*room.Gateway).Pause)},
		{http.MethodPost, "/resume", h.mutation(command.Resume, (*room.Gateway).Resume)},
		{http.MethodPost, "/skip", h.skip},
		{http.MethodPost, "/end", h.end},
		{http.MethodPost, "/play/{index}", h.jumpTo},
		{http.MethodGet, "/playlist", h.playlist},
		{http.MethodGet, "/playlist/export", h.exportPlaylist},
		{http.MethodGet, "/history", h.history},
		{http.MethodGet, "/history/user", h.history},
		{http.MethodPost, "/history/clear", h.clearHistory},
		{http.MethodGet, "/fav", h.favorites},
		{http.MethodPost, "/fav", h.addFavorite},
		{http.MethodPost, "/chat", h.chat},
		{http.MethodGet, "/ws", h.stream},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.method+" /api/rooms/{room}"+rt.path, h.withRoom(rt.fn))
		mux.HandleFunc(rt.method+" /api"+rt.path, h.withRoom(rt.fn))
	}

	mux.HandleFunc("POST /api/rooms", h.createRoom)
	mux.HandleFunc("GET /api/rooms", h.listRooms)
	mux.HandleFunc("GET /api/rooms/{room}", h.withRoom(h.getRoom))
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetInfo())
	})
}

// withRoom resolves {room}; an absent path value selects the default room.
func (h *Handler) withRoom(fn roomHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := h.rooms.Get(r.PathValue("room"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		fn(w, r, g)
	}
}

// mutation adapts a no-argument gateway mutation.
func (h *Handler) mutation(op string, fn func(*room.Gateway) (queue.Snapshot, queue.Outcome)) roomHandler {
	return func(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
		snap, out := fn(g)
		writeResult(w, command.NewResult(op, snap, out))
	}
}

func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	writeJSON(w, http.StatusOK, g.State())
}

// trackBody accepts a bare track or one wrapped as {"song": {...}}.
type trackBody struct {
	queue.TrackPayload
	Song *queue.TrackPayload `json:"song"`
}

func (b trackBody) Track() (queue.Track, error) {
	if b.Song != nil {
		return b.Song.Track()
	}
	return b.TrackPayload.Track()
}

func (h *Handler) postQueue(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	var b trackBody
	if err := decodeBody(r, &b); err != nil {
		writeResult(w, command.NewResult(command.AddToQueue, g.State(), queue.OutcomeInvalid))
		return
	}
	t, err := b.Track()
	if err != nil {
		log.Debug().Err(err).Str("room", g.ID()).Msg("Rejected track payload")
		writeResult(w, command.NewResult(command.AddToQueue, g.State(), queue.OutcomeInvalid))
		return
	}
	snap, out := g.Enqueue(t)
	writeResult(w, command.NewResult(command.AddToQueue, snap, out))
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	snap, out := g.Skip(identity(r))
	writeResult(w, command.NewResult(command.Skip, snap, out))
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	snap, out := g.Clear(identity(r))
	writeResult(w, command.NewResult(command.End, snap, out))
}

func (h *Handler) jumpTo(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeResult(w, command.NewResult(command.PlayIndex, g.State(), queue.OutcomeOutOfRange))
		return
	}
	snap, out := g.JumpTo(i)
	writeResult(w, command.NewResult(command.PlayIndex, snap, out))
}

func (h *Handler) removeAt(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeResult(w, command.NewResult(command.RemoveFromQueue, g.State(), queue.OutcomeOutOfRange))
		return
	}
	snap, out := g.RemoveAt(i)
	writeResult(w, command.NewResult(command.RemoveFromQueue, snap, out))
}

func (h *Handler) playlist(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	writeJSON(w, http.StatusOK, g.ExportPlaylist())
}

func (h *Handler) exportPlaylist(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="playlist.csv"`)
	if err := room.WritePlaylistCSV(w, g.ExportPlaylist()); err != nil {
		log.Error().Err(err).Str("room", g.ID()).Msg("Playlist export failed")
	}
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	id := identity(r)
	hist, err := g.History(id)
	if err != nil {
		log.Error().Err(err).Str("room", g.ID()).Msg("History read failed")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": history.Identity(id), "history": hist})
}

func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	id := identity(r)
	if err := g.ClearHistory(id); err != nil {
		log.Error().Err(err).Str("room", g.ID()).Msg("History clear failed")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": history.Identity(id), "cleared": true})
}

func (h *Handler) favorites(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	favs, err := g.Favorites()
	if err != nil {
		log.Error().Err(err).Str("room", g.ID()).Msg("Favorites read failed")
		writeError(w, http.StatusInternalServerError, "favorites unavailable")
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

// addFavorite stores the posted track, or the current track when the body is empty.
func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	var b trackBody
	err := decodeBody(r, &b)
	switch {
	case errors.Is(err, io.EOF):
		t, added, ok, err := g.FavoriteCurrent()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "favorites unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "queue is empty")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"added": added, "track": t})
	case err != nil:
		writeError(w, http.StatusBadRequest, "malformed track payload")
	default:
		t, err := b.Track()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		added, err := g.AddFavorite(t)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "favorites unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"added": added, "track": t})
	}
}

type chatRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
	Emoji   string `json:"emoji"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed chat payload")
		return
	}
	if req.User == "" {
		req.User = "Anonymous"
	}
	var msg broadcast.Message
	switch {
	case req.Message != "":
		msg = g.Post(broadcast.KindChat, req.User, req.Message)
	case req.Emoji != "":
		msg = g.Post(broadcast.KindReaction, req.User, req.Emoji)
	default:
		writeError(w, http.StatusBadRequest, "message or emoji is required")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	g, err := h.rooms.Create()
	if err != nil {
		log.Error().Err(err).Msg("Room creation failed")
		writeError(w, http.StatusInternalServerError, "could not create room")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"room": g.ID(), "state": g.State()})
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": h.rooms.IDs()})
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	writeJSON(w, http.StatusOK, map[string]any{"room": g.ID(), "state": g.State()})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "rooms": len(h.rooms.IDs())}
	if h.opts.Store == nil {
		body["store"] = "memory"
		writeJSON(w, http.StatusOK, body)
		return
	}

	if err := h.opts.Store.Ping(); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "store": "unavailable"})
		return
	}
	info := map[string]any{}
	if v, err := h.opts.Store.SchemaVersion(); err == nil {
		info["schemaVersion"] = v
	} else {
		log.Warn().Err(err).Msg("Schema version unavailable")
	}
	if stats, err := h.opts.Store.GetStats(); err == nil {
		info["stats"] = stats
	} else {
		log.Warn().Err(err).Msg("Store stats unavailable")
	}
	body["store"] = info
	writeJSON(w, http.StatusOK, body)
}

// statusFor maps a mutation outcome to an HTTP status.
func statusFor(out queue.Outcome) int {
	switch out {
	case queue.OutcomeDuplicate:
		return http.StatusConflict
	case queue.OutcomeOutOfRange, queue.OutcomeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

func writeResult(w http.ResponseWriter, res command.Result) {
	writeJSON(w, statusFor(res.Outcome), res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Response write failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON body. An empty body yields io.EOF.
func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// identity reads user_id from the query, then from a JSON body. Absent means global.
func identity(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		return ""
	}
	return command.Identity(body)
}
