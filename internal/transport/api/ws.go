package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/edumarques81/stellar-rooms/internal/broadcast"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/transport/command"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is a client frame: a command name plus its arguments.
type wsRequest struct {
	Op   string         `json:"op"`
	Args map[string]any `json:"args"`
}

// wsReply is sent in response to a client frame.
type wsReply struct {
	Type   string          `json:"type"`
	Result *command.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// stream sends room events as JSON frames and accepts command frames.
// The first frame is always the room state.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, g *room.Gateway) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", g.ID()).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	observerID := "ws-" + uuid.New().String()
	obs := g.Subscribe(observerID)
	defer g.Unsubscribe(observerID)
	log.Info().Str("room", g.ID()).Str("observer", observerID).Msg("WebSocket observer connected")

	replies := make(chan wsReply, 8)
	done := make(chan struct{})
	go h.readCommands(conn, g, replies, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Info().Str("room", g.ID()).Str("observer", observerID).Msg("WebSocket observer disconnected")
			return
		case ev, ok := <-obs.Events():
			if !ok {
				log.Warn().Str("room", g.ID()).Str("observer", observerID).Msg("WebSocket observer dropped")
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "fell behind"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, ev); err != nil {
				return
			}
		case rep := <-replies:
			if err := writeFrame(conn, rep); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readCommands applies client frames until the connection fails. Replies go
// through the writer loop since a connection supports one concurrent writer.
func (h *Handler) readCommands(conn *websocket.Conn, g *room.Gateway, replies chan<- wsReply, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	chat := rate.NewLimiter(rate.Limit(h.opts.ChatRate), h.opts.ChatBurst)

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("room", g.ID()).Msg("WebSocket read failed")
			}
			return
		}
		if req.Args == nil {
			req.Args = map[string]any{}
		}

		var rep wsReply
		switch req.Op {
		case "chat_message", "reaction":
			rep = postMessage(g, chat, req)
		default:
			res, err := command.Dispatch(g, req.Op, req.Args)
			if err != nil {
				rep = wsReply{Type: "error", Error: err.Error()}
			} else {
				rep = wsReply{Type: "outcome", Result: &res}
			}
		}

		select {
		case replies <- rep:
		default:
			log.Debug().Str("room", g.ID()).Str("op", req.Op).Msg("Dropping reply, writer busy")
		}
	}
}

func postMessage(g *room.Gateway, chat *rate.Limiter, req wsRequest) wsReply {
	if !chat.Allow() {
		return wsReply{Type: "error", Error: "rate limited"}
	}
	kind, field := broadcast.KindChat, "message"
	if req.Op == "reaction" {
		kind, field = broadcast.KindReaction, "emoji"
	}
	body, _ := req.Args[field].(string)
	if body == "" {
		return wsReply{Type: "error", Error: field + " is required"}
	}
	from, _ := req.Args["user"].(string)
	if from == "" {
		from = "Anonymous"
	}
	g.Post(kind, from, body)
	return wsReply{Type: "posted"}
}
