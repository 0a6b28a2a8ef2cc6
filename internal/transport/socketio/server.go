// Package socketio provides the Socket.io server for room clients.
package socketio

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
	"golang.org/x/time/rate"

	"github.com/edumarques81/stellar-rooms/internal/broadcast"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/transport/command"
)

// Outgoing event names.
const (
	EventRoomState   = "room_state"
	EventChatMessage = "chat_message"
	EventReaction    = "reaction"
	EventHistory     = "pushHistory"
	EventOutcome     = "outcome"
)

// Options configures the Socket.io server.
type Options struct {
	PingTimeout         time.Duration
	PingInterval        time.Duration
	CORSOrigin          string
	MaxConnectionsPerIP int
	ChatRate            float64
	ChatBurst           int
}

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	rooms    *room.Registry
	limiter  *ConnectionLimiter
	opts     Options
	mu       sync.RWMutex
	sessions map[string]*session
}

// session is one connected client and the room it observes.
// peer is the part of a Socket.io client a session talks to.
type peer interface {
	Emit(ev string, args ...any) error
	Disconnect(status bool) *socket.Socket
}

type session struct {
	id     string
	client peer
	chat   *rate.Limiter

	// joinMu serializes room switches and the final leave.
	joinMu sync.Mutex
	closed bool

	mu   sync.Mutex
	room *room.Gateway
	obs  *broadcast.Observer
}

// NewServer creates a new Socket.io server.
func NewServer(rooms *room.Registry, opts Options) (*Server, error) {
	if rooms == nil {
		return nil, errors.New("room registry is required")
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 60 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	if opts.ChatRate <= 0 {
		opts.ChatRate = 2
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}

	serverOpts := socket.DefaultServerOptions()
	serverOpts.SetPingTimeout(opts.PingTimeout)
	serverOpts.SetPingInterval(opts.PingInterval)
	serverOpts.SetCors(&types.Cors{
		Origin:      opts.CORSOrigin,
		Credentials: true,
	})

	s := &Server{
		io:       socket.NewServer(nil, serverOpts),
		rooms:    rooms,
		limiter:  NewConnectionLimiter(opts.MaxConnectionsPerIP),
		opts:     opts,
		sessions: make(map[string]*session),
	}

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		addr := client.Handshake().Address
		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		if evicted := s.limiter.TryAdd(clientID, addr); evicted != "" {
			log.Warn().Str("id", evicted).Str("addr", addr).Msg("Connection limit reached, evicting oldest client")
			s.disconnect(evicted)
		}

		sess := &session{
			id:     clientID,
			client: client,
			chat:   rate.NewLimiter(rate.Limit(s.opts.ChatRate), s.opts.ChatBurst),
		}
		s.mu.Lock()
		s.sessions[clientID] = sess
		s.mu.Unlock()

		s.join(sess, s.rooms.Default())

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.sessions, clientID)
			s.mu.Unlock()
			sess.close()
		})

		client.On("join_room", func(args ...any) {
			m := payload(args)
			id, _ := m["roomId"].(string)
			g, err := s.rooms.Get(id)
			if err != nil {
				log.Debug().Str("id", clientID).Str("room", id).Msg("join_room: unknown room")
				client.Emit(EventOutcome, map[string]any{"op": "join_room", "outcome": "notFound", "room": id})
				return
			}
			log.Debug().Str("id", clientID).Str("room", g.ID()).Msg("join_room")
			s.join(sess, g)
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			client.Emit(EventRoomState, sess.gateway().State())
		})

		client.On("getHistory", func(args ...any) {
			identity := command.Identity(payload(args))
			hist, err := sess.gateway().History(identity)
			if err != nil {
				log.Error().Err(err).Str("id", clientID).Msg("getHistory failed")
				return
			}
			client.Emit(EventHistory, map[string]any{"user_id": identity, "history": hist})
		})

		for _, op := range []string{
			command.AddToQueue, command.NextSong, command.PrevSong,
			command.Pause, command.Resume, command.Skip, command.End,
			command.PlayIndex, command.RemoveFromQueue,
		} {
			client.On(op, func(args ...any) {
				log.Debug().Str("id", clientID).Interface("data", args).Msg(op)
				res, err := command.Dispatch(sess.gateway(), op, payload(args))
				if err != nil {
					log.Error().Err(err).Str("id", clientID).Msg("Command failed")
					return
				}
				client.Emit(EventOutcome, res)
			})
		}

		client.On("chat_message", func(args ...any) {
			s.post(sess, broadcast.KindChat, payload(args), "message")
		})

		client.On("reaction", func(args ...any) {
			s.post(sess, broadcast.KindReaction, payload(args), "emoji")
		})
	})
}

// join moves the session to g, replacing any previous subscription.
// Concurrent joins are applied one after another; a closed session stays closed.
func (s *Server) join(sess *session, g *room.Gateway) {
	sess.joinMu.Lock()
	defer sess.joinMu.Unlock()
	if sess.closed {
		return
	}
	sess.leaveLocked()

	obs := g.Subscribe(sess.id)
	sess.mu.Lock()
	sess.room = g
	sess.obs = obs
	sess.mu.Unlock()

	go s.pump(sess, obs)
}

// pump forwards hub events until the observer closes. An observer closed by
// the hub rather than by join or leave has fallen behind; its client is
// disconnected so it can reconnect and resync.
func (s *Server) pump(sess *session, obs *broadcast.Observer) {
	for ev := range obs.Events() {
		name, data := emission(ev)
		sess.client.Emit(name, data)
	}

	sess.mu.Lock()
	dropped := sess.obs == obs
	if dropped {
		sess.obs = nil
	}
	sess.mu.Unlock()

	if dropped {
		log.Warn().Str("id", sess.id).Str("room", obs.Room).Msg("Client fell behind, disconnecting")
		sess.client.Disconnect(true)
	}
}

// post rate-limits and forwards a chat line or reaction.
func (s *Server) post(sess *session, kind broadcast.MessageKind, m map[string]any, field string) {
	if !sess.chat.Allow() {
		log.Debug().Str("id", sess.id).Msg("Chat rate limited")
		sess.client.Emit(EventOutcome, map[string]any{"op": string(kind), "outcome": "rateLimited"})
		return
	}
	body, _ := m[field].(string)
	if body == "" {
		return
	}
	from, _ := m["user"].(string)
	if from == "" {
		from = "Anonymous"
	}
	sess.gateway().Post(kind, from, body)
}

// disconnect closes the session with the given client id, if connected.
func (s *Server) disconnect(clientID string) {
	s.mu.RLock()
	sess, ok := s.sessions[clientID]
	s.mu.RUnlock()
	if ok {
		sess.client.Disconnect(true)
	}
}

// SessionCount returns the number of connected clients.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (sess *session) gateway() *room.Gateway {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.room
}

// close detaches the session for good.
func (sess *session) close() {
	sess.joinMu.Lock()
	defer sess.joinMu.Unlock()
	sess.closed = true
	sess.leaveLocked()
}

// leaveLocked drops the current subscription (must hold joinMu).
func (sess *session) leaveLocked() {
	sess.mu.Lock()
	g, obs := sess.room, sess.obs
	sess.obs = nil
	sess.mu.Unlock()

	if g != nil && obs != nil {
		g.Unsubscribe(sess.id)
	}
}

// emission maps a hub event to a Socket.io event name and payload.
func emission(ev broadcast.Event) (string, any) {
	switch ev.Type {
	case broadcast.EventChat:
		return EventChatMessage, ev.Message
	case broadcast.EventReaction:
		return EventReaction, ev.Message
	default:
		return EventRoomState, ev.State
	}
}

// payload returns the first argument as an object, or an empty map.
func payload(args []any) map[string]any {
	if len(args) > 0 {
		if m, ok := args[0].(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.io.Close(nil)
	return nil
}
