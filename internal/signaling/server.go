// Package signaling implements the WebSocket signaling surface: room
// joins, opaque offer/answer/candidate relay between peers, and room chat.
//
// The relay never inspects signal payloads and never opens
// PeerConnections; media always flows directly between browsers.
package signaling

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxmeet/signaling-relay/internal/config"
	"github.com/voxmeet/signaling-relay/internal/httpserver"
	"github.com/voxmeet/signaling-relay/internal/metrics"
	"github.com/voxmeet/signaling-relay/internal/room"
)

type Config struct {
	Rooms    *room.Store
	Registry *room.Registry
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	AllowedOrigins []string

	IdleTimeout  time.Duration
	PingInterval time.Duration

	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	MaxChatMessageBytes  int
	SendQueueLength      int
}

// Server owns the live connection table. Routing a signal is a single map
// lookup by connection id; room fan-out walks the room's member snapshot
// and enqueues per target.
type Server struct {
	cfg      Config
	log      *slog.Logger
	rooms    *room.Store
	registry *room.Registry
	metrics  *metrics.Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

func NewServer(cfg Config) *Server {
	if cfg.Rooms == nil {
		cfg.Rooms = room.NewStore()
	}
	if cfg.Registry == nil {
		cfg.Registry = room.NewRegistry()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		rooms:    cfg.Rooms,
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		clients:  make(map[string]*client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return httpserver.OriginPermitted(r, cfg.AllowedOrigins)
		},
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.log.Debug("websocket upgrade rejected", "err", err, "remote_addr", r.RemoteAddr)
		return
	}

	id := s.registry.Register()
	c := newClient(id, s, conn)

	// Welcome goes into the queue before the client is routable, so it is
	// always the first event a client sees.
	c.enqueue(welcomeEvent{Type: messageTypeWelcome, ID: id})

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()

	s.metrics.Inc(metrics.EventConnectionOpened)
	c.log.Info("connection opened", "remote_addr", r.RemoteAddr)

	go c.writePump()
	c.readLoop()
}

// Close tears down every live connection. Used during shutdown.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}

// deliver enqueues an event for the connection with the given id. It
// reports false when no such connection is live.
func (s *Server) deliver(id string, v any) bool {
	s.mu.Lock()
	c := s.clients[id]
	s.mu.Unlock()
	if c == nil {
		return false
	}
	c.enqueue(v)
	return true
}

func (s *Server) handleJoin(c *client, msg clientMessage) {
	err := s.registry.AssignRoom(c.id, msg.Room, msg.Name)
	switch {
	case errors.Is(err, room.ErrAlreadyInRoom):
		c.enqueue(errorEvent{Type: messageTypeError, Code: "already_in_room", Message: "connection has already joined a room"})
		return
	case err != nil:
		// Connection is mid-teardown; nothing to do.
		return
	}

	self := room.Member{ID: c.id, Name: msg.Name}
	others, history := s.rooms.Join(msg.Room, self)
	if history == nil {
		history = []room.ChatMessage{}
	}

	c.enqueue(existingMembersEvent{Type: messageTypeExistingMembers, Members: others})
	c.enqueue(chatHistoryEvent{Type: messageTypeChatHistory, Messages: history})

	joined := memberJoinedEvent{Type: messageTypeMemberJoined, Member: self}
	for _, m := range others {
		s.deliver(m.ID, joined)
	}

	s.metrics.Inc(metrics.EventRoomJoined)
	c.log.Info("joined room", "room", msg.Room, "name", msg.Name, "peers", len(others))
}

func (s *Server) handleSignal(c *client, msg clientMessage) {
	event := signalEvent{Type: messageTypeSignal, Sender: c.id, Payload: msg.Payload}
	if !s.deliver(msg.Target, event) {
		// The target raced a disconnect; the sender will hear member_left.
		s.metrics.Inc(metrics.EventUnknownTarget)
		c.log.Debug("signal target not connected", "target", msg.Target)
		return
	}
	s.metrics.Inc(metrics.EventSignalRelayed)
}

func (s *Server) handleChat(c *client, msg clientMessage) {
	if len(msg.Text) > s.maxChatBytes() {
		s.metrics.Inc(metrics.EventChatTooLarge)
		c.enqueue(errorEvent{Type: messageTypeError, Code: "chat_too_large", Message: "chat text exceeds the size limit"})
		return
	}

	roomID, name, ok := s.registry.Membership(c.id)
	if !ok || roomID == "" {
		c.log.Debug("chat from connection outside a room")
		return
	}

	stored := room.ChatMessage{
		SenderID:   c.id,
		SenderName: name,
		Text:       msg.Text,
		Time:       time.Now().UTC(),
	}
	if !s.rooms.AppendChat(roomID, stored) {
		s.metrics.Inc(metrics.EventRoomGone)
		return
	}

	event := chatMessageEvent{Type: messageTypeChatMessage, Message: stored}
	for _, m := range s.rooms.Members(roomID) {
		s.deliver(m.ID, event)
	}
	s.metrics.Inc(metrics.EventChatRelayed)
}

// dropClient runs exactly the teardown a disconnect needs: unroute the
// connection, release its registry record, leave its room, and tell the
// remaining members. Safe against duplicate invocation.
func (s *Server) dropClient(c *client) {
	c.shutdown()

	s.mu.Lock()
	if cur, ok := s.clients[c.id]; ok && cur == c {
		delete(s.clients, c.id)
	}
	s.mu.Unlock()

	conn, ok := s.registry.Unregister(c.id)
	if !ok {
		return
	}
	s.metrics.Inc(metrics.EventConnectionClosed)
	c.log.Info("connection closed", "time_online", time.Since(conn.ConnectedAt).Round(time.Millisecond).String())

	if conn.RoomID == "" {
		return
	}
	remaining, deleted := s.rooms.Leave(conn.RoomID, c.id)
	left := memberLeftEvent{Type: messageTypeMemberLeft, ID: c.id}
	for _, m := range remaining {
		s.deliver(m.ID, left)
	}
	if deleted {
		s.log.Debug("room closed", "room", conn.RoomID)
	}
}

func (s *Server) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout > 0 {
		return s.cfg.IdleTimeout
	}
	return config.DefaultWSIdleTimeout
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.PingInterval > 0 {
		return s.cfg.PingInterval
	}
	return config.DefaultWSPingInterval
}

func (s *Server) maxMessageBytes() int64 {
	if s.cfg.MaxMessageBytes > 0 {
		return s.cfg.MaxMessageBytes
	}
	return config.DefaultMaxSignalingMessageBytes
}

func (s *Server) maxMessagesPerSecond() int {
	if s.cfg.MaxMessagesPerSecond > 0 {
		return s.cfg.MaxMessagesPerSecond
	}
	return config.DefaultMaxSignalingMessagesPerSecond
}

func (s *Server) maxChatBytes() int {
	if s.cfg.MaxChatMessageBytes > 0 {
		return s.cfg.MaxChatMessageBytes
	}
	return config.DefaultMaxChatMessageBytes
}

func (s *Server) sendQueueLength() int {
	if s.cfg.SendQueueLength > 0 {
		return s.cfg.SendQueueLength
	}
	return config.DefaultSendQueueLength
}
