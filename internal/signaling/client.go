package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxmeet/signaling-relay/internal/metrics"
	"github.com/voxmeet/signaling-relay/internal/ratelimit"
)

const wsWriteTimeout = 5 * time.Second

// client is one upgraded WebSocket connection. The read loop owns inbound
// traffic; a single writer goroutine drains the send queue so events for a
// connection are delivered in enqueue order. Nothing ever writes to the
// socket from another goroutine.
type client struct {
	id   string
	srv  *Server
	conn *websocket.Conn
	log  *slog.Logger

	limiter *ratelimit.TokenBucket

	send chan []byte

	closeOnce sync.Once
	quit      chan struct{}
}

func newClient(id string, srv *Server, conn *websocket.Conn) *client {
	return &client{
		id:      id,
		srv:     srv,
		conn:    conn,
		log:     srv.log.With("conn_id", id),
		limiter: ratelimit.NewTokenBucket(nil, int64(srv.maxMessagesPerSecond()), int64(srv.maxMessagesPerSecond())),
		send:    make(chan []byte, srv.sendQueueLength()),
		quit:    make(chan struct{}),
	}
}

// enqueue queues an outbound event, best effort. A slow consumer whose
// queue is full loses the event; the connection stays up and the drop is
// counted.
func (c *client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal outbound event", "err", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.srv.metrics.Inc(metrics.EventSendQueueFull)
		c.log.Warn("send queue full, dropping event")
	}
}

// shutdown starts teardown and unblocks both pumps. The socket itself is
// closed by the writer once the queue is flushed. Safe to call from any
// goroutine, any number of times.
func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.quit)
		// Interrupt a reader blocked in ReadMessage. Net deadlines are
		// safe to set concurrently with a pending read.
		_ = c.conn.SetReadDeadline(time.Now())
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.srv.pingInterval())
	defer func() {
		ticker.Stop()
		c.shutdown()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			c.flushQueue()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

// flushQueue drains events already queued at teardown so a final error
// event still reaches the client before the close frame.
func (c *client) flushQueue() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readLoop pulls inbound frames until the connection dies, then tears the
// session down. Malformed traffic is dropped without terminating the
// connection; only transport errors and rate-limit violations end it.
func (c *client) readLoop() {
	defer c.srv.dropClient(c)

	c.conn.SetReadLimit(c.srv.maxMessageBytes())
	_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.idleTimeout()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.srv.idleTimeout()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.idleTimeout()))

		if !c.limiter.Allow(1) {
			c.srv.metrics.Inc(metrics.EventRateLimited)
			c.log.Warn("message rate limit exceeded, closing connection")
			c.enqueue(errorEvent{Type: messageTypeError, Code: "rate_limited", Message: "message rate limit exceeded"})
			return
		}

		msg, err := parseClientMessage(data)
		if err != nil {
			c.srv.metrics.Inc(metrics.EventMalformedMessage)
			c.log.Debug("malformed message dropped", "err", err)
			continue
		}

		switch msg.Type {
		case messageTypeJoin:
			c.srv.handleJoin(c, msg)
		case messageTypeSignal:
			c.srv.handleSignal(c, msg)
		case messageTypeChat:
			c.srv.handleChat(c, msg)
		}
	}
}
