package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/logging"
	"github.com/conneroisu/chatmark/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second
)

// Client is one WebSocket connection joined to an activity room.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	room     string
	identity identity
	remoteIP string
	server   *Server
}

// delivery goes to every client in room, or only to client when set.
// Both kinds share one channel so a client sees frames in send order.
type delivery struct {
	room    string
	client  *Client
	payload []byte
}

// Hub owns room membership. Only the run goroutine touches rooms and closes
// client send channels.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	clients    atomic.Int64
	logger     logging.Logger
	metrics    *Metrics
}

func newHub(logger logging.Logger, metrics *Metrics) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 64),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Clients returns the number of connected clients across all rooms.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, members := range h.rooms {
				for client := range members {
					close(client.send)
				}
			}
			h.rooms = nil
			h.clients.Store(0)
			h.metrics.clients.Set(0)
			return

		case client := <-h.register:
			members, ok := h.rooms[client.room]
			if !ok {
				members = make(map[*Client]struct{})
				h.rooms[client.room] = members
			}
			members[client] = struct{}{}
			n := h.clients.Add(1)
			h.metrics.clients.Set(float64(n))
			h.logger.Debug(ctx, "Client joined", "room", client.room, "user", client.identity.ID, "total", n)

		case client := <-h.unregister:
			h.remove(ctx, client)

		case msg := <-h.deliver:
			if msg.client != nil {
				h.deliverTo(ctx, msg.client, msg.payload)
				continue
			}
			var slow []*Client
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.payload:
				default:
					slow = append(slow, client)
				}
			}
			for _, client := range slow {
				h.logger.Warn(ctx, nil, "Dropping slow client", "room", client.room, "user", client.identity.ID)
				h.remove(ctx, client)
			}
		}
	}
}

func (h *Hub) deliverTo(ctx context.Context, client *Client, payload []byte) {
	if _, ok := h.rooms[client.room][client]; !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.remove(ctx, client)
	}
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	members, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, ok := members[client]; !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, client.room)
	}
	close(client.send)
	n := h.clients.Add(-1)
	h.metrics.clients.Set(float64(n))
	h.logger.Debug(ctx, "Client left", "room", client.room, "user", client.identity.ID, "total", n)
}

// join blocks until the hub accepted the client. It returns false once the
// hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues payload for every client in room.
func (h *Hub) Broadcast(room string, payload []byte) {
	select {
	case h.deliver <- delivery{room: room, payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) sendTo(c *Client, payload []byte) {
	select {
	case h.deliver <- delivery{room: c.room, client: c, payload: payload}:
	case <-h.done:
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("activity")
	if err := validation.ValidateActivityID(room); err != nil {
		writeError(w, err)
		return
	}

	if !s.checkOrigin(r) {
		origin := r.Header.Get("Origin")
		s.fail(w, r, chaterrors.ErrInvalidOrigin(origin).
			WithContext("origin", origin).
			WithContext("room", room))
		return
	}

	// checkOrigin has already vetted the origin against our own allow list.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(s.config.Chat.MaxMessageBytes)

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, s.config.Chat.SendBuffer),
		room:     room,
		identity: identityFrom(r),
		remoteIP: getClientIP(r),
		server:   s,
	}

	if !s.hub.join(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump(s.ctx)
	client.readPump(s.ctx)
}

// checkOrigin validates the request origin for security
func (s *Server) checkOrigin(r *http.Request) bool {
	err := validation.ValidateOrigin(r.Header.Get("Origin"), originAllowList(r, s.security.AllowedOrigins))
	return err == nil
}

// readPump reads inbound frames until the connection fails or the server
// stops.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.server.hub.leave(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				c.server.logger.Debug(ctx, "WebSocket read ended", "error", err.Error(), "room", c.room)
			}
			return
		}
		if typ != websocket.MessageText {
			c.server.raiseAlert(ctx, c, chaterrors.NewValidationError(chaterrors.ErrCodeInvalidFrame, "binary frames are not supported"))
			continue
		}
		c.server.handleInbound(ctx, c, data)
	}
}

// writePump writes queued frames and pings. It exits when the hub closes
// the send channel.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusGoingAway, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.server.logger.Debug(ctx, "WebSocket write failed", "error", err.Error(), "room", c.room)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
