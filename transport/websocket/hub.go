package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Pending hub operations before callers block.
	commandBuffer = 1024
)

// Handler receives decoded client events. HandleEvent calls for a single
// connection are made sequentially from that connection's read loop, and
// HandleDisconnect is called exactly once, after the last HandleEvent.
type Handler interface {
	HandleEvent(ctx context.Context, connID string, msg *Inbound)
	HandleDisconnect(ctx context.Context, connID string)
}

// Config tunes a Hub.
type Config struct {
	// SendBuffer is the number of outbound messages queued per client
	// before the client is dropped as too slow.
	SendBuffer int

	// MaxMessageSize is the largest inbound message accepted, in bytes.
	MaxMessageSize int64

	// AllowedOrigins lists permitted Origin headers. Empty or "*" allows all.
	AllowedOrigins []string

	Logger *slog.Logger
}

// Defaults used by NewHub.
const (
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 1_000_000
)

// DefaultConfig returns the settings used by NewHub.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     DefaultSendBuffer,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

// Hub maintains the set of active clients and their room subscriptions.
//
// All hub state is owned by the Run goroutine. Every exported method only
// enqueues an operation, and operations are applied in the order they were
// enqueued.
type Hub struct {
	// Registered clients by connection ID
	clients map[string]*Client

	// Subscribed clients by room
	rooms map[string]map[*Client]bool

	// Pending operations, applied in order by Run
	commands chan func()

	// Closed when Run returns
	done chan struct{}

	upgrader websocket.Upgrader
	config   Config
	logger   *slog.Logger
}

// NewHub creates a new WebSocket hub with DefaultConfig.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultConfig())
}

// NewHubWithConfig creates a new WebSocket hub. Zero fields of cfg take
// their DefaultConfig values.
func NewHubWithConfig(cfg Config) *Hub {
	defaults := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[*Client]bool),
		commands: make(chan func(), commandBuffer),
		done:     make(chan struct{}),
		config:   cfg,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run starts the hub's event loop and blocks until ctx is done. On return
// every client connection is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case cmd := <-h.commands:
			cmd()

		case <-ctx.Done():
			for _, client := range h.clients {
				h.unregisterClient(client)
			}
			return
		}
	}
}

// ServeWS upgrades the request to a WebSocket connection, assigns it a new
// connection ID and starts its pumps. Decoded events go to handler.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, handler Handler) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, h.config.SendBuffer),
		rooms:   make(map[string]bool),
		handler: handler,
	}

	h.enqueue(func() { h.registerClient(client) })

	// The request context ends when ServeWS returns; handlers outlive it.
	ctx := context.WithoutCancel(r.Context())
	go client.writePump()
	go client.readPump(ctx)
}

// Send delivers one message to a single connection.
func (h *Hub) Send(connID, event string, payload any) {
	h.enqueue(func() {
		if client, ok := h.clients[connID]; ok {
			h.deliver(client, &Outbound{Event: event, Data: payload})
		}
	})
}

// Ack answers an inbound message that carried an ack ID.
func (h *Hub) Ack(connID string, ack int64, payload any) {
	h.enqueue(func() {
		if client, ok := h.clients[connID]; ok {
			h.deliver(client, &Outbound{Event: EventAck, Ack: &ack, Data: payload})
		}
	})
}

// Broadcast sends an event to all clients subscribed to room. render builds
// each recipient's payload.
func (h *Hub) Broadcast(room, event string, render func(connID string) any) {
	h.enqueue(func() { h.broadcastMessage(room, event, render) })
}

// Subscribe adds a connection to a room's fan-out set.
func (h *Hub) Subscribe(connID, room string) {
	h.enqueue(func() { h.subscribeClient(connID, room) })
}

// Unsubscribe removes a connection from a room's fan-out set.
func (h *Hub) Unsubscribe(connID, room string) {
	h.enqueue(func() { h.unsubscribeClient(connID, room) })
}

// Stats reports the number of connected clients and subscribed rooms.
func (h *Hub) Stats() (clients, rooms int) {
	result := make(chan [2]int, 1)
	h.enqueue(func() { result <- [2]int{len(h.clients), len(h.rooms)} })

	select {
	case r := <-result:
		return r[0], r[1]
	case <-h.done:
		return 0, 0
	}
}

// enqueue schedules cmd on the Run goroutine. It is dropped once Run has
// returned.
func (h *Hub) enqueue(cmd func()) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// registerClient adds a client and tells it its connection ID
func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	h.deliver(client, &Outbound{Event: EventConnected, Data: Connected{ID: client.id}})

	h.logger.Debug("client registered", "conn", client.id, "clients", len(h.clients))
}

// unregisterClient removes a client from the hub and all of its rooms
func (h *Hub) unregisterClient(client *Client) {
	if h.clients[client.id] != client {
		return
	}
	delete(h.clients, client.id)

	for room := range client.rooms {
		h.removeFromRoom(client, room)
	}
	close(client.send)

	h.logger.Debug("client unregistered", "conn", client.id, "clients", len(h.clients))
}

func (h *Hub) subscribeClient(connID, room string) {
	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
}

func (h *Hub) unsubscribeClient(connID, room string) {
	if client, ok := h.clients[connID]; ok {
		h.removeFromRoom(client, room)
	}
}

func (h *Hub) removeFromRoom(client *Client, room string) {
	delete(client.rooms, room)
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

// broadcastMessage renders and sends a message to all clients in a room
func (h *Hub) broadcastMessage(room, event string, render func(connID string) any) {
	for client := range h.rooms[room] {
		var payload any
		if render != nil {
			payload = render(client.id)
		}
		h.deliver(client, &Outbound{Event: event, Data: payload})
	}
}

// deliver queues msg for client without blocking. A client whose queue is
// full is dropped; closing its send channel ends the connection, which in
// turn triggers its disconnect handling.
func (h *Hub) deliver(client *Client, msg *Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "event", msg.Event, "error", err)
		return
	}

	select {
	case client.send <- data:
	default:
		h.logger.Warn("dropping slow client", "conn", client.id)
		h.unregisterClient(client)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origins := h.config.AllowedOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(origins, origin)
}
