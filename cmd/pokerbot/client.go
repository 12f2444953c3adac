package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned for calls on a closed connection.
var ErrClosed = errors.New("connection closed")

// Message is a server message.
type Message struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Participant mirrors the server's participant.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomView mirrors the room state the server broadcasts.
type RoomView struct {
	Code         string            `json:"code"`
	Participants []Participant     `json:"participants"`
	Votes        map[string]string `json:"votes"`
	Scale        string            `json:"scale"`
	Revealed     bool              `json:"revealed"`
}

// Client is a planning poker WebSocket client.
type Client struct {
	conn *websocket.Conn
	id   string

	writeMu sync.Mutex
	mu      sync.Mutex
	nextAck int64
	pending map[int64]chan json.RawMessage

	events chan Message
	done   chan struct{}
	err    error
}

// socketURL turns a server base URL into its WebSocket endpoint.
func socketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/socket"
	}
	return u.String(), nil
}

// Dial connects to the server at base and waits for its connection ID.
func Dial(ctx context.Context, base string) (*Client, error) {
	wsURL, err := socketURL(base)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	var hello Message
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil || hello.Event != "connected" {
		conn.Close()
		return nil, fmt.Errorf("handshake: expected connected event, got %q: %v", hello.Event, err)
	}
	conn.SetReadDeadline(time.Time{})

	var connected struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(hello.Data, &connected); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	c := &Client{
		conn:    conn,
		id:      connected.ID,
		pending: make(map[int64]chan json.RawMessage),
		events:  make(chan Message, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// ID returns the connection ID the server assigned.
func (c *Client) ID() string { return c.id }

// Events returns server events other than acks. It is closed when the
// connection ends. Events are dropped while its buffer is full.
func (c *Client) Events() <-chan Message { return c.events }

// Emit sends an event without waiting for a reply.
func (c *Client) Emit(event string, data any) error {
	return c.write(map[string]any{"event": event, "data": data})
}

// Call sends an event and waits for its ack, decoding the ack data into
// result when it is non-nil.
func (c *Client) Call(ctx context.Context, event string, data, result any) error {
	reply := make(chan json.RawMessage, 1)

	c.mu.Lock()
	c.nextAck++
	id := c.nextAck
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(map[string]any{"event": event, "ack": id, "data": data}); err != nil {
		return err
	}

	select {
	case raw := <-reply:
		if result == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, result)
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateRoom creates a room and returns its code.
func (c *Client) CreateRoom(ctx context.Context, name string) (string, error) {
	var code string
	if err := c.Call(ctx, "create-room", map[string]string{"userName": name}, &code); err != nil {
		return "", err
	}
	if code == "" {
		return "", errors.New("server did not create a room")
	}
	return code, nil
}

// JoinRoom joins an existing room.
func (c *Client) JoinRoom(ctx context.Context, code, name string) (*RoomView, error) {
	var resp struct {
		Success bool      `json:"success"`
		Room    *RoomView `json:"room"`
	}
	if err := c.Call(ctx, "join-room", map[string]string{"code": code, "userName": name}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("room %s not found", code)
	}
	return resp.Room, nil
}

// Vote casts value in the room. An empty value withdraws the vote.
func (c *Client) Vote(code, value string) error {
	data := map[string]any{"code": code, "userId": c.id, "value": nil}
	if value != "" {
		data["value"] = value
	}
	return c.Emit("vote", data)
}

// Reveal reveals the votes in the room.
func (c *Client) Reveal(code string) error {
	return c.Emit("reveal-votes", map[string]string{"code": code})
}

// Leave leaves the room.
func (c *Client) Leave(code string) error {
	return c.Emit("leave-room", map[string]string{"code": code, "userId": c.id})
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

func (c *Client) write(v any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		close(c.events)
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !strings.Contains(err.Error(), "use of closed network connection") {
				c.err = err
			}
			return
		}

		if msg.Event == "ack" && msg.Ack != nil {
			c.mu.Lock()
			reply, ok := c.pending[*msg.Ack]
			c.mu.Unlock()
			if ok {
				reply <- msg.Data
			}
			continue
		}

		// Events nobody reads must not hold up acks.
		select {
		case c.events <- msg:
		default:
		}
	}
}
