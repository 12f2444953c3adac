package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingHandler captures the events and disconnects it receives.
type recordingHandler struct {
	mu          sync.Mutex
	events      []string
	disconnects map[string]int
	onEvent     func(connID string, msg *Inbound)
	gone        chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		disconnects: make(map[string]int),
		gone:        make(chan string, 16),
	}
}

func (r *recordingHandler) HandleEvent(ctx context.Context, connID string, msg *Inbound) {
	r.mu.Lock()
	r.events = append(r.events, msg.Event)
	r.mu.Unlock()
	if r.onEvent != nil {
		r.onEvent(connID, msg)
	}
}

func (r *recordingHandler) HandleDisconnect(ctx context.Context, connID string) {
	r.mu.Lock()
	r.disconnects[connID]++
	r.mu.Unlock()
	r.gone <- connID
}

func newTestClient(hub *Hub, id string, buffer int) *Client {
	return &Client{
		id:    id,
		hub:   hub,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]bool),
	}
}

func readOutbound(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("No message received within timeout")
		return nil
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}
	if hub.rooms == nil {
		t.Error("Hub rooms map is nil")
	}
	if hub.commands == nil {
		t.Error("Hub commands channel is nil")
	}
	if hub.config.SendBuffer != DefaultConfig().SendBuffer {
		t.Errorf("Expected default send buffer, got %d", hub.config.SendBuffer)
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "conn-1", 8)

	hub.registerClient(client)

	if hub.clients["conn-1"] != client {
		t.Error("Client was not registered")
	}

	msg := readOutbound(t, client)
	if msg["event"] != EventConnected {
		t.Errorf("Expected connected event, got %v", msg["event"])
	}
	data, _ := msg["data"].(map[string]any)
	if data["id"] != "conn-1" {
		t.Errorf("Expected connection ID in connected event, got %v", data)
	}
}

func TestHubSubscribeAndUnregister(t *testing.T) {
	hub := NewHub()
	client1 := newTestClient(hub, "c1", 8)
	client2 := newTestClient(hub, "c2", 8)
	hub.registerClient(client1)
	hub.registerClient(client2)

	hub.subscribeClient("c1", "123456")
	hub.subscribeClient("c2", "123456")
	hub.subscribeClient("c1", "654321")

	if len(hub.rooms["123456"]) != 2 {
		t.Errorf("Expected 2 clients in room, got %d", len(hub.rooms["123456"]))
	}

	t.Run("subscribe unknown connection is ignored", func(t *testing.T) {
		hub.subscribeClient("ghost", "123456")
		if len(hub.rooms["123456"]) != 2 {
			t.Error("Unknown connection must not be subscribed")
		}
	})

	t.Run("unsubscribe cleans up empty rooms", func(t *testing.T) {
		hub.unsubscribeClient("c1", "654321")
		if _, exists := hub.rooms["654321"]; exists {
			t.Error("Room should have been cleaned up after last client left")
		}
	})

	t.Run("unregister removes from every room", func(t *testing.T) {
		hub.registerClient(client1) // re-register is harmless
		hub.subscribeClient("c1", "654321")
		hub.unregisterClient(client1)

		if _, exists := hub.clients["c1"]; exists {
			t.Error("Client should be removed")
		}
		if hub.rooms["123456"][client1] {
			t.Error("Client should be removed from room 123456")
		}
		if _, exists := hub.rooms["654321"]; exists {
			t.Error("Room 654321 should be cleaned up")
		}
		if !hub.rooms["123456"][client2] {
			t.Error("client2 should still be subscribed")
		}
	})

	t.Run("double unregister is a no-op", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Second unregister panicked: %v", r)
			}
		}()
		hub.unregisterClient(client1)
	})
}

func TestHubBroadcastRendersPerRecipient(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, "alice", 8)
	bob := newTestClient(hub, "bob", 8)
	outsider := newTestClient(hub, "outsider", 8)
	for _, c := range []*Client{alice, bob, outsider} {
		hub.registerClient(c)
		readOutbound(t, c) // connected
	}
	hub.subscribeClient("alice", "123456")
	hub.subscribeClient("bob", "123456")

	hub.broadcastMessage("123456", "room-update", func(connID string) any {
		return map[string]string{"for": connID}
	})

	for _, c := range []*Client{alice, bob} {
		msg := readOutbound(t, c)
		if msg["event"] != "room-update" {
			t.Errorf("Expected room-update, got %v", msg["event"])
		}
		data, _ := msg["data"].(map[string]any)
		if data["for"] != c.id {
			t.Errorf("Expected payload rendered for %s, got %v", c.id, data["for"])
		}
	}

	select {
	case <-outsider.send:
		t.Error("Unsubscribed client should not receive room broadcasts")
	default:
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	hub.registerClient(slow) // fills slow's buffer with connected
	hub.registerClient(fast)
	readOutbound(t, fast)
	hub.subscribeClient("slow", "123456")
	hub.subscribeClient("fast", "123456")

	hub.broadcastMessage("123456", "room-update", nil)

	if _, exists := hub.clients["slow"]; exists {
		t.Error("Slow client should have been dropped")
	}
	if msg := readOutbound(t, fast); msg["event"] != "room-update" {
		t.Errorf("Fast client should still get the update, got %v", msg["event"])
	}
}

func TestHubOperationsAreOrdered(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient(hub, "c1", 64)
	hub.enqueue(func() { hub.registerClient(client) })
	readOutbound(t, client)

	// Subscribe then broadcast from the same goroutine must always deliver.
	hub.Subscribe("c1", "123456")
	for i := 0; i < 20; i++ {
		n := i
		hub.Broadcast("123456", "tick", func(string) any { return n })
	}

	for i := 0; i < 20; i++ {
		msg := readOutbound(t, client)
		if got := int(msg["data"].(float64)); got != i {
			t.Fatalf("Expected tick %d, got %d", i, got)
		}
	}

	clients, rooms := hub.Stats()
	if clients != 1 || rooms != 1 {
		t.Errorf("Expected 1 client and 1 room, got %d and %d", clients, rooms)
	}
}

func TestHubStopsWithContext(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Calls after stop must not block.
	hub.Send("anyone", "event", nil)
	if c, r := hub.Stats(); c != 0 || r != 0 {
		t.Errorf("Expected zero stats after stop, got %d, %d", c, r)
	}
}

func startTestServer(t *testing.T, hub *Hub, handler Handler) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, handler)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readFrame(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var msg Outbound
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	handler := newRecordingHandler()
	handler.onEvent = func(connID string, msg *Inbound) {
		if msg.Event == "join" {
			hub.Subscribe(connID, "123456")
			hub.Broadcast("123456", "joined", func(string) any { return connID })
		}
	}
	wsURL := startTestServer(t, hub, handler)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	hello := readFrame(t, conn)
	if hello.Event != EventConnected {
		t.Fatalf("Expected connected event first, got %s", hello.Event)
	}
	connID := hello.Data.(map[string]any)["id"].(string)
	if connID == "" {
		t.Fatal("Expected a connection ID")
	}

	t.Run("malformed message yields error", func(t *testing.T) {
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		if msg := readFrame(t, conn); msg.Event != EventError {
			t.Errorf("Expected error event, got %s", msg.Event)
		}
	})

	t.Run("events reach handler and broadcasts reach client", func(t *testing.T) {
		conn.WriteJSON(map[string]any{"event": "join", "data": map[string]string{}})
		msg := readFrame(t, conn)
		if msg.Event != "joined" || msg.Data != connID {
			t.Errorf("Expected joined broadcast for %s, got %+v", connID, msg)
		}
	})

	t.Run("disconnect is reported exactly once", func(t *testing.T) {
		conn.Close()

		select {
		case gone := <-handler.gone:
			if gone != connID {
				t.Errorf("Expected disconnect for %s, got %s", connID, gone)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("HandleDisconnect was not called")
		}

		// Give the hub time to process the unregister.
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if clients, _ := hub.Stats(); clients == 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		clients, rooms := hub.Stats()
		if clients != 0 || rooms != 0 {
			t.Errorf("Expected hub to be empty, got %d clients, %d rooms", clients, rooms)
		}

		handler.mu.Lock()
		defer handler.mu.Unlock()
		if handler.disconnects[connID] != 1 {
			t.Errorf("Expected exactly one disconnect, got %d", handler.disconnects[connID])
		}
	})
}

func TestWebSocketOriginCheck(t *testing.T) {
	hub := NewHubWithConfig(Config{AllowedOrigins: []string{"http://poker.local"}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	wsURL := startTestServer(t, hub, newRecordingHandler())

	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Error("Expected disallowed origin to be rejected")
	}

	header = http.Header{"Origin": []string{"http://poker.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Expected allowed origin to connect: %v", err)
	}
	conn.Close()
}
