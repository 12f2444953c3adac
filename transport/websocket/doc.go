// Package websocket provides the WebSocket connection gateway for planning
// poker.
//
// The websocket package implements:
//   - Connection upgrade and a unique ID per connection
//   - Room subscriptions for fan-out
//   - Ordered, non-blocking delivery to one connection or a whole room
//   - Exactly-once disconnect notification
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// connection and subscription state. Each client connection is handled by a
// read goroutine, which decodes events and hands them to a Handler, and a
// write goroutine, which drains the client's send queue.
//
// Message Protocol:
//
// Every frame is one JSON document:
//   - Incoming: {"event": "vote", "ack": 3, "data": {"code": "123456", "value": "5"}}
//   - Outgoing: {"event": "room-update", "data": {...}}
//   - Replies:  {"event": "ack", "ack": 3, "data": {...}}
//
// On connect the hub sends {"event": "connected", "data": {"id": "..."}} so
// the client knows its own connection ID.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	http.HandleFunc("/api/socket", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, handler)
//	})
//
// Connection Lifecycle:
//
// 1. Client connects and is assigned an ID
// 2. Connection registered with hub
// 3. Client sends events, handler subscribes it to rooms
// 4. Room broadcasts reach every subscribed client
// 5. Disconnection (close, network error, pong timeout, or being dropped as
// a slow consumer) unregisters the client and calls HandleDisconnect once
//
// Concurrency:
//
// Hub methods may be called from any goroutine. They enqueue work for the
// Run goroutine and never wait for network I/O. Operations take effect in
// enqueue order, so a Subscribe followed by a Broadcast from the same
// goroutine always reaches the new subscriber.
package websocket
