// Package api provides the HTTP surface of the planning poker server.
//
// The api package implements:
//   - The WebSocket endpoint and the dispatch of client events to the room
//     service
//   - Read-only REST endpoints for inspecting live rooms
//   - Health reporting
//
// Endpoints:
//
//   - GET /api/socket - WebSocket upgrade
//   - GET /healthz - {"status": "healthy", "rooms": n}
//   - GET /api/scales - Voting scales and their tokens
//   - GET /api/rooms - Live rooms; sort=created|activity, order=asc|desc, limit=n
//   - GET /api/rooms/{code} - One room as seen by an observer
//
// Socket Events:
//
// Clients send create-room, join-room, leave-room, vote, reveal-votes,
// reset-votes and change-scale. The server answers with room-joined,
// room-update and error events. A message carrying an "ack" ID also gets an
// ack reply after any events the operation produced:
//
//	-> {"event": "join-room", "ack": 1, "data": {"code": "123456", "userName": "Bob"}}
//	<- {"event": "room-joined", "data": {...}}
//	<- {"event": "room-update", "data": {...}}
//	<- {"event": "ack", "ack": 1, "data": {"success": true, "room": {...}}}
//
// Events aimed at rooms that no longer exist are dropped without a reply.
//
// Usage:
//
//	server := api.NewServer(roomService, hub, logger)
//	http.ListenAndServe(":3000", server)
//
// Error Handling:
//
// REST errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "room not found"
//	}
package api
