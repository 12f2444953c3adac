// Package service provides the room coordination logic for planning poker.
//
// The service package implements:
//   - Room creation, join, leave and disconnect cleanup
//   - Vote submission, reveal, reset and scale changes
//   - Broadcasting the room view after every observable change
//   - Read-only room listing for the REST and MCP surfaces
//
// Core Interfaces:
//
// RoomService is the main service interface, called by the transport layer
// for every inbound client event. Gateway is the only thing the service knows
// about connections: it can address one connection, fan out to a room, and
// keep room subscriptions in step with membership.
//
// Architecture:
//
// The service sits between the WebSocket transport and the session registry.
// Every operation runs inside session.Room.Do, so it is atomic with respect
// to other operations on the same room and never blocks other rooms. All
// Gateway calls for a mutation are made while the room lock is held; the
// Gateway only enqueues them, so delivery order matches mutation order and a
// slow socket cannot stall the room.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	rooms := service.NewRoomService(session.NewManager(), hub, logger)
//	code, err := rooms.CreateRoom(ctx, connID, "Alice", nil)
//
// Visibility:
//
// Votes are redacted on the server. Each broadcast renders the view per
// recipient with engine.RoomView.For, so nobody receives another
// participant's vote value before the round is revealed.
package service
