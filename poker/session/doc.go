// Package session provides the registry of live planning poker rooms.
//
// The session package implements:
//   - Thread-safe room storage and lookup by code
//   - Unique 6-digit room code generation with bounded retry
//   - Per-room exclusive access for state transitions
//   - Automatic removal of rooms whose last participant left
//
// Core Types:
//
// Manager owns the mapping from room code to Room for the lifetime of the
// process. Room wraps an engine.Room with its own lock, so operations on
// different rooms never block each other.
//
// Room Codes:
//
// Codes are 6 ASCII digits drawn uniformly from 100000-999999 using
// cryptographic randomness. Only live codes are checked for collisions; a
// code becomes available again as soon as its room is removed.
//
// Concurrency:
//
// Lock order is always Room before Manager. Room.Do holds the room lock for
// the whole callback and, if the callback leaves the room empty, removes it
// from the Manager before releasing the lock. A Room removed this way is
// closed, and any later Do on it fails with ErrRoomNotFound.
//
// Usage:
//
//	manager := session.NewManager()
//
//	room, err := manager.Create(engine.Participant{ID: connID, Name: "Alice"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = room.Do(func(state *engine.Room) error {
//		state.Reveal()
//		return nil
//	})
package session
