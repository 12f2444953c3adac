// Package engine provides the voting rules for a single planning poker room.
//
// The engine package implements:
//   - The two supported voting scales and their tokens
//   - Membership of a room (join, leave, idempotent rejoin)
//   - Vote recording, reveal and reset of a round
//   - Scale changes between rounds
//   - The RoomView projection sent to clients, with per-recipient redaction
//
// Core Types:
//
// Room holds the authoritative state of one room. It is not safe for
// concurrent use; callers serialize access (see package session). RoomView is
// the wire projection of a Room and is always rebuilt from the Room rather
// than patched.
//
// Usage:
//
//	room := engine.NewRoom("482913")
//	room.Join("conn-a", "Alice")
//	room.Join("conn-b", "Bob")
//
//	five := "5"
//	if err := room.Vote("conn-a", &five); err != nil {
//		log.Fatal(err)
//	}
//
//	// Bob sees that Alice voted, but not her value.
//	view := room.View().For("conn-b")
//
// Visibility:
//
// Until a round is revealed, RoomView.For replaces every vote except the
// recipient's own with HiddenVote. Once revealed, all values are visible to
// everyone.
package engine
