package service

import (
	"context"

	"github.com/wricardo/planning-poker/poker/engine"
	"github.com/wricardo/planning-poker/poker/session"
)

// Outbound event names.
const (
	EventRoomJoined = "room-joined"
	EventRoomUpdate = "room-update"
	EventError      = "error"
)

// RoomService defines all room operations
type RoomService interface {
	// Membership. A non-nil reply is called with the result while the room
	// is still locked, before room-joined or the room update is sent.
	CreateRoom(ctx context.Context, connID, userName string, reply func(code string)) (string, error)
	JoinRoom(ctx context.Context, code, userName, connID string, reply func(view engine.RoomView)) (*engine.RoomView, error)
	LeaveRoom(ctx context.Context, code, connID string) error
	HandleDisconnect(ctx context.Context, connID string) int

	// Rounds
	Vote(ctx context.Context, code, connID string, value *string) error
	RevealVotes(ctx context.Context, code string) error
	ResetVotes(ctx context.Context, code string) error
	ChangeScale(ctx context.Context, code, scale string) error

	// Inspection
	GetRoom(ctx context.Context, code string) (*engine.RoomView, error)
	ListRooms(ctx context.Context) ([]*session.Info, error)
	Scales(ctx context.Context) []engine.ScaleInfo
}

// Gateway delivers messages to connections. Implementations must not block
// on network I/O.
type Gateway interface {
	// Send delivers one message to a single connection.
	Send(connID, event string, payload any)

	// Broadcast delivers to every connection subscribed to room. render is
	// called once per recipient to build that recipient's payload.
	Broadcast(room, event string, render func(connID string) any)

	Subscribe(connID, room string)
	Unsubscribe(connID, room string)
}

// Registry defines room storage operations
type Registry interface {
	Create(owner engine.Participant) (*session.Room, error)
	Get(code string) (*session.Room, error)
	List() []*session.Room
}
