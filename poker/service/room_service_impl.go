package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wricardo/planning-poker/poker/engine"
	"github.com/wricardo/planning-poker/poker/session"
)

// roomServiceImpl implements the RoomService interface
type roomServiceImpl struct {
	rooms   Registry
	gateway Gateway
	logger  *slog.Logger
}

// NewRoomService creates a new room service instance. A nil logger uses
// slog.Default.
func NewRoomService(rooms Registry, gateway Gateway, logger *slog.Logger) RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	return &roomServiceImpl{
		rooms:   rooms,
		gateway: gateway,
		logger:  logger,
	}
}

// CreateRoom creates a room with the requester as its only participant.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, connID, userName string, reply func(code string)) (string, error) {
	room, err := s.rooms.Create(engine.Participant{ID: connID, Name: userName})
	if err != nil {
		return "", fmt.Errorf("failed to create room: %w", err)
	}

	err = room.Do(func(state *engine.Room) error {
		if reply != nil {
			reply(room.Code)
		}
		s.gateway.Subscribe(connID, room.Code)
		view := state.View()
		s.gateway.Send(connID, EventRoomJoined, view.For(connID))
		return nil
	})
	if err != nil {
		// Only possible if the owner disconnected and was removed already.
		return "", fmt.Errorf("failed to create room: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "room", room.Code, "conn", connID, "name", userName)
	return room.Code, nil
}

// JoinRoom adds the requester to an existing room. Joining never creates a
// room, and joining twice does not add a second participant.
func (s *roomServiceImpl) JoinRoom(ctx context.Context, code, userName, connID string, reply func(view engine.RoomView)) (*engine.RoomView, error) {
	room, err := s.rooms.Get(code)
	if err != nil {
		return nil, err
	}

	var joined engine.RoomView
	err = room.Do(func(state *engine.Room) error {
		added := state.Join(connID, userName)
		s.gateway.Subscribe(connID, code)

		view := state.View()
		joined = view.For(connID)
		if reply != nil {
			reply(joined)
		}
		s.gateway.Send(connID, EventRoomJoined, joined)
		s.broadcast(code, view)

		if !added {
			s.logger.DebugContext(ctx, "duplicate join ignored", "room", code, "conn", connID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "participant joined", "room", code, "conn", connID, "name", userName)
	return &joined, nil
}

// LeaveRoom removes the requester from a room. The room is destroyed if it
// becomes empty.
func (s *roomServiceImpl) LeaveRoom(ctx context.Context, code, connID string) error {
	room, err := s.rooms.Get(code)
	if err != nil {
		return err
	}

	err = room.Do(func(state *engine.Room) error {
		if !s.leave(state, code, connID) {
			return engine.ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "participant left", "room", code, "conn", connID)
	return nil
}

// HandleDisconnect removes connID from every room that contains it and
// returns how many rooms it was removed from.
func (s *roomServiceImpl) HandleDisconnect(ctx context.Context, connID string) int {
	removed := 0
	for _, room := range s.rooms.List() {
		err := room.Do(func(state *engine.Room) error {
			if s.leave(state, room.Code, connID) {
				removed++
			}
			return nil
		})
		if err != nil && !errors.Is(err, session.ErrRoomNotFound) {
			s.logger.ErrorContext(ctx, "disconnect cleanup failed", "room", room.Code, "conn", connID, "error", err)
		}
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "disconnected participant removed", "conn", connID, "rooms", removed)
	}
	return removed
}

// Vote records a vote for the requester. Votes from non-participants are
// rejected; a nil value withdraws the vote.
func (s *roomServiceImpl) Vote(ctx context.Context, code, connID string, value *string) error {
	err := s.mutate(code, func(state *engine.Room) error {
		return state.Vote(connID, value)
	})
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "vote recorded", "room", code, "conn", connID)
	return nil
}

// RevealVotes exposes all votes in the room.
func (s *roomServiceImpl) RevealVotes(ctx context.Context, code string) error {
	err := s.mutate(code, func(state *engine.Room) error {
		state.Reveal()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "votes revealed", "room", code)
	return nil
}

// ResetVotes clears the votes and starts a new hidden round.
func (s *roomServiceImpl) ResetVotes(ctx context.Context, code string) error {
	err := s.mutate(code, func(state *engine.Room) error {
		state.Reset()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "votes reset", "room", code)
	return nil
}

// ChangeScale switches the room's voting scale. It is refused while votes
// are revealed.
func (s *roomServiceImpl) ChangeScale(ctx context.Context, code, scale string) error {
	parsed, err := engine.ParseScale(scale)
	if err != nil {
		return err
	}

	err = s.mutate(code, func(state *engine.Room) error {
		return state.ChangeScale(parsed)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "scale changed", "room", code, "scale", parsed)
	return nil
}

// GetRoom returns the room as seen by an observer: vote values stay hidden
// until reveal.
func (s *roomServiceImpl) GetRoom(ctx context.Context, code string) (*engine.RoomView, error) {
	room, err := s.rooms.Get(code)
	if err != nil {
		return nil, err
	}

	view, err := room.View()
	if err != nil {
		return nil, err
	}

	observed := view.For("")
	return &observed, nil
}

// ListRooms returns a summary of every live room.
func (s *roomServiceImpl) ListRooms(ctx context.Context) ([]*session.Info, error) {
	rooms := s.rooms.List()
	result := make([]*session.Info, 0, len(rooms))

	for _, room := range rooms {
		info, err := room.Info()
		if err != nil {
			// Destroyed between List and Info.
			continue
		}
		result = append(result, &info)
	}

	return result, nil
}

// Scales returns the supported voting scales.
func (s *roomServiceImpl) Scales(ctx context.Context) []engine.ScaleInfo {
	return engine.Scales()
}

// mutate applies fn to the room and broadcasts the new view if fn succeeds.
func (s *roomServiceImpl) mutate(code string, fn func(state *engine.Room) error) error {
	room, err := s.rooms.Get(code)
	if err != nil {
		return err
	}

	return room.Do(func(state *engine.Room) error {
		if err := fn(state); err != nil {
			return err
		}
		s.broadcast(code, state.View())
		return nil
	})
}

// leave removes connID from state, unsubscribes it and tells the remaining
// participants. Called with the room lock held.
func (s *roomServiceImpl) leave(state *engine.Room, code, connID string) bool {
	if !state.Leave(connID) {
		return false
	}
	s.gateway.Unsubscribe(connID, code)

	if state.Empty() {
		s.logger.Info("room destroyed", "room", code)
		return true
	}
	s.broadcast(code, state.View())
	return true
}

// broadcast sends view to the room, redacted per recipient.
func (s *roomServiceImpl) broadcast(code string, view engine.RoomView) {
	s.gateway.Broadcast(code, EventRoomUpdate, func(connID string) any {
		return view.For(connID)
	})
}
