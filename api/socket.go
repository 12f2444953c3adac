package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wricardo/planning-poker/poker/engine"
	"github.com/wricardo/planning-poker/poker/service"
	"github.com/wricardo/planning-poker/poker/session"
	"github.com/wricardo/planning-poker/transport/websocket"
)

// Client event names.
const (
	EventCreateRoom  = "create-room"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventVote        = "vote"
	EventRevealVotes = "reveal-votes"
	EventResetVotes  = "reset-votes"
	EventChangeScale = "change-scale"
)

// Error messages sent to clients.
const (
	msgRoomNotFound  = "Room not found"
	msgInvalidCode   = "Invalid room code"
	msgInvalidVote   = "Invalid vote"
	msgInvalidScale  = "Invalid scale"
	msgScaleLocked   = "Cannot change scale while votes are revealed"
	msgCreateFailed  = "Could not create room"
	msgMalformedData = "malformed data for %s"
	msgUnknownEvent  = "unknown event %q"
)

type createRoomRequest struct {
	UserName string `json:"userName"`
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	UserName string `json:"userName"`
}

type joinRoomResponse struct {
	Success bool             `json:"success"`
	Room    *engine.RoomView `json:"room,omitempty"`
}

type leaveRoomRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

type voteRequest struct {
	Code   string  `json:"code"`
	UserID string  `json:"userId"`
	Value  *string `json:"value"`
}

type roomRequest struct {
	Code string `json:"code"`
}

type changeScaleRequest struct {
	Code  string `json:"code"`
	Scale string `json:"scale"`
}

// socketHandler dispatches client events to the room service.
type socketHandler struct {
	service service.RoomService
	hub     *websocket.Hub
	logger  *slog.Logger
}

// HandleEvent implements websocket.Handler. Replies to create-room and
// join-room are acked before the events they trigger; other events are acked
// once handled.
func (h *socketHandler) HandleEvent(ctx context.Context, connID string, msg *websocket.Inbound) {
	ack := func(payload any) {
		if msg.Ack != nil {
			h.hub.Ack(connID, *msg.Ack, payload)
		}
	}

	switch msg.Event {
	case EventCreateRoom:
		var req createRoomRequest
		if !h.decode(connID, msg, &req) {
			return
		}
		_, err := h.service.CreateRoom(ctx, connID, req.UserName, func(code string) {
			ack(code)
		})
		if err != nil {
			h.logger.ErrorContext(ctx, "create room failed", "conn", connID, "error", err)
			h.hub.Send(connID, websocket.EventError, msgCreateFailed)
			ack("")
		}
		return

	case EventJoinRoom:
		var req joinRoomRequest
		if !h.decode(connID, msg, &req) {
			return
		}
		_, err := h.service.JoinRoom(ctx, req.Code, req.UserName, connID, func(view engine.RoomView) {
			ack(joinRoomResponse{Success: true, Room: &view})
		})
		if err != nil {
			h.logger.DebugContext(ctx, "join failed", "room", req.Code, "conn", connID, "error", err)
			ack(joinRoomResponse{Success: false})
			h.hub.Send(connID, websocket.EventError, msgRoomNotFound)
		}
		return

	case EventLeaveRoom:
		var req leaveRoomRequest
		if !h.decode(connID, msg, &req) || !h.sameUser(ctx, connID, req.UserID, msg.Event) {
			return
		}
		h.report(ctx, connID, req.Code, h.service.LeaveRoom(ctx, req.Code, connID))

	case EventVote:
		var req voteRequest
		if !h.decode(connID, msg, &req) || !h.sameUser(ctx, connID, req.UserID, msg.Event) {
			return
		}
		h.report(ctx, connID, req.Code, h.service.Vote(ctx, req.Code, connID, req.Value))

	case EventRevealVotes:
		var req roomRequest
		if !h.decode(connID, msg, &req) {
			return
		}
		h.report(ctx, connID, req.Code, h.service.RevealVotes(ctx, req.Code))

	case EventResetVotes:
		var req roomRequest
		if !h.decode(connID, msg, &req) {
			return
		}
		h.report(ctx, connID, req.Code, h.service.ResetVotes(ctx, req.Code))

	case EventChangeScale:
		var req changeScaleRequest
		if !h.decode(connID, msg, &req) {
			return
		}
		h.report(ctx, connID, req.Code, h.service.ChangeScale(ctx, req.Code, req.Scale))

	default:
		h.hub.Send(connID, websocket.EventError, fmt.Sprintf(msgUnknownEvent, msg.Event))
		return
	}

	ack(nil)
}

// HandleDisconnect implements websocket.Handler.
func (h *socketHandler) HandleDisconnect(ctx context.Context, connID string) {
	h.service.HandleDisconnect(ctx, connID)
}

func (h *socketHandler) decode(connID string, msg *websocket.Inbound, v any) bool {
	if err := msg.Decode(v); err != nil {
		h.hub.Send(connID, websocket.EventError, fmt.Sprintf(msgMalformedData, msg.Event))
		return false
	}
	return true
}

// sameUser reports whether a claimed user ID, if any, matches the
// connection. Clients may only act for themselves.
func (h *socketHandler) sameUser(ctx context.Context, connID, userID, event string) bool {
	if userID == "" || userID == connID {
		return true
	}
	h.logger.WarnContext(ctx, "ignoring event for another user", "event", event, "conn", connID, "user", userID)
	return false
}

// report tells the requester about errors it can act on. Events for rooms
// that are gone, or that the requester is not part of, are dropped.
func (h *socketHandler) report(ctx context.Context, connID, code string, err error) {
	var message string
	switch {
	case err == nil:
		return
	case errors.Is(err, session.ErrInvalidRoomCode):
		message = msgInvalidCode
	case errors.Is(err, engine.ErrInvalidVote):
		message = msgInvalidVote
	case errors.Is(err, engine.ErrInvalidScale):
		message = msgInvalidScale
	case errors.Is(err, engine.ErrScaleLocked):
		message = msgScaleLocked
	case errors.Is(err, session.ErrRoomNotFound), errors.Is(err, engine.ErrNotParticipant):
		h.logger.DebugContext(ctx, "event dropped", "room", code, "conn", connID, "error", err)
		return
	default:
		h.logger.ErrorContext(ctx, "room operation failed", "room", code, "conn", connID, "error", err)
		return
	}
	h.hub.Send(connID, websocket.EventError, message)
}
