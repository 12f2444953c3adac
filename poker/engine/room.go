package engine

import (
	"maps"
	"slices"
	"strings"
)

// DefaultName is used when a participant joins with a blank name.
const DefaultName = "Anonymous"

// Participant is one connected client in a room.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is the state of one planning poker room.
//
// Invariant: every key of votes is the ID of a current participant, and every
// vote value is a token of the current scale.
type Room struct {
	code         string
	participants []Participant
	votes        map[string]string
	scale        Scale
	revealed     bool
	revision     uint64
}

// NewRoom creates an empty, unrevealed room using DefaultScale.
func NewRoom(code string) *Room {
	return &Room{
		code:  code,
		votes: make(map[string]string),
		scale: DefaultScale,
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Scale returns the current voting scale.
func (r *Room) Scale() Scale { return r.scale }

// Revealed reports whether the current round is revealed.
func (r *Room) Revealed() bool { return r.revealed }

// Len returns the number of participants.
func (r *Room) Len() int { return len(r.participants) }

// Empty reports whether the room has no participants left.
func (r *Room) Empty() bool { return len(r.participants) == 0 }

// VoteCount returns how many participants have voted this round.
func (r *Room) VoteCount() int { return len(r.votes) }

// Revision counts the state changes applied to the room. Calls that fail or
// change nothing leave it as is.
func (r *Room) Revision() uint64 { return r.revision }

// Participants returns a copy of the participants in join order.
func (r *Room) Participants() []Participant {
	return slices.Clone(r.participants)
}

// HasParticipant reports whether id is in the room.
func (r *Room) HasParticipant(id string) bool {
	return r.indexOf(id) >= 0
}

// Join adds a participant. Joining twice with the same id is a no-op and
// returns false.
func (r *Room) Join(id, name string) bool {
	if r.HasParticipant(id) {
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	r.participants = append(r.participants, Participant{ID: id, Name: name})
	r.revision++
	return true
}

// Leave removes a participant together with their vote. It returns false if
// id was not in the room.
func (r *Room) Leave(id string) bool {
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.participants = slices.Delete(r.participants, i, i+1)
	delete(r.votes, id)
	r.revision++
	return true
}

// Vote records value for participant id. A nil or empty value withdraws the
// participant's vote.
func (r *Room) Vote(id string, value *string) error {
	if !r.HasParticipant(id) {
		return ErrNotParticipant
	}
	if value == nil || *value == "" {
		delete(r.votes, id)
		r.revision++
		return nil
	}
	if !r.scale.Allows(*value) {
		return ErrInvalidVote
	}
	r.votes[id] = *value
	r.revision++
	return nil
}

// Reveal exposes every vote. It does not require everyone to have voted.
func (r *Room) Reveal() {
	r.revealed = true
	r.revision++
}

// Reset starts a new round: votes are cleared and hidden again. The scale is
// kept.
func (r *Room) Reset() {
	clear(r.votes)
	r.revealed = false
	r.revision++
}

// ChangeScale switches the room to s. Votes that are not tokens of s are
// dropped.
func (r *Room) ChangeScale(s Scale) error {
	if !s.Valid() {
		return ErrInvalidScale
	}
	if r.revealed {
		return ErrScaleLocked
	}
	r.scale = s
	maps.DeleteFunc(r.votes, func(_, v string) bool {
		return !s.Allows(v)
	})
	r.revision++
	return nil
}

// View returns the unredacted projection of the room. Use RoomView.For
// before sending it to a client.
func (r *Room) View() RoomView {
	return RoomView{
		Code:         r.code,
		Participants: r.Participants(),
		Votes:        maps.Clone(r.votes),
		Scale:        r.scale,
		Revealed:     r.revealed,
	}
}

func (r *Room) indexOf(id string) int {
	return slices.IndexFunc(r.participants, func(p Participant) bool {
		return p.ID == id
	})
}
