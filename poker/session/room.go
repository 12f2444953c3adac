package session

import (
	"sync"
	"time"

	"github.com/wricardo/planning-poker/poker/engine"
)

// Room is a live room in the registry.
type Room struct {
	Code      string
	CreatedAt time.Time

	mu             sync.Mutex
	state          *engine.Room
	lastActivityAt time.Time
	closed         bool
	manager        *Manager
}

// Info summarizes a room for listings.
type Info struct {
	Code           string       `json:"code"`
	Participants   int          `json:"participants"`
	Votes          int          `json:"votes"`
	Scale          engine.Scale `json:"scale"`
	Revealed       bool         `json:"revealed"`
	CreatedAt      time.Time    `json:"created_at"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}

// Do runs fn with exclusive access to the room state. It returns
// ErrRoomNotFound if the room has already been removed. The room's last
// activity time only moves when fn changed the state. If the room is empty
// once fn returns, it is closed and removed from the registry before the lock
// is released, whatever fn returned.
func (r *Room) Do(fn func(state *engine.Room) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}

	revision := r.state.Revision()
	err := fn(r.state)
	if r.state.Revision() != revision {
		r.lastActivityAt = time.Now()
	}

	if r.state.Empty() {
		r.closed = true
		r.manager.remove(r)
	}
	return err
}

// View returns the current unredacted view of the room.
func (r *Room) View() (engine.RoomView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return engine.RoomView{}, ErrRoomNotFound
	}
	return r.state.View(), nil
}

// Info returns a summary of the room.
func (r *Room) Info() (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Info{}, ErrRoomNotFound
	}
	return Info{
		Code:           r.Code,
		Participants:   r.state.Len(),
		Votes:          r.state.VoteCount(),
		Scale:          r.state.Scale(),
		Revealed:       r.state.Revealed(),
		CreatedAt:      r.CreatedAt,
		LastActivityAt: r.lastActivityAt,
	}, nil
}

// Closed reports whether the room has been removed from the registry.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
