package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/planning-poker/poker/engine"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrInvalidRoomCode    = errors.New("invalid room code")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// maxCodeAttempts bounds collision retries in Create.
const maxCodeAttempts = 100

// Manager handles the lifecycle of live rooms.
type Manager struct {
	rooms   map[string]*Room
	newCode CodeGenerator
	mu      sync.RWMutex
}

// NewManager creates a new room manager using RandomCode.
func NewManager() *Manager {
	return NewManagerWithGenerator(RandomCode)
}

// NewManagerWithGenerator creates a new room manager that draws codes from gen.
func NewManagerWithGenerator(gen CodeGenerator) *Manager {
	return &Manager{
		rooms:   make(map[string]*Room),
		newCode: gen,
	}
}

// Create registers a new room under a fresh code with owner as its only
// participant. The room is complete before it becomes visible to Get.
func (m *Manager) Create(owner engine.Participant) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, err := m.freeCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &Room{
		Code:           code,
		CreatedAt:      now,
		lastActivityAt: now,
		state:          engine.NewRoom(code),
		manager:        m,
	}
	room.state.Join(owner.ID, owner.Name)

	m.rooms[code] = room
	return room, nil
}

// Get retrieves a live room by code.
func (m *Manager) Get(code string) (*Room, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidRoomCode
	}

	m.mu.RLock()
	room, exists := m.rooms[code]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// List returns all live rooms.
func (m *Manager) List() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		result = append(result, room)
	}

	return result
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// remove deletes room from the registry if it is still the entry for its
// code. Called with the room's lock held.
func (m *Manager) remove(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[room.Code] == room {
		delete(m.rooms, room.Code)
	}
}

// freeCode draws codes until one is not live. Called with m.mu held.
func (m *Manager) freeCode() (string, error) {
	for range maxCodeAttempts {
		code, err := m.newCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		if _, exists := m.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, maxCodeAttempts)
}
