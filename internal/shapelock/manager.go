// Package shapelock implements advisory per-shape locks over broadcast
// lock/unlock messages. Locks signal contention but never block an
// operation; the only visible consequence of ignoring one is the holder's
// stroke highlight on the shape.
package shapelock

import (
	"encoding/json"
	"log"
	"sync"

	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/wire"
)

// Channel is the slice of the realtime channel the manager needs.
type Channel interface {
	Send(event string, payload any) error
	On(event string, handler func(payload json.RawMessage))
	Leave()
}

// Lock identifies the holder of one shape.
type Lock struct {
	UserID   string
	Username string
	Color    string
}

// Manager owns the shape-id to holder mapping.
type Manager struct {
	mu       sync.RWMutex
	ch       Channel
	self     identity.User
	locks    map[string]Lock
	onChange func()
}

// NewManager subscribes to the lock channel.
func NewManager(ch Channel, self identity.User) *Manager {
	m := &Manager{ch: ch, self: self, locks: make(map[string]Lock)}
	ch.On(wire.EventLock, m.handleLock)
	ch.On(wire.EventUnlock, m.handleUnlock)
	return m
}

// OnChange registers a hook fired whenever the lock map changes.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Lock tries to claim a shape. Returns true when granted or already held by
// the local user; false when another user holds it. A false return is
// advisory only.
func (m *Manager) Lock(shapeID string) bool {
	m.mu.Lock()
	if existing, ok := m.locks[shapeID]; ok {
		m.mu.Unlock()
		return existing.UserID == m.self.ID
	}
	m.locks[shapeID] = Lock{UserID: m.self.ID, Username: m.self.Username, Color: m.self.Color}
	fn := m.onChange
	m.mu.Unlock()

	msg := wire.Lock{ShapeID: shapeID, UserID: m.self.ID, Username: m.self.Username, Color: m.self.Color}
	if err := m.ch.Send(wire.EventLock, msg); err != nil {
		log.Printf("[shapelock] lock broadcast failed: %v", err)
	}
	if fn != nil {
		fn()
	}
	return true
}

// Unlock releases a shape the local user holds; otherwise it is a no-op.
func (m *Manager) Unlock(shapeID string) {
	m.mu.Lock()
	lock, ok := m.locks[shapeID]
	if !ok || lock.UserID != m.self.ID {
		m.mu.Unlock()
		return
	}
	delete(m.locks, shapeID)
	fn := m.onChange
	m.mu.Unlock()

	if err := m.ch.Send(wire.EventUnlock, wire.Unlock{ShapeID: shapeID, UserID: m.self.ID}); err != nil {
		log.Printf("[shapelock] unlock broadcast failed: %v", err)
	}
	if fn != nil {
		fn()
	}
}

// IsLocked reports whether any user holds the shape.
func (m *Manager) IsLocked(shapeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locks[shapeID]
	return ok
}

// Get returns the holder of a shape, if any.
func (m *Manager) Get(shapeID string) (Lock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lock, ok := m.locks[shapeID]
	return lock, ok
}

// Locks returns a copy of the lock mapping keyed by shape id.
func (m *Manager) Locks() map[string]Lock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Lock, len(m.locks))
	for id, l := range m.locks {
		out[id] = l
	}
	return out
}

func (m *Manager) handleLock(payload json.RawMessage) {
	var msg wire.Lock
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[shapelock] dropping payload: %v", err)
		return
	}
	if err := msg.Validate(); err != nil {
		log.Printf("[shapelock] dropping payload: %v", err)
		return
	}
	m.mu.Lock()
	m.locks[msg.ShapeID] = Lock{UserID: msg.UserID, Username: msg.Username, Color: msg.Color}
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) handleUnlock(payload json.RawMessage) {
	var msg wire.Unlock
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[shapelock] dropping payload: %v", err)
		return
	}
	if err := msg.Validate(); err != nil {
		log.Printf("[shapelock] dropping payload: %v", err)
		return
	}
	m.mu.Lock()
	lock, ok := m.locks[msg.ShapeID]
	// A lock entry may only be removed by its holder's unlock.
	if !ok || lock.UserID != msg.UserID {
		m.mu.Unlock()
		return
	}
	delete(m.locks, msg.ShapeID)
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close best-effort-unlocks everything the local user holds, then leaves.
// The unlock messages may be lost if the connection is already closing.
func (m *Manager) Close() {
	m.mu.Lock()
	var held []string
	for id, lock := range m.locks {
		if lock.UserID == m.self.ID {
			held = append(held, id)
		}
	}
	m.locks = make(map[string]Lock)
	m.mu.Unlock()

	for _, id := range held {
		if err := m.ch.Send(wire.EventUnlock, wire.Unlock{ShapeID: id, UserID: m.self.ID}); err != nil {
			log.Printf("[shapelock] teardown unlock failed: %v", err)
		}
	}
	m.ch.Leave()
}
