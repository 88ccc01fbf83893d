package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"CollabCanvas/internal/wire"
)

// Store is the durable shape table. Row ids are assigned here, never by the
// client.
type Store interface {
	SelectAll() ([]wire.Row, error)
	Insert(shapeInfo json.RawMessage) (wire.Row, error)
	Update(id string, shapeInfo json.RawMessage) (wire.Row, error)
	Delete(id string) (wire.Row, error)
}

// ErrRowNotFound is what stores report for updates/deletes of unknown ids.
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "store: no row " + e.id }

// MemoryStore keeps the shape table in memory. It backs the hub when no
// Postgres DSN is configured and all of the tests.
type MemoryStore struct {
	mu    sync.Mutex
	order []string
	rows  map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) SelectAll() ([]wire.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Row, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, wire.Row{ID: id, ShapeInfo: m.rows[id]})
	}
	return out, nil
}

func (m *MemoryStore) Insert(shapeInfo json.RawMessage) (wire.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.order = append(m.order, id)
	m.rows[id] = shapeInfo
	return wire.Row{ID: id, ShapeInfo: shapeInfo}, nil
}

func (m *MemoryStore) Update(id string, shapeInfo json.RawMessage) (wire.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return wire.Row{}, notFoundError{id: id}
	}
	m.rows[id] = shapeInfo
	return wire.Row{ID: id, ShapeInfo: shapeInfo}, nil
}

func (m *MemoryStore) Delete(id string) (wire.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.rows[id]
	if !ok {
		return wire.Row{}, notFoundError{id: id}
	}
	delete(m.rows, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return wire.Row{ID: id, ShapeInfo: info}, nil
}
