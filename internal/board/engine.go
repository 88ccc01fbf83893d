// Package board owns the canonical in-memory shape collection and keeps it
// consistent across three inputs: local optimistic mutations, the durable
// row change feed, and ephemeral drag-position broadcasts. Reconciliation is
// by id matching, never by timestamps: the client-generated shape id for
// insert echoes, the server row id for updates and deletes.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/throttle"
	"CollabCanvas/internal/wire"
)

// ShapeType enumerates the placeable shapes.
type ShapeType string

const (
	ShapeRect   ShapeType = "rect"
	ShapeCircle ShapeType = "circle"
	ShapeText   ShapeType = "text"
)

// Fixed render attributes; not stored per instance.
const (
	RectSize     = 100.0
	CircleRadius = 50.0
	TextContent  = "Text"
)

// ErrNotReady is returned when mutating a shape whose durable id has not
// arrived yet. The operation performs no mutation and is never retried.
var ErrNotReady = errors.New("board: shape not persisted yet")

const persistTimeout = 10 * time.Second

// Shape is one element of the canvas. ID is the client-generated id minted
// at optimistic-insert time; DBID is the server row id, attached once the
// insert echo arrives. A shape without DBID is pending.
type Shape struct {
	ID     string    `json:"id"`
	Type   ShapeType `json:"type"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Fill   string    `json:"fill"`
	UserID string    `json:"userId,omitempty"`
	DBID   string    `json:"dbId,omitempty"`
}

// Pending reports whether the durable id has not arrived yet.
func (s Shape) Pending() bool { return s.DBID == "" }

func fillFor(t ShapeType) string {
	switch t {
	case ShapeRect:
		return "rgba(0, 100, 255, 0.5)"
	case ShapeCircle:
		return "rgba(0, 255, 100, 0.5)"
	default:
		return "black"
	}
}

// Store is the durable shape table boundary.
type Store interface {
	SelectAll(ctx context.Context) ([]wire.Row, error)
	Insert(ctx context.Context, shapeInfo json.RawMessage) error
	Update(ctx context.Context, rowID string, shapeInfo json.RawMessage) error
	Delete(ctx context.Context, rowID string) error
}

// Channel is the slice of the realtime channel used for drag broadcasts.
type Channel interface {
	Send(event string, payload any) error
	On(event string, handler func(payload json.RawMessage))
	Leave()
}

// Engine is the canvas sync engine. All mutation of the shape list happens
// through its operations, copy-on-write, so readers never observe a
// partially updated slice.
type Engine struct {
	mu       sync.RWMutex
	store    Store
	ch       Channel
	self     identity.User
	sender   *throttle.Sender
	shapes   []Shape
	loading  bool
	dragging string // client id of the shape under a local drag, "" when none
	onChange func()
}

// NewEngine wires the drag channel and the throttled drag sender. Call Load
// before rendering; the engine reports loading until it completes.
func NewEngine(store Store, ch Channel, self identity.User, clock throttle.Clock) *Engine {
	e := &Engine{store: store, ch: ch, self: self, loading: true}
	e.sender = throttle.NewSender(ThrottleInterval, clock, e.sendDragNow)
	e.sender.Start()
	ch.On(wire.EventDragMove, e.handleDragMove)
	return e
}

// ThrottleInterval matches the cursor broadcaster's window.
const ThrottleInterval = 50 * time.Millisecond

// OnChange registers a hook fired after every shape list change.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Load seeds the collection with the full current row set. It must finish
// before change-feed or broadcast events are applied to a rendered list.
func (e *Engine) Load(ctx context.Context) error {
	rows, err := e.store.SelectAll(ctx)
	if err != nil {
		return err
	}
	shapes := make([]Shape, 0, len(rows))
	for _, row := range rows {
		var s Shape
		if err := json.Unmarshal(row.ShapeInfo, &s); err != nil {
			log.Printf("[sync] skipping unreadable row %s: %v", row.ID, err)
			continue
		}
		s.DBID = row.ID
		shapes = append(shapes, s)
	}
	e.mu.Lock()
	e.shapes = shapes
	e.loading = false
	fn := e.onChange
	e.mu.Unlock()
	log.Printf("[sync] loaded %d shapes", len(shapes))
	if fn != nil {
		fn()
	}
	return nil
}

// Loading reports whether the initial load is still in flight.
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

// Shapes returns a copy of the reconciled shape list.
func (e *Engine) Shapes() []Shape {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Shape, len(e.shapes))
	copy(out, e.shapes)
	return out
}

// mutate applies fn to a fresh copy of the slice and notifies.
func (e *Engine) mutate(fn func(shapes []Shape) []Shape) {
	e.mu.Lock()
	next := make([]Shape, len(e.shapes))
	copy(next, e.shapes)
	e.shapes = fn(next)
	hook := e.onChange
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (e *Engine) removeByID(id string) {
	e.mutate(func(shapes []Shape) []Shape {
		out := shapes[:0]
		for _, s := range shapes {
			if s.ID != id {
				out = append(out, s)
			}
		}
		return out
	})
}

// persist runs a durable op off the caller's goroutine and applies undo when
// it fails, reverting the optimistic mutation.
func (e *Engine) persist(op string, undo func(), do func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := do(ctx); err != nil {
			log.Printf("[sync] %s failed, rolling back: %v", op, err)
			undo()
		}
	}()
}

func shapeInfo(s Shape) json.RawMessage {
	s.DBID = "" // the row id lives outside the payload
	data, _ := json.Marshal(s)
	return data
}

// AddShape inserts optimistically and issues the durable insert. The change
// feed later echoes the row back; the echo is matched on the embedded
// client id and only merges in the DBID. Returns the client id.
func (e *Engine) AddShape(t ShapeType, x, y float64) string {
	s := Shape{
		ID:     "shape-" + uuid.NewString(),
		Type:   t,
		X:      x,
		Y:      y,
		Fill:   fillFor(t),
		UserID: e.self.ID,
	}
	e.mutate(func(shapes []Shape) []Shape { return append(shapes, s) })
	undo := func() { e.removeByID(s.ID) }
	e.persist("insert "+s.ID, undo, func(ctx context.Context) error {
		return e.store.Insert(ctx, shapeInfo(s))
	})
	return s.ID
}

// UpdateShape moves a committed shape. Pending shapes fail with ErrNotReady
// and are left untouched.
func (e *Engine) UpdateShape(id string, x, y float64) error {
	e.mu.Lock()
	idx := -1
	for i, s := range e.shapes {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || e.shapes[idx].Pending() {
		e.mu.Unlock()
		return ErrNotReady
	}
	prev := e.shapes[idx]
	next := make([]Shape, len(e.shapes))
	copy(next, e.shapes)
	next[idx].X = x
	next[idx].Y = y
	updated := next[idx]
	e.shapes = next
	hook := e.onChange
	e.mu.Unlock()
	if hook != nil {
		hook()
	}

	undo := func() {
		e.mutate(func(shapes []Shape) []Shape {
			for i, s := range shapes {
				if s.ID == id {
					shapes[i] = prev
				}
			}
			return shapes
		})
	}
	e.persist("update "+id, undo, func(ctx context.Context) error {
		return e.store.Update(ctx, prev.DBID, shapeInfo(updated))
	})
	return nil
}

// DeleteShape removes a committed shape. Pending shapes fail with
// ErrNotReady and are left untouched.
func (e *Engine) DeleteShape(id string) error {
	e.mu.Lock()
	idx := -1
	for i, s := range e.shapes {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || e.shapes[idx].Pending() {
		e.mu.Unlock()
		return ErrNotReady
	}
	removed := e.shapes[idx]
	next := make([]Shape, 0, len(e.shapes)-1)
	next = append(next, e.shapes[:idx]...)
	next = append(next, e.shapes[idx+1:]...)
	e.shapes = next
	hook := e.onChange
	e.mu.Unlock()
	if hook != nil {
		hook()
	}

	undo := func() {
		e.mutate(func(shapes []Shape) []Shape { return append(shapes, removed) })
	}
	e.persist("delete "+id, undo, func(ctx context.Context) error {
		return e.store.Delete(ctx, removed.DBID)
	})
	return nil
}

// SetDragging marks the shape under a local drag gesture, or "" to clear.
// It must be cleared on drag end and drag cancel, or remote updates for the
// shape stay suppressed forever.
func (e *Engine) SetDragging(id string) {
	e.mu.Lock()
	e.dragging = id
	e.mu.Unlock()
}

// Dragging returns the locally dragging shape id, "" when none.
func (e *Engine) Dragging() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dragging
}

// BroadcastPosition sends an ephemeral drag position, throttled with the
// same 50ms coalescing window as cursors. Nothing is persisted.
func (e *Engine) BroadcastPosition(id string, x, y float64) {
	e.sender.Submit(wire.DragMove{ShapeID: id, X: x, Y: y, UserID: e.self.ID})
}

func (e *Engine) sendDragNow(v any) {
	msg, ok := v.(wire.DragMove)
	if !ok {
		return
	}
	if err := e.ch.Send(wire.EventDragMove, msg); err != nil {
		log.Printf("[sync] drag broadcast failed: %v", err)
	}
}

func (e *Engine) handleDragMove(payload json.RawMessage) {
	var msg wire.DragMove
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[sync] dropping drag payload: %v", err)
		return
	}
	if err := msg.Validate(); err != nil {
		log.Printf("[sync] dropping drag payload: %v", err)
		return
	}
	if msg.UserID == e.self.ID {
		return
	}
	e.mu.RLock()
	suppressed := e.dragging == msg.ShapeID
	e.mu.RUnlock()
	// A shape mid-drag here must not be overridden by lagging echoes or
	// stale remote positions.
	if suppressed {
		return
	}
	e.mutate(func(shapes []Shape) []Shape {
		for i, s := range shapes {
			if s.ID == msg.ShapeID {
				shapes[i].X = msg.X
				shapes[i].Y = msg.Y
			}
		}
		return shapes
	})
}

// ApplyRowInsert handles a durable insert feed event. An embedded client id
// already present locally is the echo of our own optimistic insert: only the
// DBID is merged, the count stays unchanged. Unknown ids append as
// remote-origin shapes.
func (e *Engine) ApplyRowInsert(row wire.Row) {
	s, ok := parseRow(row)
	if !ok {
		return
	}
	e.mutate(func(shapes []Shape) []Shape {
		for i, existing := range shapes {
			if existing.ID == s.ID {
				shapes[i].DBID = s.DBID
				return shapes
			}
		}
		return append(shapes, s)
	})
}

// ApplyRowUpdate replaces the shape whose DBID matches; unknown rows are
// ignored.
func (e *Engine) ApplyRowUpdate(row wire.Row) {
	s, ok := parseRow(row)
	if !ok {
		return
	}
	e.mutate(func(shapes []Shape) []Shape {
		for i, existing := range shapes {
			if existing.DBID == s.DBID {
				shapes[i] = s
			}
		}
		return shapes
	})
}

// ApplyRowDelete removes the shape whose DBID matches; unknown rows are
// ignored.
func (e *Engine) ApplyRowDelete(row wire.Row) {
	e.mutate(func(shapes []Shape) []Shape {
		out := shapes[:0]
		for _, s := range shapes {
			if s.DBID != row.ID {
				out = append(out, s)
			}
		}
		return out
	})
}

func parseRow(row wire.Row) (Shape, bool) {
	var s Shape
	if err := json.Unmarshal(row.ShapeInfo, &s); err != nil {
		log.Printf("[sync] dropping row %s: %v", row.ID, err)
		return Shape{}, false
	}
	s.DBID = row.ID
	return s, true
}

// Close stops the drag sender and leaves the drag channel.
func (e *Engine) Close() {
	e.sender.Stop()
	e.ch.Leave()
}
