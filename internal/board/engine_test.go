package board

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/wire"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

type fakeChannel struct {
	sent     []wire.DragMove
	handlers map[string]func(json.RawMessage)
	left     bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]func(json.RawMessage))}
}

func (f *fakeChannel) Send(event string, payload any) error {
	f.sent = append(f.sent, payload.(wire.DragMove))
	return nil
}

func (f *fakeChannel) On(event string, handler func(json.RawMessage)) {
	f.handlers[event] = handler
}

func (f *fakeChannel) Leave() { f.left = true }

func (f *fakeChannel) deliverDrag(t *testing.T, msg wire.DragMove) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	f.handlers[wire.EventDragMove](data)
}

type fakeStore struct {
	rows      []wire.Row
	insertErr error
	updateErr error
	deleteErr error
	inserted  []json.RawMessage
	updated   map[string]json.RawMessage
	deleted   []string
	calls     chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{updated: make(map[string]json.RawMessage), calls: make(chan string, 16)}
}

func (f *fakeStore) SelectAll(ctx context.Context) ([]wire.Row, error) { return f.rows, nil }

func (f *fakeStore) Insert(ctx context.Context, info json.RawMessage) error {
	f.inserted = append(f.inserted, info)
	f.calls <- "insert"
	return f.insertErr
}

func (f *fakeStore) Update(ctx context.Context, rowID string, info json.RawMessage) error {
	f.updated[rowID] = info
	f.calls <- "update"
	return f.updateErr
}

func (f *fakeStore) Delete(ctx context.Context, rowID string) error {
	f.deleted = append(f.deleted, rowID)
	f.calls <- "delete"
	return f.deleteErr
}

func (f *fakeStore) waitCall(t *testing.T) {
	t.Helper()
	select {
	case <-f.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a store call")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func newTestEngine(store *fakeStore) (*Engine, *fakeChannel, *fakeClock) {
	ch := newFakeChannel()
	clk := &fakeClock{now: time.Unix(9000, 0)}
	e := NewEngine(store, ch, identity.User{ID: "me", Username: "ana"}, clk)
	e.sender.Stop() // flush manually against the fake clock
	return e, ch, clk
}

func rowFor(t *testing.T, id string, s Shape) wire.Row {
	t.Helper()
	s.DBID = ""
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return wire.Row{ID: id, ShapeInfo: data}
}

func TestLoadSeedsShapes(t *testing.T) {
	store := newFakeStore()
	store.rows = []wire.Row{
		rowFor(t, "db1", Shape{ID: "s1", Type: ShapeRect, X: 10, Y: 20}),
		{ID: "db2", ShapeInfo: json.RawMessage(`{broken`)},
		rowFor(t, "db3", Shape{ID: "s3", Type: ShapeText, X: 5, Y: 5}),
	}
	e, _, _ := newTestEngine(store)

	if !e.Loading() {
		t.Fatal("engine must report loading before Load completes")
	}
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.Loading() {
		t.Fatal("engine must clear loading after Load")
	}
	shapes := e.Shapes()
	if len(shapes) != 2 {
		t.Fatalf("unreadable rows must be skipped, got %d shapes", len(shapes))
	}
	if shapes[0].DBID != "db1" || shapes[1].DBID != "db3" {
		t.Fatalf("rows must carry their persisted id as DBID, got %+v", shapes)
	}
}

func TestAddShapeEndToEnd(t *testing.T) {
	store := newFakeStore()
	e, _, _ := newTestEngine(store)

	id := e.AddShape(ShapeRect, 100, 200)
	shapes := e.Shapes()
	if len(shapes) != 1 {
		t.Fatalf("optimistic insert must appear immediately, got %d", len(shapes))
	}
	s := shapes[0]
	if s.X != 100 || s.Y != 200 || !s.Pending() || s.ID != id {
		t.Fatalf("unexpected pending shape %+v", s)
	}
	if s.Fill != "rgba(0, 100, 255, 0.5)" {
		t.Fatalf("rect fill mismatch: %q", s.Fill)
	}
	store.waitCall(t)

	// The change feed echoes the committed row; the embedded client id
	// matches, so the count stays 1 and only DBID is merged.
	e.ApplyRowInsert(wire.Row{ID: "db9", ShapeInfo: store.inserted[0]})
	shapes = e.Shapes()
	if len(shapes) != 1 {
		t.Fatalf("insert echo must not duplicate, got %d shapes", len(shapes))
	}
	if shapes[0].DBID != "db9" || shapes[0].ID != id {
		t.Fatalf("echo must only merge the DBID, got %+v", shapes[0])
	}
}

func TestAddShapeRollbackOnFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("boom")
	e, _, _ := newTestEngine(store)

	e.AddShape(ShapeCircle, 1, 2)
	store.waitCall(t)
	waitFor(t, func() bool { return len(e.Shapes()) == 0 })
}

func TestUpdateShapeRequiresDBID(t *testing.T) {
	store := newFakeStore()
	e, _, _ := newTestEngine(store)
	id := e.AddShape(ShapeRect, 10, 10)
	store.waitCall(t)

	if err := e.UpdateShape(id, 50, 50); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady for a pending shape, got %v", err)
	}
	s := e.Shapes()[0]
	if s.X != 10 || s.Y != 10 {
		t.Fatalf("failed precondition must not mutate, got %+v", s)
	}
	if err := e.UpdateShape("no-such-shape", 1, 1); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady for an unknown shape, got %v", err)
	}
}

func TestUpdateShapeRollbackRestoresPosition(t *testing.T) {
	store := newFakeStore()
	store.rows = []wire.Row{rowFor(t, "db1", Shape{ID: "s1", Type: ShapeRect, X: 10, Y: 20})}
	store.updateErr = errors.New("boom")
	e, _, _ := newTestEngine(store)
	if err := e.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := e.UpdateShape("s1", 99, 99); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Optimistic move is visible before the store answers.
	s := e.Shapes()[0]
	if s.X != 99 || s.Y != 99 {
		t.Fatalf("expected optimistic position, got %+v", s)
	}
	store.waitCall(t)
	waitFor(t, func() bool {
		s := e.Shapes()[0]
		return s.X == 10 && s.Y == 20
	})
}

func TestDeleteShapeRollbackReinserts(t *testing.T) {
	store := newFakeStore()
	store.rows = []wire.Row{rowFor(t, "db1", Shape{ID: "s1", Type: ShapeCircle, X: 3, Y: 4})}
	store.deleteErr = errors.New("boom")
	e, _, _ := newTestEngine(store)
	if err := e.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := e.DeleteShape("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(e.Shapes()) != 0 {
		t.Fatal("optimistic delete must remove the shape")
	}
	store.waitCall(t)
	waitFor(t, func() bool { return len(e.Shapes()) == 1 })
}

func TestRemoteInsertAppends(t *testing.T) {
	store := newFakeStore()
	e, _, _ := newTestEngine(store)
	e.ApplyRowInsert(rowFor(t, "db7", Shape{ID: "remote-1", Type: ShapeText, X: 7, Y: 7, UserID: "them"}))
	shapes := e.Shapes()
	if len(shapes) != 1 || shapes[0].ID != "remote-1" || shapes[0].DBID != "db7" {
		t.Fatalf("remote-origin insert must append, got %+v", shapes)
	}
}

func TestRowUpdateAndDeleteMatchOnDBID(t *testing.T) {
	store := newFakeStore()
	store.rows = []wire.Row{rowFor(t, "db1", Shape{ID: "s1", Type: ShapeRect, X: 1, Y: 1})}
	e, _, _ := newTestEngine(store)
	if err := e.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.ApplyRowUpdate(rowFor(t, "db1", Shape{ID: "s1", Type: ShapeRect, X: 42, Y: 43}))
	if s := e.Shapes()[0]; s.X != 42 || s.Y != 43 {
		t.Fatalf("feed update must apply by DBID, got %+v", s)
	}

	// Unknown rows are ignored for both updates and deletes.
	e.ApplyRowUpdate(rowFor(t, "db-unknown", Shape{ID: "sX", X: 0, Y: 0}))
	e.ApplyRowDelete(wire.Row{ID: "db-unknown"})
	if len(e.Shapes()) != 1 {
		t.Fatalf("unknown DBIDs must be ignored, got %v", e.Shapes())
	}

	e.ApplyRowDelete(wire.Row{ID: "db1"})
	if len(e.Shapes()) != 0 {
		t.Fatal("feed delete must remove by DBID")
	}
}

func TestDragSuppressionWhileLocallyDragging(t *testing.T) {
	store := newFakeStore()
	store.rows = []wire.Row{rowFor(t, "db1", Shape{ID: "s1", Type: ShapeRect, X: 5, Y: 5})}
	e, ch, _ := newTestEngine(store)
	if err := e.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	e.SetDragging("s1")
	ch.deliverDrag(t, wire.DragMove{ShapeID: "s1", X: 77, Y: 77, UserID: "them"})
	if s := e.Shapes()[0]; s.X != 5 || s.Y != 5 {
		t.Fatalf("remote drag must be suppressed during a local drag, got %+v", s)
	}

	e.SetDragging("")
	ch.deliverDrag(t, wire.DragMove{ShapeID: "s1", X: 77, Y: 78, UserID: "them"})
	if s := e.Shapes()[0]; s.X != 77 || s.Y != 78 {
		t.Fatalf("remote drag must apply after the local drag clears, got %+v", s)
	}
}

func TestOwnDragEchoIgnored(t *testing.T) {
	store := newFakeStore()
	store.rows = []wire.Row{rowFor(t, "db1", Shape{ID: "s1", Type: ShapeRect, X: 5, Y: 5})}
	e, ch, _ := newTestEngine(store)
	if err := e.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	ch.deliverDrag(t, wire.DragMove{ShapeID: "s1", X: 99, Y: 99, UserID: "me"})
	if s := e.Shapes()[0]; s.X != 5 || s.Y != 5 {
		t.Fatalf("own drag echo must be ignored, got %+v", s)
	}
}

func TestBroadcastPositionThrottles(t *testing.T) {
	store := newFakeStore()
	e, ch, clk := newTestEngine(store)

	e.BroadcastPosition("s1", 1, 1)
	e.BroadcastPosition("s1", 2, 2)
	e.BroadcastPosition("s1", 3, 3)
	if len(ch.sent) != 1 {
		t.Fatalf("drag burst must send once, got %d", len(ch.sent))
	}
	clk.advance(50 * time.Millisecond)
	e.sender.Flush()
	if len(ch.sent) != 2 || ch.sent[1].X != 3 {
		t.Fatalf("flush must carry the newest drag position, got %v", ch.sent)
	}
	if ch.sent[0].UserID != "me" {
		t.Fatalf("drag broadcast must carry the local user id, got %+v", ch.sent[0])
	}
}
