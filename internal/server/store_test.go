package server

import (
	"encoding/json"
	"testing"
)

func TestMemoryStoreInsertAssignsIDs(t *testing.T) {
	s := NewMemoryStore()
	a, err := s.Insert(json.RawMessage(`{"type":"rect"}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := s.Insert(json.RawMessage(`{"type":"circle"}`))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.ID == "" || b.ID == "" {
		t.Fatal("expected server-assigned ids")
	}
	if a.ID == b.ID {
		t.Fatalf("ids must be unique, both %q", a.ID)
	}
}

func TestMemoryStoreSelectAllKeepsInsertOrder(t *testing.T) {
	s := NewMemoryStore()
	first, _ := s.Insert(json.RawMessage(`{"n":1}`))
	second, _ := s.Insert(json.RawMessage(`{"n":2}`))
	third, _ := s.Insert(json.RawMessage(`{"n":3}`))
	if _, err := s.Delete(second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := s.SelectAll()
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ID != first.ID || rows[1].ID != third.ID {
		t.Fatalf("order not preserved: %q, %q", rows[0].ID, rows[1].ID)
	}
}

func TestMemoryStoreUpdateUnknownID(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Update("nope", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error updating unknown id")
	}
}

func TestMemoryStoreDeleteReturnsRemovedRow(t *testing.T) {
	s := NewMemoryStore()
	row, _ := s.Insert(json.RawMessage(`{"type":"text"}`))
	removed, err := s.Delete(row.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if string(removed.ShapeInfo) != `{"type":"text"}` {
		t.Fatalf("got %s", removed.ShapeInfo)
	}
	if _, err := s.Delete(row.ID); err == nil {
		t.Fatal("expected error deleting twice")
	}
}
