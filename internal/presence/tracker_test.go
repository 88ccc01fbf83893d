package presence

import (
	"encoding/json"
	"testing"

	"CollabCanvas/internal/identity"
)

type fakeChannel struct {
	tracked    []any
	untracked  int
	left       bool
	onPresence func(members []json.RawMessage)
}

func (f *fakeChannel) Track(meta any) error { f.tracked = append(f.tracked, meta); return nil }
func (f *fakeChannel) Untrack() error       { f.untracked++; return nil }
func (f *fakeChannel) Leave()               { f.left = true }
func (f *fakeChannel) OnPresence(fn func(members []json.RawMessage)) {
	f.onPresence = fn
}

func member(t *testing.T, u identity.User) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(trackedMeta{User: u})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestTrackerAnnouncesSelf(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, identity.User{ID: "u1", Username: "ana"})
	if len(ch.tracked) != 1 {
		t.Fatalf("expected one track call, got %d", len(ch.tracked))
	}
	if !tr.IsConnected() {
		t.Fatal("tracker should report connected after track")
	}
}

func TestSnapshotRebuildsOnlineList(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, identity.User{ID: "u1", Username: "ana"})

	ch.onPresence([]json.RawMessage{
		member(t, identity.User{ID: "u1", Username: "ana", Color: "#FF6B6B"}),
		member(t, identity.User{ID: "u2", Username: "bob", Color: "#4ECDC4"}),
	})
	users := tr.OnlineUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 online users, got %d", len(users))
	}

	// The next snapshot fully replaces the previous list.
	ch.onPresence([]json.RawMessage{
		member(t, identity.User{ID: "u2", Username: "bob"}),
	})
	users = tr.OnlineUsers()
	if len(users) != 1 || users[0].ID != "u2" {
		t.Fatalf("snapshot should replace the list, got %v", users)
	}
}

func TestSnapshotSkipsMalformedMembers(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, identity.User{ID: "u1"})

	ch.onPresence([]json.RawMessage{
		json.RawMessage(`{broken`),
		json.RawMessage(`{"user":{}}`),
		member(t, identity.User{ID: "u3", Username: "cleo"}),
	})
	users := tr.OnlineUsers()
	if len(users) != 1 || users[0].ID != "u3" {
		t.Fatalf("malformed and empty members must be skipped, got %v", users)
	}
}

func TestCloseUntracksAndLeaves(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, identity.User{ID: "u1"})
	ch.onPresence([]json.RawMessage{member(t, identity.User{ID: "u1"})})

	tr.Close()
	if ch.untracked != 1 || !ch.left {
		t.Fatalf("close must untrack and leave, got untracked=%d left=%v", ch.untracked, ch.left)
	}
	if tr.IsConnected() || len(tr.OnlineUsers()) != 0 {
		t.Fatal("closed tracker should report empty, disconnected state")
	}
}
