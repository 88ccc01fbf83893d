// Package presence tracks who is online. The hub reports full membership
// snapshots; the tracker rebuilds its list from each snapshot and never
// applies incremental deltas, so it cannot drift from the authoritative
// state.
package presence

import (
	"encoding/json"
	"log"
	"sync"

	"CollabCanvas/internal/identity"
)

// Channel is the slice of the realtime channel the tracker needs.
type Channel interface {
	Track(meta any) error
	Untrack() error
	OnPresence(handler func(members []json.RawMessage))
	Leave()
}

type trackedMeta struct {
	User identity.User `json:"user"`
}

// Tracker joins the presence channel, announces the local user and exposes
// the reconciled online-user list.
type Tracker struct {
	mu        sync.RWMutex
	ch        Channel
	self      identity.User
	online    []identity.User
	connected bool
	onChange  func()
}

// NewTracker subscribes and announces the given user.
func NewTracker(ch Channel, self identity.User) *Tracker {
	t := &Tracker{ch: ch, self: self}
	ch.OnPresence(t.handleSnapshot)
	if err := ch.Track(trackedMeta{User: self}); err != nil {
		log.Printf("[presence] track failed: %v", err)
	} else {
		t.mu.Lock()
		t.connected = true
		t.mu.Unlock()
	}
	return t
}

// OnChange registers a hook fired after each snapshot is applied.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) handleSnapshot(members []json.RawMessage) {
	users := make([]identity.User, 0, len(members))
	for _, m := range members {
		var meta trackedMeta
		if err := json.Unmarshal(m, &meta); err != nil {
			log.Printf("[presence] dropping member blob: %v", err)
			continue
		}
		if meta.User.ID == "" {
			continue
		}
		users = append(users, meta.User)
	}
	t.mu.Lock()
	t.online = users
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnlineUsers returns a copy of the current membership.
func (t *Tracker) OnlineUsers() []identity.User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]identity.User, len(t.online))
	copy(out, t.online)
	return out
}

// IsConnected reports whether the local user has been announced.
func (t *Tracker) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Close untracks and leaves; disappearing from the channel untracks on the
// hub side as well, so no explicit snapshot is needed.
func (t *Tracker) Close() {
	if err := t.ch.Untrack(); err != nil {
		log.Printf("[presence] untrack failed: %v", err)
	}
	t.ch.Leave()
	t.mu.Lock()
	t.online = nil
	t.connected = false
	t.mu.Unlock()
}
