// Package cursor broadcasts the local pointer position and mirrors remote
// cursors. Outbound positions are throttled to one per 50ms with
// most-recent-wins coalescing; remote entries are evicted once they go 5s
// stale.
package cursor

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/throttle"
	"CollabCanvas/internal/wire"
)

const (
	// ThrottleInterval caps outbound cursor messages, one per window.
	ThrottleInterval = 50 * time.Millisecond
	// staleAfter is how long an idle remote cursor survives.
	staleAfter = 5 * time.Second
	// sweepInterval is how often stale cursors are collected.
	sweepInterval = time.Second
)

// Channel is the slice of the realtime channel the broadcaster needs.
type Channel interface {
	Send(event string, payload any) error
	On(event string, handler func(payload json.RawMessage))
	Leave()
}

type position struct {
	x, y float64
}

// Broadcaster owns the remote cursor map and the throttled outbound sender.
type Broadcaster struct {
	mu       sync.RWMutex
	ch       Channel
	self     identity.User
	clock    throttle.Clock
	sender   *throttle.Sender
	cursors  map[string]wire.CursorMove
	onChange func()

	stop     chan struct{}
	stopOnce sync.Once
}

// NewBroadcaster subscribes to the cursor channel and starts the flush and
// eviction tickers. Pass throttle.SystemClock outside tests.
func NewBroadcaster(ch Channel, self identity.User, clock throttle.Clock) *Broadcaster {
	if clock == nil {
		clock = throttle.SystemClock
	}
	b := &Broadcaster{
		ch:      ch,
		self:    self,
		clock:   clock,
		cursors: make(map[string]wire.CursorMove),
		stop:    make(chan struct{}),
	}
	b.sender = throttle.NewSender(ThrottleInterval, clock, b.sendNow)
	b.sender.Start()
	ch.On(wire.EventCursorMove, b.handleRemote)
	go b.sweepLoop()
	return b
}

// OnChange registers a hook fired whenever the remote cursor map changes.
func (b *Broadcaster) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Broadcast submits the local pointer position in world coordinates. Calls
// inside the throttle window overwrite the single pending slot.
func (b *Broadcaster) Broadcast(x, y float64) {
	b.sender.Submit(position{x: x, y: y})
}

func (b *Broadcaster) sendNow(v any) {
	p, ok := v.(position)
	if !ok {
		return
	}
	msg := wire.CursorMove{
		UserID:    b.self.ID,
		Username:  b.self.Username,
		Color:     b.self.Color,
		X:         p.x,
		Y:         p.y,
		Timestamp: b.clock.Now().UnixMilli(),
	}
	if err := b.ch.Send(wire.EventCursorMove, msg); err != nil {
		log.Printf("[cursor] broadcast failed: %v", err)
	}
}

func (b *Broadcaster) handleRemote(payload json.RawMessage) {
	var msg wire.CursorMove
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[cursor] dropping payload: %v", err)
		return
	}
	if err := msg.Validate(); err != nil {
		log.Printf("[cursor] dropping payload: %v", err)
		return
	}
	// Never mirror our own echo.
	if msg.UserID == b.self.ID {
		return
	}
	b.mu.Lock()
	b.cursors[msg.UserID] = msg
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cursors returns a copy of the remote cursor map keyed by user id.
func (b *Broadcaster) Cursors() map[string]wire.CursorMove {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]wire.CursorMove, len(b.cursors))
	for id, c := range b.cursors {
		out[id] = c
	}
	return out
}

func (b *Broadcaster) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.evictStale()
		case <-b.stop:
			return
		}
	}
}

func (b *Broadcaster) evictStale() {
	now := b.clock.Now().UnixMilli()
	b.mu.Lock()
	var changed bool
	for id, c := range b.cursors {
		if now-c.Timestamp > staleAfter.Milliseconds() {
			delete(b.cursors, id)
			changed = true
		}
	}
	fn := b.onChange
	b.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

// Close stops the tickers and leaves the channel.
func (b *Broadcaster) Close() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.sender.Stop()
	b.ch.Leave()
}
