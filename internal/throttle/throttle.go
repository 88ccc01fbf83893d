// Package throttle provides the coalescing sender used for cursor and drag
// broadcasts: at most one send per window, with a single pending slot that
// later submissions overwrite. A burst of moves inside one window collapses
// to the newest value, never a queue.
package throttle

import (
	"sync"
	"time"
)

// Clock abstracts time so the sender can be driven by a fake in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Sender owns the last-sent timestamp, one pending value and the flush
// ticker. Submit never blocks; the send callback runs on the caller's or
// the ticker's goroutine.
type Sender struct {
	mu         sync.Mutex
	clock      Clock
	window     time.Duration
	send       func(v any)
	lastSent   time.Time
	pending    any
	hasPending bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSender builds a sender over the given window. The returned sender does
// not flush pending values until Start is called.
func NewSender(window time.Duration, clock Clock, send func(v any)) *Sender {
	if clock == nil {
		clock = SystemClock
	}
	return &Sender{
		clock:  clock,
		window: window,
		send:   send,
		stop:   make(chan struct{}),
	}
}

// Submit offers a value. If the window since the last send has elapsed it is
// sent immediately; otherwise it overwrites the pending slot.
func (s *Sender) Submit(v any) {
	s.mu.Lock()
	now := s.clock.Now()
	if now.Sub(s.lastSent) < s.window {
		s.pending = v
		s.hasPending = true
		s.mu.Unlock()
		return
	}
	s.lastSent = now
	s.pending = nil
	s.hasPending = false
	s.mu.Unlock()
	s.send(v)
}

// Flush sends the pending value if the window has elapsed. The ticker calls
// this; tests call it directly with a fake clock.
func (s *Sender) Flush() {
	s.mu.Lock()
	if !s.hasPending {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if now.Sub(s.lastSent) < s.window {
		s.mu.Unlock()
		return
	}
	v := s.pending
	s.pending = nil
	s.hasPending = false
	s.lastSent = now
	s.mu.Unlock()
	s.send(v)
}

// Start launches the periodic flush loop.
func (s *Sender) Start() {
	go func() {
		ticker := time.NewTicker(s.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Flush()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the flush loop. Pending values are discarded.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
