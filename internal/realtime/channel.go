package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"CollabCanvas/internal/wire"
)

// Channel is a named broadcast channel on the relay. Sends are
// fire-and-forget; the hub relays them to every other member. Presence
// metadata tracked here is included in the hub's membership snapshots.
type Channel struct {
	client *Client
	name   string

	mu         sync.Mutex
	left       bool
	handlers   map[string][]func(json.RawMessage)
	onPresence func(members []json.RawMessage)
}

// Send broadcasts an event to the other members of the channel.
func (ch *Channel) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ch.client.write(wire.Envelope{
		Kind:    wire.KindBroadcast,
		Channel: ch.name,
		Event:   event,
		Payload: data,
	})
}

// On registers a handler for a broadcast event. Handlers run on the read
// loop goroutine and must not block.
func (ch *Channel) On(event string, handler func(payload json.RawMessage)) {
	ch.mu.Lock()
	ch.handlers[event] = append(ch.handlers[event], handler)
	ch.mu.Unlock()
}

// Track announces presence metadata for this connection on the channel.
func (ch *Channel) Track(meta any) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return ch.client.write(wire.Envelope{Kind: wire.KindTrack, Channel: ch.name, Payload: data})
}

// Untrack removes this connection's presence metadata.
func (ch *Channel) Untrack() error {
	return ch.client.write(wire.Envelope{Kind: wire.KindUntrack, Channel: ch.name})
}

// OnPresence registers the membership snapshot handler.
func (ch *Channel) OnPresence(handler func(members []json.RawMessage)) {
	ch.mu.Lock()
	ch.onPresence = handler
	ch.mu.Unlock()
}

// Leave unsubscribes. No handler fires after Leave returns, so a channel
// belonging to a previous identity cannot deliver stale callbacks.
func (ch *Channel) Leave() {
	ch.mu.Lock()
	if ch.left {
		ch.mu.Unlock()
		return
	}
	ch.left = true
	ch.handlers = make(map[string][]func(json.RawMessage))
	ch.onPresence = nil
	ch.mu.Unlock()

	ch.client.mu.Lock()
	delete(ch.client.channels, ch.name)
	ch.client.mu.Unlock()
	if err := ch.client.write(wire.Envelope{Kind: wire.KindLeave, Channel: ch.name}); err != nil {
		log.Printf("[realtime] leave %s: %v", ch.name, err)
	}
}

func (ch *Channel) dispatch(event string, payload json.RawMessage) {
	ch.mu.Lock()
	if ch.left {
		ch.mu.Unlock()
		return
	}
	fns := append([]func(json.RawMessage){}, ch.handlers[event]...)
	ch.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

func (ch *Channel) dispatchPresence(members []json.RawMessage) {
	ch.mu.Lock()
	fn := ch.onPresence
	ch.mu.Unlock()
	if fn != nil {
		fn(members)
	}
}
