// Package server is the backend the clients delegate to: a websocket relay
// for named broadcast channels and presence, the durable shape table with
// its change feed, and the mock auth endpoints.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"CollabCanvas/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub relays ephemeral broadcasts between channel members, maintains
// presence metadata, and applies durable ops to the store, fanning the
// resulting change-feed events out to every connection in commit order.
type Hub struct {
	store Store

	mu    sync.RWMutex
	conns map[*conn]bool
}

type conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	mu       sync.Mutex
	channels map[string]bool
	presence map[string]json.RawMessage // channel -> tracked metadata
}

// NewHub serves the given store.
func NewHub(store Store) *Hub {
	return &Hub{store: store, conns: make(map[*conn]bool)}
}

// HandleWS upgrades the request and runs the connection until it drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[hub] upgrade error: %v", err)
		return
	}
	c := &conn{
		ws:       ws,
		channels: make(map[string]bool),
		presence: make(map[string]json.RawMessage),
	}
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
	log.Printf("[hub] client connected: %s", ws.RemoteAddr())

	defer func() {
		h.drop(c)
		ws.Close()
		log.Printf("[hub] client disconnected: %s", ws.RemoteAddr())
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			log.Printf("[hub] dropping frame from %s: %v", ws.RemoteAddr(), err)
			continue
		}
		h.handle(c, env)
	}
}

// drop removes a connection and untracks it from every channel it had
// presence on, so the remaining members get fresh snapshots.
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()

	c.mu.Lock()
	tracked := make([]string, 0, len(c.presence))
	for name := range c.presence {
		tracked = append(tracked, name)
	}
	c.presence = make(map[string]json.RawMessage)
	c.mu.Unlock()

	for _, name := range tracked {
		h.broadcastPresence(name)
	}
}

func (h *Hub) handle(c *conn, env wire.Envelope) {
	switch env.Kind {
	case wire.KindJoin:
		c.mu.Lock()
		c.channels[env.Channel] = true
		c.mu.Unlock()
		// Late joiners still need the current membership.
		h.sendPresence(c, env.Channel)
	case wire.KindLeave:
		c.mu.Lock()
		delete(c.channels, env.Channel)
		_, hadPresence := c.presence[env.Channel]
		delete(c.presence, env.Channel)
		c.mu.Unlock()
		if hadPresence {
			h.broadcastPresence(env.Channel)
		}
	case wire.KindTrack:
		c.mu.Lock()
		c.presence[env.Channel] = env.Payload
		c.mu.Unlock()
		h.broadcastPresence(env.Channel)
	case wire.KindUntrack:
		c.mu.Lock()
		delete(c.presence, env.Channel)
		c.mu.Unlock()
		h.broadcastPresence(env.Channel)
	case wire.KindBroadcast:
		h.relay(c, env)
	case wire.KindSelect:
		rows, err := h.store.SelectAll()
		c.sendResult(env.Seq, rows, err)
	case wire.KindInsert:
		row, err := h.store.Insert(env.Payload)
		c.sendResult(env.Seq, nil, err)
		if err == nil {
			h.feed(wire.KindRowInsert, row)
		}
	case wire.KindUpdate:
		row, err := h.store.Update(env.RowID, env.Payload)
		c.sendResult(env.Seq, nil, err)
		if err == nil {
			h.feed(wire.KindRowUpdate, row)
		}
	case wire.KindDelete:
		row, err := h.store.Delete(env.RowID)
		c.sendResult(env.Seq, nil, err)
		if err == nil {
			h.feed(wire.KindRowDelete, row)
		}
	}
}

// relay forwards a broadcast to every other member of the channel. The
// sender never hears its own ephemeral messages back.
func (h *Hub) relay(sender *conn, env wire.Envelope) {
	out := wire.Envelope{
		Kind:    wire.KindBroadcast,
		Channel: env.Channel,
		Event:   env.Event,
		Payload: env.Payload,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if c == sender {
			continue
		}
		c.mu.Lock()
		member := c.channels[env.Channel]
		c.mu.Unlock()
		if member {
			c.send(out)
		}
	}
}

// feed delivers a change-feed event to every connection, the author
// included: the echo is what attaches server row ids to optimistic inserts.
func (h *Hub) feed(kind string, row wire.Row) {
	payload, err := json.Marshal(row)
	if err != nil {
		log.Printf("[hub] feed marshal: %v", err)
		return
	}
	env := wire.Envelope{Kind: kind, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.send(env)
	}
}

func (h *Hub) snapshot(channel string) wire.Presence {
	var members []json.RawMessage
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.mu.Lock()
		if meta, ok := c.presence[channel]; ok {
			members = append(members, meta)
		}
		c.mu.Unlock()
	}
	return wire.Presence{Members: members}
}

func (h *Hub) broadcastPresence(channel string) {
	snap := h.snapshot(channel)
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[hub] presence marshal: %v", err)
		return
	}
	env := wire.Envelope{Kind: wire.KindPresence, Channel: channel, Payload: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.mu.Lock()
		member := c.channels[channel]
		c.mu.Unlock()
		if member {
			c.send(env)
		}
	}
}

func (h *Hub) sendPresence(c *conn, channel string) {
	snap := h.snapshot(channel)
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	c.send(wire.Envelope{Kind: wire.KindPresence, Channel: channel, Payload: payload})
}

func (c *conn) send(env wire.Envelope) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(env); err != nil {
		log.Printf("[hub] write to %s failed: %v", c.ws.RemoteAddr(), err)
	}
}

func (c *conn) sendResult(seq uint64, rows []wire.Row, err error) {
	res := wire.Result{OK: err == nil, Rows: rows}
	if err != nil {
		res.Error = err.Error()
	}
	payload, merr := json.Marshal(res)
	if merr != nil {
		log.Printf("[hub] result marshal: %v", merr)
		return
	}
	c.send(wire.Envelope{Kind: wire.KindResult, Seq: seq, Payload: payload})
}
