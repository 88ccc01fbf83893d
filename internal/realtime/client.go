// Package realtime is the client side of the relay: one websocket carrying
// named broadcast channels, presence tracking and the durable shape table
// ops. Channels are not automatically re-established after a transport
// drop; they are only rebuilt when the identity changes, matching the
// original's behavior.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CollabCanvas/internal/wire"
)

const requestTimeout = 10 * time.Second

// Client multiplexes channels and requests over a single connection.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu       sync.Mutex
	channels map[string]*Channel
	pending  map[uint64]chan wire.Result
	nextSeq  uint64

	onRowInsert func(wire.Row)
	onRowUpdate func(wire.Row)
	onRowDelete func(wire.Row)

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the hub websocket endpoint (ws://host/ws) and starts the
// read loop.
func Dial(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial %s: %w", url, err)
	}
	c := &Client{
		conn:     conn,
		channels: make(map[string]*Channel),
		pending:  make(map[uint64]chan wire.Result),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("[realtime] connection closed: %v", err)
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			log.Printf("[realtime] dropping frame: %v", err)
			continue
		}
		switch env.Kind {
		case wire.KindBroadcast:
			if ch := c.channel(env.Channel); ch != nil {
				ch.dispatch(env.Event, env.Payload)
			}
		case wire.KindPresence:
			var p wire.Presence
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				log.Printf("[realtime] dropping presence frame: %v", err)
				continue
			}
			if ch := c.channel(env.Channel); ch != nil {
				ch.dispatchPresence(p.Members)
			}
		case wire.KindResult:
			var res wire.Result
			if err := json.Unmarshal(env.Payload, &res); err != nil {
				log.Printf("[realtime] dropping result frame: %v", err)
				continue
			}
			c.mu.Lock()
			waiter := c.pending[env.Seq]
			delete(c.pending, env.Seq)
			c.mu.Unlock()
			if waiter != nil {
				waiter <- res
			}
		case wire.KindRowInsert, wire.KindRowUpdate, wire.KindRowDelete:
			var row wire.Row
			if err := json.Unmarshal(env.Payload, &row); err != nil {
				log.Printf("[realtime] dropping row frame: %v", err)
				continue
			}
			c.mu.Lock()
			var fn func(wire.Row)
			switch env.Kind {
			case wire.KindRowInsert:
				fn = c.onRowInsert
			case wire.KindRowUpdate:
				fn = c.onRowUpdate
			case wire.KindRowDelete:
				fn = c.onRowDelete
			}
			c.mu.Unlock()
			if fn != nil {
				fn(row)
			}
		}
	}
}

func (c *Client) channel(name string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[name]
}

func (c *Client) write(env wire.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

// Channel joins the named channel and returns its handle. Calling it twice
// with the same name returns the same handle.
func (c *Client) Channel(name string) *Channel {
	c.mu.Lock()
	if ch, ok := c.channels[name]; ok {
		c.mu.Unlock()
		return ch
	}
	ch := &Channel{client: c, name: name, handlers: make(map[string][]func(json.RawMessage))}
	c.channels[name] = ch
	c.mu.Unlock()
	if err := c.write(wire.Envelope{Kind: wire.KindJoin, Channel: name}); err != nil {
		log.Printf("[realtime] join %s: %v", name, err)
	}
	return ch
}

// OnRowInsert installs the durable change-feed insert handler.
func (c *Client) OnRowInsert(fn func(wire.Row)) {
	c.mu.Lock()
	c.onRowInsert = fn
	c.mu.Unlock()
}

// OnRowUpdate installs the durable change-feed update handler.
func (c *Client) OnRowUpdate(fn func(wire.Row)) {
	c.mu.Lock()
	c.onRowUpdate = fn
	c.mu.Unlock()
}

// OnRowDelete installs the durable change-feed delete handler.
func (c *Client) OnRowDelete(fn func(wire.Row)) {
	c.mu.Lock()
	c.onRowDelete = fn
	c.mu.Unlock()
}

func (c *Client) request(ctx context.Context, env wire.Envelope) (wire.Result, error) {
	waiter := make(chan wire.Result, 1)
	c.mu.Lock()
	c.nextSeq++
	env.Seq = c.nextSeq
	c.pending[env.Seq] = waiter
	c.mu.Unlock()

	if err := c.write(env); err != nil {
		c.mu.Lock()
		delete(c.pending, env.Seq)
		c.mu.Unlock()
		return wire.Result{}, err
	}
	select {
	case res := <-waiter:
		if !res.OK {
			return res, fmt.Errorf("realtime: %s failed: %s", env.Kind, res.Error)
		}
		return res, nil
	case <-ctx.Done():
		return wire.Result{}, ctx.Err()
	case <-time.After(requestTimeout):
		return wire.Result{}, fmt.Errorf("realtime: %s timed out", env.Kind)
	case <-c.closed:
		return wire.Result{}, fmt.Errorf("realtime: connection closed")
	}
}

// SelectAll fetches the full durable row set.
func (c *Client) SelectAll(ctx context.Context) ([]wire.Row, error) {
	res, err := c.request(ctx, wire.Envelope{Kind: wire.KindSelect})
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Insert persists a new shape row; the server assigns the row id and the
// change feed delivers it back.
func (c *Client) Insert(ctx context.Context, shapeInfo json.RawMessage) error {
	_, err := c.request(ctx, wire.Envelope{Kind: wire.KindInsert, Payload: shapeInfo})
	return err
}

// Update rewrites the shape payload of an existing row.
func (c *Client) Update(ctx context.Context, rowID string, shapeInfo json.RawMessage) error {
	_, err := c.request(ctx, wire.Envelope{Kind: wire.KindUpdate, RowID: rowID, Payload: shapeInfo})
	return err
}

// Delete removes a row.
func (c *Client) Delete(ctx context.Context, rowID string) error {
	_, err := c.request(ctx, wire.Envelope{Kind: wire.KindDelete, RowID: rowID})
	return err
}

// Close tears the connection down and fails outstanding requests.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}
