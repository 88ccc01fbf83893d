// Package wire defines the JSON protocol spoken between the client and the
// relay hub. Every frame is an Envelope with a closed set of kinds; the
// ephemeral broadcast payloads are fixed structs that validate themselves,
// so a malformed message is dropped at the edge instead of flowing into
// component state.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope kinds, client to hub.
const (
	KindJoin      = "join"      // enter a named channel
	KindLeave     = "leave"     // leave a named channel
	KindTrack     = "track"     // attach presence metadata to a channel
	KindUntrack   = "untrack"   // remove presence metadata
	KindBroadcast = "broadcast" // ephemeral fan-out to other channel members
	KindInsert    = "insert"    // durable row insert
	KindUpdate    = "update"    // durable row update
	KindDelete    = "delete"    // durable row delete
	KindSelect    = "select"    // fetch all durable rows
)

// Envelope kinds, hub to client. Broadcast is reused for relayed frames.
const (
	KindPresence  = "presence"   // full membership snapshot for a channel
	KindResult    = "result"     // response to a durable op, matched by seq
	KindRowInsert = "row-insert" // change feed: row committed
	KindRowUpdate = "row-update" // change feed: row changed
	KindRowDelete = "row-delete" // change feed: row removed
)

// Channel and broadcast event names shared by both ends.
const (
	ChannelPresence = "canvas-presence"
	ChannelCursors  = "canvas-cursors"
	ChannelLocks    = "shape-locks"
	ChannelDrag     = "shape-drag-positions"

	EventCursorMove = "cursor-move"
	EventDragMove   = "drag-move"
	EventLock       = "lock"
	EventUnlock     = "unlock"
)

var ErrUnknownKind = errors.New("wire: unknown envelope kind")

// Envelope is the single frame type carried over the websocket.
type Envelope struct {
	Kind    string          `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`
	RowID   string          `json:"row_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var knownKinds = map[string]bool{
	KindJoin: true, KindLeave: true, KindTrack: true, KindUntrack: true,
	KindBroadcast: true, KindInsert: true, KindUpdate: true,
	KindDelete: true, KindSelect: true, KindPresence: true,
	KindResult: true, KindRowInsert: true, KindRowUpdate: true,
	KindRowDelete: true,
}

// Decode parses a frame and rejects kinds outside the closed set.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode frame: %w", err)
	}
	if !knownKinds[env.Kind] {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	return env, nil
}

// Row is one durable shape row: a server-assigned id plus the opaque
// shape payload the client stored.
type Row struct {
	ID        string          `json:"id"`
	ShapeInfo json.RawMessage `json:"shape_info"`
}

// Result answers a durable op. Rows is only set for select.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Rows  []Row  `json:"rows,omitempty"`
}

// Presence carries the full membership snapshot of one channel. Each
// member blob is whatever metadata that member tracked.
type Presence struct {
	Members []json.RawMessage `json:"members"`
}

// CursorMove is one cursor position sample in world coordinates.
type CursorMove struct {
	UserID    string  `json:"userId"`
	Username  string  `json:"username"`
	Color     string  `json:"color"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

func (c CursorMove) Validate() error {
	if c.UserID == "" {
		return errors.New("wire: cursor-move missing userId")
	}
	return nil
}

// DragMove is an ephemeral shape position sample sent while dragging.
type DragMove struct {
	ShapeID string  `json:"shapeId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	UserID  string  `json:"userId"`
}

func (d DragMove) Validate() error {
	if d.ShapeID == "" {
		return errors.New("wire: drag-move missing shapeId")
	}
	if d.UserID == "" {
		return errors.New("wire: drag-move missing userId")
	}
	return nil
}

// Lock claims a shape for one user.
type Lock struct {
	ShapeID  string `json:"shapeId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

func (l Lock) Validate() error {
	if l.ShapeID == "" {
		return errors.New("wire: lock missing shapeId")
	}
	if l.UserID == "" {
		return errors.New("wire: lock missing userId")
	}
	return nil
}

// Unlock releases a claim. Only honored when UserID matches the holder.
type Unlock struct {
	ShapeID string `json:"shapeId"`
	UserID  string `json:"userId"`
}

func (u Unlock) Validate() error {
	if u.ShapeID == "" {
		return errors.New("wire: unlock missing shapeId")
	}
	if u.UserID == "" {
		return errors.New("wire: unlock missing userId")
	}
	return nil
}
