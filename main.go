package main

import (
	"context"
	"log"
	"os"
	"time"

	"CollabCanvas/internal/board"
	"CollabCanvas/internal/cursor"
	"CollabCanvas/internal/identity"
	"CollabCanvas/internal/netutil"
	"CollabCanvas/internal/presence"
	"CollabCanvas/internal/realtime"
	"CollabCanvas/internal/server"
	"CollabCanvas/internal/shapelock"
	"CollabCanvas/internal/throttle"
	"CollabCanvas/internal/ui"
	"CollabCanvas/internal/wire"
)

const loadTimeout = 15 * time.Second

func main() {
	args := os.Args
	if len(args) > 1 && args[1] == "serve" {
		if err := server.Run(server.LoadConfig()); err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	addr := ""
	if len(args) > 1 {
		addr = args[1]
	}
	runClient(addr)
}

func runClient(addr string) {
	if addr == "" {
		log.Println("No hub address given, browsing the local network...")
		addr = discoverHub()
	}
	if addr == "" {
		log.Fatal("no hub found; start one with 'serve' or pass host:port")
	}
	log.Printf("Using hub at %s", addr)

	session := identity.NewSession("http://" + addr)
	ui.Run(session, func(user identity.User) (*ui.Workspace, error) {
		return connect(addr, user)
	})
}

// connect dials the hub and assembles the per-identity sync components.
func connect(addr string, user identity.User) (*ui.Workspace, error) {
	client, err := realtime.Dial("ws://" + addr + "/ws")
	if err != nil {
		return nil, err
	}

	engine := board.NewEngine(client, client.Channel(wire.ChannelDrag), user, throttle.SystemClock)
	tracker := presence.NewTracker(client.Channel(wire.ChannelPresence), user)
	cursors := cursor.NewBroadcaster(client.Channel(wire.ChannelCursors), user, throttle.SystemClock)
	locks := shapelock.NewManager(client.Channel(wire.ChannelLocks), user)

	closeAll := func() {
		tracker.Close()
		cursors.Close()
		locks.Close()
		engine.Close()
		client.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := engine.Load(ctx); err != nil {
		closeAll()
		return nil, err
	}

	// Feed handlers go in after the load so every event lands on a seeded
	// shape list.
	client.OnRowInsert(engine.ApplyRowInsert)
	client.OnRowUpdate(engine.ApplyRowUpdate)
	client.OnRowDelete(engine.ApplyRowDelete)

	return &ui.Workspace{
		Self:     user,
		Engine:   engine,
		Locks:    locks,
		Cursors:  cursors,
		Presence: tracker,
		Close:    closeAll,
	}, nil
}

// discoverHub looks the hub up via mDNS and returns the first answer.
func discoverHub() string {
	found := make(chan string, 1)
	if err := netutil.Browse(func(addr string) {
		select {
		case found <- addr:
		default:
		}
	}); err != nil {
		log.Printf("mDNS browse failed: %v", err)
		return ""
	}
	select {
	case addr := <-found:
		return addr
	case <-time.After(time.Second):
		return ""
	}
}
