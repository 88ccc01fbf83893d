package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"CollabCanvas/internal/netutil"
)

// Config is read from the environment, with a .env file layered in when one
// exists next to the binary.
type Config struct {
	Addr  string // listen address, e.g. ":8787"
	DBDSN string // Postgres DSN; empty means in-memory store
	MDNS  bool   // advertise the hub on the LAN
}

// LoadConfig reads .env (if present) and the environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}
	cfg := Config{
		Addr:  getEnv("COLLAB_ADDR", ":8787"),
		DBDSN: os.Getenv("COLLAB_DB_DSN"),
		MDNS:  getEnv("COLLAB_MDNS", "true") != "false",
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Run assembles the store, hub and router and serves until the listener
// fails. It blocks.
func Run(cfg Config) error {
	var store Store
	if cfg.DBDSN != "" {
		pg, err := OpenPostgres(cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		store = pg
		log.Println("[server] using Postgres store")
	} else {
		store = NewMemoryStore()
		log.Println("[server] using in-memory store")
	}

	hub := NewHub(store)
	router := NewRouter(hub)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if cfg.MDNS {
		mdnsServer, err := netutil.Advertise(port)
		if err != nil {
			log.Printf("[server] mDNS advertisement failed: %v", err)
		} else {
			defer mdnsServer.Shutdown()
			log.Println("[server] advertising via mDNS")
		}
	}

	if ip, err := netutil.OutgoingIP(); err == nil {
		log.Printf("[server] listening on %s (ws://%s/ws)", cfg.Addr, net.JoinHostPort(ip, strconv.Itoa(port)))
	} else {
		log.Printf("[server] listening on %s", cfg.Addr)
	}

	return http.Serve(ln, router)
}
