// Package main is the entry point for CyclopsCmd: it wires the connection
// pool, room registry, batch scheduler, stream gateway, result sink, and
// config store into one HTTP server, then serves spec.md §6's interface.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kenny-hash/CyclopsCmd/internal/api"
	"github.com/kenny-hash/CyclopsCmd/internal/batch"
	"github.com/kenny-hash/CyclopsCmd/internal/exec"
	"github.com/kenny-hash/CyclopsCmd/internal/room"
	"github.com/kenny-hash/CyclopsCmd/internal/sink"
	"github.com/kenny-hash/CyclopsCmd/internal/ssh"
	"github.com/kenny-hash/CyclopsCmd/internal/store"
	"github.com/kenny-hash/CyclopsCmd/internal/stream"
)

const (
	serverName = "cyclopscmd"

	defaultAddr  = ":8080"
	defaultDB    = "./data/cyclops.db"
	defaultDebug = "false"
)

// Injected at build time.
var commitSHA = "dev"

func main() {
	// Configuration precedence: flag > env > default, matching the
	// teacher's getEnv-then-flag.String pattern.
	getEnv := func(key, fallback string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return fallback
	}

	addrEnv := getEnv("ADDR", defaultAddr)
	dbEnv := getEnv("CYCLOPS_DB", defaultDB)
	debugEnv := getEnv("DEBUG_MODE", defaultDebug)

	addr := flag.String("addr", addrEnv, "HTTP listen address")
	dbPath := flag.String("db", dbEnv, "path to the SQLite database file")
	debug := flag.Bool("debug", isTruthy(debugEnv), "enable verbose logging")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	log.Printf("starting %s (commit=%s, addr=%s, db=%s)", serverName, commitSHA, *addr, *dbPath)

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.Fatalf("create db directory %s: %v", dir, err)
		}
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	pool := ssh.NewPool("")
	snk := sink.New(st)
	worker := &exec.Worker{Pool: pool, Sink: snk}
	scheduler := batch.NewScheduler(worker)
	rooms := room.NewRegistry()
	gateway := stream.NewGateway(rooms, scheduler)
	configs := api.NewConfigHandler(st)

	handler := api.NewServer(rooms, gateway, configs)
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: handler,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[http] listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("[http] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[http] shutdown error: %v", err)
	}

	rooms.Close()
	pool.Close()
	if err := st.Close(); err != nil {
		log.Printf("[http] store close error: %v", err)
	}

	log.Println("[http] server stopped")
}

// isTruthy matches spec §6's DEBUG_MODE truthy set: "true", "1", "t".
func isTruthy(value string) bool {
	switch value {
	case "true", "1", "t":
		return true
	default:
		return false
	}
}

