// Command sweeper removes job folders whose store record is missing or
// expired. Run it periodically (or with -once from cron) alongside the
// API server when the in-process sweep is disabled.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-editor/internal/config"
	"pdf-editor/internal/storage"
	"pdf-editor/internal/store"
	"pdf-editor/internal/sweeper"
)

func main() {
	backend := flag.String("store", "redis", "job store backend: redis or sqlite")
	dbPath := flag.String("db", "jobs.db", "path to SQLite database (sqlite backend only)")
	interval := flag.Duration("interval", 10*time.Minute, "sweep interval")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg := config.FromEnv()

	var kv store.KV
	var err error
	switch *backend {
	case "sqlite":
		kv, err = store.NewSQLiteKV(*dbPath)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		kv, err = store.NewRedisKV(ctx, cfg.RedisURL)
		cancel()
	}
	if err != nil {
		log.Fatalf("failed to initialize job store: %v", err)
	}
	defer kv.Close()

	sw := sweeper.NewSweeper(kv, storage.NewLayout(cfg.StorageRoot))

	if *once {
		removed, err := sw.Sweep(context.Background())
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		log.Printf("sweep done, removed %d folder(s)", removed)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutting down sweeper...")
		cancel()
	}()

	log.Printf("sweeper starting, interval=%s", *interval)
	if err := sw.Run(ctx, *interval); err != nil && err != context.Canceled {
		log.Fatalf("sweeper error: %v", err)
	}
}
