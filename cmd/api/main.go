package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-editor/internal/config"
	"pdf-editor/internal/handler"
	"pdf-editor/internal/metrics"
	"pdf-editor/internal/pdfops"
	"pdf-editor/internal/preview"
	"pdf-editor/internal/service"
	"pdf-editor/internal/storage"
	"pdf-editor/internal/store"
	"pdf-editor/internal/sweeper"
)

func main() {
	port := flag.String("port", "8080", "HTTP server port")
	backend := flag.String("store", "redis", "job store backend: redis or sqlite")
	dbPath := flag.String("db", "jobs.db", "path to SQLite database (sqlite backend only)")
	sweepEvery := flag.Duration("sweep-interval", 10*time.Minute, "expired-folder sweep interval (0 disables)")
	flag.Parse()

	cfg := config.FromEnv()

	kv, err := openStore(*backend, *dbPath, cfg)
	if err != nil {
		log.Fatalf("failed to initialize job store: %v", err)
	}
	defer kv.Close()

	layout := storage.NewLayout(cfg.StorageRoot)
	if err := layout.EnsureRoot(); err != nil {
		log.Fatalf("failed to create storage root %s: %v", cfg.StorageRoot, err)
	}

	metricsInstance := metrics.NewMetrics()
	renderer := preview.NewRenderer(cfg.GsBin, cfg.GsTimeout)
	jobService := service.NewJobService(kv, layout, pdfops.NewToolbox(), renderer, metricsInstance, service.Options{
		TTL:          cfg.TTL,
		MaxFileSize:  cfg.MaxFileSize,
		MaxFiles:     cfg.MaxFiles,
		MaxPages:     cfg.MaxPages,
		MaxImageSize: cfg.MaxImageSize,
	})

	pdfHandler := handler.NewPDFHandler(jobService, metricsInstance)

	// CORS middleware - sets headers for all responses
	corsMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()
	pdfHandler.Register(mux)

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: corsMiddleware(mux),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *sweepEvery > 0 {
		sw := sweeper.NewSweeper(kv, layout)
		go func() {
			if err := sw.Run(ctx, *sweepEvery); err != nil && err != context.Canceled {
				log.Printf("sweeper stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("API server starting on port %s (store=%s)", *port, *backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("shutting down server...")
	cancel()
	if err := server.Close(); err != nil {
		log.Printf("error closing server: %v", err)
	}
	log.Println("server stopped")
}

// openStore selects the KV backend.
func openStore(backend, dbPath string, cfg config.Config) (store.KV, error) {
	switch backend {
	case "sqlite":
		return store.NewSQLiteKV(dbPath)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.NewRedisKV(ctx, cfg.RedisURL)
	}
}
