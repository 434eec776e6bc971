package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/garnizeh/empleo/api"
	dbfs "github.com/garnizeh/empleo/db"
	"github.com/garnizeh/empleo/internal/config"
	"github.com/garnizeh/empleo/internal/db"
	"github.com/garnizeh/empleo/internal/queue"
	"github.com/garnizeh/empleo/internal/repository/sqlite"
	"github.com/garnizeh/empleo/internal/workflow"
	"github.com/garnizeh/empleo/pkg/models"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	api.SetLogger(logger)

	log.Printf("Starting empleo server version %s (built at %s)", version, buildTime)

	ctx := context.Background()

	// Open database connection
	d, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := sqlite.New(d, logger)
	queueRepo := queue.NewRepository(d)

	// The worker pool double-duties as the engine's enqueuer; handlers are
	// registered after the engine exists because the retry handler calls
	// back into it.
	handlers := map[string]queue.Handler{}
	pool := queue.NewWorkerPool(queueRepo, handlers, logger, cfg.WorkerCount)

	engine, err := workflow.NewEngine(repo, repo, repo, repo, pool, logger)
	if err != nil {
		log.Fatalf("Failed to create workflow engine: %v", err)
	}
	handlers[workflow.JobPublishRetry] = publishRetryHandler(engine)

	pool.Start(ctx)

	// requests left short of publication by a crash or a failed enqueue
	// get their retry jobs back on startup
	if _, err := engine.SweepUnpublished(ctx); err != nil {
		logger.Error("sweep unpublished requests", "err", err)
	}

	handler := api.SetupRoutes(cfg, version, buildTime, engine, &api.Repos{Requests: repo, Accounts: repo})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	pool.Stop()

	// Close database connection
	if err := d.Close(); err != nil {
		log.Printf("Error closing DB: %v", err)
	}

	log.Println("Server exited")
}

func publishRetryHandler(engine *workflow.Engine) queue.Handler {
	return func(ctx context.Context, j *models.QueueJob) error {
		var p workflow.PublishRetryPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return err
		}
		return engine.RetryPublish(ctx, p.RequestID)
	}
}
