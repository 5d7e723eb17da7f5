package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"uqflow/internal/config"
	"uqflow/internal/database"
	"uqflow/internal/messaging"
	"uqflow/internal/server"
	"uqflow/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

// promlocal is a single-machine stand-in for a PROMINENCE server. It speaks
// the same REST API but runs job commands locally instead of dispatching them
// to remote compute resources.

func createDatabase(cfg config.ServerConfig) *gorm.DB {
	url := cfg.DatabaseURL
	if !strings.HasPrefix(url, "postgres://") && !strings.HasPrefix(url, "postgresql://") {
		url = filepath.Join(cfg.DataDir, url)
		if err := os.MkdirAll(filepath.Dir(url), os.ModePerm); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}

	db, err := database.Open(url)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return db
}

func createQueue(cfg config.ServerConfig) (messaging.Publisher, messaging.Receiver) {
	if cfg.AMQPURL != "" {
		publisher, err := messaging.NewRabbitMQPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		receiver, err := messaging.NewRabbitMQReceiver(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Failed to start RabbitMQ consumer: %v", err)
		}
		return publisher, receiver
	}

	queue := messaging.NewInMemoryQueue()
	return queue, queue
}

func createObjectStore(cfg config.ServerConfig) storage.ObjectStore {
	if cfg.S3EndpointURL != "" || cfg.S3AccessKeyID != "" {
		store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to create S3 object store: %v", err)
		}
		return store
	}

	store, err := storage.NewLocalObjectStore(filepath.Join(cfg.DataDir, "storage"))
	if err != nil {
		log.Fatalf("Failed to create local object store: %v", err)
	}
	return store
}

func createServer(db *gorm.DB, publisher messaging.Publisher, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	server.NewService(db, publisher).AddRoutes(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	slog.Info("starting local prominence server", "port", cfg.Port, "data_dir", cfg.DataDir, "concurrency", cfg.Concurrency)

	db := createDatabase(cfg)

	publisher, receiver := createQueue(cfg)
	defer publisher.Close()
	defer receiver.Close()

	store := createObjectStore(cfg)
	if err := store.CreateBucket(context.Background(), cfg.OutputBucket); err != nil {
		log.Fatalf("Failed to create output bucket: %v", err)
	}

	executor := server.NewExecutor(db, store, cfg.OutputBucket, cfg.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			executor.Run(ctx, receiver.Tasks())
		}()
	}

	// Replay only once the executors consume: the in-memory queue's buffer
	// is bounded, a large backlog would block the publish otherwise.
	if cfg.AMQPURL == "" {
		count, err := server.RequeuePendingJobs(ctx, db, publisher)
		if err != nil {
			log.Fatalf("Failed to requeue pending jobs: %v", err)
		}
		if count > 0 {
			slog.Info("requeued pending jobs", "count", count)
		}
	}

	httpServer := createServer(db, publisher, cfg.Port)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down executor")
		cancel()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	wg.Wait()
	slog.Info("server stopped")
}
