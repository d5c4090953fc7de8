package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-stories/internal/app"
	"social-stories/internal/config"
	"social-stories/internal/http"
	"social-stories/web"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API stores short stories as embeddings in a vector store and serves them back by ID, by listing and by semantic search.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Social Stories API
//   description: |
//     Create, list, search, update and delete short stories.
//     Each story is embedded with an OpenAI-compatible model and stored in Qdrant, OpenSearch or SQLite.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(app.NewLogger(cfg, os.Stdout))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx := context.Background()

	vectorStore, err := app.OpenVectorStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.VectorCollection, cfg.EmbeddingDimensions); err != nil {
		log.Fatalf("Failed to ensure collection: %v", err)
	}
	slog.Info("Vector store ready",
		"backend", cfg.VectorStore,
		"collection", cfg.VectorCollection,
		"vector_size", cfg.EmbeddingDimensions,
		"namespace", cfg.VectorNamespace,
	)

	embedder := app.NewEmbedder(cfg)
	if cfg.ValidateEmbeddings {
		if err := app.ValidateEmbedder(ctx, embedder, cfg.EmbeddingDimensions); err != nil {
			log.Fatalf("Embedding client check failed: %v", err)
		}
		slog.Info("Embedding client validated", "model", cfg.EmbeddingModel, "vector_size", cfg.EmbeddingDimensions)
	}

	deps := &http.Deps{
		StoryService:   app.NewStoryService(cfg, embedder, vectorStore),
		VectorStore:    vectorStore,
		Backend:        cfg.VectorStore,
		Collection:     cfg.VectorCollection,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		IndexHTML:      web.IndexHTML,
	}

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           http.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	if err := serve(server, stop, shutdownTimeout); err != nil {
		slog.Error("API server failed", "error", err)
		_ = vectorStore.Close()
		os.Exit(1)
	}
}

// serve runs server until it fails or a signal arrives on stop, then shuts it
// down within timeout. A clean shutdown returns nil.
func serve(server *nethttp.Server, stop <-chan os.Signal, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
		return nil
	case sig := <-stop:
		slog.Info("Shutting down API server", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}
