// Package app wires configuration into the vector store, embedder and story
// service shared by the API server and storyctl.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"social-stories/internal/config"
	"social-stories/internal/embeddings"
	"social-stories/internal/service"
	"social-stories/internal/vectorstore"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// OpenVectorStore connects to the backend selected by VECTOR_STORE.
func OpenVectorStore(cfg *config.Config) (vectorstore.VectorStore, error) {
	switch cfg.VectorStore {
	case config.VectorStoreQdrant:
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		return store, nil
	case config.VectorStoreOpenSearch:
		store, err := vectorstore.NewOpenSearchStore(vectorstore.OpenSearchConfig{
			URL:      cfg.OpenSearchURL,
			Username: cfg.OpenSearchUsername,
			Password: cfg.OpenSearchPassword,
			Insecure: cfg.OpenSearchInsecure,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
		}
		return store, nil
	case config.VectorStoreSQLite:
		store, err := vectorstore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}

// NewEmbedder returns the OpenAI-compatible embeddings client.
func NewEmbedder(cfg *config.Config) *embeddings.Client {
	return embeddings.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
}

// ValidateEmbedder embeds a probe string and checks the vector size, so a
// misconfigured model fails at startup instead of on the first write.
func ValidateEmbedder(ctx context.Context, embedder service.Embedder, vectorSize int) error {
	vector, err := embedder.Embed(ctx, "test")
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vector) != vectorSize {
		return fmt.Errorf("embedding vector size mismatch: expected %d, got %d", vectorSize, len(vector))
	}
	return nil
}

// NewStoryService builds the story service over an already opened store.
func NewStoryService(cfg *config.Config, embedder service.Embedder, store vectorstore.VectorStore) service.StoryService {
	return service.NewStoryService(embedder, store, service.StoryServiceConfig{
		Collection: cfg.VectorCollection,
		Namespace:  cfg.VectorNamespace,
		PageSize:   cfg.ListPageSize,
		TopK:       cfg.SearchTopK,
	})
}
