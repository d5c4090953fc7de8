package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Vector store backends selectable with VECTOR_STORE.
const (
	VectorStoreQdrant     = "qdrant"
	VectorStoreOpenSearch = "opensearch"
	VectorStoreSQLite     = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort string

	OpenAIAPIKey        string
	OpenAIBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int
	ValidateEmbeddings  bool

	VectorStore      string
	VectorCollection string
	VectorNamespace  string

	QdrantURL    string
	QdrantAPIKey string

	OpenSearchURL      string
	OpenSearchUsername string
	OpenSearchPassword string
	OpenSearchInsecure bool

	SQLitePath string

	CORSAllowedOrigins []string
	ListPageSize       int
	SearchTopK         int

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:            getEnv("PORT", "5001"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		VectorStore:        strings.ToLower(getEnv("VECTOR_STORE", VectorStoreQdrant)),
		VectorCollection:   getEnv("VECTOR_COLLECTION", "stories"),
		VectorNamespace:    getEnv("VECTOR_NAMESPACE", ""),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:       getEnv("QDRANT_API_KEY", ""),
		OpenSearchURL:      getEnv("OPENSEARCH_URL", "https://localhost:9200"),
		OpenSearchUsername: getEnv("OPENSEARCH_USERNAME", "admin"),
		OpenSearchPassword: getEnv("OPENSEARCH_PASSWORD", ""),
		SQLitePath:         getEnv("SQLITE_PATH", "./data/stories.db"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	// Must match the output size of EMBEDDING_MODEL; the collection has to be
	// recreated when it changes.
	if cfg.EmbeddingDimensions, err = getPositiveInt("EMBEDDING_DIMENSIONS", 1536); err != nil {
		return nil, err
	}
	if cfg.ListPageSize, err = getPositiveInt("LIST_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.SearchTopK, err = getPositiveInt("SEARCH_TOP_K", 10); err != nil {
		return nil, err
	}
	if cfg.ValidateEmbeddings, err = getBool("VALIDATE_EMBEDDINGS_ON_START", true); err != nil {
		return nil, err
	}
	if cfg.OpenSearchInsecure, err = getBool("OPENSEARCH_INSECURE", false); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	switch cfg.VectorStore {
	case VectorStoreQdrant, VectorStoreOpenSearch:
	case VectorStoreSQLite:
		dataDir := filepath.Dir(cfg.SQLitePath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("VECTOR_STORE must be one of %s, %s, %s; got %q",
			VectorStoreQdrant, VectorStoreOpenSearch, VectorStoreSQLite, cfg.VectorStore)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
