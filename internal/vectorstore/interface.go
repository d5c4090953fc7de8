package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks social-stories/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when an existing collection was created with a
// different vector size than requested.
var ErrDimensionMismatch = errors.New("collection vector size mismatch")

// NamespaceKey is the metadata key that partitions a collection. Backends that need
// a payload index for filtering create one for it.
const NamespaceKey = "namespace"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Score is zero for results that were not ranked (List, Fetch).
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
// Filters are equality matches on metadata keys.
type VectorStore interface {
	// EnsureCollection creates the collection if missing and validates its vector size otherwise.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search with optional filters.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// List returns up to limit points without ranking.
	List(ctx context.Context, collection string, limit int, filters map[string]any) ([]SearchResult, error)

	// Fetch returns the points with the given IDs; missing IDs are omitted.
	Fetch(ctx context.Context, collection string, ids []string, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their IDs. Missing IDs are not an error.
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases the underlying client.
	Close() error
}

// matchesFilters reports whether meta satisfies every equality filter.
// Integer values compare numerically regardless of their Go type.
func matchesFilters(meta map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if wi, ok := toInt64(want); ok {
			gi, ok := toInt64(got)
			if !ok || gi != wi {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
