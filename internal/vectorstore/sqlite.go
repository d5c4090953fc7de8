package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"social-stories/internal/contextutil"
	"social-stories/internal/storage"
)

// SQLiteStore implements VectorStore on a local SQLite database.
// Similarity search is brute-force cosine over every row of the collection, which is
// fine for development data sets and tests.
type SQLiteStore struct {
	repo *storage.VectorRepo
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite vector store: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite vector store: %w", err)
	}
	return &SQLiteStore{repo: storage.NewVectorRepo(db)}, nil
}

// EnsureCollection creates the collection or validates its vector size.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	existing, err := s.repo.GetCollection(ctx, collection)
	if errors.Is(err, storage.ErrNotFound) {
		logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
		return s.repo.CreateCollection(ctx, collection, vectorSize)
	}
	if err != nil {
		return err
	}

	if existing.VectorSize != vectorSize {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, vectorSize, existing.VectorSize)
	}
	return nil
}

// CollectionExists checks if a collection exists.
func (s *SQLiteStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	_, err := s.repo.GetCollection(ctx, collection)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upsert inserts or updates points, rejecting vectors of the wrong size.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	c, err := s.repo.GetCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to upsert points: collection %s: %w", collection, err)
	}

	records := make([]storage.VectorRecord, 0, len(points))
	for _, p := range points {
		if len(p.Vec) != c.VectorSize {
			return fmt.Errorf("%w: point %s has %d dimensions, collection has %d", ErrDimensionMismatch, p.ID, len(p.Vec), c.VectorSize)
		}
		records = append(records, storage.VectorRecord{
			Collection: collection,
			ID:         p.ID,
			Vector:     p.Vec,
			Metadata:   p.Meta,
		})
	}

	if err := s.repo.Upsert(ctx, records); err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search ranks every matching row by cosine similarity.
func (s *SQLiteStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	records, err := s.repo.ListAll(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		if !matchesFilters(rec.Metadata, filters) {
			continue
		}
		score, err := cosineSimilarity(query, rec.Vector)
		if err != nil {
			return nil, fmt.Errorf("failed to score point %s: %w", rec.ID, err)
		}
		results = append(results, SearchResult{PointID: rec.ID, Score: float32(score), Meta: rec.Metadata})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.InfoContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// List returns the most recently written points first.
func (s *SQLiteStore) List(ctx context.Context, collection string, limit int, filters map[string]any) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	records, err := s.repo.ListAll(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list points: %w", err)
	}

	results := make([]SearchResult, 0, min(limit, len(records)))
	for _, rec := range records {
		if len(results) == limit {
			break
		}
		if matchesFilters(rec.Metadata, filters) {
			results = append(results, SearchResult{PointID: rec.ID, Meta: rec.Metadata})
		}
	}
	return results, nil
}

// Fetch returns the points with the given IDs that also match filters.
func (s *SQLiteStore) Fetch(ctx context.Context, collection string, ids []string, filters map[string]any) ([]SearchResult, error) {
	records, err := s.repo.GetByIDs(ctx, collection, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch points: %w", err)
	}

	results := make([]SearchResult, 0, len(records))
	for _, rec := range records {
		if matchesFilters(rec.Metadata, filters) {
			results = append(results, SearchResult{PointID: rec.ID, Meta: rec.Metadata})
		}
	}
	return results, nil
}

// Delete removes points by their IDs.
func (s *SQLiteStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	n, err := s.repo.Delete(ctx, collection, ids)
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection, "requested", len(ids), "deleted", n)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.repo.DB().Close()
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	// A zero vector is orthogonal to everything.
	if na2 == 0 || nb2 == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}
