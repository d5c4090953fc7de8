package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"social-stories/internal/contextutil"
)

const (
	osVectorField    = "vector"
	osMetadataField  = "metadata"
	osUpdatedAtField = "updated_at"
)

// OpenSearchStore implements VectorStore using an OpenSearch k-NN index per collection.
type OpenSearchStore struct {
	client *opensearch.Client
}

// OpenSearchConfig holds connection settings for OpenSearchStore.
type OpenSearchConfig struct {
	URL      string
	Username string
	Password string
	// Insecure skips TLS verification, for local clusters with self-signed certificates.
	Insecure bool
}

type osDocument struct {
	Vector    []float32      `json:"vector"`
	Metadata  map[string]any `json:"metadata"`
	UpdatedAt int64          `json:"updated_at"`
}

type osHit struct {
	ID     string  `json:"_id"`
	Score  float64 `json:"_score"`
	Source struct {
		Metadata map[string]any `json:"metadata"`
	} `json:"_source"`
}

type osSearchResponse struct {
	Hits struct {
		Hits []osHit `json:"hits"`
	} `json:"hits"`
}

// NewOpenSearchStore creates a new OpenSearch store.
func NewOpenSearchStore(cfg OpenSearchConfig) (*OpenSearchStore, error) {
	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.Insecure {
		osCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &OpenSearchStore{client: client}, nil
}

// EnsureCollection creates a k-NN index for the collection if it doesn't exist and
// validates the vector dimension of an existing one.
func (s *OpenSearchStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}

	if exists {
		size, err := s.indexDimension(ctx, collection)
		if err != nil {
			return err
		}
		if size != vectorSize {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, vectorSize, size)
		}
		return nil
	}

	logger.InfoContext(ctx, "creating index", "index", collection, "vector_size", vectorSize)

	body, err := json.Marshal(indexDefinition(vectorSize))
	if err != nil {
		return fmt.Errorf("failed to marshal index definition: %w", err)
	}

	res, err := opensearchapi.IndicesCreateRequest{
		Index: collection,
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer closeResponse(res)

	if res.IsError() {
		return fmt.Errorf("unexpected response creating index %s: %s", collection, res.String())
	}
	return nil
}

// CollectionExists checks if the collection's index exists.
func (s *OpenSearchStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	res, err := opensearchapi.IndicesExistsRequest{
		Index: []string{collection},
	}.Do(ctx, s.client)
	if err != nil {
		return false, fmt.Errorf("failed to check index existence: %w", err)
	}
	defer closeResponse(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected response checking index %s: %s", collection, res.String())
	}
}

// Upsert indexes each point under its ID, refreshing so reads see it immediately.
func (s *OpenSearchStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	for _, p := range points {
		meta := p.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		body, err := json.Marshal(osDocument{Vector: p.Vec, Metadata: meta, UpdatedAt: now})
		if err != nil {
			return fmt.Errorf("failed to build document %s: %w", p.ID, err)
		}

		res, err := opensearchapi.IndexRequest{
			Index:      collection,
			DocumentID: p.ID,
			Body:       bytes.NewReader(body),
			Refresh:    "true",
		}.Do(ctx, s.client)
		if err != nil {
			logger.ErrorContext(ctx, "failed to index document", "index", collection, "id", p.ID, "error", err)
			return fmt.Errorf("failed to index document %s: %w", p.ID, err)
		}
		isErr, status := res.IsError(), res.String()
		closeResponse(res)
		if isErr {
			return fmt.Errorf("unexpected response indexing document %s: %s", p.ID, status)
		}
	}

	logger.InfoContext(ctx, "upserted points", "index", collection, "count", len(points))
	return nil
}

// Search runs a k-NN query, post-filtered by metadata terms.
func (s *OpenSearchStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	hits, err := s.search(ctx, collection, knnQuery(query, k, filters))
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			PointID: h.ID,
			Score:   cosineFromScore(h.Score),
			Meta:    nonNilMeta(h.Source.Metadata),
		})
	}

	logger.InfoContext(ctx, "search completed", "index", collection, "k", k, "results", len(results))
	return results, nil
}

// List returns up to limit documents, most recently written first.
func (s *OpenSearchStore) List(ctx context.Context, collection string, limit int, filters map[string]any) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	hits, err := s.search(ctx, collection, listQuery(limit, filters))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{PointID: h.ID, Meta: nonNilMeta(h.Source.Metadata)})
	}
	return results, nil
}

// Fetch loads documents by ID with a multi-get.
func (s *OpenSearchStore) Fetch(ctx context.Context, collection string, ids []string, filters map[string]any) ([]SearchResult, error) {
	if len(ids) == 0 {
		return []SearchResult{}, nil
	}

	body, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mget request: %w", err)
	}

	res, err := opensearchapi.MgetRequest{
		Index: collection,
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	defer closeResponse(res)

	if res.IsError() {
		return nil, fmt.Errorf("unexpected response fetching documents: %s", res.String())
	}

	var parsed struct {
		Docs []struct {
			ID     string `json:"_id"`
			Found  bool   `json:"found"`
			Source struct {
				Metadata map[string]any `json:"metadata"`
			} `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode mget response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Docs))
	for _, d := range parsed.Docs {
		if !d.Found {
			continue
		}
		meta := nonNilMeta(d.Source.Metadata)
		if !matchesFilters(meta, filters) {
			continue
		}
		results = append(results, SearchResult{PointID: d.ID, Meta: meta})
	}
	return results, nil
}

// Delete removes documents by ID. Documents that are already gone are ignored.
func (s *OpenSearchStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	for _, id := range ids {
		res, err := opensearchapi.DeleteRequest{
			Index:      collection,
			DocumentID: id,
			Refresh:    "true",
		}.Do(ctx, s.client)
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete document", "index", collection, "id", id, "error", err)
			return fmt.Errorf("failed to delete document %s: %w", id, err)
		}
		status, text := res.StatusCode, res.String()
		closeResponse(res)
		if status == http.StatusNotFound {
			continue
		}
		if status >= 300 {
			return fmt.Errorf("unexpected response deleting document %s: %s", id, text)
		}
	}

	if len(ids) > 0 {
		logger.InfoContext(ctx, "deleted points", "index", collection, "count", len(ids))
	}
	return nil
}

// Close is a no-op; the HTTP client has nothing to release.
func (s *OpenSearchStore) Close() error {
	return nil
}

func (s *OpenSearchStore) search(ctx context.Context, index string, query map[string]any) ([]osHit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, err
	}
	defer closeResponse(res)

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response: %s", res.String())
	}

	var parsed osSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Hits.Hits, nil
}

func (s *OpenSearchStore) indexDimension(ctx context.Context, index string) (int, error) {
	res, err := opensearchapi.IndicesGetMappingRequest{
		Index: []string{index},
	}.Do(ctx, s.client)
	if err != nil {
		return 0, fmt.Errorf("failed to get index mapping: %w", err)
	}
	defer closeResponse(res)

	if res.IsError() {
		return 0, fmt.Errorf("unexpected response reading mapping of %s: %s", index, res.String())
	}

	var parsed map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Dimension int `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode mapping: %w", err)
	}

	m, ok := parsed[index]
	if !ok {
		return 0, fmt.Errorf("mapping for index %s missing from response", index)
	}
	return m.Mappings.Properties[osVectorField].Dimension, nil
}

// indexDefinition maps metadata strings to keywords so term filters match exact values.
func indexDefinition(vectorSize int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"dynamic_templates": []any{
				map[string]any{
					"metadata_strings": map[string]any{
						"path_match":         osMetadataField + ".*",
						"match_mapping_type": "string",
						"mapping":            map[string]any{"type": "keyword"},
					},
				},
			},
			"properties": map[string]any{
				osVectorField: map[string]any{
					"type":      "knn_vector",
					"dimension": vectorSize,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "lucene",
					},
				},
				osMetadataField:  map[string]any{"type": "object"},
				osUpdatedAtField: map[string]any{"type": "date", "format": "epoch_millis"},
			},
		},
	}
}

func termFilters(filters map[string]any) []any {
	terms := make([]any, 0, len(filters))
	for key, value := range filters {
		terms = append(terms, map[string]any{
			"term": map[string]any{osMetadataField + "." + key: value},
		})
	}
	return terms
}

// knnQuery filters inside the k-NN clause (lucene engine) so that k neighbours are
// found among the matching documents rather than trimmed from the global top k.
func knnQuery(vector []float32, k int, filters map[string]any) map[string]any {
	field := map[string]any{"vector": vector, "k": k}
	if len(filters) > 0 {
		field["filter"] = map[string]any{
			"bool": map[string]any{"filter": termFilters(filters)},
		}
	}

	return map[string]any{
		"size":    k,
		"_source": []string{osMetadataField},
		"query": map[string]any{
			"knn": map[string]any{osVectorField: field},
		},
	}
}

func listQuery(limit int, filters map[string]any) map[string]any {
	query := map[string]any{"match_all": map[string]any{}}
	if len(filters) > 0 {
		query = map[string]any{
			"bool": map[string]any{"filter": termFilters(filters)},
		}
	}

	return map[string]any{
		"size":    limit,
		"_source": []string{osMetadataField},
		"query":   query,
		"sort": []any{
			map[string]any{osUpdatedAtField: map[string]any{"order": "desc"}},
		},
	}
}

// cosineFromScore converts a lucene cosinesimil score, (1 + cos) / 2, back to cosine similarity.
func cosineFromScore(score float64) float32 {
	return float32(2*score - 1)
}

func nonNilMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

func closeResponse(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
