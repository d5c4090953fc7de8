package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"social-stories/internal/contextutil"
)

// externalIDKey holds the caller's ID in the payload. Qdrant only accepts UUIDs or
// unsigned integers as point IDs, so other IDs are mapped to a UUIDv5.
const externalIDKey = "external_id"

// updatedAtKey holds the write time in Unix milliseconds; List orders by it.
const updatedAtKey = "updated_at"

// QdrantStore implements VectorStore using Qdrant.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port is derived from the HTTP port; https URLs enable TLS, as needed for
// managed clusters together with apiKey.
func NewQdrantStore(urlStr, apiKey string) (*QdrantStore, error) {
	host, port, useTLS, err := grpcTarget(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client: client,
	}, nil
}

// grpcTarget derives the gRPC host and port from a Qdrant HTTP URL.
// The gRPC port is the HTTP port + 1 (6334 when no port is given).
func grpcTarget(urlStr string) (host string, port int, useTLS bool, err error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host = parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port = 6334
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			port = httpPort + 1
		}
	}

	return host, port, parsedURL.Scheme == "https", nil
}

// qdrantPointID maps an external ID onto a Qdrant point ID.
// UUIDs pass through; anything else becomes a deterministic UUIDv5 so that
// upserting the same ID always overwrites the same point.
func qdrantPointID(id string) *qdrant.PointId {
	if parsed, err := uuid.Parse(id); err == nil {
		return qdrant.NewID(parsed.String())
	}
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// buildQdrantFilter turns equality filters into Qdrant must-conditions.
func buildQdrantFilter(filters map[string]any) (*qdrant.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	must := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		if s, ok := value.(string); ok {
			must = append(must, qdrant.NewMatch(key, s))
			continue
		}
		if n, ok := toInt64(value); ok {
			must = append(must, qdrant.NewMatchInt(key, n))
			continue
		}
		return nil, fmt.Errorf("unsupported filter value for %s: %T", key, value)
	}

	return &qdrant.Filter{Must: must}, nil
}

// Upsert inserts or updates points in the collection.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	now := time.Now()
	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		valueMap, err := qdrant.TryValueMap(pointPayload(point, now))
		if err != nil {
			return fmt.Errorf("failed to convert payload for point %s: %w", point.ID, err)
		}

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrantPointID(point.ID),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: valueMap,
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// Search performs a similarity search with optional filters.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	qdrantFilter, err := buildQdrantFilter(filters)
	if err != nil {
		return nil, err
	}

	limit := uint64(k)
	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, p := range scoredPoints {
		results = append(results, qdrantResult(p.Id, p.Score, p.Payload))
	}

	logger.InfoContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// List returns up to limit points, most recently written first.
func (s *QdrantStore) List(ctx context.Context, collection string, limit int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	qdrantFilter, err := buildQdrantFilter(filters)
	if err != nil {
		return nil, err
	}

	points, err := s.client.Scroll(ctx, scrollRequest(collection, limit, qdrantFilter))
	if err != nil {
		logger.ErrorContext(ctx, "failed to scroll points", "collection", collection, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to list points: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, qdrantResult(p.Id, 0, p.Payload))
	}

	logger.DebugContext(ctx, "list completed", "collection", collection, "results", len(results))
	return results, nil
}

// Fetch returns the points with the given IDs that also match filters.
func (s *QdrantStore) Fetch(ctx context.Context, collection string, ids []string, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return []SearchResult{}, nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrantPointID(id))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            qdrantIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to get points", "collection", collection, "count", len(ids), "error", err)
		return nil, fmt.Errorf("failed to fetch points: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		r := qdrantResult(p.Id, 0, p.Payload)
		if matchesFilters(r.Meta, filters) {
			results = append(results, r)
		}
	}
	return results, nil
}

// Delete removes points by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrantPointID(id))
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted points", "collection", collection, "count", len(ids))
	return nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection ensures a collection exists with the specified vector size.
// If the collection exists, validates that the vector size matches.
// If it doesn't exist, creates it with cosine distance.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return s.ensurePayloadIndexes(ctx, collection)
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.Size == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}

	if int(params.Size) != vectorSize {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, vectorSize, params.Size)
	}

	if err := s.ensurePayloadIndexes(ctx, collection); err != nil {
		return err
	}

	logger.InfoContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
	return nil
}

// ensurePayloadIndexes indexes the namespace filter key and the List ordering key.
// Creating an index that already exists is accepted by Qdrant.
func (s *QdrantStore) ensurePayloadIndexes(ctx context.Context, collection string) error {
	for _, req := range payloadIndexRequests(collection) {
		if _, err := s.client.CreateFieldIndex(ctx, req); err != nil {
			return fmt.Errorf("failed to create payload index on %s: %w", req.FieldName, err)
		}
	}
	return nil
}

func payloadIndexRequests(collection string) []*qdrant.CreateFieldIndexCollection {
	wait := true
	return []*qdrant.CreateFieldIndexCollection{
		{
			CollectionName: collection,
			Wait:           &wait,
			FieldName:      NamespaceKey,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		},
		{
			CollectionName: collection,
			Wait:           &wait,
			FieldName:      updatedAtKey,
			FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
		},
	}
}

// pointPayload merges the point metadata with the external ID and write time.
func pointPayload(point Point, now time.Time) map[string]any {
	payload := make(map[string]any, len(point.Meta)+2)
	for k, v := range point.Meta {
		payload[k] = v
	}
	payload[externalIDKey] = point.ID
	payload[updatedAtKey] = now.UnixMilli()
	return payload
}

func scrollRequest(collection string, limit int, filter *qdrant.Filter) *qdrant.ScrollPoints {
	scrollLimit := uint32(limit)
	return &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       updatedAtKey,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	}
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// qdrantResult converts a point into a SearchResult, restoring the external ID.
func qdrantResult(id *qdrant.PointId, score float32, payload map[string]*qdrant.Value) SearchResult {
	meta := convertPayloadToMap(payload)

	pointID := ""
	if ext, ok := meta[externalIDKey].(string); ok {
		pointID = ext
	} else if id != nil {
		if u := id.GetUuid(); u != "" {
			pointID = u
		} else {
			pointID = strconv.FormatUint(id.GetNum(), 10)
		}
	}
	delete(meta, externalIDKey)
	delete(meta, updatedAtKey)

	return SearchResult{
		PointID: pointID,
		Score:   score,
		Meta:    meta,
	}
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
