package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeOpenSearch records requests and answers from a route table keyed by "METHOD /path".
type fakeOpenSearch struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]fakeResponse
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeResponse struct {
	Status int
	Body   string
}

func newFakeOpenSearch(t *testing.T, routes map[string]fakeResponse) (*fakeOpenSearch, *OpenSearchStore) {
	t.Helper()

	fake := &fakeOpenSearch{routes: routes}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.requests = append(fake.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
		})
		fake.mu.Unlock()

		resp, ok := fake.routes[r.Method+" "+r.URL.Path]
		if !ok {
			// Search and mget may be sent as GET or POST.
			resp, ok = fake.routes["ANY "+r.URL.Path]
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no route"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		_, _ = w.Write([]byte(resp.Body))
	}))
	t.Cleanup(server.Close)

	store, err := NewOpenSearchStore(OpenSearchConfig{URL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenSearchStore() error = %v", err)
	}
	return fake, store
}

func (f *fakeOpenSearch) find(method, path string) *recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.requests {
		if f.requests[i].Method == method && f.requests[i].Path == path {
			return &f.requests[i]
		}
	}
	return nil
}

func TestOpenSearchStore_EnsureCollection_Creates(t *testing.T) {
	fake, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"HEAD /stories": {Status: http.StatusNotFound},
		"PUT /stories":  {Status: http.StatusOK, Body: `{"acknowledged":true}`},
	})

	if err := store.EnsureCollection(context.Background(), "stories", 3); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	req := fake.find(http.MethodPut, "/stories")
	if req == nil {
		t.Fatal("EnsureCollection() did not create the index")
	}

	var def struct {
		Settings struct {
			Index struct {
				Knn bool `json:"knn"`
			} `json:"index"`
		} `json:"settings"`
		Mappings struct {
			Properties map[string]struct {
				Type      string `json:"type"`
				Dimension int    `json:"dimension"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal([]byte(req.Body), &def); err != nil {
		t.Fatalf("index definition is not JSON: %v", err)
	}
	if !def.Settings.Index.Knn {
		t.Error("index definition should enable knn")
	}
	vec := def.Mappings.Properties["vector"]
	if vec.Type != "knn_vector" || vec.Dimension != 3 {
		t.Errorf("vector mapping = %+v, want knn_vector with dimension 3", vec)
	}
}

func TestOpenSearchStore_EnsureCollection_ValidatesDimension(t *testing.T) {
	mapping := `{"stories":{"mappings":{"properties":{"vector":{"type":"knn_vector","dimension":3}}}}}`
	_, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"HEAD /stories":         {Status: http.StatusOK},
		"GET /stories/_mapping": {Status: http.StatusOK, Body: mapping},
	})
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, "stories", 3); err != nil {
		t.Errorf("EnsureCollection() with matching size error = %v", err)
	}

	err := store.EnsureCollection(ctx, "stories", 1536)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("EnsureCollection() with other size error = %v, want ErrDimensionMismatch", err)
	}
}

func TestOpenSearchStore_CollectionExists(t *testing.T) {
	_, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"HEAD /stories": {Status: http.StatusOK},
		"HEAD /broken":  {Status: http.StatusInternalServerError},
	})
	ctx := context.Background()

	if exists, err := store.CollectionExists(ctx, "stories"); err != nil || !exists {
		t.Errorf("CollectionExists(stories) = %v, %v; want true, nil", exists, err)
	}
	if exists, err := store.CollectionExists(ctx, "missing"); err != nil || exists {
		t.Errorf("CollectionExists(missing) = %v, %v; want false, nil", exists, err)
	}
	if _, err := store.CollectionExists(ctx, "broken"); err == nil {
		t.Error("CollectionExists(broken) should return error")
	}
}

func TestOpenSearchStore_Upsert(t *testing.T) {
	fake, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"PUT /stories/_doc/12345678901234567890": {Status: http.StatusCreated, Body: `{"result":"created"}`},
	})

	err := store.Upsert(context.Background(), "stories", []Point{{
		ID:   "12345678901234567890",
		Vec:  []float32{0.1, 0.2},
		Meta: map[string]any{"title": "hello", "namespace": "demo"},
	}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	req := fake.find(http.MethodPut, "/stories/_doc/12345678901234567890")
	if req == nil {
		t.Fatal("Upsert() did not index the document")
	}
	if !strings.Contains(req.Query, "refresh=true") {
		t.Errorf("Upsert() query = %q, want refresh=true", req.Query)
	}

	var doc osDocument
	if err := json.Unmarshal([]byte(req.Body), &doc); err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	if len(doc.Vector) != 2 || doc.Metadata["title"] != "hello" || doc.UpdatedAt == 0 {
		t.Errorf("indexed document = %+v", doc)
	}
}

func TestOpenSearchStore_Upsert_Error(t *testing.T) {
	_, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"PUT /stories/_doc/a": {Status: http.StatusBadRequest, Body: `{"error":"mapper_parsing_exception"}`},
	})

	err := store.Upsert(context.Background(), "stories", []Point{{ID: "a", Vec: []float32{1}}})
	if err == nil {
		t.Error("Upsert() should surface error responses")
	}
}

func TestOpenSearchStore_Search(t *testing.T) {
	hits := `{"hits":{"hits":[
		{"_id":"a","_score":1.0,"_source":{"metadata":{"title":"first","namespace":"demo"}}},
		{"_id":"b","_score":0.75,"_source":{"metadata":{"title":"second","namespace":"demo"}}}
	]}}`
	fake, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"ANY /stories/_search": {Status: http.StatusOK, Body: hits},
	})

	results, err := store.Search(context.Background(), "stories", []float32{1, 0}, 5, map[string]any{"namespace": "demo"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].PointID != "a" || results[0].Meta["title"] != "first" {
		t.Errorf("Search() first result = %+v", results[0])
	}
	if math.Abs(float64(results[0].Score)-1) > 1e-6 || math.Abs(float64(results[1].Score)-0.5) > 1e-6 {
		t.Errorf("Search() scores = %v, %v; want 1, 0.5", results[0].Score, results[1].Score)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(fake.requests[0].Body), &sent); err != nil {
		t.Fatalf("search body is not JSON: %v", err)
	}
	if sent["size"] != float64(5) {
		t.Errorf("search size = %v, want 5", sent["size"])
	}
	if !strings.Contains(fake.requests[0].Body, `"metadata.namespace":"demo"`) {
		t.Errorf("search body missing namespace filter: %s", fake.requests[0].Body)
	}

	if _, err := store.Search(context.Background(), "stories", []float32{1, 0}, 0, nil); err == nil {
		t.Error("Search() with k=0 should return error")
	}
}

func TestOpenSearchStore_List(t *testing.T) {
	hits := `{"hits":{"hits":[{"_id":"a","_score":null,"_source":{"metadata":{"title":"first"}}}]}}`
	fake, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"ANY /stories/_search": {Status: http.StatusOK, Body: hits},
	})

	results, err := store.List(context.Background(), "stories", 100, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(results) != 1 || results[0].PointID != "a" || results[0].Score != 0 {
		t.Errorf("List() = %+v", results)
	}
	if !strings.Contains(fake.requests[0].Body, "match_all") {
		t.Errorf("list body = %s, want match_all query", fake.requests[0].Body)
	}

	if _, err := store.List(context.Background(), "stories", 0, nil); err == nil {
		t.Error("List() with limit=0 should return error")
	}
}

func TestOpenSearchStore_Fetch(t *testing.T) {
	docs := `{"docs":[
		{"_id":"a","found":true,"_source":{"metadata":{"title":"first","namespace":"demo"}}},
		{"_id":"b","found":true,"_source":{"metadata":{"title":"second","namespace":"other"}}},
		{"_id":"c","found":false}
	]}`
	_, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"ANY /stories/_mget": {Status: http.StatusOK, Body: docs},
	})

	results, err := store.Fetch(context.Background(), "stories", []string{"a", "b", "c"}, map[string]any{"namespace": "demo"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(results) != 1 || results[0].PointID != "a" {
		t.Errorf("Fetch() = %+v, want only a", results)
	}

	empty, err := store.Fetch(context.Background(), "stories", nil, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("Fetch() with no IDs = %v, %v", empty, err)
	}
}

func TestOpenSearchStore_Delete(t *testing.T) {
	_, store := newFakeOpenSearch(t, map[string]fakeResponse{
		"DELETE /stories/_doc/a":      {Status: http.StatusOK, Body: `{"result":"deleted"}`},
		"DELETE /stories/_doc/gone":   {Status: http.StatusNotFound, Body: `{"result":"not_found"}`},
		"DELETE /stories/_doc/broken": {Status: http.StatusInternalServerError, Body: `{"error":"boom"}`},
	})
	ctx := context.Background()

	if err := store.Delete(ctx, "stories", []string{"a", "gone"}); err != nil {
		t.Errorf("Delete() error = %v, missing documents should be ignored", err)
	}
	if err := store.Delete(ctx, "stories", []string{"broken"}); err == nil {
		t.Error("Delete() should surface server errors")
	}
}

func TestKnnQuery_NoFilters(t *testing.T) {
	q := knnQuery([]float32{1, 2}, 3, nil)

	query, ok := q["query"].(map[string]any)
	if !ok {
		t.Fatalf("knnQuery() query = %T", q["query"])
	}
	if _, ok := query["knn"]; !ok {
		t.Errorf("knnQuery() without filters should be a bare knn query, got %v", query)
	}
}

func TestKnnQuery_WithFilters(t *testing.T) {
	q := knnQuery([]float32{1, 0}, 3, map[string]any{"namespace": "beta"})

	raw, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var got struct {
		Size  int `json:"size"`
		Query struct {
			Bool json.RawMessage `json:"bool"`
			Knn  map[string]struct {
				Vector []float32 `json:"vector"`
				K      int       `json:"k"`
				Filter struct {
					Bool struct {
						Filter []map[string]map[string]string `json:"filter"`
					} `json:"bool"`
				} `json:"filter"`
			} `json:"knn"`
		} `json:"query"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if got.Query.Bool != nil {
		t.Errorf("filters must not wrap the knn clause in a bool query: %s", raw)
	}
	field, ok := got.Query.Knn[osVectorField]
	if !ok {
		t.Fatalf("knnQuery() missing knn clause on %q: %s", osVectorField, raw)
	}
	if field.K != 3 || got.Size != 3 {
		t.Errorf("k = %d, size = %d, want 3", field.K, got.Size)
	}
	terms := field.Filter.Bool.Filter
	if len(terms) != 1 || terms[0]["term"][osMetadataField+".namespace"] != "beta" {
		t.Errorf("knn filter = %v, want term on %s.namespace", terms, osMetadataField)
	}
}

func TestListQuery_WithFilters(t *testing.T) {
	q := listQuery(10, map[string]any{"namespace": "demo"})

	query := q["query"].(map[string]any)
	boolQuery, ok := query["bool"].(map[string]any)
	if !ok {
		t.Fatalf("listQuery() with filters = %v, want bool query", query)
	}
	if filters := boolQuery["filter"].([]any); len(filters) != 1 {
		t.Errorf("listQuery() filters = %v, want 1", filters)
	}
	if q["size"] != 10 {
		t.Errorf("listQuery() size = %v, want 10", q["size"])
	}
}
