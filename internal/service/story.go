package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks social-stories/internal/service Embedder
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_story_service.go -package=mocks -mock_names=StoryService=MockStoryService social-stories/internal/service StoryService

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"social-stories/internal/contextutil"
	"social-stories/internal/vectorstore"
)

const (
	// DefaultPageSize is the number of stories List returns when no page size is configured.
	DefaultPageSize = 100
	// DefaultTopK is the number of matches Search returns when no top-k is configured.
	DefaultTopK = 10

	metaTitle     = "title"
	metaBody      = "body"
	metaNamespace = vectorstore.NamespaceKey
)

// Embedder turns text into a vector.
// This interface is defined from the service layer's perspective (consumer-first).
type Embedder interface {
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Story is a stored story.
type Story struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// StoryInput carries the user-editable fields of a story.
type StoryInput struct {
	Title string
	Body  string
}

// StoryMatch is a search hit.
type StoryMatch struct {
	Story
	Score float32 `json:"score"`
}

// StoryService provides story CRUD and semantic search.
type StoryService interface {
	// Create validates and stores a new story under a generated ID.
	Create(ctx context.Context, in StoryInput) (Story, error)
	// Get returns the story with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (Story, error)
	// List returns up to one page of stories.
	List(ctx context.Context) ([]Story, error)
	// Search returns the stories most similar to query, best first.
	Search(ctx context.Context, query string) ([]StoryMatch, error)
	// Update overwrites an existing story; ErrNotFound if it does not exist.
	Update(ctx context.Context, id string, in StoryInput) (Story, error)
	// Delete removes a story. Deleting a missing story is not an error.
	Delete(ctx context.Context, id string) error
}

// StoryServiceConfig configures a StoryService.
type StoryServiceConfig struct {
	Collection string
	// Namespace partitions stories within the collection; empty means no partition.
	Namespace string
	PageSize  int
	TopK      int
}

type storyService struct {
	embedder Embedder
	store    vectorstore.VectorStore
	cfg      StoryServiceConfig
	newID    func() (string, error)
}

// NewStoryService creates a new StoryService.
func NewStoryService(embedder Embedder, store vectorstore.VectorStore, cfg StoryServiceConfig) StoryService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &storyService{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		newID:    NewStoryID,
	}
}

// Create validates, embeds and stores a new story.
func (s *storyService) Create(ctx context.Context, in StoryInput) (Story, error) {
	logger := contextutil.LoggerFromContext(ctx)

	in, err := validateInput(in)
	if err != nil {
		logger.WarnContext(ctx, "invalid story", "error", err)
		return Story{}, err
	}

	id, err := s.newID()
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate story id", "error", err)
		return Story{}, WrapError(err, "failed to generate story id")
	}

	story := Story{ID: id, Title: in.Title, Body: in.Body}
	if err := s.put(ctx, story); err != nil {
		return Story{}, err
	}

	logger.InfoContext(ctx, "story created", "story_id", id)
	return story, nil
}

// Get fetches a story by ID.
func (s *storyService) Get(ctx context.Context, id string) (Story, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := ValidateID(id); err != nil {
		return Story{}, err
	}

	results, err := s.store.Fetch(ctx, s.cfg.Collection, []string{id}, s.filters())
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch story", "story_id", id, "error", err)
		return Story{}, fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to fetch story"))
	}
	if len(results) == 0 {
		return Story{}, ErrNotFound
	}

	return storyFromResult(results[0]), nil
}

// List returns up to PageSize stories.
func (s *storyService) List(ctx context.Context) ([]Story, error) {
	logger := contextutil.LoggerFromContext(ctx)

	results, err := s.store.List(ctx, s.cfg.Collection, s.cfg.PageSize, s.filters())
	if err != nil {
		logger.ErrorContext(ctx, "failed to list stories", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to list stories"))
	}

	stories := make([]Story, 0, len(results))
	for _, r := range results {
		stories = append(stories, storyFromResult(r))
	}
	return stories, nil
}

// Search embeds the raw query and ranks stories by similarity.
func (s *storyService) Search(ctx context.Context, query string) ([]StoryMatch, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.WarnContext(ctx, "empty search query")
		return nil, &ValidationError{Field: "q", Message: "cannot be empty"}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to embed query"))
	}

	results, err := s.store.Search(ctx, s.cfg.Collection, vec, s.cfg.TopK, s.filters())
	if err != nil {
		logger.ErrorContext(ctx, "failed to search stories", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to search stories"))
	}

	matches := make([]StoryMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, StoryMatch{Story: storyFromResult(r), Score: r.Score})
	}

	logger.InfoContext(ctx, "search completed", "query_length", len(query), "results", len(matches))
	return matches, nil
}

// Update overwrites an existing story with the same ID.
func (s *storyService) Update(ctx context.Context, id string, in StoryInput) (Story, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := ValidateID(id); err != nil {
		return Story{}, err
	}
	in, err := validateInput(in)
	if err != nil {
		logger.WarnContext(ctx, "invalid story", "story_id", id, "error", err)
		return Story{}, err
	}

	if _, err := s.Get(ctx, id); err != nil {
		return Story{}, err
	}

	story := Story{ID: id, Title: in.Title, Body: in.Body}
	if err := s.put(ctx, story); err != nil {
		return Story{}, err
	}

	logger.InfoContext(ctx, "story updated", "story_id", id)
	return story, nil
}

// Delete removes a story by ID.
func (s *storyService) Delete(ctx context.Context, id string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := ValidateID(id); err != nil {
		return err
	}

	// Other namespaces' stories share the collection, so only delete what this namespace can see.
	if s.cfg.Namespace != "" {
		if _, err := s.Get(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
	}

	if err := s.store.Delete(ctx, s.cfg.Collection, []string{id}); err != nil {
		logger.ErrorContext(ctx, "failed to delete story", "story_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to delete story"))
	}

	logger.InfoContext(ctx, "story deleted", "story_id", id)
	return nil
}

func (s *storyService) put(ctx context.Context, story Story) error {
	logger := contextutil.LoggerFromContext(ctx)

	vec, err := s.embedder.Embed(ctx, EmbeddingText(story.Title, story.Body))
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed story", "story_id", story.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to embed story"))
	}

	meta := map[string]any{
		metaTitle: story.Title,
		metaBody:  story.Body,
	}
	if s.cfg.Namespace != "" {
		meta[metaNamespace] = s.cfg.Namespace
	}

	point := vectorstore.Point{ID: story.ID, Vec: vec, Meta: meta}
	if err := s.store.Upsert(ctx, s.cfg.Collection, []vectorstore.Point{point}); err != nil {
		logger.ErrorContext(ctx, "failed to store story", "story_id", story.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrExternalService, WrapError(err, "failed to store story"))
	}
	return nil
}

func (s *storyService) filters() map[string]any {
	if s.cfg.Namespace == "" {
		return nil
	}
	return map[string]any{metaNamespace: s.cfg.Namespace}
}

func storyFromResult(r vectorstore.SearchResult) Story {
	title, _ := r.Meta[metaTitle].(string)
	body, _ := r.Meta[metaBody].(string)
	return Story{ID: r.PointID, Title: title, Body: body}
}
