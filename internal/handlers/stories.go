package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"social-stories/internal/contextutil"
	"social-stories/internal/service"
)

const maxRequestBodyBytes = 64 << 10

// StoryHandler serves the story JSON API.
type StoryHandler struct {
	stories service.StoryService
}

// NewStoryHandler creates a new StoryHandler.
func NewStoryHandler(stories service.StoryService) *StoryHandler {
	return &StoryHandler{stories: stories}
}

// StoryRequest is the create/update payload.
type StoryRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// StoryMetadata holds the user-visible story fields.
type StoryMetadata struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// StoryResponse mirrors a vector-store match: id, optional score and metadata.
type StoryResponse struct {
	ID       string        `json:"id"`
	Score    *float32      `json:"score,omitempty"`
	Metadata StoryMetadata `json:"metadata"`
}

// MessageResponse acknowledges a write.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Create handles POST /api/v1/story.
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeStoryRequest(w, r)
	if !ok {
		return
	}

	story, err := h.stories.Create(ctx, service.StoryInput{Title: req.Title, Body: req.Body})
	if err != nil {
		handleServiceError(ctx, w, err, "failed to create story, please try later")
		return
	}

	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "story created successfully", ID: story.ID})
}

// List handles GET /api/v1/stories.
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stories, err := h.stories.List(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "failed to fetch stories, please try later")
		return
	}

	resp := make([]StoryResponse, 0, len(stories))
	for _, s := range stories {
		resp = append(resp, toStoryResponse(s))
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Search handles GET /api/v1/stories/search?q=.
func (h *StoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matches, err := h.stories.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(ctx, w, err, "failed to search stories, please try later")
		return
	}

	resp := make([]StoryResponse, 0, len(matches))
	for _, m := range matches {
		sr := toStoryResponse(m.Story)
		score := m.Score
		sr.Score = &score
		resp = append(resp, sr)
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /api/v1/story/{id}.
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := contextutil.With(r.Context(), "story_id", id)

	story, err := h.stories.Get(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err, "failed to fetch story, please try later")
		return
	}

	writeJSON(ctx, w, http.StatusOK, toStoryResponse(story))
}

// Update handles PUT /api/v1/story/{id}.
func (h *StoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := contextutil.With(r.Context(), "story_id", id)

	req, ok := decodeStoryRequest(w, r)
	if !ok {
		return
	}

	story, err := h.stories.Update(ctx, id, service.StoryInput{Title: req.Title, Body: req.Body})
	if err != nil {
		handleServiceError(ctx, w, err, "failed to update story, please try later")
		return
	}

	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "story updated successfully", ID: story.ID})
}

// Delete handles DELETE /api/v1/story/{id}.
func (h *StoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := contextutil.With(r.Context(), "story_id", id)

	if err := h.stories.Delete(ctx, id); err != nil {
		handleServiceError(ctx, w, err, "failed to delete story, please try later")
		return
	}

	writeJSON(ctx, w, http.StatusOK, MessageResponse{Message: "story deleted successfully", ID: id})
}

func decodeStoryRequest(w http.ResponseWriter, r *http.Request) (StoryRequest, bool) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req StoryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

func toStoryResponse(s service.Story) StoryResponse {
	return StoryResponse{
		ID:       s.ID,
		Metadata: StoryMetadata{Title: s.Title, Body: s.Body},
	}
}

// handleServiceError maps service errors to HTTP status codes. Anything that is not a
// client error is logged and reported with the static defaultMsg.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "validation failed", "field", validationErr.Field, "error", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s %s", validationErr.Field, validationErr.Message))
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
		return
	}

	logger.ErrorContext(ctx, "service error", "error", err)
	writeError(w, http.StatusInternalServerError, defaultMsg)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Message: message,
	})
}
