package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"social-stories/internal/handlers"
	"social-stories/internal/service"
	"social-stories/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	StoryService   service.StoryService
	VectorStore    vectorstore.VectorStore
	Backend        string // vector store backend name, reported by the health check
	Collection     string
	AllowedOrigins []string
	IndexHTML      string // Embedded HTML content
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	stories := handlers.NewStoryHandler(deps.StoryService)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.Backend, deps.Collection)
	storyPage := handlers.NewStoryPageHandler(deps.StoryService)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Post("/story", stories.Create)
			r.Get("/story/{id}", stories.Get)
			r.Put("/story/{id}", stories.Update)
			r.Delete("/story/{id}", stories.Delete)
			r.Get("/stories", stories.List)
			r.Get("/stories/search", stories.Search)
		})
	})

	r.Method(http.MethodGet, "/stories/{id}", storyPage)

	// Serve HTML page at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(deps.IndexHTML))
	})

	return r
}
