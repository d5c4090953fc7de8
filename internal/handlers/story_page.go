package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"social-stories/internal/contextutil"
	"social-stories/internal/service"
)

// StoryPageHandler serves a story as a rendered HTML page.
type StoryPageHandler struct {
	stories  service.StoryService
	markdown goldmark.Markdown
	template *template.Template
}

// storyPageData holds template data for rendered story pages.
type storyPageData struct {
	ID      string
	Title   string
	Content template.HTML
}

// NewStoryPageHandler creates a new handler for story pages.
// Raw HTML in story bodies is dropped by goldmark's default (safe) renderer.
func NewStoryPageHandler(stories service.StoryService) *StoryPageHandler {
	tmpl := template.Must(template.New("story").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} - Social Stories</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 760px;
      line-height: 1.7;
      background: #fafaf9;
      color: #1c1917;
    }
    header {
      margin-bottom: 2rem;
      border-bottom: 1px solid #e7e5e4;
      padding-bottom: 1rem;
    }
    h1 {
      margin-top: 0;
      font-size: 2rem;
    }
    article {
      background: #fff;
      border: 1px solid #e7e5e4;
      border-radius: 12px;
      padding: 2rem;
    }
    pre {
      background: #f5f5f4;
      padding: 1rem;
      overflow-x: auto;
      border-radius: 8px;
    }
    code {
      font-family: 'SFMono-Regular', Consolas, 'Liberation Mono', Menlo, monospace;
    }
    blockquote {
      border-left: 4px solid #a8a29e;
      padding-left: 1rem;
      margin-left: 0;
      color: #57534e;
    }
    a {
      color: #2563eb;
    }
    .meta {
      color: #78716c;
      font-size: 0.9rem;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <p class="meta">Story {{.ID}} &middot; <a href="/">All stories</a></p>
  </header>
  <article>{{.Content}}</article>
</body>
</html>`))

	return &StoryPageHandler{
		stories: stories,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		template: tmpl,
	}
}

// ServeHTTP renders GET /stories/{id}.
func (h *StoryPageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	story, err := h.stories.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			http.Error(w, "invalid story id", http.StatusBadRequest)
		case errors.Is(err, service.ErrNotFound):
			http.Error(w, "story not found", http.StatusNotFound)
		default:
			logger.ErrorContext(ctx, "failed to load story", "error", err)
			http.Error(w, "failed to load story", http.StatusInternalServerError)
		}
		return
	}

	content, err := h.renderMarkdown([]byte(story.Body))
	if err != nil {
		logger.ErrorContext(ctx, "failed to render markdown", "story_id", story.ID, "error", err)
		http.Error(w, "failed to render story", http.StatusInternalServerError)
		return
	}

	data := storyPageData{
		ID:      story.ID,
		Title:   story.Title,
		Content: template.HTML(content),
	}

	// Render into a buffer so a template error can still produce a clean 500.
	var buf bytes.Buffer
	if err := h.template.Execute(&buf, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute story template", "story_id", story.ID, "error", err)
		http.Error(w, "failed to render story", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *StoryPageHandler) renderMarkdown(content []byte) (string, error) {
	var buf bytes.Buffer
	if err := h.markdown.Convert(content, &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}
