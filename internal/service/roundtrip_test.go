package service_test

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"social-stories/internal/service"
	"social-stories/internal/vectorstore"
)

const bagDimensions = 64

// bagOfWordsEmbedder hashes each word into a bucket so stories sharing words score higher.
type bagOfWordsEmbedder struct{}

func (bagOfWordsEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, bagDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,!?")))
		vec[h.Sum32()%bagDimensions]++
	}
	return vec, nil
}

func newRoundTripService(t *testing.T, namespace string) (service.StoryService, *vectorstore.SQLiteStore) {
	t.Helper()

	store, err := vectorstore.NewSQLiteStore(filepath.Join(t.TempDir(), "stories.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.EnsureCollection(testContext(), "stories", bagDimensions); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	svc := service.NewStoryService(bagOfWordsEmbedder{}, store, service.StoryServiceConfig{
		Collection: "stories",
		Namespace:  namespace,
	})
	return svc, store
}

func TestRoundTrip_CreatedStoryIsListedAndSearchable(t *testing.T) {
	ctx := testContext()
	svc, _ := newRoundTripService(t, "")

	dragon, err := svc.Create(ctx, service.StoryInput{Title: "The dragon", Body: "A dragon slept on a hill of gold."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, service.StoryInput{Title: "Gardening", Body: "Tomatoes need sun and water daily."}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stories, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("List() returned %d stories, want 2", len(stories))
	}

	matches, err := svc.Search(ctx, "dragon gold")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) == 0 || matches[0].ID != dragon.ID {
		t.Errorf("Search() top match = %+v, want %s", matches, dragon.ID)
	}

	got, err := svc.Get(ctx, dragon.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != dragon {
		t.Errorf("Get() = %+v, want %+v", got, dragon)
	}
}

func TestRoundTrip_UpdateReplacesWithoutDuplicate(t *testing.T) {
	ctx := testContext()
	svc, _ := newRoundTripService(t, "")

	created, err := svc.Create(ctx, service.StoryInput{Title: "Draft", Body: "The first version of the story."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, service.StoryInput{Title: "Final", Body: "The final version of the story."})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("Update() changed ID from %s to %s", created.ID, updated.ID)
	}

	stories, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("List() returned %d stories after update, want 1", len(stories))
	}
	if stories[0].Title != "Final" || stories[0].Body != "The final version of the story." {
		t.Errorf("List() after update = %+v", stories[0])
	}

	if _, err := svc.Update(ctx, "99999999999999999999", service.StoryInput{Title: "Final", Body: "The final version of the story."}); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Update() of missing story error = %v, want ErrNotFound", err)
	}
}

func TestRoundTrip_DeleteRemovesFromList(t *testing.T) {
	ctx := testContext()
	svc, _ := newRoundTripService(t, "")

	keep, err := svc.Create(ctx, service.StoryInput{Title: "Keep me", Body: "This story should stay around."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	drop, err := svc.Create(ctx, service.StoryInput{Title: "Drop me", Body: "This story should be removed."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, drop.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, drop.ID); err != nil {
		t.Errorf("Delete() twice error = %v, want nil", err)
	}

	stories, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stories) != 1 || stories[0].ID != keep.ID {
		t.Errorf("List() after delete = %+v, want only %s", stories, keep.ID)
	}

	if _, err := svc.Get(ctx, drop.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestRoundTrip_NamespacesAreIsolated(t *testing.T) {
	ctx := testContext()
	path := filepath.Join(t.TempDir(), "shared.db")

	store, err := vectorstore.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := store.EnsureCollection(ctx, "stories", bagDimensions); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	alpha := service.NewStoryService(bagOfWordsEmbedder{}, store, service.StoryServiceConfig{Collection: "stories", Namespace: "alpha"})
	beta := service.NewStoryService(bagOfWordsEmbedder{}, store, service.StoryServiceConfig{Collection: "stories", Namespace: "beta"})

	story, err := alpha.Create(ctx, service.StoryInput{Title: "Alpha only", Body: "Visible to the alpha namespace."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if stories, err := beta.List(ctx); err != nil || len(stories) != 0 {
		t.Errorf("beta List() = %+v, %v; want empty", stories, err)
	}
	if _, err := beta.Get(ctx, story.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("beta Get() error = %v, want ErrNotFound", err)
	}
	if err := beta.Delete(ctx, story.ID); err != nil {
		t.Errorf("beta Delete() error = %v", err)
	}
	if _, err := alpha.Get(ctx, story.ID); err != nil {
		t.Errorf("alpha Get() after beta Delete() error = %v, want story intact", err)
	}
}
