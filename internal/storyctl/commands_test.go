package storyctl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"social-stories/internal/service"
	"social-stories/internal/service/mocks"
	vectorstore_mocks "social-stories/internal/vectorstore/mocks"
)

type fixture struct {
	stories *mocks.MockStoryService
	store   *vectorstore_mocks.MockVectorStore
	closed  bool
}

func run(t *testing.T, setup func(f *fixture), args ...string) (string, *fixture, error) {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		stories: mocks.NewMockStoryService(ctrl),
		store:   vectorstore_mocks.NewMockVectorStore(ctrl),
	}
	setup(f)

	open := func(context.Context) (*Env, error) {
		return &Env{
			Stories:    f.stories,
			Store:      f.store,
			Collection: "stories",
			VectorSize: 1536,
			Close: func() error {
				f.closed = true
				return nil
			},
		}, nil
	}

	var out bytes.Buffer
	err := NewApp(open, &out).Run(append([]string{"storyctl"}, args...))
	return out.String(), f, err
}

func TestCommands(t *testing.T) {
	input := service.StoryInput{Title: "Dragons", Body: "a story about dragons"}

	tests := []struct {
		name     string
		args     []string
		setup    func(f *fixture)
		wantOut  []string
		wantErr  bool
		wantOpen bool
	}{
		{
			name: "init",
			args: []string{"init"},
			setup: func(f *fixture) {
				f.store.EXPECT().EnsureCollection(gomock.Any(), "stories", 1536).Return(nil)
			},
			wantOut:  []string{"collection stories ready"},
			wantOpen: true,
		},
		{
			name: "init failure",
			args: []string{"init"},
			setup: func(f *fixture) {
				f.store.EXPECT().EnsureCollection(gomock.Any(), "stories", 1536).Return(errors.New("dimension mismatch"))
			},
			wantErr:  true,
			wantOpen: true,
		},
		{
			name: "create",
			args: []string{"create", "--title", "Dragons", "--body", "a story about dragons"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Create(gomock.Any(), input).Return(service.Story{ID: "12345678901234567890"}, nil)
			},
			wantOut:  []string{"12345678901234567890"},
			wantOpen: true,
		},
		{
			name: "create as JSON",
			args: []string{"--json", "create", "-t", "Dragons", "-b", "a story about dragons"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Create(gomock.Any(), input).
					Return(service.Story{ID: "1", Title: "Dragons", Body: "a story about dragons"}, nil)
			},
			wantOut:  []string{`"id": "1"`, `"title": "Dragons"`},
			wantOpen: true,
		},
		{
			name:    "create without title",
			args:    []string{"create", "--body", "a story about dragons"},
			setup:   func(*fixture) {},
			wantErr: true,
		},
		{
			name: "create validation error",
			args: []string{"create", "--title", "D", "--body", "a story about dragons"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(service.Story{}, &service.ValidationError{Field: "title", Message: "too short"})
			},
			wantErr:  true,
			wantOpen: true,
		},
		{
			name: "get",
			args: []string{"get", "abc"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Get(gomock.Any(), "abc").Return(service.Story{ID: "abc", Title: "Dragons", Body: "fire"}, nil)
			},
			wantOut:  []string{"Dragons", "fire"},
			wantOpen: true,
		},
		{
			name:     "get without id",
			args:     []string{"get"},
			setup:    func(*fixture) {},
			wantErr:  true,
			wantOpen: true,
		},
		{
			name: "get missing",
			args: []string{"get", "abc"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Get(gomock.Any(), "abc").Return(service.Story{}, service.ErrNotFound)
			},
			wantErr:  true,
			wantOpen: true,
		},
		{
			name: "list",
			args: []string{"ls"},
			setup: func(f *fixture) {
				f.stories.EXPECT().List(gomock.Any()).Return([]service.Story{
					{ID: "1", Title: "Dragons"},
					{ID: "2", Title: "Gardens"},
				}, nil)
			},
			wantOut:  []string{"ID", "TITLE", "Dragons", "Gardens"},
			wantOpen: true,
		},
		{
			name: "search joins arguments",
			args: []string{"search", "flying", "lizards"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Search(gomock.Any(), "flying lizards").Return([]service.StoryMatch{
					{Story: service.Story{ID: "1", Title: "Dragons"}, Score: 0.875},
				}, nil)
			},
			wantOut:  []string{"SCORE", "0.875", "Dragons"},
			wantOpen: true,
		},
		{
			name:     "search without query",
			args:     []string{"search"},
			setup:    func(*fixture) {},
			wantErr:  true,
			wantOpen: true,
		},
		{
			name: "update",
			args: []string{"update", "--title", "Dragons", "--body", "a story about dragons", "abc"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Update(gomock.Any(), "abc", input).Return(service.Story{ID: "abc"}, nil)
			},
			wantOut:  []string{"updated abc"},
			wantOpen: true,
		},
		{
			name: "delete",
			args: []string{"rm", "abc"},
			setup: func(f *fixture) {
				f.stories.EXPECT().Delete(gomock.Any(), "abc").Return(nil)
			},
			wantOut:  []string{"deleted abc"},
			wantOpen: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, f, err := run(t, tt.setup, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out, want) {
					t.Errorf("Run(%v) output = %q, want it to contain %q", tt.args, out, want)
				}
			}
			if f.closed != tt.wantOpen {
				t.Errorf("Run(%v) closed env = %v, want %v", tt.args, f.closed, tt.wantOpen)
			}
		})
	}
}

func TestNewApp_OpenError(t *testing.T) {
	open := func(context.Context) (*Env, error) {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	var out bytes.Buffer
	err := NewApp(open, &out).Run([]string{"storyctl", "list"})
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("Run() error = %v, want open error", err)
	}
}
