package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"social-stories/internal/app"
	"social-stories/internal/config"
	"social-stories/internal/storyctl"
)

func main() {
	cli := storyctl.NewApp(openEnv, os.Stdout)
	if err := cli.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openEnv(_ context.Context) (*storyctl.Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(app.NewLogger(cfg, os.Stderr))

	store, err := app.OpenVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	return &storyctl.Env{
		Stories:    app.NewStoryService(cfg, app.NewEmbedder(cfg), store),
		Store:      store,
		Collection: cfg.VectorCollection,
		VectorSize: cfg.EmbeddingDimensions,
		Close:      store.Close,
	}, nil
}
