// Package storyctl implements the storyctl command line tool.
package storyctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"social-stories/internal/service"
	"social-stories/internal/vectorstore"
)

// Env is what a command needs to run.
type Env struct {
	Stories    service.StoryService
	Store      vectorstore.VectorStore
	Collection string
	VectorSize int
	Close      func() error
}

// Opener builds an Env. It is called once per command invocation.
type Opener func(ctx context.Context) (*Env, error)

type envAction func(c *cli.Context, env *Env) error

// NewApp returns the storyctl application. Command output goes to out.
func NewApp(open Opener, out io.Writer) *cli.App {
	withEnv := func(action envAction) cli.ActionFunc {
		return func(c *cli.Context) error {
			env, err := open(c.Context)
			if err != nil {
				return err
			}
			if env.Close != nil {
				defer func() { _ = env.Close() }()
			}
			return action(c, env)
		}
	}

	storyFlags := []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "story title", Required: true},
		&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "story body (markdown)", Required: true},
	}

	return &cli.App{
		Name:      "storyctl",
		Usage:     "Manage stories in the vector store",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON"},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the story collection if it does not exist",
				Action: withEnv(runInit(out)),
			},
			{
				Name:    "create",
				Aliases: []string{"c"},
				Usage:   "Create a story",
				Flags:   storyFlags,
				Action:  withEnv(runCreate(out)),
			},
			{
				Name:      "get",
				Usage:     "Show a story",
				ArgsUsage: "<id>",
				Action:    withEnv(runGet(out)),
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List stories",
				Action:  withEnv(runList(out)),
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Find stories similar to a query",
				ArgsUsage: "<query>",
				Action:    withEnv(runSearch(out)),
			},
			{
				Name:      "update",
				Usage:     "Replace the title and body of a story",
				ArgsUsage: "<id>",
				Flags:     storyFlags,
				Action:    withEnv(runUpdate(out)),
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a story",
				ArgsUsage: "<id>",
				Action:    withEnv(runDelete(out)),
			},
		},
	}
}

func runInit(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		if err := env.Store.EnsureCollection(c.Context, env.Collection, env.VectorSize); err != nil {
			return fmt.Errorf("failed to ensure collection: %w", err)
		}
		_, err := fmt.Fprintf(out, "collection %s ready (vector size %d)\n", env.Collection, env.VectorSize)
		return err
	}
}

func runCreate(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		story, err := env.Stories.Create(c.Context, storyInput(c))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(out, story)
		}
		_, err = fmt.Fprintln(out, story.ID)
		return err
	}
}

func runGet(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		id, err := idArg(c)
		if err != nil {
			return err
		}
		story, err := env.Stories.Get(c.Context, id)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(out, story)
		}
		_, err = fmt.Fprintf(out, "%s\n\n%s\n", story.Title, story.Body)
		return err
	}
}

func runList(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		stories, err := env.Stories.List(c.Context)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(out, stories)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tTITLE")
		for _, s := range stories {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Title)
		}
		return tw.Flush()
	}
}

func runSearch(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
		if query == "" {
			return fmt.Errorf("search query is required")
		}
		matches, err := env.Stories.Search(c.Context, query)
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(out, matches)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SCORE\tID\tTITLE")
		for _, m := range matches {
			_, _ = fmt.Fprintf(tw, "%.3f\t%s\t%s\n", m.Score, m.ID, m.Title)
		}
		return tw.Flush()
	}
}

func runUpdate(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		id, err := idArg(c)
		if err != nil {
			return err
		}
		story, err := env.Stories.Update(c.Context, id, storyInput(c))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return writeJSON(out, story)
		}
		_, err = fmt.Fprintf(out, "updated %s\n", story.ID)
		return err
	}
}

func runDelete(out io.Writer) envAction {
	return func(c *cli.Context, env *Env) error {
		id, err := idArg(c)
		if err != nil {
			return err
		}
		if err := env.Stories.Delete(c.Context, id); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "deleted %s\n", id)
		return err
	}
}

func storyInput(c *cli.Context) service.StoryInput {
	return service.StoryInput{Title: c.String("title"), Body: c.String("body")}
}

func idArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one story id, got %d arguments", c.NArg())
	}
	return c.Args().First(), nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
