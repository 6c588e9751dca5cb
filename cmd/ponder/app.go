package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/HexSleeves/ponder/internal/attach"
	"github.com/HexSleeves/ponder/internal/batch"
	"github.com/HexSleeves/ponder/internal/bus"
	"github.com/HexSleeves/ponder/internal/config"
	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
	"github.com/HexSleeves/ponder/internal/logger"
	"github.com/HexSleeves/ponder/internal/reasoning"
	"github.com/HexSleeves/ponder/internal/render"
	"github.com/HexSleeves/ponder/internal/store"
)

const version = "0.1.0"

const description = `ponder sends a query through several private reasoning rounds before
asking the model for a final answer. Reasoning is printed to stderr and the
answer to stdout, so piping ponder only captures the answer.

With no --query and a non-interactive stdin, each line of stdin is a query;
a blank line ends the batch.

Examples:
  ponder -q "Is 0.999... equal to 1?"
  ponder -r 5 -f main.go -q "Where is the race in this file?"
  ponder -s -q "Plan a three day trip to Kyoto"
  ponder -c 1a2b3c4d -q "Make it two days instead"
  printf 'What is 2+2?\nWhat is 3+3?\n' | ponder -r 1
  ponder --list-models
  ponder --list-conversations`

// app carries the process streams so tests can drive the CLI end to end.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	isTTY  func(v any) bool
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, isTTY: isTerminal}
	return a.command()
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:        "ponder",
		Usage:       "multi-round chain-of-thought client for OpenAI-compatible models",
		Version:     version,
		Description: description,
		Writer:      a.stdout,
		ErrWriter:   a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "the question to reason about"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "model name (default from config)"},
			&cli.IntFlag{Name: "rounds", Aliases: []string{"r"}, Usage: "number of reasoning rounds, at least 1 (default from config)"},
			&cli.StringSliceFlag{Name: "file", Aliases: []string{"f"}, Usage: "attach a file as context (repeatable)"},
			&cli.BoolFlag{Name: "save", Aliases: []string{"s"}, Usage: "save the conversation and print its id"},
			&cli.StringFlag{Name: "continue", Aliases: []string{"c"}, Usage: "continue the saved conversation `ID`"},
			&cli.BoolFlag{Name: "list-models", Usage: "list models served by the endpoint"},
			&cli.BoolFlag{Name: "list-conversations", Usage: "list saved conversations"},
			&cli.StringFlag{Name: "config", Value: config.DefaultPath(), Usage: "config file `PATH`"},
			&cli.BoolFlag{Name: "init-config", Usage: "write the effective settings (without the API key) to the config file and exit"},
			&cli.StringFlag{Name: "store", Usage: "conversation store backend: file, sqlite or bolt"},
			&cli.BoolFlag{Name: "raw", Usage: "print the answer without Markdown rendering"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Action: a.run,
	}
}

func (a *app) run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(a.stderr, cfg.LogLevel, cmd.Bool("verbose"))

	if cmd.Bool("init-config") {
		path := cmd.String("config")
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(a.stderr, "config: %s\n", path)
		return nil
	}

	listModels, listConversations := cmd.Bool("list-models"), cmd.Bool("list-conversations")
	if listModels && listConversations {
		return &apperrors.ValidationError{Msg: "--list-models and --list-conversations are mutually exclusive"}
	}

	if id := cmd.String("continue"); id != "" {
		if err := store.ValidateID(id); err != nil {
			return err
		}
	}
	st, err := store.Open(cfg.StoreKind, cfg.StoreDir)
	if err != nil {
		return err
	}
	if listConversations {
		return a.listConversations(ctx, st)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	client, err := llm.NewFromConfig(llm.ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.RequestTimeout),
	})
	if err != nil {
		return err
	}
	if listModels {
		return a.listModels(ctx, client)
	}

	queries, err := a.queries(cmd)
	if err != nil {
		return err
	}

	loader := attach.NewLoader(cfg.MaxFileSize)
	paths := cmd.StringSlice("file")
	if err := loader.Check(paths); err != nil {
		return err
	}
	files, err := loader.Load(paths)
	if err != nil {
		return err
	}

	b := bus.New(log)
	if cmd.Bool("verbose") {
		b.SubscribeAll(func(msg bus.Message) {
			log.Debug("event", "type", msg.Type, "query", msg.QueryID, "round", msg.Round)
		})
	} else if a.isTTY(a.stderr) {
		progress := render.AttachProgress(b, a.stderr)
		defer progress.Detach()
	}

	o := reasoning.New(client, reasoning.Options{
		Model:             cfg.Model,
		ReasoningTokenCap: cfg.ReasoningTokenCap,
		Thoughts:          render.NewThought(a.stderr),
		Answers:           render.ForAnswer(a.stdout, a.isTTY(a.stdout), cmd.Bool("raw"), a.width()),
		Bus:               b,
		Logger:            log,
	})

	continueID := cmd.String("continue")
	save := cmd.Bool("save")
	runner := batch.NewRunner(b)
	err = runner.Run(ctx, queries, func(ctx context.Context, job *batch.Job) (string, error) {
		out, err := o.Converse(ctx, st, reasoning.Conversation{
			Request: reasoning.Request{
				QueryID: job.ID,
				Query:   job.Query,
				Rounds:  cfg.Rounds,
				Files:   files,
			},
			ContinueID: continueID,
			Save:       save,
		})
		if err != nil {
			return "", err
		}
		if out.ID != "" {
			fmt.Fprintf(a.stderr, "conversation: %s\n", out.ID)
		}
		return out.ID, nil
	})
	if err != nil {
		return err
	}

	return summarize(log, runner)
}

// summarize reports failed queries. A single failed query returns its own
// error so the exit code reflects its kind.
func summarize(l *log.Logger, runner *batch.Runner) error {
	jobs, failed := runner.Jobs(), runner.Failed()
	if len(failed) == 0 {
		return nil
	}
	if len(jobs) == 1 {
		return failed[0].Err
	}
	for _, j := range failed {
		l.Error("query failed", "query", j.Query, "err", j.Err)
	}
	return fmt.Errorf("%d of %d queries failed", len(failed), len(jobs))
}

// queries decides where queries come from: --query, piped stdin, or a bare
// continuation.
func (a *app) queries(cmd *cli.Command) (iter.Seq[string], error) {
	if q := strings.TrimSpace(cmd.String("query")); q != "" {
		return slices.Values([]string{q}), nil
	}
	continuing := cmd.String("continue") != ""
	if !a.isTTY(a.stdin) {
		lines := batch.Lines(a.stdin)
		if continuing {
			return orEmptyQuery(lines), nil
		}
		return lines, nil
	}
	if continuing {
		return slices.Values([]string{""}), nil
	}
	return nil, &apperrors.ValidationError{Field: "query", Msg: "no query given (use --query or pipe queries on stdin)"}
}

// orEmptyQuery yields a single empty query when seq yields nothing, so a
// continuation with empty piped input still reasons over the saved history.
func orEmptyQuery(seq iter.Seq[string]) iter.Seq[string] {
	return func(yield func(string) bool) {
		empty := true
		for q := range seq {
			empty = false
			if !yield(q) {
				return
			}
		}
		if empty {
			yield("")
		}
	}
}

func (a *app) listModels(ctx context.Context, client llm.Client) error {
	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	if a.isTTY(a.stdout) {
		return render.ModelTable(a.stdout, models)
	}
	render.ModelList(a.stdout, models)
	return nil
}

func (a *app) listConversations(ctx context.Context, st store.Store) error {
	sums, err := store.Summarize(ctx, st)
	if err != nil {
		return err
	}
	if a.isTTY(a.stdout) {
		return render.ConversationTable(a.stdout, sums)
	}
	render.ConversationList(a.stdout, sums)
	return nil
}

func (a *app) width() int {
	if f, ok := a.stdout.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return render.DefaultWidth
}

// loadConfig builds the config once and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if m := cmd.String("model"); m != "" {
		cfg.Model = m
	}
	if cmd.IsSet("rounds") {
		cfg.Rounds = int(cmd.Int("rounds"))
		if cfg.Rounds < 1 {
			return nil, apperrors.Validation("rounds", "must be at least 1, got %d", cfg.Rounds)
		}
	}
	if s := cmd.String("store"); s != "" {
		cfg.StoreKind = strings.ToLower(s)
	}
	return cfg, nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
