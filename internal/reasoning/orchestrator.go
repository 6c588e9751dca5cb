// Package reasoning turns a query into a bounded series of private thinking
// calls followed by one public finalize call.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/HexSleeves/ponder/internal/bus"
	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
	"github.com/HexSleeves/ponder/internal/logger"
	"github.com/HexSleeves/ponder/internal/store"
)

// Renderer displays a piece of text. The caller picks the implementation;
// the orchestrator never decides how output looks.
type Renderer interface {
	Render(text string)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(text string)

func (f RendererFunc) Render(text string) { f(text) }

var discard = RendererFunc(func(string) {})

// Options configures an Orchestrator.
type Options struct {
	Model             string
	ReasoningTokenCap int
	// Thoughts receives each round's reasoning. It must not share a stream
	// with Answers.
	Thoughts Renderer
	Answers  Renderer
	Bus      *bus.MessageBus
	Logger   *log.Logger
}

type Orchestrator struct {
	client   llm.Client
	model    string
	capacity int
	thoughts Renderer
	answers  Renderer
	bus      *bus.MessageBus
	logger   *log.Logger
}

func New(client llm.Client, opts Options) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		model:    opts.Model,
		capacity: opts.ReasoningTokenCap,
		thoughts: opts.Thoughts,
		answers:  opts.Answers,
		bus:      opts.Bus,
		logger:   opts.Logger,
	}
	if o.capacity <= 0 {
		o.capacity = DefaultReasoningTokenCap
	}
	if o.thoughts == nil {
		o.thoughts = discard
	}
	if o.answers == nil {
		o.answers = discard
	}
	if o.logger == nil {
		o.logger = logger.Discard()
	}
	return o
}

// Request is one query to reason about.
type Request struct {
	// QueryID tags bus messages; it has no effect on the conversation.
	QueryID string
	// History is a previously saved transcript. Empty starts a fresh
	// conversation.
	History llm.Transcript
	// Query may be empty only when History is not.
	Query  string
	Rounds int
	Files  []llm.FileContent
}

type Result struct {
	Transcript llm.Transcript
	Answer     string
}

// Run performs req.Rounds reasoning calls and one finalize call, in that
// order, and returns the extended transcript. Any failed call aborts the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Rounds < 1 {
		return nil, apperrors.Validation("rounds", "must be at least 1, got %d", req.Rounds)
	}
	fresh := len(req.History) == 0
	if fresh && strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.Validation("query", "a new conversation needs a query")
	}

	transcript := o.prepare(req)
	o.logger.Debug("starting reasoning", "query_id", req.QueryID, "rounds", req.Rounds,
		"fresh", fresh, "files", len(req.Files), "messages", len(transcript))

	for round := 1; round <= req.Rounds; round++ {
		o.bus.Publish(bus.Message{Type: bus.MsgRoundStarted, QueryID: req.QueryID, Round: round, Rounds: req.Rounds})

		raw, err := o.client.Complete(ctx, transcript, llm.Options{Model: o.model, MaxTokens: o.capacity})
		if err != nil {
			o.fail(req, round, err)
			return nil, fmt.Errorf("reasoning round %d/%d: %w", round, req.Rounds, err)
		}

		thought := StripThought(raw)
		transcript = transcript.Append(llm.RoleAssistant, wrapThought(thought))
		o.bus.Publish(bus.Message{Type: bus.MsgRoundThought, QueryID: req.QueryID, Round: round, Rounds: req.Rounds, Payload: thought})
		o.thoughts.Render(thought)
		o.logger.Debug("round complete", "query_id", req.QueryID, "round", round, "thought_chars", len(thought))

		if round < req.Rounds {
			transcript = transcript.Append(llm.RoleSystem, ContinuePrompt)
		}
	}

	transcript = transcript.Append(llm.RoleSystem, FinalizePrompt)
	o.bus.Publish(bus.Message{Type: bus.MsgFinalizeStarted, QueryID: req.QueryID, Rounds: req.Rounds})
	answer, err := o.client.Complete(ctx, transcript, llm.Options{Model: o.model})
	if err != nil {
		o.fail(req, 0, err)
		return nil, fmt.Errorf("finalize: %w", err)
	}

	o.bus.Publish(bus.Message{Type: bus.MsgAnswerReady, QueryID: req.QueryID, Rounds: req.Rounds, Payload: answer})
	o.answers.Render(answer)
	transcript = transcript.Append(llm.RoleAssistant, answer)

	return &Result{Transcript: transcript, Answer: answer}, nil
}

// prepare builds the transcript the first round sees: directive, files in
// the order given, then the query.
func (o *Orchestrator) prepare(req Request) llm.Transcript {
	transcript := make(llm.Transcript, 0, len(req.History)+len(req.Files)+2*req.Rounds+3)
	transcript = append(transcript, req.History...)
	transcript = transcript.Append(llm.RoleSystem, ReasoningPrompt)
	for _, f := range req.Files {
		transcript = transcript.Append(llm.RoleUser, fileMessage(f))
	}
	if strings.TrimSpace(req.Query) != "" {
		transcript = transcript.Append(llm.RoleUser, req.Query)
	}
	return transcript
}

func (o *Orchestrator) fail(req Request, round int, err error) {
	o.bus.Publish(bus.Message{Type: bus.MsgCompletionFailed, QueryID: req.QueryID, Round: round, Rounds: req.Rounds, Payload: err.Error()})
	o.logger.Debug("completion failed", "query_id", req.QueryID, "round", round, "err", err)
}

// Conversation is a Request that may resume from, and persist to, a store.
type Conversation struct {
	Request
	// ContinueID resumes a saved conversation; it is also the id the result
	// is saved under.
	ContinueID string
	Save       bool
}

// Outcome is the result of Converse. ID is empty when nothing was saved.
type Outcome struct {
	Result
	ID string
}

// Converse loads the conversation named by c.ContinueID (if any), runs it,
// and saves the result when c.Save is set or the conversation was resumed.
func (o *Orchestrator) Converse(ctx context.Context, s store.Store, c Conversation) (*Outcome, error) {
	req := c.Request
	if c.ContinueID != "" {
		history, err := s.Load(ctx, c.ContinueID)
		if err != nil {
			return nil, fmt.Errorf("load conversation %s: %w", c.ContinueID, err)
		}
		if len(history) == 0 && strings.TrimSpace(req.Query) == "" {
			return nil, apperrors.Validation("query", "conversation %s is empty and no query was given", c.ContinueID)
		}
		req.History = history
	}

	res, err := o.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Result: *res}
	if !c.Save && c.ContinueID == "" {
		return out, nil
	}
	id, err := s.Save(ctx, res.Transcript, c.ContinueID)
	if err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	out.ID = id
	o.bus.Publish(bus.Message{Type: bus.MsgConversationSaved, QueryID: req.QueryID, Payload: id})
	o.logger.Debug("conversation saved", "query_id", req.QueryID, "id", id)
	return out, nil
}
