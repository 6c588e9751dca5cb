// Package batch runs a sequence of queries one at a time, isolating each
// query's failure from the rest.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/HexSleeves/ponder/internal/bus"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

type Job struct {
	ID             string     `json:"id"`
	Query          string     `json:"query"`
	Status         Status     `json:"status"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Err            error      `json:"-"`
	LastError      string     `json:"last_error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Lines yields trimmed input lines until the first blank line or EOF.
// A read error ends the sequence early.
func Lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Func processes one query and returns the id it was saved under, if any.
type Func func(ctx context.Context, job *Job) (string, error)

// Runner processes queries sequentially and records every job.
type Runner struct {
	bus  *bus.MessageBus
	jobs []*Job
}

func NewRunner(b *bus.MessageBus) *Runner {
	return &Runner{bus: b}
}

// Run drives fn over queries in order. A failing query is recorded and the
// batch moves on; only context cancellation stops it early, in which case
// ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, queries iter.Seq[string], fn Func) error {
	n := 0
	for q := range queries {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		job := &Job{ID: fmt.Sprintf("query-%d", n), Query: q, Status: StatusPending}
		r.jobs = append(r.jobs, job)
		r.run(ctx, job, fn)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, job *Job, fn Func) {
	now := time.Now()
	job.Status = StatusRunning
	job.StartedAt = &now
	r.bus.Publish(bus.Message{Type: bus.MsgQueryStarted, QueryID: job.ID, Payload: job.Query, Time: now})

	id, err := fn(ctx, job)

	done := time.Now()
	job.CompletedAt = &done
	if err != nil {
		job.Status = StatusFailed
		job.Err = err
		job.LastError = err.Error()
		r.bus.Publish(bus.Message{Type: bus.MsgQueryFailed, QueryID: job.ID, Payload: err.Error(), Time: done})
		return
	}
	job.Status = StatusComplete
	job.ConversationID = id
	r.bus.Publish(bus.Message{Type: bus.MsgQueryCompleted, QueryID: job.ID, Payload: id, Time: done})
}

// Jobs returns every job in submission order.
func (r *Runner) Jobs() []*Job {
	out := make([]*Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

func (r *Runner) Failed() []*Job {
	var failed []*Job
	for _, j := range r.jobs {
		if j.Status == StatusFailed {
			failed = append(failed, j)
		}
	}
	return failed
}
