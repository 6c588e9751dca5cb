package batch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/HexSleeves/ponder/internal/bus"
)

func TestLinesStopsAtBlankLine(t *testing.T) {
	in := strings.NewReader("first\n  second  \n\nignored\n")
	got := slices.Collect(Lines(in))
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("Lines() = %q", got)
	}
}

func TestLinesUntilEOF(t *testing.T) {
	got := slices.Collect(Lines(strings.NewReader("a\nb")))
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("Lines() = %q", got)
	}
}

func TestLinesEmptyInput(t *testing.T) {
	if got := slices.Collect(Lines(strings.NewReader(""))); len(got) != 0 {
		t.Fatalf("Lines() = %q", got)
	}
}

func TestLinesEarlyBreak(t *testing.T) {
	var seen []string
	for l := range Lines(strings.NewReader("a\nb\nc\n")) {
		seen = append(seen, l)
		if l == "b" {
			break
		}
	}
	if len(seen) != 2 {
		t.Fatalf("seen = %q", seen)
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	b := bus.New(nil)
	var published []bus.Message
	b.SubscribeAll(func(m bus.Message) { published = append(published, m) })
	r := NewRunner(b)

	var order []string
	err := r.Run(context.Background(), slices.Values([]string{"ok-1", "bad", "ok-2"}), func(ctx context.Context, job *Job) (string, error) {
		order = append(order, job.Query)
		if job.Query == "bad" {
			return "", errors.New("remote exploded")
		}
		return "id-" + job.Query, nil
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if strings.Join(order, ",") != "ok-1,bad,ok-2" {
		t.Fatalf("processing order = %v", order)
	}
	jobs := r.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if jobs[0].Status != StatusComplete || jobs[0].ConversationID != "id-ok-1" {
		t.Errorf("job 0 = %+v", jobs[0])
	}
	if jobs[1].Status != StatusFailed || jobs[1].LastError != "remote exploded" {
		t.Errorf("job 1 = %+v", jobs[1])
	}
	if jobs[2].Status != StatusComplete {
		t.Errorf("job 2 = %+v", jobs[2])
	}
	for _, j := range jobs {
		if j.StartedAt == nil || j.CompletedAt == nil {
			t.Errorf("job %s missing timings", j.ID)
		}
	}

	failed := r.Failed()
	if len(failed) != 1 || failed[0].ID != "query-2" {
		t.Fatalf("Failed() = %+v", failed)
	}

	var types []string
	for _, m := range published {
		types = append(types, string(m.Type))
	}
	want := "query.started,query.completed,query.started,query.failed,query.started,query.completed"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("events = %s", got)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(nil)

	calls := 0
	err := r.Run(ctx, slices.Values([]string{"a", "b", "c"}), func(ctx context.Context, job *Job) (string, error) {
		calls++
		cancel()
		return "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
