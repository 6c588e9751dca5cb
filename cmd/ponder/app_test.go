package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
)

type harness struct {
	stdin          io.Reader
	stdout, stderr bytes.Buffer
	tty            bool
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	in := h.stdin
	if in == nil {
		in = strings.NewReader("")
	}
	a := &app{stdin: in, stdout: &h.stdout, stderr: &h.stderr, isTTY: func(v any) bool {
		return h.tty && v == in
	}}
	return a.command().Run(context.Background(), append([]string{"ponder"}, args...))
}

// fakeEndpoint serves /models and /chat/completions. Capped requests are
// reasoning rounds; uncapped requests are the final answer. Any request
// mentioning "explode" fails with a 500.
func fakeEndpoint(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/models") {
			_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"zeta","object":"model"},{"id":"alpha","object":"model"}]}`)
			return
		}
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "explode") {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
			return
		}
		content := "the answer is 4"
		if gjson.GetBytes(body, "max_completion_tokens").Exists() {
			content = "<think>adding two and two</think>"
		}
		reply := `{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` +
			strconv.Quote(content) + `},"finish_reason":"stop"}]}`
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	home := t.TempDir()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", baseURL)
	t.Setenv("PONDER_MODEL", "")
	t.Setenv("PONDER_ROUNDS", "")
	t.Setenv("PONDER_STORE", "")
	t.Setenv("PONDER_LOG_LEVEL", "")
	dir := filepath.Join(home, "conversations")
	t.Setenv("PONDER_STORE_DIR", dir)
	return dir
}

func TestSingleQuery(t *testing.T) {
	srv, calls := fakeEndpoint(t)
	setupEnv(t, srv.URL)

	var h harness
	if err := h.run(t, "-q", "What is 2+2?", "-r", "2"); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, h.stderr.String())
	}
	if got := h.stdout.String(); got != "the answer is 4\n" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(h.stderr.String(), "adding two and two") {
		t.Errorf("stderr missing thought: %q", h.stderr.String())
	}
	if strings.Contains(h.stdout.String(), "adding two and two") {
		t.Error("thought leaked into stdout")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("completion calls = %d, want 3", n)
	}
}

func TestSaveAndContinue(t *testing.T) {
	srv, _ := fakeEndpoint(t)
	dir := setupEnv(t, srv.URL)

	var first harness
	if err := first.run(t, "-q", "What is 2+2?", "-r", "1", "--save"); err != nil {
		t.Fatalf("run: %v", err)
	}
	line := strings.TrimSpace(first.stderr.String()[strings.Index(first.stderr.String(), "conversation: "):])
	id := strings.TrimPrefix(strings.SplitN(line, "\n", 2)[0], "conversation: ")
	if len(id) != 8 {
		t.Fatalf("id = %q", id)
	}
	if _, err := os.Stat(filepath.Join(dir, id+".json")); err != nil {
		t.Fatalf("saved file: %v", err)
	}

	var list harness
	if err := list.run(t, "--list-conversations"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(list.stdout.String(), id) {
		t.Errorf("listing %q missing %s", list.stdout.String(), id)
	}

	var second harness
	if err := second.run(t, "-c", id, "-q", "And 3+3?", "-r", "1"); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if !strings.Contains(second.stderr.String(), "conversation: "+id) {
		t.Errorf("continuation not saved under %s: %q", id, second.stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.ParseBytes(data).Get("#").Int(); got != 6 {
		t.Errorf("continued transcript has %d messages, want 6", got)
	}
}

func TestContinueWithEmptyStdin(t *testing.T) {
	srv, calls := fakeEndpoint(t)
	dir := setupEnv(t, srv.URL)

	var first harness
	if err := first.run(t, "-q", "What is 2+2?", "-r", "1", "--save"); err != nil {
		t.Fatalf("run: %v", err)
	}
	ids, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(ids) != 1 {
		t.Fatalf("saved files = %v, %v", ids, err)
	}
	id := strings.TrimSuffix(filepath.Base(ids[0]), ".json")

	before := calls.Load()
	h := harness{stdin: strings.NewReader("")}
	if err := h.run(t, "-c", id, "-r", "2"); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if got := calls.Load() - before; got != 3 {
		t.Errorf("completion calls = %d, want 3", got)
	}
	if got := h.stdout.String(); got != "the answer is 4\n" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(h.stderr.String(), "conversation: "+id) {
		t.Errorf("continuation not saved under %s: %q", id, h.stderr.String())
	}
}

func TestInitConfig(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:0")
	path := filepath.Join(t.TempDir(), "cfg", "ponder.json")

	var h harness
	if err := h.run(t, "--config", path, "--init-config", "-m", "gpt-test"); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := gjson.ParseBytes(data)
	if got := doc.Get("model").String(); got != "gpt-test" {
		t.Errorf("model = %q", got)
	}
	if got := doc.Get("request_timeout").String(); got != "2m0s" {
		t.Errorf("request_timeout = %q", got)
	}
	if strings.Contains(string(data), "sk-test") {
		t.Error("config file contains the API key")
	}

	var again harness
	err = again.run(t, "--config", path, "--init-config")
	if apperrors.ExitCode(err) != apperrors.ExitValidation {
		t.Fatalf("second init-config = %v, want validation error", err)
	}
}

func TestBatchFromStdin(t *testing.T) {
	srv, _ := fakeEndpoint(t)
	setupEnv(t, srv.URL)

	h := harness{stdin: strings.NewReader("What is 2+2?\nplease explode\nWhat is 3+3?\n\nignored\n")}
	err := h.run(t, "-r", "1")
	if err == nil {
		t.Fatal("expected error for failed batch query")
	}
	if apperrors.ExitCode(err) != apperrors.ExitFailure {
		t.Errorf("exit code = %d, want %d", apperrors.ExitCode(err), apperrors.ExitFailure)
	}
	if !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("err = %v", err)
	}
	if got := strings.Count(h.stdout.String(), "the answer is 4"); got != 2 {
		t.Errorf("answers = %d, want 2\n%s", got, h.stdout.String())
	}
}

func TestListModels(t *testing.T) {
	srv, calls := fakeEndpoint(t)
	setupEnv(t, srv.URL)

	var h harness
	if err := h.run(t, "--list-models"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := h.stdout.String(); got != "alpha\nzeta\n" {
		t.Errorf("stdout = %q", got)
	}
	if calls.Load() != 0 {
		t.Error("list-models made completion calls")
	}
}

func TestValidationFailures(t *testing.T) {
	srv, calls := fakeEndpoint(t)

	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		tty   bool
		field string
	}{
		{name: "zero rounds", args: []string{"-q", "hi", "-r", "0"}},
		{name: "missing credential", env: map[string]string{"OPENAI_API_KEY": ""}, args: []string{"-q", "hi"}},
		{name: "missing file", args: []string{"-q", "hi", "-f", "no-such-file.txt"}},
		{name: "both list modes", args: []string{"--list-models", "--list-conversations"}},
		{name: "interactive without query", args: []string{}, tty: true},
		{name: "unknown store", args: []string{"-q", "hi", "--store", "redis"}},
		{name: "bad conversation id", args: []string{"-c", "../etc", "-q", "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, srv.URL)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			before := calls.Load()
			h := harness{tty: tt.tty}
			err := h.run(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			var ve *apperrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %T %v, want ValidationError", err, err)
			}
			if apperrors.ExitCode(err) != apperrors.ExitValidation {
				t.Errorf("exit code = %d", apperrors.ExitCode(err))
			}
			if calls.Load() != before {
				t.Error("validation failure reached the endpoint")
			}
		})
	}
}

func TestContinueUnknownID(t *testing.T) {
	srv, calls := fakeEndpoint(t)
	dir := setupEnv(t, srv.URL)

	var h harness
	err := h.run(t, "-c", "deadbeef", "-q", "hi")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls.Load() != 0 {
		t.Error("unknown id reached the endpoint")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("store dir created on failed load: %v", err)
	}
}
