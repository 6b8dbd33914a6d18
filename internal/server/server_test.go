package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/books"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/mohammad-safakhou/topicbook/internal/task"
)

type fixture struct {
	srv     *Server
	reg     *task.Registry
	dir     string
	release chan struct{}
}

// newFixture builds a server whose tasks report "Working", block until
// release is closed, then report a two-line message and succeed.
func newFixture(t *testing.T, heartbeat time.Duration) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), release: make(chan struct{})}
	runner := task.RunnerFunc(func(ctx context.Context, req task.Request, h *task.Handle) {
		_ = h.Report("Working")
		select {
		case <-f.release:
		case <-ctx.Done():
			_ = h.Fail(task.KindCancelled, "Task cancelled: "+ctx.Err().Error())
			return
		}
		_ = h.Report("line1\nline2")
		_ = h.Succeed("Success! Your TopicBook has been generated: out/"+req.Topic+".md", "out/"+req.Topic+".md")
	})
	f.reg = task.NewRegistry(runner, task.WithLogger(logging.Discard()))
	store := books.NewStore(f.dir, logging.Discard())
	f.srv = New(config.ServerConfig{StreamHeartbeat: heartbeat}, f.reg, store, logging.Discard())
	t.Cleanup(func() {
		select {
		case <-f.release:
		default:
			close(f.release)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.reg.Shutdown(ctx)
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body["error"]
}

func (f *fixture) submit(t *testing.T, topic string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/generate", `{"topic":"`+topic+`"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate: expected 202, got %d %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["task_id"] == "" {
		t.Fatalf("generate: bad body %q (%v)", rec.Body.String(), err)
	}
	return body["task_id"]
}

func (f *fixture) waitStatus(t *testing.T, id, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := f.reg.Snapshot(id)
		if err == nil && snap.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reported %q", id, want)
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, time.Hour)
	rec := f.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Welcome to the TopicBook API!") {
		t.Fatalf("unexpected root response %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateRejectsEmptyTopic(t *testing.T) {
	f := newFixture(t, time.Hour)
	rec := f.do(t, http.MethodPost, "/generate", `{"topic":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorBody(t, rec); msg != task.ErrEmptyTopic.Error() {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestGenerateRejectsWhenClosed(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.reg.Close()
	rec := f.do(t, http.MethodPost, "/generate", `{"topic":"Tides"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestTaskSnapshot(t *testing.T) {
	f := newFixture(t, time.Hour)
	id := f.submit(t, "Tides")
	f.waitStatus(t, id, "Working")

	rec := f.do(t, http.MethodGet, "/tasks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap task.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ID != id || snap.State != task.StateProgress || snap.Topic != "Tides" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	rec = f.do(t, http.MethodGet, "/tasks/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", rec.Code)
	}
}

func TestStatusUnknownTask(t *testing.T) {
	f := newFixture(t, time.Hour)
	rec := f.do(t, http.MethodGet, "/status/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected json error before streaming, got %q", ct)
	}
	if msg := errorBody(t, rec); msg != task.ErrTaskNotFound.Error() {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestStatusStream(t *testing.T) {
	f := newFixture(t, time.Hour)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	id := f.submit(t, "Tides")
	f.waitStatus(t, id, "Working")

	resp, err := http.Get(ts.URL + "/status/" + id)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		var lines []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v (so far %q)", err, lines)
			}
			if line == "\n" {
				return strings.Join(lines, "")
			}
			lines = append(lines, line)
		}
	}

	if got := readEvent(); got != "data: Working\n" {
		t.Fatalf("first event = %q", got)
	}
	close(f.release)

	want := []string{
		"data: line1\ndata: line2\n",
		"data: Success! Your TopicBook has been generated: out/Tides.md\n",
		"data: [DONE]\n",
	}
	for i, w := range want {
		if got := readEvent(); got != w {
			t.Fatalf("event %d = %q, want %q", i, got, w)
		}
	}
}

func TestStatusStreamFailure(t *testing.T) {
	reg := task.NewRegistry(task.RunnerFunc(func(_ context.Context, _ task.Request, h *task.Handle) {
		_ = h.Fail(task.KindNoContentGathered, "Could not gather any content.")
	}), task.WithLogger(logging.Discard()))
	defer reg.Shutdown(context.Background())
	srv := New(config.ServerConfig{}, reg, books.NewStore(t.TempDir(), logging.Discard()), logging.Discard())

	id, err := reg.Submit(task.Request{Topic: "Nothing"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, _ := reg.Snapshot(id)
		if snap.State.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	want := "data: Error: Could not gather any content.\n\ndata: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Fatalf("stream = %q, want %q", rec.Body.String(), want)
	}
}

func TestStatusHeartbeat(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	id := f.submit(t, "Tides")
	f.waitStatus(t, id, "Working")

	resp, err := http.Get(ts.URL + "/status/" + id)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	r := bufio.NewReader(resp.Body)
	for i := 0; i < 10; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line == ": keep-alive\n" {
			return
		}
	}
	t.Fatalf("no keep-alive comment received")
}

func TestBooks(t *testing.T) {
	f := newFixture(t, time.Hour)

	rec := f.do(t, http.MethodGet, "/books", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d %s", rec.Code, rec.Body.String())
	}

	if err := os.WriteFile(filepath.Join(f.dir, "Tides.md"), []byte("# Tides"), 0o644); err != nil {
		t.Fatalf("write book: %v", err)
	}
	rec = f.do(t, http.MethodGet, "/books", "")
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil || len(names) != 1 || names[0] != "Tides.md" {
		t.Fatalf("unexpected list %s (%v)", rec.Body.String(), err)
	}

	rec = f.do(t, http.MethodGet, "/books/Tides.md", "")
	var doc books.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	if rec.Code != http.StatusOK || doc.Name != "Tides.md" || doc.Content != "# Tides" {
		t.Fatalf("unexpected book %d %+v", rec.Code, doc)
	}

	cases := []struct {
		target string
		code   int
	}{
		{"/books/Missing.md", http.StatusNotFound},
		{"/books/..", http.StatusBadRequest},
		{"/books/a..md", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tc.target, "")
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if errorBody(t, rec) == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestSSEData(t *testing.T) {
	if got := sseData("a\nb"); got != "data: a\ndata: b\n\n" {
		t.Fatalf("sseData = %q", got)
	}
}
