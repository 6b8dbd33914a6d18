package task

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stepRunner executes steps sent by the test, one at a time, until the channel closes.
type stepRunner struct {
	steps chan func(ctx context.Context, h *Handle)
}

func newStepRunner() *stepRunner {
	return &stepRunner{steps: make(chan func(context.Context, *Handle))}
}

func (s *stepRunner) Run(ctx context.Context, _ Request, h *Handle) {
	for step := range s.steps {
		step(ctx, h)
	}
}

// do runs fn inside the runner goroutine and waits for it to finish.
func (s *stepRunner) do(t *testing.T, fn func(h *Handle)) {
	t.Helper()
	done := make(chan struct{})
	select {
	case s.steps <- func(_ context.Context, h *Handle) { fn(h); close(done) }:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not accept step")
	}
	<-done
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("observation did not finish; got %v", out)
		}
	}
}

func messages(evs []Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == EventStatus {
			out = append(out, ev.Message)
		}
	}
	return out
}

func waitState(t *testing.T, r *Registry, id string, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := r.Snapshot(id)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", id, want)
	return Snapshot{}
}

func TestSubmitRejectsEmptyTopic(t *testing.T) {
	r := NewRegistry(newStepRunner())
	if _, err := r.Submit(Request{Topic: "   "}); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestLifecycleAndObserveContract(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, err := r.Submit(Request{Topic: " Photosynthesis "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap, err := r.Snapshot(id)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.State != StatePending || snap.Topic != "Photosynthesis" || snap.Status != "" {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	events, err := r.Observe(context.Background(), id)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	for _, msg := range []string{"a", "a", "b", "b", "b", "a"} {
		msg := msg
		runner.do(t, func(h *Handle) {
			if err := h.Report(msg); err != nil {
				t.Errorf("report: %v", err)
			}
		})
	}
	if got := waitState(t, r, id, StateProgress); got.Status != "a" {
		t.Fatalf("expected latest status a, got %q", got.Status)
	}
	runner.do(t, func(h *Handle) {
		if err := h.Succeed("done", "/out/Photosynthesis.md"); err != nil {
			t.Errorf("succeed: %v", err)
		}
	})
	close(runner.steps)

	evs := collect(t, events)
	if got, want := messages(evs), []string{"a", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("observed %v, want %v", got, want)
	}
	last := evs[len(evs)-1]
	if last.Type != EventTerminal || last.Message != "done" {
		t.Fatalf("expected terminal event last, got %+v", last)
	}
	terminals := 0
	for _, ev := range evs {
		if ev.Type == EventTerminal {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminals)
	}
	if last.Snapshot.Result == nil || last.Snapshot.Result.Path != "/out/Photosynthesis.md" {
		t.Fatalf("terminal snapshot missing result: %+v", last.Snapshot)
	}
}

func TestObserveStartsAtLatestMessage(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, _ := r.Submit(Request{Topic: "t"})
	runner.do(t, func(h *Handle) {
		_ = h.Report("first")
		_ = h.Report("second")
	})

	events, err := r.Observe(context.Background(), id)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	runner.do(t, func(h *Handle) {
		_ = h.Report("third")
		_ = h.Fail(KindOutlineGenerationFailed, "Could not generate a structure.")
	})
	close(runner.steps)

	evs := collect(t, events)
	if got, want := messages(evs), []string{"second", "third"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("observed %v, want %v", got, want)
	}
	last := evs[len(evs)-1]
	if last.Message != "Error: Could not generate a structure." || last.Snapshot.Result.Kind != KindOutlineGenerationFailed {
		t.Fatalf("unexpected terminal event: %+v", last)
	}
}

func TestObserveTerminalTaskYieldsOnlyTerminal(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, _ := r.Submit(Request{Topic: "t"})
	runner.do(t, func(h *Handle) {
		_ = h.Report("working")
		_ = h.Succeed("ok", "p.md")
	})
	close(runner.steps)
	waitState(t, r, id, StateSuccess)

	events, err := r.Observe(context.Background(), id)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	evs := collect(t, events)
	if len(evs) != 1 || evs[0].Type != EventTerminal || evs[0].Message != "ok" {
		t.Fatalf("expected only the terminal event, got %+v", evs)
	}
}

func TestObserveUnknownTask(t *testing.T) {
	r := NewRegistry(newStepRunner())
	if _, err := r.Observe(context.Background(), "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := r.Snapshot("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestConcurrentObserversSeeSameTerminal(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, _ := r.Submit(Request{Topic: "t"})

	early, _ := r.Observe(context.Background(), id)
	runner.do(t, func(h *Handle) { _ = h.Report("step 1") })
	late, _ := r.Observe(context.Background(), id)
	runner.do(t, func(h *Handle) {
		_ = h.Report("step 2")
		_ = h.Succeed("Success!", "book.md")
	})
	close(runner.steps)

	a := collect(t, early)
	b := collect(t, late)
	ta, tb := a[len(a)-1], b[len(b)-1]
	if ta.Type != EventTerminal || tb.Type != EventTerminal {
		t.Fatalf("both observers must end with a terminal event")
	}
	if !reflect.DeepEqual(ta.Snapshot.Result, tb.Snapshot.Result) || ta.Message != tb.Message {
		t.Fatalf("terminal payloads differ: %+v vs %+v", ta, tb)
	}
}

func TestCancelledObserverDoesNotBlockRunner(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, _ := r.Submit(Request{Topic: "t"})
	ctx, cancel := context.WithCancel(context.Background())
	events, _ := r.Observe(ctx, id)
	cancel()

	// nobody drains events; reports must still go through
	runner.do(t, func(h *Handle) {
		for i := 0; i < 100; i++ {
			_ = h.Report(time.Duration(i).String())
		}
		_ = h.Succeed("ok", "p")
	})
	close(runner.steps)
	waitState(t, r, id, StateSuccess)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("cancelled observation never closed")
		}
	}
}

func TestTerminalTransitionsAreExclusive(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, _ := r.Submit(Request{Topic: "t"})
	runner.do(t, func(h *Handle) {
		if err := h.Succeed("ok", "p"); err != nil {
			t.Errorf("first succeed: %v", err)
		}
		if err := h.Fail(KindInternal, "late"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition on second completion, got %v", err)
		}
		if err := h.Report("after"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition on report after completion, got %v", err)
		}
	})
	close(runner.steps)
	snap := waitState(t, r, id, StateSuccess)
	if snap.Result.Message != "ok" {
		t.Fatalf("terminal result changed: %+v", snap.Result)
	}
}

func TestOwnershipIsChecked(t *testing.T) {
	runner := newStepRunner()
	r := NewRegistry(runner)
	id, _ := r.Submit(Request{Topic: "t"})

	if err := r.Report(id, "forged", "x"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := r.Complete(id, "", StateSuccess, Result{}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	var zero Handle
	if err := zero.Report("x"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for zero handle, got %v", err)
	}
	runner.do(t, func(h *Handle) {
		if err := r.Complete(h.ID(), h.token, StateProgress, Result{}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition for non-terminal completion, got %v", err)
		}
	})
	close(runner.steps)
}

func TestRunnerWithoutResultFails(t *testing.T) {
	r := NewRegistry(RunnerFunc(func(ctx context.Context, req Request, h *Handle) {
		_ = h.Report("started")
	}))
	id, _ := r.Submit(Request{Topic: "t"})
	snap := waitState(t, r, id, StateFailure)
	if snap.Result.Kind != KindInternal {
		t.Fatalf("expected Internal failure, got %+v", snap.Result)
	}
}

func TestRunnerPanicIsRecorded(t *testing.T) {
	r := NewRegistry(RunnerFunc(func(ctx context.Context, req Request, h *Handle) {
		panic("boom")
	}))
	id, _ := r.Submit(Request{Topic: "t"})
	snap := waitState(t, r, id, StateFailure)
	if snap.Result.Kind != KindInternal || snap.Result.Error != "Internal error: boom" {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}
}

func TestAdmissionLimit(t *testing.T) {
	var running, peak int32
	release := make(chan struct{})
	r := NewRegistry(RunnerFunc(func(ctx context.Context, req Request, h *Handle) {
		_ = h.Report("running")
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&running, -1)
		_ = h.Succeed("ok", "p")
	}), WithMaxConcurrent(2))

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := r.Submit(Request{Topic: "t"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, id)
	}
	time.Sleep(50 * time.Millisecond)
	pending := 0
	for _, id := range ids {
		snap, _ := r.Snapshot(id)
		if snap.State == StatePending {
			pending++
		}
	}
	if pending != 3 {
		t.Fatalf("expected 3 tasks waiting for admission, got %d", pending)
	}
	close(release)
	for _, id := range ids {
		waitState(t, r, id, StateSuccess)
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Fatalf("admission limit exceeded: %d", got)
	}
}

func TestShutdownCancelsWaitingAndRejectsNew(t *testing.T) {
	r := NewRegistry(RunnerFunc(func(ctx context.Context, req Request, h *Handle) {
		<-ctx.Done()
		_ = h.Fail(KindCancelled, "cancelled")
	}), WithMaxConcurrent(1))
	first, _ := r.Submit(Request{Topic: "a"})
	second, _ := r.Submit(Request{Topic: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	for _, id := range []string{first, second} {
		snap, _ := r.Snapshot(id)
		if snap.State != StateFailure || snap.Result.Kind != KindCancelled {
			t.Fatalf("task %s: expected cancelled failure, got %+v", id, snap)
		}
	}
	if _, err := r.Submit(Request{Topic: "c"}); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
}

type recordingListener struct {
	mu  sync.Mutex
	got []Transition
}

func (l *recordingListener) OnTransition(t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, t)
}

func TestListenerSeesTransitionsInOrder(t *testing.T) {
	l := &recordingListener{}
	r := NewRegistry(RunnerFunc(func(ctx context.Context, req Request, h *Handle) {
		_ = h.Report("one")
		_ = h.Report("one")
		_ = h.Report("two")
		_ = h.Succeed("ok", "p")
	}), WithListener(l))
	id, _ := r.Submit(Request{Topic: "t"})
	waitState(t, r, id, StateSuccess)

	l.mu.Lock()
	defer l.mu.Unlock()
	var states []State
	for _, tr := range l.got {
		states = append(states, tr.State)
	}
	want := []State{StatePending, StateProgress, StateProgress, StateSuccess}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("transitions %v, want %v", states, want)
	}
	if l.got[3].Result == nil || l.got[3].Result.Message != "ok" {
		t.Fatalf("terminal transition missing result: %+v", l.got[3])
	}
}
