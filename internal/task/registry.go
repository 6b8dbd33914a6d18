package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// cell is the per-task state. Its lock is never held across tasks.
type cell struct {
	mu      sync.RWMutex
	id      string
	token   string
	req     Request
	state   State
	history []string // distinct consecutive status messages, in report order
	result  *Result
	created time.Time
	updated time.Time
	changed chan struct{} // closed and replaced on every update
}

func (c *cell) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:        c.id,
		State:     c.state,
		Topic:     c.req.Topic,
		CreatedAt: c.created,
		UpdatedAt: c.updated,
	}
	if n := len(c.history); n > 0 {
		s.Status = c.history[n-1]
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// notifyLocked wakes every observer waiting on the current generation.
func (c *cell) notifyLocked(now time.Time) {
	c.updated = now
	close(c.changed)
	c.changed = make(chan struct{})
}

// Registry assigns task IDs, admits runs and serves observations.
type Registry struct {
	runner    Runner
	sem       *semaphore.Weighted
	timeout   time.Duration
	listeners []Listener
	logger    *logrus.Entry
	now       func() time.Time

	mu     sync.RWMutex // guards tasks and closed only
	tasks  map[string]*cell
	closed bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxConcurrent bounds the number of tasks running at once. Tasks beyond
// the bound stay PENDING until a slot frees up.
func WithMaxConcurrent(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTaskTimeout bounds each run. Zero means no bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithListener registers a transition listener.
func WithListener(l Listener) Option {
	return func(r *Registry) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) {
		r.logger = logging.Component(l, "task")
	}
}

func NewRegistry(runner Runner, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		runner:  runner,
		sem:     semaphore.NewWeighted(4),
		logger:  logging.Component(nil, "task"),
		now:     func() time.Time { return time.Now().UTC() },
		tasks:   make(map[string]*cell),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit registers a PENDING task and starts it in the background.
func (r *Registry) Submit(req Request) (string, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.Description = strings.TrimSpace(req.Description)
	if req.Topic == "" {
		return "", ErrEmptyTopic
	}

	now := r.now()
	c := &cell{
		id:      uuid.NewString(),
		token:   uuid.NewString(),
		req:     req,
		state:   StatePending,
		created: now,
		updated: now,
		changed: make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRegistryClosed
	}
	r.tasks[c.id] = c
	r.wg.Add(1)
	r.mu.Unlock()

	tasksSubmitted.Inc()
	r.logger.WithFields(logrus.Fields{"task_id": c.id, "topic": req.Topic}).Info("task submitted")
	r.emit(Transition{TaskID: c.id, State: StatePending, At: now})

	go r.run(c)
	return c.id, nil
}

func (r *Registry) run(c *cell) {
	defer r.wg.Done()
	h := &Handle{reg: r, id: c.id, token: c.token}

	ctx := r.baseCtx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		_ = h.Fail(KindCancelled, fmt.Sprintf("Task cancelled before start: %v", err))
		return
	}
	defer r.sem.Release(1)

	tasksInFlight.Inc()
	defer tasksInFlight.Dec()

	func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.WithField("task_id", c.id).Errorf("runner panic: %v", p)
				_ = h.Fail(KindInternal, fmt.Sprintf("Internal error: %v", p))
			}
		}()
		r.runner.Run(ctx, c.req, h)
	}()

	c.mu.RLock()
	done := c.state.Terminal()
	c.mu.RUnlock()
	if !done {
		_ = h.Fail(KindInternal, "Task finished without a result")
	}
}

func (r *Registry) lookup(id string) (*cell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return c, nil
}

// Snapshot returns the current state of a task.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	c, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(), nil
}

// Report appends a status message on behalf of the owner identified by token.
func (r *Registry) Report(id, token, message string) error {
	c, err := r.owned(id, token)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("%w: report on %s task", ErrInvalidTransition, c.state)
	}
	if n := len(c.history); n > 0 && c.history[n-1] == message {
		c.mu.Unlock()
		return nil
	}
	now := r.now()
	c.state = StateProgress
	c.history = append(c.history, message)
	c.notifyLocked(now)
	r.emit(Transition{TaskID: id, State: StateProgress, Message: message, At: now})
	c.mu.Unlock()
	return nil
}

// Complete moves the task to its terminal state. Only the first call succeeds.
func (r *Registry) Complete(id, token string, state State, res Result) error {
	if !state.Terminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, state)
	}
	c, err := r.owned(id, token)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("%w: task already %s", ErrInvalidTransition, c.state)
	}
	now := r.now()
	c.state = state
	c.result = &res
	c.notifyLocked(now)
	r.emit(Transition{TaskID: id, State: state, Result: &res, At: now})
	c.mu.Unlock()

	tasksCompleted.WithLabelValues(string(state), string(res.Kind)).Inc()
	entry := r.logger.WithFields(logrus.Fields{"task_id": id, "state": state})
	if state == StateFailure {
		entry.WithField("kind", res.Kind).Error(res.Error)
	} else {
		entry.WithField("path", res.Path).Info("task succeeded")
	}
	return nil
}

func (r *Registry) owned(id, token string) (*cell, error) {
	c, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if token == "" || token != c.token {
		return nil, ErrNotOwner
	}
	return c, nil
}

// emit runs under the task's lock so listeners see transitions in order.
func (r *Registry) emit(t Transition) {
	for _, l := range r.listeners {
		l.OnTransition(t)
	}
}

// Close stops admitting new tasks. Running tasks are unaffected.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Shutdown closes the registry and waits for running tasks. When ctx expires
// first, remaining tasks are cancelled and awaited.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.Close()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
