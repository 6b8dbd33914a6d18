// Package redisbus publishes task transitions to a Redis stream and mirrors
// the latest task state into a Redis hash.
package redisbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/mohammad-safakhou/topicbook/internal/queue/streams"
	"github.com/mohammad-safakhou/topicbook/internal/task"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// HashWriter is the subset of go-redis used for the task mirror.
type HashWriter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Config controls stream and mirror naming.
type Config struct {
	Stream    string
	MaxLen    int64
	ResultTTL time.Duration
	Buffer    int
	KeyPrefix string
}

// Sink is a task.Listener. Transitions are queued and written by a single
// worker so the registry never waits on Redis.
type Sink struct {
	pub    *streams.Publisher
	hash   HashWriter
	cfg    Config
	logger *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	queue   chan task.Transition
	started atomic.Bool
	done    chan struct{}
}

func NewSink(pub *streams.Publisher, hash HashWriter, cfg Config, logger logrus.FieldLogger) *Sink {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "topicbook:task:"
	}
	return &Sink{
		pub:    pub,
		hash:   hash,
		cfg:    cfg,
		logger: logging.Component(logger, "redisbus"),
		queue:  make(chan task.Transition, cfg.Buffer),
		done:   make(chan struct{}),
	}
}

// Key returns the mirror hash key for a task.
func (s *Sink) Key(taskID string) string {
	return s.cfg.KeyPrefix + taskID
}

// OnTransition enqueues t. When the queue is full the transition is dropped.
func (s *Sink) OnTransition(t task.Transition) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- t:
	default:
		s.logger.WithFields(logrus.Fields{"task_id": t.TaskID, "state": t.State}).Warn("event queue full; dropping transition")
	}
}

// Run drains the queue until ctx is cancelled or Close is called.
func (s *Sink) Run(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(ctx, t)
		}
	}
}

// Close stops accepting transitions and waits for queued ones to be written.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	if s.started.Load() {
		<-s.done
	}
}

func (s *Sink) write(ctx context.Context, t task.Transition) {
	payload := Payload(t)
	log := s.logger.WithFields(logrus.Fields{"task_id": t.TaskID, "state": t.State})

	if s.pub != nil && s.cfg.Stream != "" {
		if _, err := s.pub.Append(ctx, s.cfg.Stream, streams.EventTaskStatus, streams.VersionV1, payload, streams.WithMaxLenApprox(s.cfg.MaxLen)); err != nil {
			log.WithError(err).Warn("publish task event")
		}
	}
	if s.hash != nil {
		if err := s.mirror(ctx, payload); err != nil {
			log.WithError(err).Warn("mirror task state")
		}
	}
}

func (s *Sink) mirror(ctx context.Context, p streams.TaskStatusV1) error {
	key := s.Key(p.TaskID)
	fields := []interface{}{
		"state", p.State,
		"updated_at", p.OccurredAt.Format(time.RFC3339Nano),
	}
	if p.Message != "" {
		fields = append(fields, "status", p.Message)
	}
	if p.Path != "" {
		fields = append(fields, "filepath", p.Path)
	}
	if p.Error != "" {
		fields = append(fields, "error", p.Error, "kind", p.Kind)
	}
	if err := s.hash.HSet(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if task.State(p.State).Terminal() && s.cfg.ResultTTL > 0 {
		if err := s.hash.Expire(ctx, key, s.cfg.ResultTTL).Err(); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}

// Payload converts a transition into its wire form.
func Payload(t task.Transition) streams.TaskStatusV1 {
	p := streams.TaskStatusV1{
		TaskID:     t.TaskID,
		State:      string(t.State),
		Message:    t.Message,
		OccurredAt: t.At,
	}
	if t.Result != nil {
		if t.Result.Message != "" {
			p.Message = t.Result.Message
		}
		p.Path = t.Result.Path
		p.Error = t.Result.Error
		p.Kind = string(t.Result.Kind)
	}
	if p.OccurredAt.IsZero() {
		p.OccurredAt = time.Now().UTC()
	}
	return p
}
