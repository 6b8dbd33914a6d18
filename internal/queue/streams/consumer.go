package streams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads task events as one member of a consumer group.
type Consumer struct {
	rdb     Client
	schemas *SchemaRegistry
	group   string
	member  string
}

// ReadOption adjusts the XREADGROUP call.
type ReadOption func(*redis.XReadGroupArgs)

// WithBlock waits up to d for new entries.
func WithBlock(d time.Duration) ReadOption {
	return func(a *redis.XReadGroupArgs) {
		if d > 0 {
			a.Block = d
		}
	}
}

// WithCount limits one read to n entries.
func WithCount(n int64) ReadOption {
	return func(a *redis.XReadGroupArgs) {
		if n > 0 {
			a.Count = n
		}
	}
}

// NewConsumer returns a group member. A nil registry skips payload checks.
func NewConsumer(rdb Client, schemas *SchemaRegistry, group, member string) *Consumer {
	return &Consumer{rdb: rdb, schemas: schemas, group: group, member: member}
}

// EnsureGroup creates group on stream, making the stream if needed. An
// existing group is not an error. start is "$" (new entries) or "0" (replay).
func EnsureGroup(ctx context.Context, rdb Client, stream, group, start string) error {
	if stream == "" || group == "" {
		return errors.New("streams: stream and group are required")
	}
	if start == "" {
		start = "$"
	}
	err := rdb.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err == nil || strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("create group %s on %s: %w", group, stream, err)
}

// Message is a decoded entry awaiting Ack.
type Message struct {
	ID       string
	Envelope Envelope
}

// Read returns entries not yet delivered to the group. Undecodable or
// schema-invalid entries are acked on the spot and left out.
func (c *Consumer) Read(ctx context.Context, stream string, opts ...ReadOption) ([]Message, error) {
	if stream == "" {
		return nil, errors.New("streams: empty stream name")
	}
	if c.group == "" || c.member == "" {
		return nil, errors.New("streams: consumer has no group or member name")
	}
	args := &redis.XReadGroupArgs{Group: c.group, Consumer: c.member, Streams: []string{stream, ">"}}
	for _, opt := range opts {
		opt(args)
	}

	batches, err := c.rdb.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", stream, err)
	}
	var out []Message
	for _, b := range batches {
		for _, entry := range b.Messages {
			env, ok := c.accept(ctx, entry)
			if !ok {
				_ = c.rdb.XAck(ctx, stream, c.group, entry.ID).Err()
				continue
			}
			out = append(out, Message{ID: entry.ID, Envelope: env})
		}
	}
	return out, nil
}

// Ack marks ids as handled by the group.
func (c *Consumer) Ack(ctx context.Context, stream string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.rdb.XAck(ctx, stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", stream, err)
	}
	return nil
}

// accept decodes one entry. go-redis hands field values back as strings.
func (c *Consumer) accept(ctx context.Context, entry redis.XMessage) (Envelope, bool) {
	raw, ok := entry.Values[envelopeField].(string)
	if !ok {
		return Envelope{}, false
	}
	env, err := UnmarshalEnvelope([]byte(raw))
	if err != nil {
		return Envelope{}, false
	}
	if c.schemas != nil {
		if err := c.schemas.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			recordRejected(ctx, env.EventType, "consume")
			return Envelope{}, false
		}
	}
	recordConsumed(ctx, env.EventType)
	return env, true
}
