package redisbus

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/topicbook/internal/queue/streams"
)

// Follow reads task.status events from stream through a consumer group and
// calls fn for each. Messages are acknowledged once fn returns nil. It
// returns when ctx is done or fn fails.
func Follow(ctx context.Context, consumer *streams.Consumer, stream string, block time.Duration, fn func(string, streams.TaskStatusV1) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgs, err := consumer.Read(ctx, stream, streams.WithBlock(block), streams.WithCount(32))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		for _, m := range msgs {
			if m.Envelope.EventType != streams.EventTaskStatus {
				_ = consumer.Ack(ctx, stream, m.ID)
				continue
			}
			var p streams.TaskStatusV1
			if err := m.Envelope.Decode(&p); err != nil {
				_ = consumer.Ack(ctx, stream, m.ID)
				continue
			}
			if err := fn(m.ID, p); err != nil {
				return err
			}
			if err := consumer.Ack(ctx, stream, m.ID); err != nil {
				return err
			}
		}
	}
}
