package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// envelopeField names the entry field that holds the JSON envelope.
const envelopeField = "envelope"

// Publisher appends task events to a stream after checking their payload
// against the schema registry.
type Publisher struct {
	rdb     Client
	schemas *SchemaRegistry
}

// AppendOption adjusts the XADD call.
type AppendOption func(*redis.XAddArgs)

// WithMaxLenApprox trims the stream to roughly n entries (MAXLEN ~ n).
func WithMaxLenApprox(n int64) AppendOption {
	return func(a *redis.XAddArgs) {
		if n <= 0 {
			return
		}
		a.MaxLen, a.Approx = n, true
	}
}

// NewPublisher returns a publisher. A nil registry skips payload checks.
func NewPublisher(rdb Client, schemas *SchemaRegistry) *Publisher {
	return &Publisher{rdb: rdb, schemas: schemas}
}

// Append wraps payload in a fresh envelope and returns the new entry ID.
func (p *Publisher) Append(ctx context.Context, stream, eventType, version string, payload any, opts ...AppendOption) (string, error) {
	if stream == "" {
		return "", errors.New("streams: empty stream name")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		PayloadVersion: version,
		OccurredAt:     time.Now().UTC(),
		Data:           data,
	}
	if err := p.check(ctx, &env); err != nil {
		return "", err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}

	args := &redis.XAddArgs{Stream: stream, Values: map[string]any{envelopeField: raw}}
	for _, opt := range opts {
		opt(args)
	}
	id, err := p.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	recordPublished(ctx, eventType)
	return id, nil
}

func (p *Publisher) check(ctx context.Context, env *Envelope) error {
	if err := env.ValidateBasic(); err != nil {
		return err
	}
	if p.schemas == nil {
		return nil
	}
	if err := p.schemas.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
		recordRejected(ctx, env.EventType, "publish")
		return err
	}
	return nil
}
