package streams

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	streamMetricsOnce sync.Once
	eventsPublished   otelmetric.Int64Counter
	eventsConsumed    otelmetric.Int64Counter
	eventsRejected    otelmetric.Int64Counter
)

func initStreamMetrics() {
	meter := otel.Meter("topicbook/queue/streams")
	var err error
	if eventsPublished, err = meter.Int64Counter("stream_events_published_total",
		otelmetric.WithDescription("Envelopes appended to Redis Streams")); err != nil {
		log.Printf("queue streams metrics init: stream_events_published_total: %v", err)
	}
	if eventsConsumed, err = meter.Int64Counter("stream_events_consumed_total",
		otelmetric.WithDescription("Envelopes read and accepted by consumers")); err != nil {
		log.Printf("queue streams metrics init: stream_events_consumed_total: %v", err)
	}
	if eventsRejected, err = meter.Int64Counter("stream_events_rejected_total",
		otelmetric.WithDescription("Envelopes failing schema validation")); err != nil {
		log.Printf("queue streams metrics init: stream_events_rejected_total: %v", err)
	}
}

func add(ctx context.Context, c otelmetric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
}

func recordPublished(ctx context.Context, eventType string) {
	streamMetricsOnce.Do(initStreamMetrics)
	add(ctx, eventsPublished, attribute.String("event_type", eventType))
}

func recordConsumed(ctx context.Context, eventType string) {
	streamMetricsOnce.Do(initStreamMetrics)
	add(ctx, eventsConsumed, attribute.String("event_type", eventType))
}

func recordRejected(ctx context.Context, eventType, side string) {
	streamMetricsOnce.Do(initStreamMetrics)
	add(ctx, eventsRejected, attribute.String("event_type", eventType), attribute.String("side", side))
}
