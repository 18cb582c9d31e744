package kafka_middleware

import (
	"context"

	"stazy/pkg/kafka"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stazy/pkg/kafka")

// TracingProducerMiddleware starts a producer span and writes the trace
// context into the message headers.
func TracingProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		ctx, span := tracer.Start(ctx, msg.Topic+" publish",
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.String("messaging.kafka.message.key", msg.Key),
				attribute.String("messaging.message.id", msg.GetEventID()),
			),
		)
		defer span.End()

		otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Headers))

		err := next(ctx, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}

// TracingConsumerMiddleware continues the producer's trace, when the headers
// carry one, in a consumer span.
func TracingConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
		ctx, span := tracer.Start(ctx, msg.Topic+" process",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.Int("messaging.kafka.destination.partition", msg.Partition),
				attribute.Int64("messaging.kafka.message.offset", msg.Offset),
				attribute.String("messaging.kafka.message.key", msg.Key),
				attribute.Int("messaging.kafka.retry_count", msg.GetRetryCount()),
			),
		)
		defer span.End()

		err := next(ctx, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
