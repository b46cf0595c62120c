package infrastructure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/mq"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// KafkaPublisher writes saga events to their topics, keyed by order id so
// every event of one order lands on the same partition.
type KafkaPublisher struct {
	writer mq.MessageWriter
	tracer trace.Tracer
	clock  func() time.Time
}

var _ port.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher needs a multi-topic writer (see mq.NewKafkaWriter with an
// empty topic).
func NewKafkaPublisher(writer mq.MessageWriter, tracer trace.Tracer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, tracer: tracer, clock: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.Event) error {
	topic := ev.Kind().Topic()
	if topic == "" {
		return errors.Wrapf(domain.ErrUnknownEventType, "no topic for %s", ev.Kind())
	}
	ctx, span := p.tracer.Start(ctx, "kafka.publish "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("saga.order_id", ev.Key()),
		))
	defer span.End()

	payload, err := domain.EncodeEvent(uuid.NewString(), p.clock().UTC(), ev)
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "encode %s", ev.Kind())
	}
	if err := mq.ProduceMessage(ctx, p.writer, topic, []byte(ev.Key()), payload); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("topic", topic).Str("order_id", ev.Key()).Msg("failed to produce message to Kafka")
		return errors.Wrapf(err, "produce %s", ev.Kind())
	}
	return nil
}
