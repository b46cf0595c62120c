// internal/service/order/application/payment.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// PaymentService emits PaymentProcessed for a joined order. It keeps no state;
// at-most-once invocation is the coordinator's job.
type PaymentService struct {
	publisher port.Publisher
	tracer    trace.Tracer
	attempts  int
	backoff   time.Duration
}

func NewPaymentService(publisher port.Publisher, tracer trace.Tracer) *PaymentService {
	return &PaymentService{publisher: publisher, tracer: tracer, attempts: 3, backoff: 200 * time.Millisecond}
}

// WithRetry overrides the publish retry policy.
func (p *PaymentService) WithRetry(attempts int, backoff time.Duration) *PaymentService {
	if attempts < 1 {
		attempts = 1
	}
	p.attempts, p.backoff = attempts, backoff
	return p
}

func (p *PaymentService) Process(ctx context.Context, orderID string, order domain.OrderSnapshot) error {
	ctx, span := p.tracer.Start(ctx, "app.PaymentService.Process",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("saga.order_id", orderID),
			attribute.Float64("order.total_amount", order.TotalAmount),
		))
	defer span.End()

	event := domain.PaymentProcessed{OrderID: orderID, Order: order.Clone()}
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.publisher.Publish(ctx, event); err == nil {
			span.AddEvent("PaymentProcessed published")
			logger.Ctx(ctx).Info().Str("order_id", orderID).Float64("amount", order.TotalAmount).Msg("payment processed")
			return nil
		}
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("publish payment processed failed")
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = p.attempts
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to publish payment processed")
	return err
}
