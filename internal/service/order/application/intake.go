// internal/service/order/application/intake.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// IntakeService accepts orders and starts their sagas.
type IntakeService struct {
	publisher port.Publisher
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	clock     func() time.Time
	newID     func() string
}

func NewIntakeService(publisher port.Publisher, tracer trace.Tracer, m *metrics.Metrics) *IntakeService {
	return &IntakeService{
		publisher: publisher,
		tracer:    tracer,
		metrics:   m,
		clock:     time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// PlaceOrder assigns the order id and placement time and publishes OrderPlaced.
// The saga runs asynchronously; the response only confirms acceptance.
func (s *IntakeService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.IntakeService.PlaceOrder", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	snapshot := domain.OrderSnapshot{
		ProductIDs:  append([]string(nil), req.ProductIDs...),
		CustomerID:  req.CustomerID,
		TotalAmount: req.TotalAmount,
		PlacedTime:  s.clock().UTC(),
	}
	if err := snapshot.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid order request")
		return nil, err
	}

	orderID := s.newID()
	span.SetAttributes(
		attribute.String("saga.order_id", orderID),
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", domain.TopicOrderPlaced),
	)

	event := domain.OrderPlaced{
		OrderID:     orderID,
		ProductIDs:  snapshot.ProductIDs,
		CustomerID:  snapshot.CustomerID,
		TotalAmount: snapshot.TotalAmount,
		PlacedTime:  snapshot.PlacedTime,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish order placed")
		return nil, fmt.Errorf("publish order %s: %w", orderID, err)
	}

	s.metrics.OrdersPlaced.Inc()
	span.AddEvent("OrderPlaced published")
	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("customer_id", snapshot.CustomerID).
		Int("products", len(snapshot.ProductIDs)).
		Msg("order placed")

	return &PlaceOrderResponse{
		OrderID: orderID,
		Status:  domain.StatePlaced,
		Order:   snapshot,
		Message: "Your order is being processed.",
	}, nil
}
