// internal/service/order/application/projector.go
package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// ProjectorService turns PaymentProcessed into persisted CONFIRMED orders and
// serves the read side.
type ProjectorService struct {
	repo     domain.OrderRepository
	notifier port.OrderNotifier
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	clock    func() time.Time
}

// NewProjectorService wires the projector. notifier may be nil.
func NewProjectorService(repo domain.OrderRepository, notifier port.OrderNotifier, tracer trace.Tracer, m *metrics.Metrics) *ProjectorService {
	return &ProjectorService{repo: repo, notifier: notifier, tracer: tracer, metrics: m, clock: time.Now}
}

func (s *ProjectorService) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.PaymentProcessed:
		return s.project(ctx, e)
	case domain.OrderPlaced, domain.CustomerValidated, domain.CustomerFailed, domain.InventoryReserved, domain.InventoryFailed:
		return fmt.Errorf("projector: %s: %w", ev.Kind(), domain.ErrUnroutableEvent)
	default:
		return fmt.Errorf("projector: %T: %w", ev, domain.ErrUnknownEventType)
	}
}

func (s *ProjectorService) project(ctx context.Context, e domain.PaymentProcessed) error {
	ctx, span := s.tracer.Start(ctx, "app.ProjectorService.Project",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("saga.order_id", e.OrderID)))
	defer span.End()

	order, err := domain.NewConfirmedOrder(e.OrderID, e.Order, s.clock())
	if err != nil {
		span.RecordError(err)
		return err
	}
	created, err := s.repo.Save(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		return fmt.Errorf("save order %s: %w", e.OrderID, err)
	}
	if !created {
		span.AddEvent("order already projected")
		logger.Ctx(ctx).Info().Str("order_id", e.OrderID).Msg("duplicate PaymentProcessed, order already confirmed")
		return nil
	}

	s.metrics.OrdersConfirmed.Inc()
	if s.notifier != nil {
		s.notifier.OrderConfirmed(ctx, order)
	}
	logger.Ctx(ctx).Info().Str("order_id", e.OrderID).Str("customer_id", order.Snapshot.CustomerID).Msg("order confirmed")
	return nil
}

// GetOrder returns ErrOrderNotFound for unknown ids.
func (s *ProjectorService) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ProjectorService.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	v := ToOrderView(order)
	return &v, nil
}

// ListOrders returns every projected order, newest placement first.
func (s *ProjectorService) ListOrders(ctx context.Context) ([]OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ProjectorService.ListOrders")
	defer span.End()

	orders, err := s.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToOrderView(o))
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].PlacedTime.After(views[j].PlacedTime) })
	return views, nil
}
