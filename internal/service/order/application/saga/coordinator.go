package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// Coordinator joins validator outcomes per order and triggers payment exactly
// once. It never reads and writes the store separately: every event becomes a
// single RecordOutcome call.
type Coordinator struct {
	store    port.CorrelationStore
	payments port.PaymentProcessor
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

func NewCoordinator(store port.CorrelationStore, payments port.PaymentProcessor, tracer trace.Tracer, m *metrics.Metrics) *Coordinator {
	return &Coordinator{store: store, payments: payments, tracer: tracer, metrics: m}
}

// Handle consumes one validator outcome event.
func (c *Coordinator) Handle(ctx context.Context, ev domain.Event) error {
	ctx, span := c.tracer.Start(ctx, "app.Coordinator.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("saga.order_id", ev.Key()),
			attribute.String("saga.event", string(ev.Kind())),
		))
	defer span.End()

	var err error
	switch e := ev.(type) {
	case domain.CustomerValidated:
		if verr := e.Order.Validate(); verr != nil {
			err = fmt.Errorf("customer approval for %s carries an invalid snapshot: %w", e.OrderID, verr)
			break
		}
		err = c.record(ctx, span, e.OrderID, domain.DimensionCustomer, domain.OutcomeApproved, &e.Order)
	case domain.CustomerFailed:
		err = c.record(ctx, span, e.OrderID, domain.DimensionCustomer, domain.OutcomeRejected, nil)
	case domain.InventoryReserved:
		outcome := domain.OutcomeApproved
		if !e.Reserved {
			outcome = domain.OutcomeRejected
		}
		err = c.record(ctx, span, e.OrderID, domain.DimensionInventory, outcome, nil)
	case domain.InventoryFailed:
		err = c.record(ctx, span, e.OrderID, domain.DimensionInventory, domain.OutcomeRejected, nil)
	case domain.OrderPlaced, domain.PaymentProcessed:
		err = fmt.Errorf("coordinator: %s: %w", ev.Kind(), domain.ErrUnroutableEvent)
	default:
		err = fmt.Errorf("coordinator: %T: %w", ev, domain.ErrUnknownEventType)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coordinator failed to handle event")
	}
	return err
}

func (c *Coordinator) record(ctx context.Context, span trace.Span, orderID string, dim domain.Dimension, outcome domain.ValidationOutcome, snapshot *domain.OrderSnapshot) error {
	log := logger.Ctx(ctx).With().
		Str("order_id", orderID).
		Str("dimension", string(dim)).
		Str("outcome", string(outcome)).
		Logger()

	res, err := c.store.RecordOutcome(ctx, orderID, dim, outcome, snapshot)
	if err != nil {
		log.Error().Err(err).Msg("failed to record validation outcome")
		return fmt.Errorf("record %s outcome for %s: %w", dim, orderID, err)
	}
	c.metrics.IncJoinDecision(res.Decision.String())
	span.SetAttributes(attribute.String("saga.decision", res.Decision.String()))

	switch res.Decision {
	case domain.Advance:
		span.AddEvent("both validations approved, triggering payment")
		log.Info().Msg("saga joined, triggering payment")
		return pay(ctx, c.store, c.payments, orderID, *res.Snapshot)
	case domain.RetryPayment:
		span.AddEvent("payment never acknowledged, triggering it again")
		log.Warn().Msg("replayed outcome for an unpaid saga, retrying payment")
		return pay(ctx, c.store, c.payments, orderID, *res.Snapshot)
	case domain.Reject:
		c.metrics.IncSagaFailure(string(res.Reason))
		span.AddEvent("saga failed", trace.WithAttributes(attribute.String("saga.reason", string(res.Reason))))
		log.Warn().Str("reason", string(res.Reason)).Msg("saga failed, validation rejected")
	case domain.AwaitingOther:
		log.Debug().Msg("waiting for the other validation")
	case domain.AlreadyTerminal:
		log.Debug().Msg("saga already terminal, outcome ignored")
	}
	return nil
}

// pay triggers the payment of a joined saga and acknowledges it in the store.
// A failed trigger leaves the saga unacknowledged, so a replayed outcome or
// the next sweep after the retry interval triggers it again.
func pay(ctx context.Context, store port.CorrelationStore, payments port.PaymentProcessor, orderID string, snapshot domain.OrderSnapshot) error {
	log := logger.Ctx(ctx).With().Str("order_id", orderID).Logger()
	if err := payments.Process(ctx, orderID, snapshot); err != nil {
		log.Error().Err(err).Msg("CRITICAL: payment trigger failed, saga left unacknowledged for retry")
		return fmt.Errorf("trigger payment for %s: %w", orderID, err)
	}
	if err := store.AckPayment(ctx, orderID); err != nil {
		// PaymentProcessed is out; a retry only produces a duplicate the projector absorbs.
		log.Warn().Err(err).Msg("failed to acknowledge payment")
	}
	return nil
}
