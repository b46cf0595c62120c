// internal/service/order/application/validator.go
package application

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

// Validator evaluates one dimension of a placed order and emits its outcome.
// The Customer Validator and the Inventory Checker are both Validators.
type Validator struct {
	dim       domain.Dimension
	policy    port.ValidationPolicy
	publisher port.Publisher
	dedupe    port.Deduplicator
	tracer    trace.Tracer
	metrics   *metrics.Metrics
}

func NewCustomerValidator(policy port.ValidationPolicy, publisher port.Publisher, dedupe port.Deduplicator, tracer trace.Tracer, m *metrics.Metrics) *Validator {
	return &Validator{dim: domain.DimensionCustomer, policy: policy, publisher: publisher, dedupe: dedupe, tracer: tracer, metrics: m}
}

func NewInventoryChecker(policy port.ValidationPolicy, publisher port.Publisher, dedupe port.Deduplicator, tracer trace.Tracer, m *metrics.Metrics) *Validator {
	return &Validator{dim: domain.DimensionInventory, policy: policy, publisher: publisher, dedupe: dedupe, tracer: tracer, metrics: m}
}

func (v *Validator) Dimension() domain.Dimension { return v.dim }

// Handle consumes OrderPlaced, and CustomerFailed for the inventory checker's
// compensation.
func (v *Validator) Handle(ctx context.Context, ev domain.Event) error {
	switch e := ev.(type) {
	case domain.OrderPlaced:
		return v.validate(ctx, e)
	case domain.CustomerFailed:
		if v.dim != domain.DimensionInventory {
			return fmt.Errorf("%s validator: %s: %w", v.dim, ev.Kind(), domain.ErrUnroutableEvent)
		}
		return v.compensate(ctx, e.OrderID)
	case domain.CustomerValidated, domain.InventoryReserved, domain.InventoryFailed, domain.PaymentProcessed:
		return fmt.Errorf("%s validator: %s: %w", v.dim, ev.Kind(), domain.ErrUnroutableEvent)
	default:
		return fmt.Errorf("%s validator: %T: %w", v.dim, ev, domain.ErrUnknownEventType)
	}
}

func (v *Validator) claimKey(orderID string) string {
	return "validator:" + string(v.dim) + ":" + orderID
}

func (v *Validator) validate(ctx context.Context, order domain.OrderPlaced) error {
	ctx, span := v.tracer.Start(ctx, "app.Validator.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("saga.order_id", order.OrderID),
			attribute.String("saga.dimension", string(v.dim)),
		))
	defer span.End()
	log := logger.Ctx(ctx).With().Str("order_id", order.OrderID).Str("dimension", string(v.dim)).Logger()

	key := v.claimKey(order.OrderID)
	state, err := v.dedupe.Claim(ctx, key)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("claim %s: %w", key, err)
	}
	switch state {
	case port.ClaimDone:
		span.AddEvent("duplicate OrderPlaced ignored")
		log.Info().Msg("order already validated, redelivery ignored")
		return nil
	case port.ClaimInFlight:
		span.AddEvent("validation claim held by another attempt")
		log.Warn().Msg("order validation in flight elsewhere, retry once the claim lapses")
		return fmt.Errorf("%s validation of %s: %w", v.dim, order.OrderID, port.ErrClaimInFlight)
	}

	verdict, err := v.policy.Evaluate(ctx, order)
	if err != nil {
		v.release(ctx, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy evaluation failed")
		return fmt.Errorf("%s policy for %s: %w", v.dim, order.OrderID, err)
	}

	out := v.outcomeEvent(order, verdict)
	if err := v.publisher.Publish(ctx, out); err != nil {
		v.release(ctx, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish outcome")
		return fmt.Errorf("publish %s for %s: %w", out.Kind(), order.OrderID, err)
	}

	if err := v.dedupe.Complete(ctx, key); err != nil {
		// The claim lapses and a redelivery emits the outcome again; the
		// coordinator keeps the first one.
		log.Warn().Err(err).Str("key", key).Msg("failed to complete validation claim")
	}

	outcome := verdict.Outcome()
	v.metrics.IncValidatorOutcome(string(v.dim), string(outcome))
	span.SetAttributes(attribute.String("saga.outcome", string(outcome)))
	log.Info().Str("outcome", string(outcome)).Str("event", string(out.Kind())).Msg("validation outcome emitted")
	return nil
}

func (v *Validator) outcomeEvent(order domain.OrderPlaced, verdict port.Verdict) domain.Event {
	switch {
	case v.dim == domain.DimensionCustomer && verdict == port.Approve:
		return domain.CustomerValidated{OrderID: order.OrderID, Order: order.Snapshot()}
	case v.dim == domain.DimensionCustomer:
		return domain.CustomerFailed{OrderID: order.OrderID}
	case verdict == port.Approve:
		return domain.InventoryReserved{OrderID: order.OrderID, Reserved: true}
	default:
		return domain.InventoryFailed{OrderID: order.OrderID}
	}
}

func (v *Validator) release(ctx context.Context, key string) {
	if err := v.dedupe.Release(ctx, key); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to release validation claim")
	}
}

// compensate releases what the policy holds for a rejected order.
func (v *Validator) compensate(ctx context.Context, orderID string) error {
	c, ok := v.policy.(port.Compensator)
	if !ok {
		return nil
	}
	ctx, span := v.tracer.Start(ctx, "app.Validator.Compensate",
		trace.WithAttributes(attribute.String("saga.order_id", orderID)))
	defer span.End()

	if err := c.Compensate(ctx, orderID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("compensate %s: %w", orderID, err)
	}
	logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("reservation released after customer rejection")
	return nil
}
