package port

import (
	"context"

	"ordersaga/internal/service/order/domain"
)

// Publisher is the outbound port every component publishes saga events through.
// Implementations route by event kind and key by order id.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev domain.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev domain.Event) error { return f(ctx, ev) }
