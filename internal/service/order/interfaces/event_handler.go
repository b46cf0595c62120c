package interfaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/pkg/mq"
	"ordersaga/internal/service/order/domain"
)

// EventHandler is implemented by every saga participant.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// NewMessageHandler decodes bus messages into saga events for h. Messages
// that cannot be decoded or handled are returned as errors so the consumer
// dead-letters them.
func NewMessageHandler(name string, h EventHandler, m *metrics.Metrics) mq.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		ev, env, err := domain.DecodeEvent(msg.Value)
		if err != nil {
			m.IncConsumed(msg.Topic, "malformed")
			return fmt.Errorf("%s: decode message at offset %d: %w", name, msg.Offset, err)
		}
		if ev.Kind().Topic() != msg.Topic && msg.Topic != "" {
			logger.Ctx(ctx).Warn().Str("topic", msg.Topic).Str("event", string(ev.Kind())).Msg("event arrived on an unexpected topic")
		}

		if err := h.Handle(ctx, ev); err != nil {
			result := "error"
			if errors.Is(err, domain.ErrUnroutableEvent) {
				result = "unroutable"
			}
			m.IncConsumed(msg.Topic, result)
			return err
		}
		m.IncConsumed(msg.Topic, "ok")
		logger.Ctx(ctx).Debug().
			Str("consumer", name).
			Str("event_id", env.EventID).
			Str("event", string(ev.Kind())).
			Str("order_id", ev.Key()).
			Msg("event handled")
		return nil
	}
}
