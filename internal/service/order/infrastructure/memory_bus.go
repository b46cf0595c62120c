package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/mq"
	"ordersaga/internal/service/order/domain"
	"ordersaga/internal/service/order/domain/port"
)

// MemoryBus is an in-process event bus for single-binary runs and tests.
// Messages go through the same envelope codec as Kafka and are delivered to
// subscribers as kafka.Message so the same handlers serve both transports.
// Each subscription has its own queue and goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	subs     map[string][]*subscription
	inflight sync.WaitGroup
	closed   bool
}

type subscription struct {
	name    string
	handle  mq.MessageHandler
	queue   chan kafka.Message
	onError func(ctx context.Context, msg kafka.Message, err error)
}

var _ port.Publisher = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*subscription)}
}

// Subscribe registers handle for topics. onError may be nil. Delivery starts
// with Run.
func (b *MemoryBus) Subscribe(name string, handle mq.MessageHandler, onError func(context.Context, kafka.Message, error), topics ...string) {
	sub := &subscription{name: name, handle: handle, queue: make(chan kafka.Message, 1024), onError: onError}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		b.subs[t] = append(b.subs[t], sub)
	}
}

func (b *MemoryBus) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := domain.EncodeEvent(uuid.NewString(), time.Now().UTC(), ev)
	if err != nil {
		return err
	}
	topic := ev.Kind().Topic()
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(ev.Key()),
		Value:   payload,
		Headers: mq.InjectTraceContext(ctx, nil),
		Time:    time.Now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return context.Canceled
	}
	for _, sub := range b.subs[topic] {
		b.inflight.Add(1)
		select {
		case sub.queue <- msg:
		case <-ctx.Done():
			b.inflight.Done()
			return ctx.Err()
		}
	}
	return nil
}

// Run delivers messages until ctx is cancelled.
func (b *MemoryBus) Run(ctx context.Context) error {
	b.mu.RLock()
	seen := map[*subscription]bool{}
	var subs []*subscription
	for _, list := range b.subs {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				subs = append(subs, s)
			}
		}
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			b.deliver(ctx, s)
		}(s)
	}
	wg.Wait()

	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) deliver(ctx context.Context, s *subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
			if err := s.handle(msgCtx, msg); err != nil {
				if s.onError != nil {
					s.onError(msgCtx, msg, err)
				} else {
					logger.Ctx(msgCtx).Error().Err(err).Str("subscriber", s.name).Str("topic", msg.Topic).Msg("in-process delivery failed")
				}
			}
			b.inflight.Done()
		}
	}
}

// Drain waits until every published message has been handled. Handlers that
// publish further events extend the wait.
func (b *MemoryBus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
