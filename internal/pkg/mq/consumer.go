// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"ordersaga/internal/pkg/logger"
)

// MessageReader is the subset of *kafka.Reader a Consumer drives.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageHandler processes one message. A returned error sends the message
// to the failure handler. The offset is committed only once the message was
// handled or dead-lettered.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consumer is a fetch / handle / commit loop over one reader.
type Consumer struct {
	name       string
	reader     MessageReader
	handle     MessageHandler
	failures   *FailureHandler
	retryDelay time.Duration
}

func NewConsumer(name string, reader MessageReader, handle MessageHandler, failures *FailureHandler) *Consumer {
	return &Consumer{
		name:       name,
		reader:     reader,
		handle:     handle,
		failures:   failures,
		retryDelay: time.Second,
	}
}

// Run blocks until ctx is cancelled. It closes the reader on return.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	log := logger.Ctx(ctx).With().Str("consumer", c.name).Logger()
	log.Info().Msg("✅ Kafka consumer started")

	for {
		// FetchMessage instead of ReadMessage: the offset is committed only after handling.
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("🛑 Kafka consumer shutting down")
				return nil
			}
			log.Error().Err(err).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		if !c.process(ctx, msg) {
			log.Warn().Int64("offset", msg.Offset).Msg("🛑 Kafka consumer stopped before the message was settled, offset not committed")
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

// process handles msg until it either succeeds or lands on the dead-letter
// topic. It reports false when ctx ended first; the message then stays
// uncommitted and is redelivered to the group.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := ExtractTraceContext(ctx, msg.Headers)
	for {
		err := c.handle(msgCtx, msg)
		if err == nil {
			return true
		}
		if derr := c.failures.Handle(msgCtx, msg, err); derr == nil {
			return true
		}
		logger.Ctx(msgCtx).Error().
			Str("consumer", c.name).
			Int64("offset", msg.Offset).
			Msg("message neither handled nor dead-lettered, retrying")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.retryDelay):
		}
	}
}
