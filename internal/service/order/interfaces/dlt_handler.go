package interfaces

import (
	"context"

	"github.com/segmentio/kafka-go"

	"ordersaga/internal/pkg/logger"
	"ordersaga/internal/pkg/metrics"
	"ordersaga/internal/pkg/mq"
)

// NewDeadLetterRouter sends failed messages to topic and counts each one
// that was written.
func NewDeadLetterRouter(w mq.MessageWriter, topic string, m *metrics.Metrics) *mq.FailureHandler {
	return mq.NewFailureHandler(w, topic).OnRouted(m.DeadLetters.Inc)
}

// NewDeadLetterHandler logs every dead-lettered message with its origin. It
// never fails, so the DLT consumer always commits.
func NewDeadLetterHandler() mq.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		logger.Ctx(ctx).Error().
			Str("reason", "dead_letter_message_received").
			Str("original_topic", headers[mq.HeaderOriginalTopic]).
			Str("original_partition", headers[mq.HeaderOriginalPartition]).
			Str("original_offset", headers[mq.HeaderOriginalOffset]).
			Str("exception_message", headers[mq.HeaderExceptionMessage]).
			Str("key", string(msg.Key)).
			Str("value", string(msg.Value)).
			Msg("🚨 CRITICAL: Dead letter message received")
		return nil
	}
}
