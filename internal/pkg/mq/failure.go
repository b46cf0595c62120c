// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ordersaga/internal/pkg/logger"
)

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionMessage  = "x-exception-message"
)

// FailureHandler routes messages that could not be processed to a dead-letter topic.
type FailureHandler struct {
	writer   MessageWriter
	dltTopic string
	onRouted func()
}

// NewFailureHandler creates a handler. A nil writer only logs the failure.
func NewFailureHandler(writer MessageWriter, dltTopic string) *FailureHandler {
	return &FailureHandler{writer: writer, dltTopic: dltTopic}
}

// OnRouted registers a hook called after each dead-lettered message.
func (h *FailureHandler) OnRouted(fn func()) *FailureHandler {
	h.onRouted = fn
	return h
}

// Handle forwards msg to the dead-letter topic with its origin and cause in headers.
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) error {
	log := logger.Ctx(ctx).With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Logger()

	if h == nil || h.writer == nil {
		log.Error().Err(cause).Msg("message processing failed, no dead-letter topic configured")
		return nil
	}

	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
	)
	dead := kafka.Message{
		Topic:   h.dltTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := h.writer.WriteMessages(ctx, dead); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("CRITICAL: failed to write dead letter")
		return err
	}
	if h.onRouted != nil {
		h.onRouted()
	}
	log.Warn().Err(cause).Str("dlt_topic", h.dltTopic).Msg("message routed to dead-letter topic")
	return nil
}
