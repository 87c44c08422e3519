package queue

import (
	"errors"

	"github.com/givance/webserver-sub009/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const retriesHeader = "x-retries"

// retryCount reads the retry header. Values arrive as different integer types
// depending on who published the message.
func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int16:
		return int(v)
	case int8:
		return int(v)
	default:
		return 0
	}
}

// HandleProcessingError routes a failed delivery to <queue>_retry, or to
// <queue>_dlq once maxRetries is reached or the error is permanent. The
// delivery is acked when the republish succeeded and requeued otherwise.
func HandleProcessingError(ch channel, msg amqp091.Delivery, queueName string, maxRetries int, cause error) {
	retries := retryCount(msg.Headers)

	target := queueName + "_retry"
	if retries >= maxRetries || errors.Is(cause, ErrPermanent) {
		target = queueName + "_dlq"
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)
	if cause != nil {
		headers["x-last-error"] = cause.Error()
	}

	logger.Info("[Queue] Rerouting failed message", "queue", queueName, "target", target, "retries", retries)
	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to reroute message", "target", target, "err", pubErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
