package queue

import "github.com/rabbitmq/amqp091-go"

// MaxDeliveryAttempts is how often a failed message is retried before it is
// parked in the dead letter queue.
const MaxDeliveryAttempts = 10

// Retries reads the retry counter from message headers. A missing or
// malformed header counts as zero.
func Retries(headers amqp091.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retries"].(int32); ok {
		return int(v)
	}
	return 0
}

// Exhausted reports whether a message has used up its delivery attempts.
func Exhausted(headers amqp091.Table) bool {
	return Retries(headers) >= MaxDeliveryAttempts
}
