package queue

import (
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

func TestRetries(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp091.Table
		want    int
	}{
		{"nil headers", nil, 0},
		{"missing counter", amqp091.Table{}, 0},
		{"counter set", amqp091.Table{"x-retries": int32(4)}, 4},
		{"wrong type", amqp091.Table{"x-retries": "4"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retries(tt.headers); got != tt.want {
				t.Errorf("Retries() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExhausted(t *testing.T) {
	if Exhausted(amqp091.Table{"x-retries": int32(MaxDeliveryAttempts - 1)}) {
		t.Error("one attempt left should not be exhausted")
	}
	if !Exhausted(amqp091.Table{"x-retries": int32(MaxDeliveryAttempts)}) {
		t.Error("at the limit should be exhausted")
	}
}
