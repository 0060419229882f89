package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueNames(t *testing.T) {
	if got := RetryQueue("support_escalations"); got != "support_escalations.retry" {
		t.Fatalf("retry queue = %q", got)
	}
	if got := DeadLetterQueue("support_escalations"); got != "support_escalations.dlq" {
		t.Fatalf("dlq = %q", got)
	}
}

func TestRetryCount(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{}, 0},
		{amqp.Table{RetryCountHeader: int32(2)}, 2},
		{amqp.Table{RetryCountHeader: int64(3)}, 3},
		{amqp.Table{RetryCountHeader: "x"}, 0},
	}
	for _, c := range cases {
		if got := RetryCount(c.headers); got != c.want {
			t.Fatalf("RetryCount(%v) = %d, want %d", c.headers, got, c.want)
		}
	}
}
