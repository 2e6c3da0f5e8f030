package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/broker/messages"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Kafka publishes deliveries for the worker. When publishing fails and a fallback is set,
// the delivery is reconciled through the fallback instead of being lost.
type Kafka struct {
	pub      Publisher
	fallback Handoff
}

func NewKafka(pub Publisher, fallback Handoff) *Kafka {
	return &Kafka{pub: pub, fallback: fallback}
}

func (k *Kafka) Handoff(ctx context.Context, msg messages.WebhookReceived) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal webhook message")
	}
	err = k.pub.Publish(ctx, []byte(msg.DeliveryID.String()), b)
	if err == nil {
		return nil
	}
	if k.fallback == nil {
		return err
	}
	slog.Warn("kafka publish failed, reconciling in-process",
		"delivery_id", msg.DeliveryID.String(),
		"error", err.Error(),
	)
	return k.fallback.Handoff(ctx, msg)
}

// MessageHandler reconciles deliveries read from Kafka. Undecodable and failed deliveries
// are logged and committed; an error is returned only when ctx is done, so the
// in-flight message is redelivered after restart.
func MessageHandler(proc Processor) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var msg messages.WebhookReceived
		if err := json.Unmarshal(value, &msg); err != nil {
			slog.Warn("skip undecodable webhook message", "key", string(key), "error", err.Error())
			return nil
		}
		Process(ctx, proc, msg)
		return ctx.Err()
	}
}
