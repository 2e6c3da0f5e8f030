// Package webhooks acknowledges fulfillment webhooks synchronously and hands them off for
// reconciliation in the background, either in-process or through Kafka.
package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BearBump/ShipRecon/internal/broker/messages"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/services/reconcile"
)

// Processor reconciles every shipment referenced by one notification.
type Processor interface {
	ProcessNotification(ctx context.Context, n normalizer.Notification) (reconcile.BatchResult, error)
}

// Handoff queues an acknowledged webhook. It must not wait for reconciliation.
type Handoff interface {
	Handoff(ctx context.Context, msg messages.WebhookReceived) error
}

type Service struct {
	handoff Handoff
	now     func() time.Time
}

func New(h Handoff) *Service {
	return &Service{handoff: h, now: time.Now}
}

// Receive assigns a delivery id and hands the notification off. Hand-off failures are
// logged only: the sender has its acknowledgment either way.
func (s *Service) Receive(ctx context.Context, n normalizer.Notification) messages.WebhookReceived {
	msg := messages.WebhookReceived{
		DeliveryID:   uuid.New(),
		ResourceType: n.ResourceType,
		ResourceURL:  n.ResourceURL,
		ReceivedAt:   s.now().UTC(),
	}
	slog.Info("webhook received",
		"delivery_id", msg.DeliveryID.String(),
		"resource_type", msg.ResourceType,
	)
	if err := s.handoff.Handoff(ctx, msg); err != nil {
		slog.Error("webhook hand-off failed",
			"delivery_id", msg.DeliveryID.String(),
			"resource_type", msg.ResourceType,
			"error", err.Error(),
		)
	}
	return msg
}

// Process runs reconciliation for one delivery and contains every failure, panics included.
func Process(ctx context.Context, proc Processor, msg messages.WebhookReceived) {
	log := slog.With("delivery_id", msg.DeliveryID.String(), "resource_type", msg.ResourceType)
	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook processing panicked", "panic", r)
		}
	}()

	n := normalizer.Notification{ResourceType: msg.ResourceType, ResourceURL: msg.ResourceURL}
	if !n.Supported() {
		log.Info("ignoring unsupported webhook")
		return
	}

	started := time.Now()
	res, err := proc.ProcessNotification(ctx, n)
	if err != nil {
		log.Error("webhook processing failed", "error", err.Error())
		return
	}
	log.Info("webhook processed",
		"events", res.Events,
		"stored", res.Stored,
		"voided", res.Voided,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"took_ms", time.Since(started).Milliseconds(),
	)
}
