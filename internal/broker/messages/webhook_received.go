package messages

import (
	"time"

	"github.com/google/uuid"
)

// WebhookReceived is an acknowledged fulfillment webhook waiting to be reconciled.
// Keyed by DeliveryID on the topic.
type WebhookReceived struct {
	DeliveryID   uuid.UUID `json:"delivery_id"`
	ResourceType string    `json:"resource_type"`
	ResourceURL  string    `json:"resource_url"`
	ReceivedAt   time.Time `json:"received_at"`
}
