// Package normalizer turns ShipStation webhook notifications into canonical shipment events
// and resolves the sales-channel order each shipment belongs to.
package normalizer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BearBump/ShipRecon/internal/integrations/shipstation"
)

// Webhook event tags.
const (
	TagShipNotify     = "SHIP_NOTIFY"      // legacy v1 shipments
	TagLabelCreatedV2 = "LABEL_CREATED_V2" // current v2 labels
)

// Event sources recorded on canonical events.
const (
	SourceLegacy  = "legacy"
	SourceCurrent = "current"
)

// Notification is the body ShipStation posts to the webhook endpoint.
type Notification struct {
	ResourceType string `json:"resource_type"`
	ResourceURL  string `json:"resource_url"`
}

// Supported reports whether the tag is one this package can normalize.
func (n Notification) Supported() bool {
	return n.ResourceType == TagShipNotify || n.ResourceType == TagLabelCreatedV2
}

// RawEvent is one shipment as delivered by either API surface:
// a LegacyShipmentEvent or a CurrentLabelEvent.
type RawEvent interface {
	rawEvent()
}

type LegacyShipmentEvent struct {
	Shipment shipstation.LegacyShipment
}

// CurrentLabelEvent is a v2 label plus its shipment when that lookup succeeded.
type CurrentLabelEvent struct {
	Label    shipstation.Label
	Shipment *shipstation.Shipment
}

func (LegacyShipmentEvent) rawEvent() {}
func (CurrentLabelEvent) rawEvent()   {}

type Weight struct {
	Value float64
	Unit  string
}

// Pounds converts to pounds. Unknown units are taken as pounds; non-positive weights give nil.
func (w *Weight) Pounds() *float64 {
	if w == nil || w.Value <= 0 {
		return nil
	}
	var lbs float64
	switch strings.ToLower(w.Unit) {
	case "ounces", "ounce", "oz":
		lbs = w.Value / 16
	case "grams", "gram", "g":
		lbs = w.Value / 453.59237
	case "kilograms", "kilogram", "kg":
		lbs = w.Value * 2.20462262
	default:
		lbs = w.Value
	}
	return &lbs
}

// ShipmentEvent is the canonical shipment shape both webhook formats are converted into.
type ShipmentEvent struct {
	Source string

	ShipmentID     string
	LabelID        *string
	TrackingNumber string
	CarrierCode    string
	ServiceCode    string
	ShipDate       *time.Time
	Voided         bool
	Cost           decimal.Decimal

	Weight *Weight
	Length *float64
	Width  *float64
	Height *float64

	ShipToName    *string
	ShipToCity    *string
	ShipToState   *string
	ShipToZip     *string
	IsResidential bool

	// OrderNumber is the fulfillment-system order number, if the payload carried one.
	OrderNumber string

	// Order linkage inputs.
	LegacyOrderID      int64
	ExternalShipmentID string
	OrderKey           string

	// Degraded is set when the event was built from label fields alone.
	// Degraded events are never linked to an order.
	Degraded bool
}

// OrderLink is the outcome of order resolution. ShopifyOrderID is nil when nothing resolved.
type OrderLink struct {
	ShopifyOrderID *int64
	OrderNumber    string
	Resolver       string
}
