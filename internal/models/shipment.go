package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delivery statuses stored on a shipment.
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusInTransit = "in_transit"
	DeliveryStatusException = "exception"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusReturned  = "returned"
)

// Lifecycle states that are not delivery statuses.
const (
	ShipmentStateAbsent = "absent"
	ShipmentStateVoided = "voided"
)

type Shipment struct {
	ID      uint64  `json:"id"`
	OrderID *uint64 `json:"order_id,omitempty"`

	ShipStationShipmentID string  `json:"shipstation_shipment_id"`
	ShipStationLabelID    *string `json:"shipstation_label_id,omitempty"`

	TrackingNumber string  `json:"tracking_number"`
	CarrierCode    string  `json:"carrier_code"`
	ServiceCode    string  `json:"service_code"`
	UPSAccountType *string `json:"ups_account_type,omitempty"`

	ShipDate         *time.Time      `json:"ship_date,omitempty"`
	DimensionsLength *float64        `json:"dimensions_length,omitempty"`
	DimensionsWidth  *float64        `json:"dimensions_width,omitempty"`
	DimensionsHeight *float64        `json:"dimensions_height,omitempty"`
	WeightLbs        *float64        `json:"weight_lbs,omitempty"`
	LabelCost        decimal.Decimal `json:"label_cost"`

	PromisedDeliveryDate *time.Time `json:"promised_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time `json:"actual_delivery_date,omitempty"`
	DeliveryStatus       string     `json:"delivery_status"`
	IsLate               *bool      `json:"is_late,omitempty"`
	IsVoided             bool       `json:"is_voided"`

	IsMultiPackage    bool                `json:"is_multi_package"`
	SplitRevenue      decimal.NullDecimal `json:"split_revenue"`
	SplitCOGS         decimal.NullDecimal `json:"split_cogs"`
	SplitShippingPaid decimal.NullDecimal `json:"split_shipping_paid"`

	ShipToName    *string `json:"ship_to_name,omitempty"`
	ShipToCity    *string `json:"ship_to_city,omitempty"`
	ShipToState   *string `json:"ship_to_state,omitempty"`
	ShipToZip     *string `json:"ship_to_zip,omitempty"`
	IsResidential bool    `json:"is_residential"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State collapses the voided flag and the delivery status into one lifecycle state.
func (s *Shipment) State() string {
	if s == nil {
		return ShipmentStateAbsent
	}
	if s.IsVoided {
		return ShipmentStateVoided
	}
	if s.DeliveryStatus == "" {
		return DeliveryStatusPending
	}
	return s.DeliveryStatus
}

// IsTerminal reports whether no further carrier polling should happen.
func (s *Shipment) IsTerminal() bool {
	switch s.State() {
	case DeliveryStatusDelivered, DeliveryStatusReturned, ShipmentStateVoided:
		return true
	}
	return false
}

// ShipmentUpsert is the write model for a shipment keyed by tracking number.
type ShipmentUpsert struct {
	OrderID               *uint64
	ShipStationShipmentID string
	ShipStationLabelID    *string
	TrackingNumber        string
	CarrierCode           string
	ServiceCode           string
	UPSAccountType        *string
	ShipDate              *time.Time
	DimensionsLength      *float64
	DimensionsWidth       *float64
	DimensionsHeight      *float64
	WeightLbs             *float64
	LabelCost             decimal.Decimal
	PromisedDeliveryDate  *time.Time
	ShipToName            *string
	ShipToCity            *string
	ShipToState           *string
	ShipToZip             *string
	IsResidential         bool
}

// TrackingUpdate carries delivery fields from the carrier. Nil fields keep stored values,
// IsLate is always written.
type TrackingUpdate struct {
	TrackingNumber       string
	DeliveryStatus       *string
	ActualDeliveryDate   *time.Time
	PromisedDeliveryDate *time.Time
	IsLate               *bool
}

// PollCandidate is the slice of a shipment the delivery poller needs.
type PollCandidate struct {
	ID                   uint64
	TrackingNumber       string
	PromisedDeliveryDate *time.Time
	ShipDate             *time.Time
}
