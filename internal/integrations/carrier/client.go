package carrier

import (
	"context"
	"time"
)

// Lookup outcomes. Only LookupOK carries usable delivery data.
const (
	LookupOK         = "ok"
	LookupNotFound   = "not_found"
	LookupError      = "error"
	LookupParseError = "parse_error"
)

// Activity is the most recent scan reported by the carrier.
type Activity struct {
	Type        string
	Description string
	Date        string // YYYYMMDD
	Time        string // HHMMSS
}

type TrackingResult struct {
	TrackingNumber    string
	Status            string
	DeliveryStatus    string
	ScheduledDelivery *time.Time
	ActualDelivery    *time.Time
	LastActivity      *Activity
}

// HasDeliveryData reports whether the result may be written back to a shipment.
func (r TrackingResult) HasDeliveryData() bool {
	return r.Status == LookupOK
}

// Client fetches delivery status for one tracking number. Transport failures and
// retryable HTTP statuses are errors; not-found and carrier-rejected lookups are results.
type Client interface {
	GetTracking(ctx context.Context, trackingNumber string) (TrackingResult, error)
}
