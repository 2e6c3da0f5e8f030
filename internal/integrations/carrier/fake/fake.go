package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/ShipRecon/internal/classify"
	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/models"
)

// FakeClient stands in for the carrier when no API credentials are configured.
// Status is deterministic per tracking number: about one in five is delivered.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient { return &FakeClient{now: time.Now} }

func (f *FakeClient) GetTracking(ctx context.Context, trackingNumber string) (carrier.TrackingResult, error) {
	if !classify.IsUPSTracking(trackingNumber) {
		return carrier.TrackingResult{TrackingNumber: trackingNumber, Status: carrier.LookupNotFound}, nil
	}

	now := f.now().UTC()
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	scheduled := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 2)
	res := carrier.TrackingResult{
		TrackingNumber:    trackingNumber,
		Status:            carrier.LookupOK,
		DeliveryStatus:    models.DeliveryStatusInTransit,
		ScheduledDelivery: &scheduled,
		LastActivity: &carrier.Activity{
			Type:        "I",
			Description: "fake carrier update",
			Date:        now.Format("20060102"),
			Time:        now.Format("150405"),
		},
	}
	if v%5 == 0 {
		res.DeliveryStatus = models.DeliveryStatusDelivered
		res.ActualDelivery = &now
		res.LastActivity.Type = "D"
	}
	return res, nil
}
