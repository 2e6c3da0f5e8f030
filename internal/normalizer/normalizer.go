package normalizer

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/integrations/shipstation"
)

type LegacyAPI interface {
	FetchShipments(ctx context.Context, resourceURL string) ([]shipstation.LegacyShipment, error)
	GetOrder(ctx context.Context, orderID int64) (*shipstation.LegacyOrder, error)
	ListOrdersByNumber(ctx context.Context, orderNumber string) ([]shipstation.LegacyOrder, error)
}

type CurrentAPI interface {
	FetchLabels(ctx context.Context, resourceURL string) ([]shipstation.Label, error)
	GetShipment(ctx context.Context, shipmentID string) (*shipstation.Shipment, error)
}

type Normalizer struct {
	legacy    LegacyAPI
	current   CurrentAPI
	resolvers []resolver
}

func New(legacy LegacyAPI, current CurrentAPI) *Normalizer {
	n := &Normalizer{legacy: legacy, current: current}
	n.resolvers = n.defaultResolvers()
	return n
}

var ErrMissingResourceURL = errors.New("notification has no resource_url")

// Fetch loads the raw events a notification points at. Unsupported tags yield no events.
func (n *Normalizer) Fetch(ctx context.Context, notif Notification) ([]RawEvent, error) {
	if !notif.Supported() {
		slog.Info("ignoring webhook", "resource_type", notif.ResourceType)
		return nil, nil
	}
	if notif.ResourceURL == "" {
		return nil, ErrMissingResourceURL
	}

	switch notif.ResourceType {
	case TagShipNotify:
		shipments, err := n.legacy.FetchShipments(ctx, notif.ResourceURL)
		if err != nil {
			return nil, err
		}
		out := make([]RawEvent, 0, len(shipments))
		for _, s := range shipments {
			out = append(out, LegacyShipmentEvent{Shipment: s})
		}
		return out, nil

	default:
		labels, err := n.current.FetchLabels(ctx, notif.ResourceURL)
		if err != nil {
			return nil, err
		}
		out := make([]RawEvent, 0, len(labels))
		for _, l := range labels {
			ev := CurrentLabelEvent{Label: l}
			if l.ShipmentID != "" {
				s, err := n.current.GetShipment(ctx, l.ShipmentID)
				if err != nil {
					slog.Warn("v2 shipment lookup failed", "shipment_id", l.ShipmentID, "tracking_number", l.TrackingNumber, "err", err)
				}
				ev.Shipment = s
			}
			out = append(out, ev)
		}
		return out, nil
	}
}

// Normalize fetches and canonicalizes every shipment of a notification.
func (n *Normalizer) Normalize(ctx context.Context, notif Notification) ([]ShipmentEvent, error) {
	raw, err := n.Fetch(ctx, notif)
	if err != nil {
		return nil, err
	}
	out := make([]ShipmentEvent, 0, len(raw))
	for _, r := range raw {
		out = append(out, Canonical(r))
	}
	return out, nil
}

// Canonical converts one raw event. It performs no I/O.
func Canonical(r RawEvent) ShipmentEvent {
	switch ev := r.(type) {
	case LegacyShipmentEvent:
		return fromLegacy(ev.Shipment)
	case CurrentLabelEvent:
		if ev.Shipment == nil {
			return fromLabel(ev.Label)
		}
		return fromCurrent(ev.Label, *ev.Shipment)
	}
	return ShipmentEvent{}
}

func fromLegacy(s shipstation.LegacyShipment) ShipmentEvent {
	ev := ShipmentEvent{
		Source:         SourceLegacy,
		ShipmentID:     strconv.FormatInt(s.ShipmentID, 10),
		TrackingNumber: s.TrackingNumber,
		CarrierCode:    s.CarrierCode,
		ServiceCode:    s.ServiceCode,
		ShipDate:       shipstation.ParseDate(s.ShipDate),
		Voided:         s.Voided,
		Cost:           s.ShipmentCost,
		OrderNumber:    s.OrderNumber,
		LegacyOrderID:  s.OrderID,
		OrderKey:       s.OrderKey,
	}
	if s.LabelID != nil {
		id := strconv.FormatInt(*s.LabelID, 10)
		ev.LabelID = &id
	}
	if s.Weight != nil {
		ev.Weight = &Weight{Value: s.Weight.Value, Unit: s.Weight.Units}
	}
	if d := s.Dimensions; d != nil {
		ev.Length, ev.Width, ev.Height = positive(d.Length), positive(d.Width), positive(d.Height)
	}
	if a := s.ShipTo; a != nil {
		ev.ShipToName = nonEmpty(a.Name)
		ev.ShipToCity = nonEmpty(a.City)
		ev.ShipToState = nonEmpty(a.State)
		ev.ShipToZip = nonEmpty(a.PostalCode)
		ev.IsResidential = a.Residential != nil && *a.Residential
	}
	return ev
}

// fromLabel is the degraded form used when the v2 shipment could not be loaded.
func fromLabel(l shipstation.Label) ShipmentEvent {
	ev := ShipmentEvent{
		Source:         SourceCurrent,
		ShipmentID:     l.ShipmentID,
		LabelID:        nonEmpty(l.LabelID),
		TrackingNumber: l.TrackingNumber,
		CarrierCode:    l.CarrierCode,
		ServiceCode:    l.ServiceCode,
		ShipDate:       shipstation.ParseDate(l.ShipDate),
		Voided:         l.Voided,
		Degraded:       true,
	}
	if ev.ShipmentID == "" {
		ev.ShipmentID = l.LabelID
	}
	if l.ShipmentCost != nil {
		ev.Cost = l.ShipmentCost.Amount
	}
	applyPackages(&ev, l.Packages)
	return ev
}

func fromCurrent(l shipstation.Label, s shipstation.Shipment) ShipmentEvent {
	ev := fromLabel(l)
	ev.Degraded = false
	ev.OrderNumber = s.ShipmentNumber

	ev.ExternalShipmentID = l.ExternalShipmentID
	if ev.ExternalShipmentID == "" {
		ev.ExternalShipmentID = s.ExternalShipmentID
	}

	if ev.Weight == nil || ev.Length == nil {
		fallback := ShipmentEvent{}
		applyPackages(&fallback, s.Packages)
		if ev.Weight == nil {
			ev.Weight = fallback.Weight
		}
		if ev.Weight == nil && s.TotalWeight != nil {
			ev.Weight = &Weight{Value: s.TotalWeight.Value, Unit: s.TotalWeight.Unit}
		}
		if ev.Length == nil {
			ev.Length, ev.Width, ev.Height = fallback.Length, fallback.Width, fallback.Height
		}
	}

	if a := s.ShipTo; a != nil {
		ev.ShipToName = nonEmpty(a.Name)
		ev.ShipToCity = nonEmpty(a.CityLocality)
		ev.ShipToState = nonEmpty(a.StateProvince)
		ev.ShipToZip = nonEmpty(a.PostalCode)
		ev.IsResidential = strings.EqualFold(a.AddressResidentialIndicator, "yes")
	}
	return ev
}

func applyPackages(ev *ShipmentEvent, pkgs []shipstation.Package) {
	if len(pkgs) == 0 {
		return
	}
	p := pkgs[0]
	if p.Weight != nil {
		ev.Weight = &Weight{Value: p.Weight.Value, Unit: p.Weight.Unit}
	}
	if d := p.Dimensions; d != nil {
		ev.Length, ev.Width, ev.Height = positive(d.Length), positive(d.Width), positive(d.Height)
	}
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func positive(f float64) *float64 {
	if f <= 0 {
		return nil
	}
	return &f
}
