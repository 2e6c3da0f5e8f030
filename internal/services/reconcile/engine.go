// Package reconcile links ShipStation shipment events to sales orders and keeps shipment,
// order and cost-split records consistent.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/classify"
	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/integrations/shopify"
	"github.com/BearBump/ShipRecon/internal/models"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/storage/pgrecon"
)

type Repository interface {
	FindShipment(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	UpsertShipment(ctx context.Context, in models.ShipmentUpsert) (*models.Shipment, error)
	MarkVoided(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	UpdateTracking(ctx context.Context, u models.TrackingUpdate) (bool, error)
	FindOrderByShopifyID(ctx context.Context, shopifyOrderID int64) (*models.Order, error)
	UpsertOrder(ctx context.Context, in models.Order) (*models.Order, error)
	RecomputeSplits(ctx context.Context, orderID uint64) (models.Splits, error)
	ListShipmentsByOrder(ctx context.Context, orderID uint64) ([]*models.Shipment, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, n normalizer.Notification) ([]normalizer.ShipmentEvent, error)
	ResolveOrder(ctx context.Context, ev *normalizer.ShipmentEvent) normalizer.OrderLink
}

type OrderEnricher interface {
	GetOrderWithCOGS(ctx context.Context, shopifyOrderID int64) (*shopify.EnrichedOrder, error)
}

// Outcome of processing one shipment event.
type Outcome string

const (
	OutcomeDropped     Outcome = "dropped"     // no tracking number
	OutcomeVoided      Outcome = "voided"      // void event applied
	OutcomeDuplicate   Outcome = "duplicate"   // already stored and linked
	OutcomeMarketplace Outcome = "marketplace" // order recorded, no shipment
	OutcomeStored      Outcome = "stored"
)

type BatchResult struct {
	Events  int `json:"events"`
	Stored  int `json:"stored"`
	Voided  int `json:"voided"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Engine struct {
	repo    Repository
	norm    Normalizer
	orders  OrderEnricher
	tracker carrier.Client
}

// New builds an Engine. tracker may be nil to skip the promised-date lookup.
func New(repo Repository, norm Normalizer, orders OrderEnricher, tracker carrier.Client) *Engine {
	return &Engine{repo: repo, norm: norm, orders: orders, tracker: tracker}
}

// ProcessNotification normalizes a webhook notification and processes its shipments one at a
// time, in order. A failing shipment is logged and counted; the rest of the batch still runs.
func (e *Engine) ProcessNotification(ctx context.Context, n normalizer.Notification) (BatchResult, error) {
	events, err := e.norm.Normalize(ctx, n)
	if err != nil {
		return BatchResult{}, errors.Wrap(err, "normalize notification")
	}

	res := BatchResult{Events: len(events)}
	for i := range events {
		ev := &events[i]
		out, err := e.processSafely(ctx, ev)
		if err != nil {
			res.Failed++
			slog.Error("shipment processing failed",
				"tracking_number", ev.TrackingNumber,
				"shipment_id", ev.ShipmentID,
				"source", ev.Source,
				"err", err,
			)
			continue
		}
		switch out {
		case OutcomeStored:
			res.Stored++
		case OutcomeVoided:
			res.Voided++
		default:
			res.Skipped++
		}
	}

	slog.Info("webhook batch processed",
		"resource_type", n.ResourceType,
		"events", res.Events,
		"stored", res.Stored,
		"voided", res.Voided,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

func (e *Engine) processSafely(ctx context.Context, ev *normalizer.ShipmentEvent) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return e.ProcessOneShipment(ctx, ev)
}

// ProcessOneShipment applies one canonical shipment event.
func (e *Engine) ProcessOneShipment(ctx context.Context, ev *normalizer.ShipmentEvent) (Outcome, error) {
	tn := ev.TrackingNumber
	if tn == "" {
		slog.Warn("shipment has no tracking number, skipping", "shipment_id", ev.ShipmentID)
		return OutcomeDropped, nil
	}

	if ev.Voided {
		return OutcomeVoided, e.voidShipment(ctx, tn)
	}

	existing, err := e.repo.FindShipment(ctx, tn)
	if err != nil && !errors.Is(err, pgrecon.ErrNotFound) {
		return "", errors.Wrap(err, "find shipment")
	}
	if existing != nil && !existing.IsVoided && existing.OrderID != nil {
		slog.Info("shipment already linked, skipping", "tracking_number", tn)
		return OutcomeDuplicate, nil
	}

	link := e.norm.ResolveOrder(ctx, ev)
	marketplace := classify.IsChewyOrder(link.OrderNumber)

	var order *models.Order
	if link.ShopifyOrderID != nil {
		order, err = e.ensureOrder(ctx, *link.ShopifyOrderID, link.OrderNumber, marketplace)
		if err != nil {
			return "", err
		}
	} else {
		slog.Warn("no order resolved for shipment", "tracking_number", tn, "order_number", link.OrderNumber)
	}

	if marketplace {
		slog.Info("marketplace order, skipping shipment record", "tracking_number", tn, "order_number", link.OrderNumber)
		return OutcomeMarketplace, nil
	}

	in := models.ShipmentUpsert{
		ShipStationShipmentID: ev.ShipmentID,
		ShipStationLabelID:    ev.LabelID,
		TrackingNumber:        tn,
		CarrierCode:           ev.CarrierCode,
		ServiceCode:           ev.ServiceCode,
		UPSAccountType:        classify.UPSAccountType(tn),
		ShipDate:              ev.ShipDate,
		DimensionsLength:      ev.Length,
		DimensionsWidth:       ev.Width,
		DimensionsHeight:      ev.Height,
		WeightLbs:             ev.Weight.Pounds(),
		LabelCost:             ev.Cost,
		ShipToName:            ev.ShipToName,
		ShipToCity:            ev.ShipToCity,
		ShipToState:           ev.ShipToState,
		ShipToZip:             ev.ShipToZip,
		IsResidential:         ev.IsResidential,
	}
	if order != nil {
		in.OrderID = &order.ID
	}

	sh, err := e.repo.UpsertShipment(ctx, in)
	if err != nil {
		return "", errors.Wrap(err, "upsert shipment")
	}
	slog.Info("shipment stored",
		"tracking_number", tn,
		"shipment_id", sh.ID,
		"carrier", ev.CarrierCode,
		"service", ev.ServiceCode,
		"label_cost", ev.Cost.String(),
		"order_resolver", link.Resolver,
	)

	if order != nil {
		if _, err := e.repo.RecomputeSplits(ctx, order.ID); err != nil {
			return "", errors.Wrap(err, "recompute splits")
		}
	}

	e.fetchPromisedDate(ctx, tn)
	return OutcomeStored, nil
}

// OrderShipments lists every shipment of an order, voided ones included, with its split fields.
func (e *Engine) OrderShipments(ctx context.Context, orderID uint64) ([]*models.Shipment, error) {
	shipments, err := e.repo.ListShipmentsByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list shipments of order %d", orderID)
	}
	return shipments, nil
}

func (e *Engine) voidShipment(ctx context.Context, tn string) error {
	sh, err := e.repo.MarkVoided(ctx, tn)
	if errors.Is(err, pgrecon.ErrNotFound) {
		slog.Info("void for unknown shipment", "tracking_number", tn)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "mark voided")
	}
	slog.Info("shipment voided", "tracking_number", tn)
	if sh.OrderID != nil {
		if _, err := e.repo.RecomputeSplits(ctx, *sh.OrderID); err != nil {
			return errors.Wrap(err, "recompute splits after void")
		}
	}
	return nil
}

// ensureOrder returns the stored order, creating it from the sales channel on first sight.
// When the sales channel is unreachable a basic order is stored so the shipment can link.
// Returns nil when the sales channel says the order does not exist.
func (e *Engine) ensureOrder(ctx context.Context, shopifyOrderID int64, orderNumber string, marketplace bool) (*models.Order, error) {
	basic := models.Order{ShopifyOrderID: shopifyOrderID, IsChewyOrder: marketplace}
	if orderNumber != "" {
		basic.ShipStationOrderNumber = &orderNumber
	}

	_, err := e.repo.FindOrderByShopifyID(ctx, shopifyOrderID)
	switch {
	case err == nil:
		o, err := e.repo.UpsertOrder(ctx, basic)
		return o, errors.Wrap(err, "merge order")
	case !errors.Is(err, pgrecon.ErrNotFound):
		return nil, errors.Wrap(err, "find order")
	}

	enriched, err := e.orders.GetOrderWithCOGS(ctx, shopifyOrderID)
	if err != nil {
		slog.Warn("order enrichment failed, storing basic order", "shopify_order_id", shopifyOrderID, "err", err)
		o, err := e.repo.UpsertOrder(ctx, basic)
		return o, errors.Wrap(err, "upsert basic order")
	}
	if enriched == nil {
		slog.Warn("sales order not found", "shopify_order_id", shopifyOrderID)
		return nil, nil
	}

	full := enriched.Order
	full.ShipStationOrderNumber = basic.ShipStationOrderNumber
	full.IsChewyOrder = marketplace
	o, err := e.repo.UpsertOrder(ctx, full)
	if err != nil {
		return nil, errors.Wrap(err, "upsert order")
	}
	slog.Info("order stored",
		"order_id", o.ID,
		"shopify_order_id", shopifyOrderID,
		"cogs_known", full.TotalCOGS.Valid,
	)
	return o, nil
}

// fetchPromisedDate asks the carrier for a promised date right away. Failures are left to
// the scheduled poll.
func (e *Engine) fetchPromisedDate(ctx context.Context, tn string) {
	if e.tracker == nil || !classify.IsUPSTracking(tn) {
		return
	}
	res, err := e.tracker.GetTracking(ctx, tn)
	if err != nil {
		slog.Warn("tracking lookup failed, will retry in scheduled poll", "tracking_number", tn, "err", err)
		return
	}
	if !res.HasDeliveryData() || res.ScheduledDelivery == nil {
		return
	}

	status := res.DeliveryStatus
	if _, err := e.repo.UpdateTracking(ctx, models.TrackingUpdate{
		TrackingNumber:       tn,
		DeliveryStatus:       &status,
		ActualDeliveryDate:   res.ActualDelivery,
		PromisedDeliveryDate: res.ScheduledDelivery,
		IsLate:               models.IsLate(res.ActualDelivery, res.ScheduledDelivery),
	}); err != nil {
		slog.Warn("could not store promised date", "tracking_number", tn, "err", err)
		return
	}
	slog.Info("promised delivery date stored", "tracking_number", tn, "promised", res.ScheduledDelivery)
}
