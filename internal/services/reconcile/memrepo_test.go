package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/models"
	"github.com/BearBump/ShipRecon/internal/storage/pgrecon"
)

// memRepo mirrors the pgrecon upsert and split semantics in memory.
type memRepo struct {
	mu        sync.Mutex
	shipments map[string]*models.Shipment
	orders    map[int64]*models.Order
	nextID    uint64
	failOn    map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		shipments: map[string]*models.Shipment{},
		orders:    map[int64]*models.Order{},
		failOn:    map[string]error{},
	}
}

func (r *memRepo) id() uint64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) FindShipment(_ context.Context, tn string) (*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shipments[tn]
	if !ok {
		return nil, pgrecon.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) UpsertShipment(_ context.Context, in models.ShipmentUpsert) (*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[in.TrackingNumber]; err != nil {
		return nil, err
	}
	s, ok := r.shipments[in.TrackingNumber]
	if !ok {
		s = &models.Shipment{
			ID:                    r.id(),
			OrderID:               in.OrderID,
			ShipStationShipmentID: in.ShipStationShipmentID,
			ShipStationLabelID:    in.ShipStationLabelID,
			TrackingNumber:        in.TrackingNumber,
			CarrierCode:           in.CarrierCode,
			ServiceCode:           in.ServiceCode,
			UPSAccountType:        in.UPSAccountType,
			ShipDate:              in.ShipDate,
			WeightLbs:             in.WeightLbs,
			LabelCost:             in.LabelCost,
			PromisedDeliveryDate:  in.PromisedDeliveryDate,
			DeliveryStatus:        models.DeliveryStatusPending,
			ShipToCity:            in.ShipToCity,
		}
		r.shipments[in.TrackingNumber] = s
	} else {
		if in.OrderID != nil {
			s.OrderID = in.OrderID
		}
		if in.CarrierCode != "" {
			s.CarrierCode = in.CarrierCode
		}
		if in.ServiceCode != "" {
			s.ServiceCode = in.ServiceCode
		}
		s.LabelCost = in.LabelCost
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) MarkVoided(_ context.Context, tn string) (*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shipments[tn]
	if !ok {
		return nil, pgrecon.ErrNotFound
	}
	s.IsVoided = true
	s.IsMultiPackage = false
	s.SplitRevenue, s.SplitCOGS, s.SplitShippingPaid = nullDec(), nullDec(), nullDec()
	cp := *s
	return &cp, nil
}

func (r *memRepo) UpdateTracking(_ context.Context, u models.TrackingUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shipments[u.TrackingNumber]
	if !ok {
		return false, nil
	}
	if u.DeliveryStatus != nil {
		s.DeliveryStatus = *u.DeliveryStatus
	}
	if u.ActualDeliveryDate != nil {
		s.ActualDeliveryDate = u.ActualDeliveryDate
	}
	if u.PromisedDeliveryDate != nil {
		s.PromisedDeliveryDate = u.PromisedDeliveryDate
	}
	s.IsLate = u.IsLate
	return true, nil
}

func (r *memRepo) FindOrderByShopifyID(_ context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, pgrecon.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) UpsertOrder(_ context.Context, in models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[in.ShopifyOrderID]
	if !ok {
		cp := in
		cp.ID = r.id()
		r.orders[in.ShopifyOrderID] = &cp
		o = &cp
	} else {
		if in.ShipStationOrderNumber != nil {
			o.ShipStationOrderNumber = in.ShipStationOrderNumber
		}
		if in.ItemRevenue.Valid {
			o.ItemRevenue = in.ItemRevenue
		}
		if in.TotalCOGS.Valid {
			o.TotalCOGS = in.TotalCOGS
		}
		if in.ShippingPaid.Valid {
			o.ShippingPaid = in.ShippingPaid
		}
		o.IsChewyOrder = o.IsChewyOrder || in.IsChewyOrder
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) RecomputeSplits(_ context.Context, orderID uint64) (models.Splits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var order *models.Order
	for _, o := range r.orders {
		if o.ID == orderID {
			order = o
		}
	}
	if order == nil {
		return models.Splits{}, errors.New("order missing")
	}
	var active []*models.Shipment
	for _, s := range r.shipments {
		if s.OrderID != nil && *s.OrderID == orderID && !s.IsVoided {
			active = append(active, s)
		}
	}
	splits := models.ComputeSplits(models.OrderTotals{
		ItemRevenue:  order.ItemRevenue,
		TotalCOGS:    order.TotalCOGS,
		ShippingPaid: order.ShippingPaid,
	}, len(active))
	order.PackageCount = len(active)
	for _, s := range active {
		s.IsMultiPackage = splits.IsMultiPackage
		s.SplitRevenue = splits.Revenue
		s.SplitCOGS = splits.COGS
		s.SplitShippingPaid = splits.ShippingPaid
	}
	return splits, nil
}

func (r *memRepo) ListShipmentsByOrder(_ context.Context, orderID uint64) ([]*models.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Shipment
	for _, s := range r.shipments {
		if s.OrderID != nil && *s.OrderID == orderID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) counts() (shipments, orders int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shipments), len(r.orders)
}
