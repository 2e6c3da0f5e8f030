package normalizer

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BearBump/ShipRecon/internal/integrations/shipstation"
)

// minOrderIDDigits guards against placeholder values such as "1" or "test".
const minOrderIDDigits = 6

// resolveState is shared by the resolvers of one ResolveOrder call.
type resolveState struct {
	ev          *ShipmentEvent
	legacyOrder *shipstation.LegacyOrder
}

// resolver returns a raw candidate, "" when it has nothing to offer.
type resolver struct {
	name string
	fn   func(ctx context.Context, st *resolveState) (string, error)
}

func (n *Normalizer) defaultResolvers() []resolver {
	return []resolver{
		{name: "legacy_order_by_id", fn: n.byLegacyOrderID},
		{name: "legacy_order_by_number", fn: n.byLegacyOrderNumber},
		{name: "external_shipment_id", fn: byExternalShipmentID},
		{name: "legacy_order_key", fn: byLegacyOrderKey},
	}
}

func (n *Normalizer) byLegacyOrderID(ctx context.Context, st *resolveState) (string, error) {
	if st.ev.LegacyOrderID == 0 {
		return "", nil
	}
	o, err := n.legacy.GetOrder(ctx, st.ev.LegacyOrderID)
	if err != nil || o == nil {
		return "", err
	}
	st.legacyOrder = o
	return o.ExternalID(), nil
}

func (n *Normalizer) byLegacyOrderNumber(ctx context.Context, st *resolveState) (string, error) {
	if st.legacyOrder != nil || st.ev.OrderNumber == "" {
		return "", nil
	}
	orders, err := n.legacy.ListOrdersByNumber(ctx, st.ev.OrderNumber)
	if err != nil || len(orders) == 0 {
		return "", err
	}
	st.legacyOrder = &orders[0]
	return orders[0].ExternalID(), nil
}

func byExternalShipmentID(_ context.Context, st *resolveState) (string, error) {
	return st.ev.ExternalShipmentID, nil
}

func byLegacyOrderKey(_ context.Context, st *resolveState) (string, error) {
	if st.legacyOrder != nil && st.legacyOrder.OrderKey != "" {
		return st.legacyOrder.OrderKey, nil
	}
	return st.ev.OrderKey, nil
}

// OrderIDCandidate validates a raw candidate: the segment before the first dash must be
// all digits and longer than five characters.
func OrderIDCandidate(raw string) (int64, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(raw), "-")
	if len(head) < minOrderIDDigits {
		return 0, false
	}
	for _, r := range head {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ResolveOrder runs the resolvers in order and takes the first valid candidate.
// Lookup failures are logged and the next resolver is tried.
func (n *Normalizer) ResolveOrder(ctx context.Context, ev *ShipmentEvent) OrderLink {
	link := OrderLink{OrderNumber: ev.OrderNumber}
	if ev.Degraded {
		return link
	}

	st := &resolveState{ev: ev}
	for _, r := range n.resolvers {
		raw, err := r.fn(ctx, st)
		if err != nil {
			slog.Warn("order resolver failed", "resolver", r.name, "tracking_number", ev.TrackingNumber, "err", err)
			continue
		}
		if raw == "" {
			continue
		}
		id, ok := OrderIDCandidate(raw)
		if !ok {
			slog.Warn("order id candidate rejected", "resolver", r.name, "tracking_number", ev.TrackingNumber, "candidate", raw)
			continue
		}
		link.ShopifyOrderID = &id
		link.Resolver = r.name
		break
	}

	if link.OrderNumber == "" && st.legacyOrder != nil {
		link.OrderNumber = st.legacyOrder.OrderNumber
	}
	return link
}
