package shopify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/BearBump/ShipRecon/internal/cache"
	"github.com/BearBump/ShipRecon/internal/models"
)

const (
	defaultCostTTL         = 6 * time.Hour
	defaultCostConcurrency = 4

	// noCostMarker is cached for variants whose inventory item has no cost.
	noCostMarker = "-"
)

type api interface {
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	GetVariantInventoryItemID(ctx context.Context, variantID int64) (int64, error)
	GetInventoryItemCost(ctx context.Context, inventoryItemID int64) (decimal.NullDecimal, error)
}

// Enricher turns a sales-channel order into an order with revenue and cost basis.
type Enricher struct {
	api         api
	costs       cache.BytesCache
	costTTL     time.Duration
	concurrency int
}

// NewEnricher builds an Enricher. costs may be nil to disable cost memoization.
func NewEnricher(c api, costs cache.BytesCache, costTTL time.Duration, concurrency int) *Enricher {
	if costTTL <= 0 {
		costTTL = defaultCostTTL
	}
	if concurrency <= 0 {
		concurrency = defaultCostConcurrency
	}
	return &Enricher{api: c, costs: costs, costTTL: costTTL, concurrency: concurrency}
}

type EnrichedOrder struct {
	Order     models.Order
	LineItems []models.LineItem
}

// GetOrderWithCOGS returns nil, nil when the order does not exist. Missing unit costs
// are tolerated and leave that line's COGS null.
func (e *Enricher) GetOrderWithCOGS(ctx context.Context, orderID int64) (*EnrichedOrder, error) {
	o, err := e.api.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		slog.Warn("shopify order not found", "shopify_order_id", orderID)
		return nil, nil
	}

	items := make([]models.LineItem, len(o.LineItems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, li := range o.LineItems {
		items[i] = models.LineItem{
			Name:     li.Name,
			SKU:      li.SKU,
			Quantity: li.Quantity,
			Price:    parseMoney(li.Price),
		}
		if li.ProductID != nil {
			items[i].ProductID = *li.ProductID
		}
		if li.VariantID == nil || *li.VariantID == 0 {
			continue
		}
		variantID := *li.VariantID
		items[i].VariantID = variantID

		i := i
		g.Go(func() error {
			cost, err := e.variantCost(gctx, variantID)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("could not look up cogs for variant", "variant_id", variantID, "err", err)
				return nil
			}
			items[i].COGS = cost
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "line item costs")
	}

	return &EnrichedOrder{Order: buildOrder(o, items), LineItems: items}, nil
}

func buildOrder(o *Order, items []models.LineItem) models.Order {
	revenue := decimal.Zero
	cogs := decimal.Zero
	anyCost := false
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		revenue = revenue.Add(it.Price.Mul(qty))
		if it.COGS.Valid {
			anyCost = true
			cogs = cogs.Add(it.COGS.Decimal.Mul(qty))
		}
	}

	shipping := decimal.Zero
	var method *string
	for i, sl := range o.ShippingLines {
		shipping = shipping.Add(parseMoney(sl.Price))
		if i == 0 && sl.Title != "" {
			t := sl.Title
			method = &t
		}
	}

	out := models.Order{
		ShopifyOrderID: o.ID,
		OrderDate:      o.CreatedAt,
		ItemRevenue:    decimal.NewNullDecimal(revenue),
		ShippingPaid:   decimal.NewNullDecimal(shipping),
		ShippingMethod: method,
	}
	if anyCost {
		out.TotalCOGS = decimal.NewNullDecimal(cogs)
	}
	if o.TotalPrice != "" {
		out.OrderTotal = decimal.NewNullDecimal(parseMoney(o.TotalPrice))
	}
	if o.Name != "" {
		name := o.Name
		out.ShopifyOrderNumber = &name
	}
	out.CustomerName = customerName(o)
	out.CustomerEmail = customerEmail(o)

	if raw, err := json.Marshal(items); err == nil {
		out.ItemsJSON = raw
	}
	return out
}

func customerName(o *Order) *string {
	if o.Customer != nil {
		if n := strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName); n != "" {
			return &n
		}
	}
	if o.ShippingAddress != nil && o.ShippingAddress.Name != "" {
		n := o.ShippingAddress.Name
		return &n
	}
	return nil
}

func customerEmail(o *Order) *string {
	if o.Customer != nil && o.Customer.Email != "" {
		e := o.Customer.Email
		return &e
	}
	if o.Email != "" {
		e := o.Email
		return &e
	}
	return nil
}

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func costKey(variantID int64) string {
	return "shopify:variant_cost:" + strconv.FormatInt(variantID, 10)
}

// variantCost resolves variant -> inventory item -> unit cost, memoized per variant.
func (e *Enricher) variantCost(ctx context.Context, variantID int64) (decimal.NullDecimal, error) {
	if e.costs != nil {
		b, ok, err := e.costs.Get(ctx, costKey(variantID))
		if err != nil {
			slog.Warn("cost cache get failed", "variant_id", variantID, "err", err)
		} else if ok {
			if string(b) == noCostMarker {
				return decimal.NullDecimal{}, nil
			}
			if d, err := decimal.NewFromString(string(b)); err == nil {
				return decimal.NewNullDecimal(d), nil
			}
		}
	}

	invID, err := e.api.GetVariantInventoryItemID(ctx, variantID)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	var cost decimal.NullDecimal
	if invID != 0 {
		cost, err = e.api.GetInventoryItemCost(ctx, invID)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
	}
	if !cost.Valid {
		slog.Warn("no unit cost for variant", "variant_id", variantID, "inventory_item_id", invID)
	}

	if e.costs != nil {
		v := noCostMarker
		if cost.Valid {
			v = cost.Decimal.String()
		}
		if err := e.costs.Set(ctx, costKey(variantID), []byte(v), e.costTTL); err != nil {
			slog.Warn("cost cache set failed", "variant_id", variantID, "err", err)
		}
	}
	return cost, nil
}
