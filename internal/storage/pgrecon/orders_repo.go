package pgrecon

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/models"
)

const orderColumns = `
  id, shopify_order_id, shopify_order_number, shipstation_order_number,
  order_date, customer_name, customer_email, items_json,
  item_revenue, total_cogs, shipping_paid_by_customer, shipping_method_selected,
  order_total, package_count, is_chewy_order, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.ShopifyOrderID, &o.ShopifyOrderNumber, &o.ShipStationOrderNumber,
		&o.OrderDate, &o.CustomerName, &o.CustomerEmail, &items,
		&o.ItemRevenue, &o.TotalCOGS, &o.ShippingPaid, &o.ShippingMethod,
		&o.OrderTotal, &o.PackageCount, &o.IsChewyOrder, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ItemsJSON = items
	return &o, nil
}

func (s *Storage) FindOrderByShopifyID(ctx context.Context, shopifyOrderID int64) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE shopify_order_id = $1`, shopifyOrderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

// UpsertOrder inserts by Shopify order id, or merges into the existing row keeping
// stored values wherever the new value is null.
func (s *Storage) UpsertOrder(ctx context.Context, in models.Order) (*models.Order, error) {
	var items any
	if len(in.ItemsJSON) > 0 {
		items = string(in.ItemsJSON)
	}

	o, err := scanOrder(s.db.QueryRow(ctx, `
INSERT INTO orders (
  shopify_order_id, shopify_order_number, shipstation_order_number,
  order_date, customer_name, customer_email, items_json,
  item_revenue, total_cogs, shipping_paid_by_customer,
  shipping_method_selected, order_total, is_chewy_order
)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10,$11,$12,$13)
ON CONFLICT (shopify_order_id) DO UPDATE SET
  shopify_order_number = COALESCE(EXCLUDED.shopify_order_number, orders.shopify_order_number),
  shipstation_order_number = COALESCE(EXCLUDED.shipstation_order_number, orders.shipstation_order_number),
  order_date = COALESCE(EXCLUDED.order_date, orders.order_date),
  customer_name = COALESCE(EXCLUDED.customer_name, orders.customer_name),
  customer_email = COALESCE(EXCLUDED.customer_email, orders.customer_email),
  items_json = COALESCE(EXCLUDED.items_json, orders.items_json),
  item_revenue = COALESCE(EXCLUDED.item_revenue, orders.item_revenue),
  total_cogs = COALESCE(EXCLUDED.total_cogs, orders.total_cogs),
  shipping_paid_by_customer = COALESCE(EXCLUDED.shipping_paid_by_customer, orders.shipping_paid_by_customer),
  shipping_method_selected = COALESCE(EXCLUDED.shipping_method_selected, orders.shipping_method_selected),
  order_total = COALESCE(EXCLUDED.order_total, orders.order_total),
  is_chewy_order = orders.is_chewy_order OR EXCLUDED.is_chewy_order,
  updated_at = now()
RETURNING `+orderColumns,
		in.ShopifyOrderID, in.ShopifyOrderNumber, in.ShipStationOrderNumber,
		in.OrderDate, in.CustomerName, in.CustomerEmail, items,
		in.ItemRevenue, in.TotalCOGS, in.ShippingPaid,
		in.ShippingMethod, in.OrderTotal, in.IsChewyOrder,
	))
	if err != nil {
		return nil, errors.Wrap(err, "upsert order")
	}
	return o, nil
}

// RecomputeSplits recounts the order's non-voided shipments and rewrites package_count and
// the split fields of every one of them in a single transaction.
func (s *Storage) RecomputeSplits(ctx context.Context, orderID uint64) (models.Splits, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Splits{}, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var totals models.OrderTotals
	err = tx.QueryRow(ctx, `
SELECT item_revenue, total_cogs, shipping_paid_by_customer
FROM orders
WHERE id = $1
FOR UPDATE
`, orderID).Scan(&totals.ItemRevenue, &totals.TotalCOGS, &totals.ShippingPaid)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Splits{}, ErrNotFound
	}
	if err != nil {
		return models.Splits{}, errors.Wrap(err, "select order totals")
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM shipments WHERE order_id = $1 AND is_voided = FALSE`, orderID,
	).Scan(&count); err != nil {
		return models.Splits{}, errors.Wrap(err, "count shipments")
	}

	splits := models.ComputeSplits(totals, count)

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET package_count = $2, updated_at = now() WHERE id = $1`, orderID, count,
	); err != nil {
		return models.Splits{}, errors.Wrap(err, "update package count")
	}

	if _, err := tx.Exec(ctx, `
UPDATE shipments SET
  is_multi_package = $2,
  split_revenue = $3,
  split_cogs = $4,
  split_shipping_paid = $5,
  updated_at = now()
WHERE order_id = $1 AND is_voided = FALSE
`, orderID, splits.IsMultiPackage, splits.Revenue, splits.COGS, splits.ShippingPaid); err != nil {
		return models.Splits{}, errors.Wrap(err, "update splits")
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Splits{}, errors.Wrap(err, "commit tx")
	}
	return splits, nil
}
