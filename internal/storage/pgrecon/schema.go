package pgrecon

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  shopify_order_id BIGINT NOT NULL UNIQUE,
  shopify_order_number TEXT NULL,
  shipstation_order_number TEXT NULL,
  order_date TIMESTAMPTZ NULL,
  customer_name TEXT NULL,
  customer_email TEXT NULL,
  items_json JSONB NULL,
  item_revenue NUMERIC(12,2) NULL,
  total_cogs NUMERIC(12,2) NULL,
  shipping_paid_by_customer NUMERIC(12,2) NULL,
  shipping_method_selected TEXT NULL,
  order_total NUMERIC(12,2) NULL,
  package_count INT NOT NULL DEFAULT 1,
  is_chewy_order BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_shipstation_order_number ON orders(shipstation_order_number)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NULL REFERENCES orders(id),
  shipstation_shipment_id TEXT NOT NULL DEFAULT '',
  shipstation_label_id TEXT NULL,
  tracking_number TEXT NOT NULL UNIQUE,
  carrier_code TEXT NOT NULL DEFAULT '',
  service_code TEXT NOT NULL DEFAULT '',
  ups_account_type TEXT NULL,
  ship_date TIMESTAMPTZ NULL,
  dimensions_length DOUBLE PRECISION NULL,
  dimensions_width DOUBLE PRECISION NULL,
  dimensions_height DOUBLE PRECISION NULL,
  weight_lbs DOUBLE PRECISION NULL,
  label_cost NUMERIC(10,2) NOT NULL DEFAULT 0,
  promised_delivery_date TIMESTAMPTZ NULL,
  actual_delivery_date TIMESTAMPTZ NULL,
  delivery_status TEXT NOT NULL DEFAULT 'pending',
  is_late BOOLEAN NULL,
  is_voided BOOLEAN NOT NULL DEFAULT FALSE,
  is_multi_package BOOLEAN NOT NULL DEFAULT FALSE,
  split_revenue NUMERIC(12,4) NULL,
  split_cogs NUMERIC(12,4) NULL,
  split_shipping_paid NUMERIC(12,4) NULL,
  ship_to_name TEXT NULL,
  ship_to_city TEXT NULL,
  ship_to_state TEXT NULL,
  ship_to_zip TEXT NULL,
  is_residential BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_order_id ON shipments(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_poll ON shipments(ship_date) WHERE is_voided = FALSE AND delivery_status NOT IN ('delivered', 'returned')`,
		`
CREATE TABLE IF NOT EXISTS invoice_uploads (
  id BIGSERIAL PRIMARY KEY,
  invoice_number TEXT NOT NULL,
  ups_account_type TEXT NULL,
  invoice_date TIMESTAMPTZ NULL,
  invoice_total NUMERIC(12,2) NULL,
  line_item_count INT NOT NULL DEFAULT 0,
  matched_count INT NOT NULL DEFAULT 0,
  unmatched_count INT NOT NULL DEFAULT 0,
  reconciled BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS invoice_line_items (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  invoice_number TEXT NOT NULL,
  invoice_date TIMESTAMPTZ NULL,
  ups_account_type TEXT NULL,
  pickup_date TIMESTAMPTZ NULL,
  service TEXT NULL,
  zone TEXT NULL,
  receiver_zip TEXT NULL,
  customer_weight DOUBLE PRECISION NULL,
  billed_weight DOUBLE PRECISION NULL,
  entered_dimensions TEXT NULL,
  audited_dimensions TEXT NULL,
  published_charge NUMERIC(12,2) NULL,
  incentive_credit NUMERIC(12,2) NULL,
  original_billed_total NUMERIC(12,2) NULL,
  fuel_surcharge NUMERIC(12,2) NULL,
  residential_surcharge NUMERIC(12,2) NULL,
  large_package_surcharge NUMERIC(12,2) NULL,
  das_extended NUMERIC(12,2) NULL,
  additional_handling NUMERIC(12,2) NULL,
  adjustment_amount NUMERIC(12,2) NULL,
  final_billed_total NUMERIC(12,2) NULL,
  receiver_name TEXT NULL,
  receiver_company TEXT NULL,
  receiver_city TEXT NULL,
  receiver_state TEXT NULL,
  shipment_id BIGINT NULL REFERENCES shipments(id),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_line_items_tracking ON invoice_line_items(tracking_number)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_line_items_unmatched ON invoice_line_items(invoice_number) WHERE shipment_id IS NULL`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
