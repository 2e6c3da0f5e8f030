package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID             uint64 `json:"id"`
	ShopifyOrderID int64  `json:"shopify_order_id"`

	ShopifyOrderNumber     *string         `json:"shopify_order_number,omitempty"`
	ShipStationOrderNumber *string         `json:"shipstation_order_number,omitempty"`
	OrderDate              *time.Time      `json:"order_date,omitempty"`
	CustomerName           *string         `json:"customer_name,omitempty"`
	CustomerEmail          *string         `json:"customer_email,omitempty"`
	ItemsJSON              json.RawMessage `json:"items_json,omitempty"`

	ItemRevenue    decimal.NullDecimal `json:"item_revenue"`
	TotalCOGS      decimal.NullDecimal `json:"total_cogs"`
	ShippingPaid   decimal.NullDecimal `json:"shipping_paid_by_customer"`
	ShippingMethod *string             `json:"shipping_method_selected,omitempty"`
	OrderTotal     decimal.NullDecimal `json:"order_total"`

	PackageCount int  `json:"package_count"`
	IsChewyOrder bool `json:"is_chewy_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is one sales-channel line with its resolved unit cost.
type LineItem struct {
	Name      string              `json:"name"`
	SKU       string              `json:"sku"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.Decimal     `json:"price"`
	COGS      decimal.NullDecimal `json:"cogs"`
	VariantID int64               `json:"variant_id,omitempty"`
	ProductID int64               `json:"product_id,omitempty"`
}
