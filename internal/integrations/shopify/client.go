// Package shopify reads orders, variants and inventory costs from the Shopify Admin REST API.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/BearBump/ShipRecon/internal/ratelimit"
)

const defaultAPIVersion = "2024-01"

type Options struct {
	// StoreURL is either a bare shop domain (shop.myshopify.com) or a full base url.
	StoreURL    string
	AccessToken string
	APIVersion  string
	Limiter     *ratelimit.Limiter
}

type Client struct {
	baseURL string
	token   string
	limiter *ratelimit.Limiter
	httpc   *http.Client
}

func New(opts Options) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = defaultAPIVersion
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New("shopify", ratelimit.DefaultShopifyInterval)
	}
	store := strings.TrimRight(opts.StoreURL, "/")
	if !strings.HasPrefix(store, "http://") && !strings.HasPrefix(store, "https://") {
		store = "https://" + store
	}
	return &Client{
		baseURL: store + "/admin/api/" + opts.APIVersion,
		token:   opts.AccessToken,
		limiter: opts.Limiter,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Address struct {
	Name string `json:"name"`
}

type LineItem struct {
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	VariantID *int64 `json:"variant_id"`
	ProductID *int64 `json:"product_id"`
}

type ShippingLine struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

type Order struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	CreatedAt       *time.Time     `json:"created_at"`
	Email           string         `json:"email"`
	TotalPrice      string         `json:"total_price"`
	Customer        *Customer      `json:"customer"`
	ShippingAddress *Address       `json:"shipping_address"`
	LineItems       []LineItem     `json:"line_items"`
	ShippingLines   []ShippingLine `json:"shipping_lines"`
}

// do issues a rate-limited GET. A nil error with ok=false means 404.
func (c *Client) do(ctx context.Context, rawURL string, out any) (hdr http.Header, ok bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "new request")
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, false, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.Header, false, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, false, fmt.Errorf("shopify http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, false, errors.Wrap(err, "decode")
	}
	return resp.Header, true, nil
}

// GetOrder returns nil, nil when the order does not exist.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var body struct {
		Order *Order `json:"order"`
	}
	_, ok, err := c.do(ctx, fmt.Sprintf("%s/orders/%d.json", c.baseURL, orderID), &body)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", orderID)
	}
	if !ok {
		return nil, nil
	}
	return body.Order, nil
}

// GetVariantInventoryItemID returns 0 when the variant is gone or has no inventory item.
func (c *Client) GetVariantInventoryItemID(ctx context.Context, variantID int64) (int64, error) {
	var body struct {
		Variant struct {
			InventoryItemID int64 `json:"inventory_item_id"`
		} `json:"variant"`
	}
	_, ok, err := c.do(ctx, fmt.Sprintf("%s/variants/%d.json", c.baseURL, variantID), &body)
	if err != nil {
		return 0, errors.Wrapf(err, "get variant %d", variantID)
	}
	if !ok {
		return 0, nil
	}
	return body.Variant.InventoryItemID, nil
}

// GetInventoryItemCost returns an invalid NullDecimal when no unit cost is recorded.
func (c *Client) GetInventoryItemCost(ctx context.Context, inventoryItemID int64) (decimal.NullDecimal, error) {
	var body struct {
		InventoryItem struct {
			Cost *string `json:"cost"`
		} `json:"inventory_item"`
	}
	_, ok, err := c.do(ctx, fmt.Sprintf("%s/inventory_items/%d.json", c.baseURL, inventoryItemID), &body)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrapf(err, "get inventory item %d", inventoryItemID)
	}
	if !ok || body.InventoryItem.Cost == nil || *body.InventoryItem.Cost == "" {
		return decimal.NullDecimal{}, nil
	}
	cost, err := decimal.NewFromString(*body.InventoryItem.Cost)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrap(err, "parse cost")
	}
	return decimal.NewNullDecimal(cost), nil
}

var nextLinkRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextPageURL(h http.Header) string {
	for _, link := range h.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			if m := nextLinkRe.FindStringSubmatch(part); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

type ListParams struct {
	Status       string
	CreatedAtMin *time.Time
	Limit        int
}

// ListOrders walks every page of the order listing, handing each page to fn.
// Stops early when fn returns an error.
func (c *Client) ListOrders(ctx context.Context, p ListParams, fn func([]Order) error) error {
	u, err := url.Parse(c.baseURL + "/orders.json")
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	q := u.Query()
	if p.Status == "" {
		p.Status = "any"
	}
	q.Set("status", p.Status)
	if p.Limit <= 0 || p.Limit > 250 {
		p.Limit = 250
	}
	q.Set("limit", strconv.Itoa(p.Limit))
	if p.CreatedAtMin != nil {
		q.Set("created_at_min", p.CreatedAtMin.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	next := u.String()
	for next != "" {
		var body struct {
			Orders []Order `json:"orders"`
		}
		hdr, ok, err := c.do(ctx, next, &body)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		if !ok {
			return nil
		}
		if err := fn(body.Orders); err != nil {
			return err
		}
		next = nextPageURL(hdr)
	}
	return nil
}
