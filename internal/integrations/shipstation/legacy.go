package shipstation

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/BearBump/ShipRecon/internal/ratelimit"
)

const defaultLegacyBaseURL = "https://ssapi.shipstation.com"

type Weight struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Units  string  `json:"units"`
}

type LegacyAddress struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Residential *bool  `json:"residential"`
}

// LegacyShipment is one row of a v1 /shipments response.
type LegacyShipment struct {
	ShipmentID     int64           `json:"shipmentId"`
	OrderID        int64           `json:"orderId"`
	OrderKey       string          `json:"orderKey"`
	OrderNumber    string          `json:"orderNumber"`
	LabelID        *int64          `json:"labelId"`
	TrackingNumber string          `json:"trackingNumber"`
	CarrierCode    string          `json:"carrierCode"`
	ServiceCode    string          `json:"serviceCode"`
	ShipDate       string          `json:"shipDate"`
	Voided         bool            `json:"voided"`
	ShipmentCost   decimal.Decimal `json:"shipmentCost"`
	Weight         *Weight         `json:"weight"`
	Dimensions     *Dimensions     `json:"dimensions"`
	ShipTo         *LegacyAddress  `json:"shipTo"`
}

type LegacyOrder struct {
	OrderID         int64  `json:"orderId"`
	OrderNumber     string `json:"orderNumber"`
	OrderKey        string `json:"orderKey"`
	ExternalOrderID string `json:"externalOrderId"`
	AdvancedOptions struct {
		CustomField1 string `json:"customField1"`
	} `json:"advancedOptions"`
}

// ExternalID is the sales-channel reference ShipStation keeps on the order.
func (o LegacyOrder) ExternalID() string {
	if o.ExternalOrderID != "" {
		return o.ExternalOrderID
	}
	return o.AdvancedOptions.CustomField1
}

type LegacyClient struct {
	t *transport
}

func NewLegacy(baseURL, apiKey, apiSecret string, limiter *ratelimit.Limiter) (*LegacyClient, error) {
	if baseURL == "" {
		baseURL = defaultLegacyBaseURL
	}
	t, err := newTransport("shipstation v1", baseURL, limiter, func(r *http.Request) {
		r.SetBasicAuth(apiKey, apiSecret)
	})
	if err != nil {
		return nil, err
	}
	return &LegacyClient{t: t}, nil
}

// FetchShipments loads the shipments a SHIP_NOTIFY resource url points at.
func (c *LegacyClient) FetchShipments(ctx context.Context, resourceURL string) ([]LegacyShipment, error) {
	var body struct {
		Shipments []LegacyShipment `json:"shipments"`
	}
	if _, err := c.t.get(ctx, resourceURL, &body); err != nil {
		return nil, errors.Wrap(err, "fetch shipments")
	}
	return body.Shipments, nil
}

// GetOrder returns nil, nil for unknown orders.
func (c *LegacyClient) GetOrder(ctx context.Context, orderID int64) (*LegacyOrder, error) {
	var o LegacyOrder
	ok, err := c.t.get(ctx, "/orders/"+strconv.FormatInt(orderID, 10), &o)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", orderID)
	}
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (c *LegacyClient) ListOrdersByNumber(ctx context.Context, orderNumber string) ([]LegacyOrder, error) {
	q := url.Values{}
	q.Set("orderNumber", orderNumber)
	var body struct {
		Orders []LegacyOrder `json:"orders"`
	}
	if _, err := c.t.get(ctx, "/orders?"+q.Encode(), &body); err != nil {
		return nil, errors.Wrapf(err, "list orders %s", orderNumber)
	}
	return body.Orders, nil
}
