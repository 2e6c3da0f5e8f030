package shipstation

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/BearBump/ShipRecon/internal/ratelimit"
)

const defaultCurrentBaseURL = "https://api.shipstation.com/v2"

type Money struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type PackageWeight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type PackageDimensions struct {
	Unit   string  `json:"unit"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Package struct {
	Weight     *PackageWeight     `json:"weight"`
	Dimensions *PackageDimensions `json:"dimensions"`
}

// Label is one row of a v2 label resource.
type Label struct {
	LabelID            string    `json:"label_id"`
	ShipmentID         string    `json:"shipment_id"`
	ExternalShipmentID string    `json:"external_shipment_id"`
	TrackingNumber     string    `json:"tracking_number"`
	CarrierCode        string    `json:"carrier_code"`
	ServiceCode        string    `json:"service_code"`
	ShipDate           string    `json:"ship_date"`
	Voided             bool      `json:"voided"`
	ShipmentCost       *Money    `json:"shipment_cost"`
	Packages           []Package `json:"packages"`
}

type ShipTo struct {
	Name                        string `json:"name"`
	CityLocality                string `json:"city_locality"`
	StateProvince               string `json:"state_province"`
	PostalCode                  string `json:"postal_code"`
	AddressResidentialIndicator string `json:"address_residential_indicator"`
}

// Shipment is the v2 shipment a label was bought for.
type Shipment struct {
	ShipmentID         string         `json:"shipment_id"`
	ExternalShipmentID string         `json:"external_shipment_id"`
	ShipmentNumber     string         `json:"shipment_number"`
	ShipTo             *ShipTo        `json:"ship_to"`
	Packages           []Package      `json:"packages"`
	TotalWeight        *PackageWeight `json:"total_weight"`
}

type CurrentClient struct {
	t *transport
}

func NewCurrent(baseURL, apiKey string, limiter *ratelimit.Limiter) (*CurrentClient, error) {
	if baseURL == "" {
		baseURL = defaultCurrentBaseURL
	}
	t, err := newTransport("shipstation v2", baseURL, limiter, func(r *http.Request) {
		r.Header.Set("API-Key", apiKey)
	})
	if err != nil {
		return nil, err
	}
	return &CurrentClient{t: t}, nil
}

// FetchLabels loads the labels a LABEL_CREATED_V2 resource url points at.
func (c *CurrentClient) FetchLabels(ctx context.Context, resourceURL string) ([]Label, error) {
	var body struct {
		Labels []Label `json:"labels"`
	}
	if _, err := c.t.get(ctx, resourceURL, &body); err != nil {
		return nil, errors.Wrap(err, "fetch labels")
	}
	return body.Labels, nil
}

// GetShipment returns nil, nil for unknown shipments.
func (c *CurrentClient) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	var s Shipment
	ok, err := c.t.get(ctx, "/shipments/"+url.PathEscape(shipmentID), &s)
	if err != nil {
		return nil, errors.Wrapf(err, "get shipment %s", shipmentID)
	}
	if !ok {
		return nil, nil
	}
	return &s, nil
}
