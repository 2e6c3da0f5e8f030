package pgrecon

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/models"
)

const shipmentColumns = `
  id, order_id, shipstation_shipment_id, shipstation_label_id,
  tracking_number, carrier_code, service_code, ups_account_type,
  ship_date, dimensions_length, dimensions_width, dimensions_height, weight_lbs,
  label_cost, promised_delivery_date, actual_delivery_date, delivery_status,
  is_late, is_voided, is_multi_package,
  split_revenue, split_cogs, split_shipping_paid,
  ship_to_name, ship_to_city, ship_to_state, ship_to_zip, is_residential,
  created_at, updated_at`

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var s models.Shipment
	err := row.Scan(
		&s.ID, &s.OrderID, &s.ShipStationShipmentID, &s.ShipStationLabelID,
		&s.TrackingNumber, &s.CarrierCode, &s.ServiceCode, &s.UPSAccountType,
		&s.ShipDate, &s.DimensionsLength, &s.DimensionsWidth, &s.DimensionsHeight, &s.WeightLbs,
		&s.LabelCost, &s.PromisedDeliveryDate, &s.ActualDeliveryDate, &s.DeliveryStatus,
		&s.IsLate, &s.IsVoided, &s.IsMultiPackage,
		&s.SplitRevenue, &s.SplitCOGS, &s.SplitShippingPaid,
		&s.ShipToName, &s.ShipToCity, &s.ShipToState, &s.ShipToZip, &s.IsResidential,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Storage) FindShipment(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE tracking_number = $1`, trackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

// UpsertShipment inserts by tracking number. On conflict only the order link, carrier,
// service, label cost and promised date are refreshed; destination and weight stay.
func (s *Storage) UpsertShipment(ctx context.Context, in models.ShipmentUpsert) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `
INSERT INTO shipments (
  order_id, shipstation_shipment_id, shipstation_label_id,
  tracking_number, carrier_code, service_code, ups_account_type,
  ship_date, dimensions_length, dimensions_width, dimensions_height, weight_lbs,
  label_cost, promised_delivery_date,
  ship_to_name, ship_to_city, ship_to_state, ship_to_zip, is_residential
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (tracking_number) DO UPDATE SET
  order_id = COALESCE(EXCLUDED.order_id, shipments.order_id),
  carrier_code = COALESCE(NULLIF(EXCLUDED.carrier_code, ''), shipments.carrier_code),
  service_code = COALESCE(NULLIF(EXCLUDED.service_code, ''), shipments.service_code),
  label_cost = COALESCE(EXCLUDED.label_cost, shipments.label_cost),
  promised_delivery_date = COALESCE(EXCLUDED.promised_delivery_date, shipments.promised_delivery_date),
  updated_at = now()
RETURNING `+shipmentColumns,
		in.OrderID, in.ShipStationShipmentID, in.ShipStationLabelID,
		in.TrackingNumber, in.CarrierCode, in.ServiceCode, in.UPSAccountType,
		in.ShipDate, in.DimensionsLength, in.DimensionsWidth, in.DimensionsHeight, in.WeightLbs,
		in.LabelCost, in.PromisedDeliveryDate,
		in.ShipToName, in.ShipToCity, in.ShipToState, in.ShipToZip, in.IsResidential,
	))
	if err != nil {
		return nil, errors.Wrap(err, "upsert shipment")
	}
	return sh, nil
}

// MarkVoided flags the shipment and clears its splits. Returns ErrNotFound for unknown numbers.
func (s *Storage) MarkVoided(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `
UPDATE shipments SET
  is_voided = TRUE,
  is_multi_package = FALSE,
  split_revenue = NULL,
  split_cogs = NULL,
  split_shipping_paid = NULL,
  updated_at = now()
WHERE tracking_number = $1
RETURNING `+shipmentColumns, trackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "void shipment")
	}
	return sh, nil
}

// UpdateTracking writes carrier data. Nil status/dates keep stored values; is_late is always set.
// Reports whether a shipment row was updated.
func (s *Storage) UpdateTracking(ctx context.Context, u models.TrackingUpdate) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE shipments SET
  delivery_status = COALESCE($2, delivery_status),
  actual_delivery_date = COALESCE($3, actual_delivery_date),
  promised_delivery_date = COALESCE($4, promised_delivery_date),
  is_late = $5,
  updated_at = now()
WHERE tracking_number = $1
`, u.TrackingNumber, u.DeliveryStatus, u.ActualDeliveryDate, u.PromisedDeliveryDate, u.IsLate)
	if err != nil {
		return false, errors.Wrap(err, "update tracking")
	}
	return tag.RowsAffected() > 0, nil
}

// ListPollCandidates returns carrier-trackable, non-terminal, non-voided shipments shipped after since.
func (s *Storage) ListPollCandidates(ctx context.Context, since time.Time) ([]models.PollCandidate, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, tracking_number, promised_delivery_date, ship_date
FROM shipments
WHERE upper(tracking_number) LIKE '1Z%'
  AND delivery_status NOT IN ('delivered', 'returned')
  AND is_voided = FALSE
  AND ship_date > $1
ORDER BY ship_date ASC
`, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select poll candidates")
	}
	defer rows.Close()

	var out []models.PollCandidate
	for rows.Next() {
		var c models.PollCandidate
		if err := rows.Scan(&c.ID, &c.TrackingNumber, &c.PromisedDeliveryDate, &c.ShipDate); err != nil {
			return nil, errors.Wrap(err, "scan poll candidate")
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ListShipmentsByOrder(ctx context.Context, orderID uint64) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select order shipments")
	}
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
