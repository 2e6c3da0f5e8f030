package pgrecon

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/models"
)

const lineItemColumns = `
  id, tracking_number, invoice_number, invoice_date, ups_account_type,
  pickup_date, service, zone, receiver_zip,
  customer_weight, billed_weight, entered_dimensions, audited_dimensions,
  published_charge, incentive_credit, original_billed_total,
  fuel_surcharge, residential_surcharge, large_package_surcharge,
  das_extended, additional_handling, adjustment_amount, final_billed_total,
  receiver_name, receiver_company, receiver_city, receiver_state,
  shipment_id, created_at`

const uploadColumns = `
  id, invoice_number, ups_account_type, invoice_date, invoice_total,
  line_item_count, matched_count, unmatched_count, reconciled, created_at`

func scanUpload(row pgx.Row) (*models.InvoiceUpload, error) {
	var u models.InvoiceUpload
	if err := row.Scan(
		&u.ID, &u.InvoiceNumber, &u.UPSAccountType, &u.InvoiceDate, &u.InvoiceTotal,
		&u.LineItemCount, &u.MatchedCount, &u.UnmatchedCount, &u.Reconciled, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUpload stores the upload record and its line items atomically.
func (s *Storage) CreateUpload(ctx context.Context, upload models.InvoiceUpload, items []models.InvoiceLineItem) (*models.InvoiceUpload, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanUpload(tx.QueryRow(ctx, `
INSERT INTO invoice_uploads (invoice_number, ups_account_type, invoice_date, invoice_total, line_item_count)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+uploadColumns,
		upload.InvoiceNumber, upload.UPSAccountType, upload.InvoiceDate, upload.InvoiceTotal, len(items),
	))
	if err != nil {
		return nil, errors.Wrap(err, "insert upload")
	}

	for _, it := range items {
		_, err := tx.Exec(ctx, `
INSERT INTO invoice_line_items (
  tracking_number, invoice_number, invoice_date, ups_account_type,
  pickup_date, service, zone, receiver_zip,
  customer_weight, billed_weight, entered_dimensions, audited_dimensions,
  published_charge, incentive_credit, original_billed_total,
  fuel_surcharge, residential_surcharge, large_package_surcharge,
  das_extended, additional_handling, adjustment_amount, final_billed_total,
  receiver_name, receiver_company, receiver_city, receiver_state
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
`,
			it.TrackingNumber, it.InvoiceNumber, it.InvoiceDate, it.UPSAccountType,
			it.PickupDate, it.Service, it.Zone, it.ReceiverZip,
			it.CustomerWeight, it.BilledWeight, it.EnteredDimensions, it.AuditedDimensions,
			it.PublishedCharge, it.IncentiveCredit, it.OriginalBilledTotal,
			it.FuelSurcharge, it.ResidentialSurcharge, it.LargePackageSurcharge,
			it.DASExtended, it.AdditionalHandling, it.AdjustmentAmount, it.FinalBilledTotal,
			it.ReceiverName, it.ReceiverCompany, it.ReceiverCity, it.ReceiverState,
		)
		if err != nil {
			return nil, errors.Wrap(err, "insert line item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return rec, nil
}

// MatchToShipments links still-unmatched line items to shipments by tracking number.
// An empty invoiceNumber matches across all invoices. Linked rows are never touched again.
func (s *Storage) MatchToShipments(ctx context.Context, invoiceNumber string) (models.MatchResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.MatchResult{}, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE invoice_line_items ili
SET shipment_id = s.id
FROM shipments s
WHERE ili.tracking_number = s.tracking_number
  AND ili.shipment_id IS NULL
  AND ($1::text = '' OR ili.invoice_number = $1)
`, invoiceNumber)
	if err != nil {
		return models.MatchResult{}, errors.Wrap(err, "match line items")
	}

	res := models.MatchResult{NewlyMatched: int(tag.RowsAffected())}
	err = tx.QueryRow(ctx, `
SELECT
  COUNT(*) FILTER (WHERE shipment_id IS NOT NULL),
  COUNT(*) FILTER (WHERE shipment_id IS NULL)
FROM invoice_line_items
WHERE ($1::text = '' OR invoice_number = $1)
`, invoiceNumber).Scan(&res.Matched, &res.Unmatched)
	if err != nil {
		return models.MatchResult{}, errors.Wrap(err, "count matches")
	}

	if err := tx.Commit(ctx); err != nil {
		return models.MatchResult{}, errors.Wrap(err, "commit tx")
	}
	return res, nil
}

// UpdateUploadCounts records the latest match counts on every upload of the invoice.
func (s *Storage) UpdateUploadCounts(ctx context.Context, invoiceNumber string, res models.MatchResult) error {
	_, err := s.db.Exec(ctx, `
UPDATE invoice_uploads
SET matched_count = $2, unmatched_count = $3, reconciled = TRUE
WHERE invoice_number = $1
`, invoiceNumber, res.Matched, res.Unmatched)
	return errors.Wrap(err, "update upload counts")
}

func (s *Storage) GetUpload(ctx context.Context, id uint64) (*models.InvoiceUpload, error) {
	u, err := scanUpload(s.db.QueryRow(ctx, `SELECT `+uploadColumns+` FROM invoice_uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select upload")
	}
	return u, nil
}

// ListUnmatched returns line items with no shipment link, optionally for one invoice.
func (s *Storage) ListUnmatched(ctx context.Context, invoiceNumber string) ([]models.InvoiceLineItem, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+lineItemColumns+`
FROM invoice_line_items
WHERE shipment_id IS NULL
  AND ($1::text = '' OR invoice_number = $1)
ORDER BY pickup_date, tracking_number
`, invoiceNumber)
	if err != nil {
		return nil, errors.Wrap(err, "select unmatched")
	}
	defer rows.Close()

	out := []models.InvoiceLineItem{}
	for rows.Next() {
		var it models.InvoiceLineItem
		if err := rows.Scan(
			&it.ID, &it.TrackingNumber, &it.InvoiceNumber, &it.InvoiceDate, &it.UPSAccountType,
			&it.PickupDate, &it.Service, &it.Zone, &it.ReceiverZip,
			&it.CustomerWeight, &it.BilledWeight, &it.EnteredDimensions, &it.AuditedDimensions,
			&it.PublishedCharge, &it.IncentiveCredit, &it.OriginalBilledTotal,
			&it.FuelSurcharge, &it.ResidentialSurcharge, &it.LargePackageSurcharge,
			&it.DASExtended, &it.AdditionalHandling, &it.AdjustmentAmount, &it.FinalBilledTotal,
			&it.ReceiverName, &it.ReceiverCompany, &it.ReceiverCity, &it.ReceiverState,
			&it.ShipmentID, &it.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan line item")
		}
		out = append(out, it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
