package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLineItem is one carrier-billed package row.
type InvoiceLineItem struct {
	ID             uint64     `json:"id"`
	TrackingNumber string     `json:"tracking_number"`
	InvoiceNumber  string     `json:"invoice_number"`
	InvoiceDate    *time.Time `json:"invoice_date,omitempty"`
	UPSAccountType *string    `json:"ups_account_type,omitempty"`

	PickupDate  *time.Time `json:"pickup_date,omitempty"`
	Service     *string    `json:"service,omitempty"`
	Zone        *string    `json:"zone,omitempty"`
	ReceiverZip *string    `json:"receiver_zip,omitempty"`

	CustomerWeight    *float64 `json:"customer_weight,omitempty"`
	BilledWeight      *float64 `json:"billed_weight,omitempty"`
	EnteredDimensions *string  `json:"entered_dimensions,omitempty"`
	AuditedDimensions *string  `json:"audited_dimensions,omitempty"`

	PublishedCharge       decimal.NullDecimal `json:"published_charge"`
	IncentiveCredit       decimal.NullDecimal `json:"incentive_credit"`
	OriginalBilledTotal   decimal.NullDecimal `json:"original_billed_total"`
	FuelSurcharge         decimal.NullDecimal `json:"fuel_surcharge"`
	ResidentialSurcharge  decimal.NullDecimal `json:"residential_surcharge"`
	LargePackageSurcharge decimal.NullDecimal `json:"large_package_surcharge"`
	DASExtended           decimal.NullDecimal `json:"das_extended"`
	AdditionalHandling    decimal.NullDecimal `json:"additional_handling"`
	AdjustmentAmount      decimal.NullDecimal `json:"adjustment_amount"`
	FinalBilledTotal      decimal.NullDecimal `json:"final_billed_total"`

	ReceiverName    *string `json:"receiver_name,omitempty"`
	ReceiverCompany *string `json:"receiver_company,omitempty"`
	ReceiverCity    *string `json:"receiver_city,omitempty"`
	ReceiverState   *string `json:"receiver_state,omitempty"`

	ShipmentID *uint64   `json:"shipment_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InvoiceUpload is the audit record of one invoice upload.
type InvoiceUpload struct {
	ID             uint64              `json:"id"`
	InvoiceNumber  string              `json:"invoice_number"`
	UPSAccountType *string             `json:"ups_account_type,omitempty"`
	InvoiceDate    *time.Time          `json:"invoice_date,omitempty"`
	InvoiceTotal   decimal.NullDecimal `json:"invoice_total"`
	LineItemCount  int                 `json:"line_item_count"`
	MatchedCount   int                 `json:"matched_count"`
	UnmatchedCount int                 `json:"unmatched_count"`
	Reconciled     bool                `json:"reconciled"`
	CreatedAt      time.Time           `json:"created_at"`
}

// MatchResult counts line items of the matched scope after a matching run.
// NewlyMatched is how many rows this run linked.
type MatchResult struct {
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`
	NewlyMatched int `json:"newly_matched"`
}
