// Package invoices loads carrier invoice rows and links them to shipments by tracking number.
package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/BearBump/ShipRecon/internal/classify"
	"github.com/BearBump/ShipRecon/internal/models"
	"github.com/BearBump/ShipRecon/internal/storage/pgrecon"
)

const maxLineItems = 50_000

var (
	// ErrInvalidUpload marks request problems the caller can fix.
	ErrInvalidUpload  = errors.New("invalid invoice upload")
	ErrUploadNotFound = errors.New("invoice upload not found")
)

type Repository interface {
	CreateUpload(ctx context.Context, upload models.InvoiceUpload, items []models.InvoiceLineItem) (*models.InvoiceUpload, error)
	MatchToShipments(ctx context.Context, invoiceNumber string) (models.MatchResult, error)
	UpdateUploadCounts(ctx context.Context, invoiceNumber string, res models.MatchResult) error
	ListUnmatched(ctx context.Context, invoiceNumber string) ([]models.InvoiceLineItem, error)
	GetUpload(ctx context.Context, id uint64) (*models.InvoiceUpload, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// UploadRequest is one parsed invoice file.
type UploadRequest struct {
	InvoiceNumber string                   `json:"invoice_number"`
	InvoiceDate   *time.Time               `json:"invoice_date,omitempty"`
	InvoiceTotal  decimal.NullDecimal      `json:"invoice_total"`
	Items         []models.InvoiceLineItem `json:"items"`
}

type UploadResult struct {
	UploadID       uint64  `json:"upload_id"`
	InvoiceNumber  string  `json:"invoice_number"`
	UPSAccountType *string `json:"ups_account_type,omitempty"`
	LineItems      int     `json:"line_items"`
	models.MatchResult
}

func invalid(format string, args ...any) error {
	return errors.Wrap(ErrInvalidUpload, fmt.Sprintf(format, args...))
}

// Upload stores the rows and an upload record, then matches the invoice's rows to shipments.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if len(req.Items) == 0 {
		return nil, invalid("no line items")
	}
	if len(req.Items) > maxLineItems {
		return nil, invalid("too many line items (max %d)", maxLineItems)
	}

	invoiceNumber := strings.TrimSpace(req.InvoiceNumber)
	if invoiceNumber == "" {
		invoiceNumber = strings.TrimSpace(req.Items[0].InvoiceNumber)
	}
	if invoiceNumber == "" {
		return nil, invalid("invoice number is required")
	}

	items := make([]models.InvoiceLineItem, 0, len(req.Items))
	for i, it := range req.Items {
		it.TrackingNumber = strings.TrimSpace(it.TrackingNumber)
		if it.TrackingNumber == "" {
			return nil, invalid("row %d: tracking number is required", i+1)
		}
		it.InvoiceNumber = strings.TrimSpace(it.InvoiceNumber)
		if it.InvoiceNumber == "" {
			it.InvoiceNumber = invoiceNumber
		}
		if it.InvoiceNumber != invoiceNumber {
			return nil, invalid("row %d: invoice number %q differs from %q", i+1, it.InvoiceNumber, invoiceNumber)
		}
		if it.UPSAccountType == nil {
			it.UPSAccountType = classify.AccountTypeFromInvoice(invoiceNumber)
		}
		if it.InvoiceDate == nil {
			it.InvoiceDate = req.InvoiceDate
		}
		it.ShipmentID = nil
		items = append(items, it)
	}

	accountType := classify.AccountTypeFromInvoice(invoiceNumber)
	rec, err := s.repo.CreateUpload(ctx, models.InvoiceUpload{
		InvoiceNumber:  invoiceNumber,
		UPSAccountType: accountType,
		InvoiceDate:    req.InvoiceDate,
		InvoiceTotal:   req.InvoiceTotal,
	}, items)
	if err != nil {
		return nil, err
	}

	res, err := s.Match(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}

	slog.Info("invoice processed",
		"invoice_number", invoiceNumber,
		"ups_account_type", deref(accountType),
		"line_items", len(items),
		"matched", res.Matched,
		"unmatched", res.Unmatched,
	)
	return &UploadResult{
		UploadID:       rec.ID,
		InvoiceNumber:  invoiceNumber,
		UPSAccountType: accountType,
		LineItems:      len(items),
		MatchResult:    res,
	}, nil
}

// Match links unmatched rows of one invoice, or of all invoices when invoiceNumber is empty.
// Rows already linked are left alone, so repeating a match changes nothing.
func (s *Service) Match(ctx context.Context, invoiceNumber string) (models.MatchResult, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	res, err := s.repo.MatchToShipments(ctx, invoiceNumber)
	if err != nil {
		return models.MatchResult{}, err
	}
	if invoiceNumber != "" {
		if err := s.repo.UpdateUploadCounts(ctx, invoiceNumber, res); err != nil {
			return models.MatchResult{}, err
		}
	}
	return res, nil
}

func (s *Service) Unmatched(ctx context.Context, invoiceNumber string) ([]models.InvoiceLineItem, error) {
	return s.repo.ListUnmatched(ctx, strings.TrimSpace(invoiceNumber))
}

// UploadStatus returns an upload record with the counts of its latest match.
func (s *Service) UploadStatus(ctx context.Context, id uint64) (*models.InvoiceUpload, error) {
	u, err := s.repo.GetUpload(ctx, id)
	if errors.Is(err, pgrecon.ErrNotFound) {
		return nil, errors.Wrapf(ErrUploadNotFound, "upload %d", id)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
