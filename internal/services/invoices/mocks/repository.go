package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/ShipRecon/internal/models"
)

// MockRepository is a testify mock of invoices.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUpload(ctx context.Context, upload models.InvoiceUpload, items []models.InvoiceLineItem) (*models.InvoiceUpload, error) {
	args := m.Called(ctx, upload, items)
	var out *models.InvoiceUpload
	if v := args.Get(0); v != nil {
		out = v.(*models.InvoiceUpload)
	}
	return out, args.Error(1)
}

func (m *MockRepository) MatchToShipments(ctx context.Context, invoiceNumber string) (models.MatchResult, error) {
	args := m.Called(ctx, invoiceNumber)
	return args.Get(0).(models.MatchResult), args.Error(1)
}

func (m *MockRepository) UpdateUploadCounts(ctx context.Context, invoiceNumber string, res models.MatchResult) error {
	args := m.Called(ctx, invoiceNumber, res)
	return args.Error(0)
}

func (m *MockRepository) ListUnmatched(ctx context.Context, invoiceNumber string) ([]models.InvoiceLineItem, error) {
	args := m.Called(ctx, invoiceNumber)
	var out []models.InvoiceLineItem
	if v := args.Get(0); v != nil {
		out = v.([]models.InvoiceLineItem)
	}
	return out, args.Error(1)
}

func (m *MockRepository) GetUpload(ctx context.Context, id uint64) (*models.InvoiceUpload, error) {
	args := m.Called(ctx, id)
	var out *models.InvoiceUpload
	if v := args.Get(0); v != nil {
		out = v.(*models.InvoiceUpload)
	}
	return out, args.Error(1)
}
