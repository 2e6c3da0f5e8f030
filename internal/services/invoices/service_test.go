package invoices

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BearBump/ShipRecon/internal/classify"
	"github.com/BearBump/ShipRecon/internal/models"
	invoicesmocks "github.com/BearBump/ShipRecon/internal/services/invoices/mocks"
	"github.com/BearBump/ShipRecon/internal/storage/pgrecon"
)

type ServiceSuite struct {
	suite.Suite

	repo *invoicesmocks.MockRepository
	svc  *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &invoicesmocks.MockRepository{}
	s.svc = New(s.repo)
}

func (s *ServiceSuite) TestUpload_ValidateErrors() {
	ctx := context.Background()

	_, err := s.svc.Upload(ctx, UploadRequest{InvoiceNumber: "0000R1833C066"})
	s.Require().ErrorIs(err, ErrInvalidUpload)

	_, err = s.svc.Upload(ctx, UploadRequest{Items: []models.InvoiceLineItem{{TrackingNumber: "1ZA"}}})
	s.Require().ErrorIs(err, ErrInvalidUpload)

	_, err = s.svc.Upload(ctx, UploadRequest{
		InvoiceNumber: "0000R1833C066",
		Items:         []models.InvoiceLineItem{{TrackingNumber: "  "}},
	})
	s.Require().ErrorIs(err, ErrInvalidUpload)

	_, err = s.svc.Upload(ctx, UploadRequest{
		InvoiceNumber: "0000R1833C066",
		Items: []models.InvoiceLineItem{
			{TrackingNumber: "1ZA"},
			{TrackingNumber: "1ZB", InvoiceNumber: "0000J9299A001"},
		},
	})
	s.Require().ErrorIs(err, ErrInvalidUpload)

	s.repo.AssertNotCalled(s.T(), "CreateUpload", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUpload_FillsRowsAndMatches() {
	ctx := context.Background()
	inv := "0000R1833C066"

	s.repo.On("CreateUpload", mock.Anything,
		mock.MatchedBy(func(u models.InvoiceUpload) bool {
			return u.InvoiceNumber == inv && u.UPSAccountType != nil && *u.UPSAccountType == classify.AccountNDA
		}),
		mock.MatchedBy(func(items []models.InvoiceLineItem) bool {
			if len(items) != 2 {
				return false
			}
			for _, it := range items {
				if it.InvoiceNumber != inv || it.UPSAccountType == nil || *it.UPSAccountType != classify.AccountNDA {
					return false
				}
			}
			return items[0].TrackingNumber == "1ZR1833C0001"
		}),
	).Return(&models.InvoiceUpload{ID: 42, InvoiceNumber: inv}, nil).Once()

	res := models.MatchResult{Matched: 1, Unmatched: 1, NewlyMatched: 1}
	s.repo.On("MatchToShipments", mock.Anything, inv).Return(res, nil).Once()
	s.repo.On("UpdateUploadCounts", mock.Anything, inv, res).Return(nil).Once()

	out, err := s.svc.Upload(ctx, UploadRequest{
		Items: []models.InvoiceLineItem{
			{TrackingNumber: " 1ZR1833C0001 ", InvoiceNumber: inv},
			{TrackingNumber: "1ZR1833C0002"},
		},
	})
	s.Require().NoError(err)
	s.Require().Equal(uint64(42), out.UploadID)
	s.Require().Equal(inv, out.InvoiceNumber)
	s.Require().Equal(2, out.LineItems)
	s.Require().Equal(1, out.Matched)
	s.Require().Equal(1, out.Unmatched)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestUpload_StoreError() {
	s.repo.On("CreateUpload", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()

	_, err := s.svc.Upload(context.Background(), UploadRequest{
		InvoiceNumber: "X1",
		Items:         []models.InvoiceLineItem{{TrackingNumber: "1ZA"}},
	})
	s.Require().Error(err)
	s.Require().NotErrorIs(err, ErrInvalidUpload)
	s.repo.AssertNotCalled(s.T(), "MatchToShipments", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestMatch_AllInvoicesSkipsUploadCounts() {
	res := models.MatchResult{Matched: 3}
	s.repo.On("MatchToShipments", mock.Anything, "").Return(res, nil).Once()

	out, err := s.svc.Match(context.Background(), "  ")
	s.Require().NoError(err)
	s.Require().Equal(res, out)
	s.repo.AssertNotCalled(s.T(), "UpdateUploadCounts", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUploadStatus() {
	up := &models.InvoiceUpload{ID: 4, InvoiceNumber: "0000J9299A101", MatchedCount: 7, UnmatchedCount: 3, Reconciled: true}
	s.repo.On("GetUpload", mock.Anything, uint64(4)).Return(up, nil).Once()
	s.repo.On("GetUpload", mock.Anything, uint64(5)).Return(nil, pgrecon.ErrNotFound).Once()

	out, err := s.svc.UploadStatus(context.Background(), 4)
	s.Require().NoError(err)
	s.Require().Equal(up, out)

	_, err = s.svc.UploadStatus(context.Background(), 5)
	s.Require().ErrorIs(err, ErrUploadNotFound)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// memRepo links rows whose tracking number is a known shipment.
type memRepo struct {
	shipments map[string]uint64
	items     []models.InvoiceLineItem
	uploads   []models.InvoiceUpload
}

func (m *memRepo) CreateUpload(_ context.Context, u models.InvoiceUpload, items []models.InvoiceLineItem) (*models.InvoiceUpload, error) {
	u.ID = uint64(len(m.uploads) + 1)
	u.LineItemCount = len(items)
	m.uploads = append(m.uploads, u)
	m.items = append(m.items, items...)
	return &u, nil
}

func (m *memRepo) MatchToShipments(_ context.Context, inv string) (models.MatchResult, error) {
	var res models.MatchResult
	for i := range m.items {
		it := &m.items[i]
		if inv != "" && it.InvoiceNumber != inv {
			continue
		}
		if it.ShipmentID == nil {
			if id, ok := m.shipments[it.TrackingNumber]; ok {
				it.ShipmentID = &id
				res.NewlyMatched++
			}
		}
		if it.ShipmentID != nil {
			res.Matched++
		} else {
			res.Unmatched++
		}
	}
	return res, nil
}

func (m *memRepo) UpdateUploadCounts(_ context.Context, inv string, res models.MatchResult) error {
	for i := range m.uploads {
		if m.uploads[i].InvoiceNumber == inv {
			m.uploads[i].MatchedCount = res.Matched
			m.uploads[i].UnmatchedCount = res.Unmatched
			m.uploads[i].Reconciled = true
		}
	}
	return nil
}

func (m *memRepo) ListUnmatched(_ context.Context, inv string) ([]models.InvoiceLineItem, error) {
	var out []models.InvoiceLineItem
	for _, it := range m.items {
		if it.ShipmentID == nil && (inv == "" || it.InvoiceNumber == inv) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memRepo) GetUpload(_ context.Context, id uint64) (*models.InvoiceUpload, error) {
	if id == 0 || id > uint64(len(m.uploads)) {
		return nil, pgrecon.ErrNotFound
	}
	u := m.uploads[id-1]
	return &u, nil
}

func TestUpload_TenRowsSevenKnown(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{shipments: map[string]uint64{}}
	svc := New(repo)

	var rows []models.InvoiceLineItem
	for i := 0; i < 10; i++ {
		tn := fmt.Sprintf("1ZJ9299A%08d", i)
		if i < 7 {
			repo.shipments[tn] = uint64(100 + i)
		}
		rows = append(rows, models.InvoiceLineItem{TrackingNumber: tn})
	}

	out, err := svc.Upload(ctx, UploadRequest{InvoiceNumber: "0000J9299A101", Items: rows})
	require.NoError(t, err)
	require.Equal(t, 7, out.Matched)
	require.Equal(t, 3, out.Unmatched)
	require.Equal(t, 7, out.NewlyMatched)
	require.NotNil(t, out.UPSAccountType)
	require.Equal(t, classify.AccountGround, *out.UPSAccountType)

	require.Len(t, repo.uploads, 1)
	require.Equal(t, 10, repo.uploads[0].LineItemCount)
	require.Equal(t, 7, repo.uploads[0].MatchedCount)
	require.True(t, repo.uploads[0].Reconciled)

	again, err := svc.Match(ctx, "0000J9299A101")
	require.NoError(t, err)
	require.Equal(t, 7, again.Matched)
	require.Equal(t, 3, again.Unmatched)
	require.Zero(t, again.NewlyMatched)

	left, err := svc.Unmatched(ctx, "0000J9299A101")
	require.NoError(t, err)
	require.Len(t, left, 3)

	status, err := svc.UploadStatus(ctx, out.UploadID)
	require.NoError(t, err)
	require.Equal(t, 7, status.MatchedCount)
	require.Equal(t, 3, status.UnmatchedCount)
}
