package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/ShipRecon/internal/models"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/services/invoices"
	invoicesmocks "github.com/BearBump/ShipRecon/internal/services/invoices/mocks"
	"github.com/BearBump/ShipRecon/internal/services/poller"
	"github.com/BearBump/ShipRecon/internal/services/reconcile"
	"github.com/BearBump/ShipRecon/internal/services/webhooks"
	"github.com/BearBump/ShipRecon/internal/storage/pgrecon"
)

type blockingProcessor struct {
	release chan struct{}
	done    atomic.Int32
}

func (p *blockingProcessor) ProcessNotification(ctx context.Context, n normalizer.Notification) (reconcile.BatchResult, error) {
	<-p.release
	p.done.Add(1)
	return reconcile.BatchResult{Events: 1, Stored: 1}, nil
}

type fakePoller struct {
	res poller.Result
	err error
}

func (p fakePoller) PollOnce(ctx context.Context) (poller.Result, error) { return p.res, p.err }

type fakeOrders struct {
	shipments []*models.Shipment
	asked     uint64
}

func (o *fakeOrders) OrderShipments(ctx context.Context, orderID uint64) ([]*models.Shipment, error) {
	o.asked = orderID
	return o.shipments, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestWebhook_AcksBeforeReconciliation(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	local := webhooks.NewLocal(proc)
	h := NewRouter(Deps{Webhooks: webhooks.New(local)})

	rec, out := do(t, h, http.MethodPost, "/webhooks/shipstation",
		`{"resource_type":"SHIP_NOTIFY","resource_url":"https://ssapi.shipstation.com/shipments?batchId=9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["received"])
	require.NotEmpty(t, out["delivery_id"])
	require.Zero(t, proc.done.Load())

	close(proc.release)
	local.Wait()
	require.Equal(t, int32(1), proc.done.Load())
}

func TestWebhook_BadBody(t *testing.T) {
	h := NewRouter(Deps{Webhooks: webhooks.New(webhooks.NewLocal(&blockingProcessor{}))})
	rec, out := do(t, h, http.MethodPost, "/webhooks/shipstation", `{"resource_type":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, out["error"], "decode webhook body")
}

func TestInvoices_UploadMatchUnmatched(t *testing.T) {
	repo := &invoicesmocks.MockRepository{}
	h := NewRouter(Deps{Invoices: invoices.New(repo)})

	res := models.MatchResult{Matched: 1, Unmatched: 1, NewlyMatched: 1}
	repo.On("CreateUpload", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.InvoiceUpload{ID: 5}, nil).Once()
	repo.On("MatchToShipments", mock.Anything, "0000R1833C066").Return(res, nil).Twice()
	repo.On("UpdateUploadCounts", mock.Anything, "0000R1833C066", res).Return(nil).Twice()
	repo.On("ListUnmatched", mock.Anything, "0000R1833C066").
		Return([]models.InvoiceLineItem{{ID: 2, TrackingNumber: "1ZR1833C0002"}}, nil).Once()
	repo.On("ListUnmatched", mock.Anything, "").Return(nil, nil).Once()

	rec, out := do(t, h, http.MethodPost, "/invoices/upload", `{
		"invoice_number": "0000R1833C066",
		"items": [{"tracking_number": "1ZR1833C0001"}, {"tracking_number": "1ZR1833C0002"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, out["success"])
	require.Equal(t, float64(5), out["upload_id"])
	require.Equal(t, "nda", out["ups_account_type"])
	require.Equal(t, float64(2), out["line_items"])
	require.Equal(t, float64(1), out["matched"])

	rec, out = do(t, h, http.MethodPost, "/invoices/0000R1833C066/match", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), out["matched"])

	rec, out = do(t, h, http.MethodGet, "/invoices/unmatched?invoice_number=0000R1833C066", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), out["count"])

	rec, out = do(t, h, http.MethodGet, "/invoices/unmatched", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(0), out["count"])
	require.Equal(t, []any{}, out["items"])

	repo.AssertExpectations(t)
}

func TestInvoices_Errors(t *testing.T) {
	repo := &invoicesmocks.MockRepository{}
	h := NewRouter(Deps{Invoices: invoices.New(repo)})

	rec, out := do(t, h, http.MethodPost, "/invoices/upload", `{"invoice_number":"X","items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, out["error"], "invalid invoice upload")

	repo.On("MatchToShipments", mock.Anything, "").Return(models.MatchResult{}, errors.New("db down")).Once()
	rec, out = do(t, h, http.MethodPost, "/invoices/match", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, out["error"], "db down")
}

func TestInvoices_UploadStatus(t *testing.T) {
	repo := &invoicesmocks.MockRepository{}
	h := NewRouter(Deps{Invoices: invoices.New(repo)})

	repo.On("GetUpload", mock.Anything, uint64(12)).
		Return(&models.InvoiceUpload{ID: 12, InvoiceNumber: "0000J9299A101", MatchedCount: 7, UnmatchedCount: 3, Reconciled: true}, nil).Once()
	rec, out := do(t, h, http.MethodGet, "/invoices/uploads/12", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(7), out["matched_count"])
	require.Equal(t, true, out["reconciled"])

	repo.On("GetUpload", mock.Anything, uint64(13)).Return(nil, pgrecon.ErrNotFound).Once()
	rec, _ = do(t, h, http.MethodGet, "/invoices/uploads/13", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/invoices/uploads/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertExpectations(t)
}

func TestOrderShipments(t *testing.T) {
	orders := &fakeOrders{shipments: []*models.Shipment{
		{ID: 1, TrackingNumber: "1ZA0000000000001"},
		{ID: 2, TrackingNumber: "1ZA0000000000002", IsVoided: true},
	}}
	h := NewRouter(Deps{Orders: orders})

	rec, out := do(t, h, http.MethodGet, "/orders/42/shipments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(42), orders.asked)
	require.Equal(t, float64(2), out["count"])
	require.Len(t, out["shipments"], 2)

	orders.shipments = nil
	_, out = do(t, h, http.MethodGet, "/orders/43/shipments", "")
	require.Equal(t, []any{}, out["shipments"])
}

func TestPollTracking(t *testing.T) {
	h := NewRouter(Deps{Poller: fakePoller{res: poller.Result{Polled: 5, Updated: 2, Delivered: 1, Errors: 1}}})
	rec, out := do(t, h, http.MethodPost, "/admin/poll-tracking", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["success"])
	require.Equal(t, map[string]any{
		"polled": float64(5), "updated": float64(2), "delivered": float64(1), "errors": float64(1),
	}, out["results"])

	h = NewRouter(Deps{Poller: fakePoller{err: errors.New("list poll candidates: db down")}})
	rec, _ = do(t, h, http.MethodPost, "/admin/poll-tracking", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	h := NewRouter(Deps{Ready: fakePinger{}})
	rec, out := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", out["status"])

	rec, _ = do(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	h = NewRouter(Deps{Ready: fakePinger{err: errors.New("pool closed")}})
	rec, out = do(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "pool closed", out["error"])
}

func TestSwaggerServed(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	srv := httptest.NewServer(NewRouter(Deps{SwaggerPath: sw}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp2, err := client.Get(srv.URL + "/docs/index.html")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}
