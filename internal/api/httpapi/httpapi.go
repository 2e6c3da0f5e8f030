// Package httpapi is the JSON HTTP surface: the fulfillment webhook, invoice reconciliation,
// order shipment lookups and the manual tracking poll.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/ShipRecon/internal/broker/messages"
	"github.com/BearBump/ShipRecon/internal/models"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/services/invoices"
	"github.com/BearBump/ShipRecon/internal/services/poller"
)

const (
	maxWebhookBody = 1 << 20
	maxInvoiceBody = 64 << 20
)

type WebhookReceiver interface {
	Receive(ctx context.Context, n normalizer.Notification) messages.WebhookReceived
}

type InvoiceService interface {
	Upload(ctx context.Context, req invoices.UploadRequest) (*invoices.UploadResult, error)
	Match(ctx context.Context, invoiceNumber string) (models.MatchResult, error)
	Unmatched(ctx context.Context, invoiceNumber string) ([]models.InvoiceLineItem, error)
	UploadStatus(ctx context.Context, id uint64) (*models.InvoiceUpload, error)
}

type OrderLookup interface {
	OrderShipments(ctx context.Context, orderID uint64) ([]*models.Shipment, error)
}

type TrackingPoller interface {
	PollOnce(ctx context.Context) (poller.Result, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Webhooks WebhookReceiver
	Invoices InvoiceService
	Poller   TrackingPoller
	Orders   OrderLookup
	// Ready is checked by /readyz; nil means always ready.
	Ready Pinger
	// SwaggerPath serves /swagger.json and /docs/* when set.
	SwaggerPath string
}

type api struct {
	d Deps
}

func NewRouter(d Deps) http.Handler {
	a := &api{d: d}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", a.readyz)

	r.Post("/webhooks/shipstation", a.shipstationWebhook)

	r.Route("/invoices", func(r chi.Router) {
		r.Post("/upload", a.uploadInvoice)
		r.Get("/unmatched", a.listUnmatched)
		r.Post("/match", a.matchInvoice)
		r.Post("/{invoiceNumber}/match", a.matchInvoice)
		r.Get("/uploads/{uploadID}", a.uploadStatus)
	})

	r.Get("/orders/{orderID}/shipments", a.orderShipments)

	r.Post("/admin/poll-tracking", a.pollTracking)

	if d.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, d.SwaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(d.SwaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}

func (a *api) readyz(w http.ResponseWriter, r *http.Request) {
	if a.d.Ready != nil {
		if err := a.d.Ready.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// shipstationWebhook acknowledges before any reconciliation work happens.
func (a *api) shipstationWebhook(w http.ResponseWriter, r *http.Request) {
	var n normalizer.Notification
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode webhook body"))
		return
	}
	msg := a.d.Webhooks.Receive(r.Context(), n)
	writeJSON(w, http.StatusOK, map[string]any{
		"received":    true,
		"delivery_id": msg.DeliveryID.String(),
	})
}

func (a *api) uploadInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoices.UploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvoiceBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode invoice body"))
		return
	}
	res, err := a.d.Invoices.Upload(r.Context(), req)
	if err != nil {
		writeServiceError(w, "invoice upload", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"upload_id":        res.UploadID,
		"invoice_number":   res.InvoiceNumber,
		"ups_account_type": res.UPSAccountType,
		"line_items":       res.LineItems,
		"matched":          res.Matched,
		"unmatched":        res.Unmatched,
		"newly_matched":    res.NewlyMatched,
	})
}

func (a *api) matchInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceNumber := chi.URLParam(r, "invoiceNumber")
	res, err := a.d.Invoices.Match(r.Context(), invoiceNumber)
	if err != nil {
		writeServiceError(w, "invoice match", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) listUnmatched(w http.ResponseWriter, r *http.Request) {
	items, err := a.d.Invoices.Unmatched(r.Context(), r.URL.Query().Get("invoice_number"))
	if err != nil {
		writeServiceError(w, "list unmatched", err)
		return
	}
	if items == nil {
		items = []models.InvoiceLineItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}

func (a *api) uploadStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "uploadID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("upload id must be a positive integer"))
		return
	}
	up, err := a.d.Invoices.UploadStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, "upload status", err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (a *api) orderShipments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("order id must be a positive integer"))
		return
	}
	shipments, err := a.d.Orders.OrderShipments(r.Context(), id)
	if err != nil {
		writeServiceError(w, "order shipments", err)
		return
	}
	if shipments == nil {
		shipments = []*models.Shipment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":  id,
		"count":     len(shipments),
		"shipments": shipments,
	})
}

func (a *api) pollTracking(w http.ResponseWriter, r *http.Request) {
	res, err := a.d.Poller.PollOnce(r.Context())
	if err != nil {
		writeServiceError(w, "poll tracking", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": res,
	})
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, invoices.ErrInvalidUpload) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if errors.Is(err, invoices.ErrUploadNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	slog.Error(op+" failed", "error", err.Error())
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
