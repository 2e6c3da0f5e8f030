package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ShipRecon/internal/ratelimit"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		StoreURL:    srv.URL,
		AccessToken: "shpat",
		APIVersion:  "2024-01",
		Limiter:     ratelimit.New("shopify", 0),
	})
}

func TestGetOrder_OK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/api/2024-01/orders/6608984637748.json", r.URL.Path)
		require.Equal(t, "shpat", r.Header.Get("X-Shopify-Access-Token"))
		_, _ = w.Write([]byte(`{"order":{"id":6608984637748,"name":"#26276","total_price":"104.50"}}`))
	}))

	o, err := c.GetOrder(context.Background(), 6608984637748)
	require.NoError(t, err)
	require.NotNil(t, o)
	require.Equal(t, "#26276", o.Name)
	require.Equal(t, "104.50", o.TotalPrice)
}

func TestGetOrder_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	o, err := c.GetOrder(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, o)
}

func TestGetOrder_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.GetOrder(context.Background(), 1)
	require.Error(t, err)
}

func TestGetInventoryItemCost(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/api/2024-01/inventory_items/10.json":
			_, _ = w.Write([]byte(`{"inventory_item":{"cost":"4.25"}}`))
		case "/admin/api/2024-01/inventory_items/11.json":
			_, _ = w.Write([]byte(`{"inventory_item":{"cost":null}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	cost, err := c.GetInventoryItemCost(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, cost.Valid)
	require.Equal(t, "4.25", cost.Decimal.StringFixed(2))

	cost, err = c.GetInventoryItemCost(context.Background(), 11)
	require.NoError(t, err)
	require.False(t, cost.Valid)
}

func TestListOrders_FollowsLinkHeader(t *testing.T) {
	var srvURL string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		switch r.URL.Query().Get("page_info") {
		case "":
			require.Equal(t, "any", r.URL.Query().Get("status"))
			w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2024-01/orders.json?page_info=p2&limit=250>; rel="next"`, srvURL))
			_, _ = w.Write([]byte(`{"orders":[{"id":1},{"id":2}]}`))
		case "p2":
			w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2024-01/orders.json?page_info=p1>; rel="previous"`, srvURL))
			_, _ = w.Write([]byte(`{"orders":[{"id":3}]}`))
		}
	})
	srv := httptest.NewServer(h)
	defer srv.Close()
	srvURL = srv.URL

	c := New(Options{StoreURL: srv.URL, Limiter: ratelimit.New("shopify", 0)})
	var ids []int64
	err := c.ListOrders(context.Background(), ListParams{}, func(page []Order) error {
		for _, o := range page {
			ids = append(ids, o.ID)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids)
}

func TestNextPageURL(t *testing.T) {
	h := http.Header{}
	h.Set("Link", `<https://a/prev>; rel="previous", <https://a/next>; rel="next"`)
	require.Equal(t, "https://a/next", nextPageURL(h))
	require.Equal(t, "", nextPageURL(http.Header{}))
}
