package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tillbridge-pos-agent/internal/backend"
	"tillbridge-pos-agent/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) *backend.Client {
	return backend.New(backend.Config{
		BaseURL:  url,
		APIToken: "test-token",
		Timeout:  2 * time.Second,
	})
}

func TestClient_CreateSale(t *testing.T) {
	var gotAuth string
	var gotPayload model.SalePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/stores/s1/sales", r.URL.Path)
		gotAuth = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.SaleAck{
			ID:         gotPayload.ID,
			InvoiceURL: "https://backend.example/invoices/" + gotPayload.ID,
		})
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	payload := &model.SalePayload{
		ID:      "sale-abc",
		StoreID: "s1",
		Status:  "COMPLETED",
		SaleDraft: model.SaleDraft{
			Items:         []model.SaleLine{{ProductID: "p1", Quantity: 2, UnitPrice: 25}},
			PaymentMethod: "CASH",
		},
	}

	ack, err := c.CreateSale(context.Background(), "s1", payload)
	require.NoError(t, err)
	assert.Equal(t, "sale-abc", ack.ID)
	assert.Contains(t, ack.InvoiceURL, "sale-abc")
	assert.Equal(t, "test-token", gotAuth)
	assert.Equal(t, "sale-abc", gotPayload.ID)
}

func TestClient_CreateSaleEmptyAckFallsBackToPayloadID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	ack, err := c.CreateSale(context.Background(), "s1", &model.SalePayload{ID: "sale-xyz"})
	require.NoError(t, err)
	assert.Equal(t, "sale-xyz", ack.ID)
}

func TestClient_DoReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	err := c.Do(context.Background(), http.MethodPost, "/api/stores/s1/sales", []byte(`{}`))
	require.Error(t, err)

	var statusErr *backend.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestClient_ListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/stores/s1/products", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "100", r.URL.Query().Get("page_size"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.ProductPage{
			Products: []model.CachedProduct{{ID: "p1", Name: "Rice 5kg"}},
			Page:     2,
			PageSize: 100,
			HasMore:  false,
		})
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	page, err := c.ListProducts(context.Background(), "s1", 2, 100)
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "p1", page.Products[0].ID)
	assert.False(t, page.HasMore)
}

func TestClient_Ping(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	assert.NoError(t, c.Ping(context.Background()))

	healthy = false
	assert.Error(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()), "transport failure must read as unreachable")
}
