package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tillbridge-pos-agent/internal/backend"
	"tillbridge-pos-agent/internal/handler"
	"tillbridge-pos-agent/internal/model"
	"tillbridge-pos-agent/internal/router"
	"tillbridge-pos-agent/internal/service"
	"tillbridge-pos-agent/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// agentFixture wires the real router, handlers, services and memory stores
// against a scripted backend server.
type agentFixture struct {
	handler    http.Handler
	backendSrv *httptest.Server
	backendUp  atomic.Bool
	saleCalls  atomic.Int32

	queue   *service.QueueManager
	catalog *service.CatalogManager
	monitor *service.ConnectivityMonitor
}

func newAgentFixture(t *testing.T) *agentFixture {
	t.Helper()
	fx := &agentFixture{}
	fx.backendUp.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if !fx.backendUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("POST /api/stores/s1/sales", func(w http.ResponseWriter, r *http.Request) {
		if !fx.backendUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fx.saleCalls.Add(1)
		var payload model.SalePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.SaleAck{
			ID:         payload.ID,
			InvoiceURL: "https://backend.example/invoices/" + payload.ID,
		})
	})
	mux.HandleFunc("GET /api/stores/s1/products", func(w http.ResponseWriter, r *http.Request) {
		if !fx.backendUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.ProductPage{
			Products: []model.CachedProduct{
				{ID: "p1", Name: "Rice 5kg", SKU: "RICE-5KG", Barcode: "8901", SellingPrice: 25, CurrentStock: 10, IsActive: true, TrackStock: true},
				{ID: "p2", Name: "Sugar 1kg", SKU: "SUG-1KG", Barcode: "8902", SellingPrice: 12, CurrentStock: 20, IsActive: true, TrackStock: true},
			},
			Page:     1,
			PageSize: 100,
		})
	})
	fx.backendSrv = httptest.NewServer(mux)
	t.Cleanup(fx.backendSrv.Close)

	client := backend.New(backend.Config{
		BaseURL: fx.backendSrv.URL,
		Timeout: 2 * time.Second,
	})

	fx.queue = service.NewQueueManager(store.NewMemoryQueueStore(), client, service.QueueManagerConfig{})
	fx.catalog = service.NewCatalogManager(store.NewMemoryProductCacheStore(), client, service.CatalogManagerConfig{})
	fx.monitor = service.NewConnectivityMonitor(client, fx.queue, time.Minute)
	sales := service.NewSaleCoordinator(fx.queue, fx.catalog, client)

	fx.handler = router.New(router.Config{
		Handler:     handler.New("test"),
		POSHandler:  handler.NewPOSHandler(sales, fx.catalog),
		SyncHandler: handler.NewSyncHandler(fx.queue, fx.monitor, fx.catalog, "s1"),
	})
	return fx
}

func (fx *agentFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func saleBody() model.SaleDraft {
	return model.SaleDraft{
		Items: []model.SaleLine{
			{ProductID: "p1", Quantity: 4, UnitPrice: 25},
		},
		PaymentMethod: "CASH",
		AmountPaid:    100,
	}
}

func TestAgent_OnlineSaleFlow(t *testing.T) {
	fx := newAgentFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/stores/s1/products/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodPost, "/api/v1/stores/s1/sales", saleBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var result model.SaleResult
	decodeData(t, rec, &result)
	assert.True(t, result.Success)
	assert.False(t, result.Queued)
	assert.NotEmpty(t, result.SaleID)
	assert.NotEmpty(t, result.InvoiceURL)
	assert.EqualValues(t, 1, fx.saleCalls.Load())

	// The cached stock follows the sale and the queue stays empty.
	var product model.CachedProduct
	rec = fx.do(t, http.MethodGet, "/api/v1/stores/s1/products/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &product)
	assert.Equal(t, float64(6), product.CurrentStock)

	var status map[string]interface{}
	rec = fx.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &status)
	assert.Equal(t, true, status["online"])
	assert.EqualValues(t, 0, status["pending_count"])
}

func TestAgent_OfflineSaleFlow(t *testing.T) {
	fx := newAgentFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/stores/s1/products/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fx.backendUp.Store(false)
	require.False(t, fx.monitor.CheckNow(t.Context()))

	rec = fx.do(t, http.MethodPost, "/api/v1/stores/s1/sales", saleBody())
	require.Equal(t, http.StatusCreated, rec.Code, "an unreachable backend must not fail the sale")

	var result model.SaleResult
	decodeData(t, rec, &result)
	assert.True(t, result.Success)
	assert.True(t, result.Queued)
	assert.Zero(t, fx.saleCalls.Load())

	var queued []model.QueuedOperation
	rec = fx.do(t, http.MethodGet, "/api/v1/sync/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &queued)
	require.Len(t, queued, 1)
	assert.Equal(t, model.OpCreateSale, queued[0].Kind)

	// Back online: a manual sync delivers the queued sale.
	fx.backendUp.Store(true)
	rec = fx.do(t, http.MethodPost, "/api/v1/sync/now", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Eventually(t, func() bool {
		if fx.saleCalls.Load() != 1 {
			return false
		}
		rec := fx.do(t, http.MethodGet, "/api/v1/sync/queue", nil)
		var ops []model.QueuedOperation
		decodeData(t, rec, &ops)
		return len(ops) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAgent_SaleValidation(t *testing.T) {
	fx := newAgentFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/stores/s1/sales", model.SaleDraft{PaymentMethod: "CASH"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a sale with no items is rejected")

	bad := model.SaleDraft{
		Items:         []model.SaleLine{{ProductID: "p1", Quantity: 0}},
		PaymentMethod: "CASH",
	}
	rec = fx.do(t, http.MethodPost, "/api/v1/stores/s1/sales", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-positive quantity is rejected")
}

func TestAgent_ProductSearch(t *testing.T) {
	fx := newAgentFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/stores/s1/products/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Products   []model.CachedProduct `json:"products"`
		CacheValid bool                  `json:"cache_valid"`
	}

	rec = fx.do(t, http.MethodGet, "/api/v1/stores/s1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &listing)
	assert.Len(t, listing.Products, 2)
	assert.True(t, listing.CacheValid)

	// Barcode match.
	rec = fx.do(t, http.MethodGet, "/api/v1/stores/s1/products?q=8901", nil)
	decodeData(t, rec, &listing)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, "p1", listing.Products[0].ID)

	// Name fallback when neither barcode nor SKU matches.
	rec = fx.do(t, http.MethodGet, "/api/v1/stores/s1/products?q=sugar", nil)
	decodeData(t, rec, &listing)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, "p2", listing.Products[0].ID)

	rec = fx.do(t, http.MethodGet, "/api/v1/stores/s1/products/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgent_RefreshFailureKeepsServing(t *testing.T) {
	fx := newAgentFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/v1/stores/s1/products/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fx.backendUp.Store(false)
	rec = fx.do(t, http.MethodPost, "/api/v1/stores/s1/products/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// The previous snapshot is still served.
	rec = fx.do(t, http.MethodGet, "/api/v1/stores/s1/products/p1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAgent_QueueMaintenance(t *testing.T) {
	fx := newAgentFixture(t)
	fx.queue.SetOnline(false)

	for i := 0; i < 3; i++ {
		rec := fx.do(t, http.MethodPost, "/api/v1/stores/s1/sales", saleBody())
		require.Equal(t, http.StatusCreated, rec.Code, "sale %d", i)
	}

	var queued []model.QueuedOperation
	rec := fx.do(t, http.MethodGet, "/api/v1/sync/queue", nil)
	decodeData(t, rec, &queued)
	require.Len(t, queued, 3)

	rec = fx.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/sync/queue/%s", queued[0].ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = fx.do(t, http.MethodGet, "/api/v1/sync/queue", nil)
	decodeData(t, rec, &queued)
	require.Len(t, queued, 2)

	rec = fx.do(t, http.MethodDelete, "/api/v1/sync/queue", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = fx.do(t, http.MethodGet, "/api/v1/sync/queue", nil)
	decodeData(t, rec, &queued)
	assert.Empty(t, queued)
}

func TestAgent_SyncNowWhileUnreachable(t *testing.T) {
	fx := newAgentFixture(t)
	fx.backendUp.Store(false)

	rec := fx.do(t, http.MethodPost, "/api/v1/sync/now", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAgent_Health(t *testing.T) {
	fx := newAgentFixture(t)

	rec := fx.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health handler.HealthResponse
	decodeData(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}
