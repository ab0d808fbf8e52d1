package handler

import (
	"encoding/json"
	"net/http"

	"tillbridge-pos-agent/internal/model"
	"tillbridge-pos-agent/internal/service"
	"tillbridge-pos-agent/pkg/apierror"
	"tillbridge-pos-agent/pkg/response"

	"github.com/go-chi/chi/v5"
)

// POSHandler handles register-facing HTTP requests: sales and the product
// mirror.
type POSHandler struct {
	sales   *service.SaleCoordinator
	catalog *service.CatalogManager
}

// NewPOSHandler creates a new POS handler.
func NewPOSHandler(sales *service.SaleCoordinator, catalog *service.CatalogManager) *POSHandler {
	return &POSHandler{
		sales:   sales,
		catalog: catalog,
	}
}

// CreateSale handles POST /api/v1/stores/{store_id}/sales
func (h *POSHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "store_id")
	if storeID == "" {
		response.Error(w, apierror.BadRequest("store_id is required"))
		return
	}

	var draft model.SaleDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	if len(draft.Items) == 0 {
		response.Error(w, apierror.ValidationError("sale has no items",
			apierror.FieldError{Field: "items", Message: "at least one line item is required"}))
		return
	}
	for _, item := range draft.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			response.Error(w, apierror.ValidationError("invalid line item",
				apierror.FieldError{Field: "items", Message: "product_id and a positive quantity are required"}))
			return
		}
	}

	result, err := h.sales.CreateSale(r.Context(), storeID, draft)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to record sale"))
		return
	}

	response.Created(w, result)
}

// ListProducts handles GET /api/v1/stores/{store_id}/products
// An optional ?q= filters by name, SKU or barcode against the local mirror.
func (h *POSHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "store_id")
	if storeID == "" {
		response.Error(w, apierror.BadRequest("store_id is required"))
		return
	}

	query := r.URL.Query().Get("q")

	var products []model.CachedProduct
	var err error
	if query != "" {
		products, err = h.catalog.SearchByBarcodeOrSKU(r.Context(), storeID, query)
		if err == nil && len(products) == 0 {
			products, err = h.catalog.SearchByName(r.Context(), storeID, query)
		}
	} else {
		products, err = h.catalog.Products(r.Context(), storeID)
	}
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read product cache"))
		return
	}

	info := h.catalog.CacheInfo(r.Context(), storeID)
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"products":    products,
		"cache_valid": info.Valid,
	})
}

// GetProduct handles GET /api/v1/stores/{store_id}/products/{product_id}
func (h *POSHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "store_id")
	productID := chi.URLParam(r, "product_id")

	p, err := h.catalog.ProductByID(r.Context(), storeID, productID)
	if err != nil {
		if service.IsNotFound(err) {
			response.Error(w, apierror.NotFound("product not in local cache"))
			return
		}
		response.Error(w, apierror.InternalError("failed to read product cache"))
		return
	}
	response.OK(w, p)
}

// RefreshCache handles POST /api/v1/stores/{store_id}/products/refresh
func (h *POSHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "store_id")
	if storeID == "" {
		response.Error(w, apierror.BadRequest("store_id is required"))
		return
	}

	if err := h.catalog.RefreshCache(r.Context(), storeID); err != nil {
		response.Error(w, apierror.ServiceUnavailable("cache refresh failed; previous snapshot kept"))
		return
	}

	info := h.catalog.CacheInfo(r.Context(), storeID)
	response.OK(w, map[string]interface{}{
		"refreshed":     true,
		"product_count": info.ProductCount,
	})
}
