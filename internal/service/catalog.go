package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tillbridge-pos-agent/internal/model"
	"tillbridge-pos-agent/internal/store"
)

// Default catalog parameters.
const (
	DefaultCacheTTL = 24 * time.Hour
	DefaultPageSize = 100
)

// ProductLister fetches product pages from the backend.
type ProductLister interface {
	ListProducts(ctx context.Context, storeID string, page, pageSize int) (*model.ProductPage, error)
}

// CatalogManagerConfig holds catalog manager settings.
type CatalogManagerConfig struct {
	TTL      time.Duration
	PageSize int
	Now      func() time.Time
}

// CatalogManager maintains the store-scoped local product mirror: full
// refreshes from the backend, staleness tracking, and optimistic stock
// mutation while sales are queued.
type CatalogManager struct {
	store    store.ProductCacheStore
	backend  ProductLister
	ttl      time.Duration
	pageSize int
	now      func() time.Time
}

// NewCatalogManager creates a catalog manager over the given cache store and
// backend listing client.
func NewCatalogManager(cs store.ProductCacheStore, backend ProductLister, cfg CatalogManagerConfig) *CatalogManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CatalogManager{
		store:    cs,
		backend:  backend,
		ttl:      cfg.TTL,
		pageSize: cfg.PageSize,
		now:      cfg.Now,
	}
}

// Products returns the current snapshot for a store; empty if never cached.
func (m *CatalogManager) Products(ctx context.Context, storeID string) ([]model.CachedProduct, error) {
	return m.store.Products(ctx, storeID)
}

// ProductByID returns one cached record, or store.ErrNotFound.
func (m *CatalogManager) ProductByID(ctx context.Context, storeID, productID string) (*model.CachedProduct, error) {
	return m.store.Product(ctx, storeID, productID)
}

// IsCacheValid reports whether a full refresh has completed within the TTL.
func (m *CatalogManager) IsCacheValid(ctx context.Context, storeID string) bool {
	meta, err := m.store.Meta(ctx, storeID)
	if err != nil || meta == nil {
		return false
	}
	return m.now().Sub(meta.FetchedAt) < m.ttl
}

// CacheProducts replaces the entire snapshot for a store. The swap is
// all-or-nothing; readers never see old and new records mixed.
func (m *CatalogManager) CacheProducts(ctx context.Context, storeID string, products []model.CachedProduct) error {
	if err := m.store.Replace(ctx, storeID, products, m.now().UTC()); err != nil {
		return fmt.Errorf("failed to cache products: %w", err)
	}
	log.Printf("[CatalogManager] Cached %d products for store %s", len(products), storeID)
	return nil
}

// RefreshCache pulls every page of the backend's product listing and swaps the
// snapshot only after the walk completes. A failure mid-walk abandons the
// refresh and leaves the previous snapshot intact.
func (m *CatalogManager) RefreshCache(ctx context.Context, storeID string) error {
	var all []model.CachedProduct

	for page := 1; ; page++ {
		result, err := m.backend.ListProducts(ctx, storeID, page, m.pageSize)
		if err != nil {
			return fmt.Errorf("refresh aborted at page %d: %w", page, err)
		}
		all = append(all, result.Products...)
		if !result.HasMore {
			break
		}
	}

	return m.CacheProducts(ctx, storeID, all)
}

// UpdateProduct patches one cached record in place, stamping it with the
// current time.
func (m *CatalogManager) UpdateProduct(ctx context.Context, storeID string, p *model.CachedProduct) error {
	p.CachedAt = m.now().UTC()
	return m.store.UpdateProduct(ctx, storeID, p)
}

// DecreaseStock decrements the cached stock for one product after a local
// sale. Stock is clamped at zero and the clamp is reported, so callers can
// flag the oversell. Products that do not track stock are left untouched.
// This is an optimistic mutation: the figure is only trustworthy again after
// the next full refresh.
func (m *CatalogManager) DecreaseStock(ctx context.Context, storeID, productID string, quantity float64) (clamped bool, err error) {
	p, err := m.store.Product(ctx, storeID, productID)
	if err != nil {
		return false, err
	}
	if !p.TrackStock {
		return false, nil
	}

	newStock := p.CurrentStock - quantity
	if newStock < 0 {
		newStock = 0
		clamped = true
	}
	p.CurrentStock = newStock
	p.CachedAt = m.now().UTC()

	if err := m.store.UpdateProduct(ctx, storeID, p); err != nil {
		return clamped, err
	}
	return clamped, nil
}

// SearchByBarcodeOrSKU returns cached products whose barcode or SKU matches
// the query, exact matches first by construction of the filter.
func (m *CatalogManager) SearchByBarcodeOrSKU(ctx context.Context, storeID, query string) ([]model.CachedProduct, error) {
	products, err := m.store.Products(ctx, storeID)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(query)
	var out []model.CachedProduct
	for _, p := range products {
		if p.Barcode == query || p.SKU == query ||
			strings.Contains(strings.ToLower(p.Barcode), lower) ||
			strings.Contains(strings.ToLower(p.SKU), lower) {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchByName returns cached products whose name contains the query,
// case-insensitively.
func (m *CatalogManager) SearchByName(ctx context.Context, storeID, query string) ([]model.CachedProduct, error) {
	products, err := m.store.Products(ctx, storeID)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(query)
	var out []model.CachedProduct
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), lower) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ClearCache drops the snapshot for one store.
func (m *CatalogManager) ClearCache(ctx context.Context, storeID string) error {
	if err := m.store.Clear(ctx, storeID); err != nil {
		return err
	}
	log.Printf("[CatalogManager] Cache cleared for store %s", storeID)
	return nil
}

// CacheInfo returns a summary of the cache for status endpoints.
func (m *CatalogManager) CacheInfo(ctx context.Context, storeID string) model.CacheInfo {
	info := model.CacheInfo{}

	products, err := m.store.Products(ctx, storeID)
	if err == nil {
		info.ProductCount = len(products)
	}

	meta, err := m.store.Meta(ctx, storeID)
	if err == nil && meta != nil {
		info.Age = m.now().Sub(meta.FetchedAt)
		info.Valid = info.Age < m.ttl
	}
	return info
}

// IsNotFound reports whether the error is the cache's record-missing sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
