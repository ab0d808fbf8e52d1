package model

import "time"

// CachedProduct is the local mirror of a backend product, holding the subset
// of fields needed to run a sale at the register. CurrentStock is an
// optimistic local value: it is decremented when a sale is created locally and
// is only authoritative again right after a full cache refresh.
type CachedProduct struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	Name         string    `json:"name"`
	SKU          string    `json:"sku"`
	Barcode      string    `json:"barcode,omitempty"`
	CostPrice    float64   `json:"cost_price"`
	SellingPrice float64   `json:"selling_price"`
	CurrentStock float64   `json:"current_stock"`
	Unit         string    `json:"unit,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	TrackStock   bool      `json:"track_stock"`
	TaxRate      float64   `json:"tax_rate,omitempty"`
	CategoryID   string    `json:"category_id,omitempty"`
	CachedAt     time.Time `json:"cached_at"`
}

// CacheMeta records when a store's product snapshot finished its last full
// refresh. Validity is store-level, not per record.
type CacheMeta struct {
	StoreID   string    `json:"store_id"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheInfo is a point-in-time summary of a store's product cache.
type CacheInfo struct {
	Valid        bool          `json:"valid"`
	ProductCount int           `json:"product_count"`
	Age          time.Duration `json:"age_seconds,omitempty"`
}

// ProductPage is one page of the backend's paginated product listing.
type ProductPage struct {
	Products []CachedProduct `json:"products"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasMore  bool            `json:"has_more"`
}
