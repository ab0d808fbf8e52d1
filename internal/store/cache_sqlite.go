package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"tillbridge-pos-agent/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteProductCacheStore implements ProductCacheStore using SQLite.
type SQLiteProductCacheStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteProductCacheStore creates a new SQLite product cache store.
func NewSQLiteProductCacheStore(dbPath string) (*SQLiteProductCacheStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createCacheTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteProductCacheStore] Initialized with database: %s", dbPath)
	return &SQLiteProductCacheStore{db: db}, nil
}

func createCacheTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS cached_products (
		store_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		sku TEXT NOT NULL,
		barcode TEXT,
		cost_price REAL NOT NULL DEFAULT 0,
		selling_price REAL NOT NULL DEFAULT 0,
		current_stock REAL NOT NULL DEFAULT 0,
		unit TEXT,
		image_url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		track_stock INTEGER NOT NULL DEFAULT 1,
		tax_rate REAL NOT NULL DEFAULT 0,
		category_id TEXT,
		cached_at DATETIME NOT NULL,
		PRIMARY KEY (store_id, product_id)
	);
	CREATE TABLE IF NOT EXISTS cache_meta (
		store_id TEXT PRIMARY KEY,
		fetched_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Replace swaps the entire snapshot for one store in a single transaction.
func (s *SQLiteProductCacheStore) Replace(ctx context.Context, storeID string, products []model.CachedProduct, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_products WHERE store_id = ?`, storeID); err != nil {
		return fmt.Errorf("failed to drop old snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cached_products
			(store_id, product_id, name, sku, barcode, cost_price, selling_price, current_stock,
			 unit, image_url, is_active, track_stock, tax_rate, category_id, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		_, err := stmt.ExecContext(ctx, storeID, p.ID, p.Name, p.SKU, p.Barcode,
			p.CostPrice, p.SellingPrice, p.CurrentStock, p.Unit, p.ImageURL,
			p.IsActive, p.TrackStock, p.TaxRate, p.CategoryID, fetchedAt)
		if err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_meta (store_id, fetched_at) VALUES (?, ?)
		ON CONFLICT(store_id) DO UPDATE SET fetched_at = excluded.fetched_at`,
		storeID, fetchedAt)
	if err != nil {
		return fmt.Errorf("failed to update cache meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Products returns the current snapshot for a store.
func (s *SQLiteProductCacheStore) Products(ctx context.Context, storeID string) ([]model.CachedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, sku, barcode, cost_price, selling_price, current_stock,
		       unit, image_url, is_active, track_stock, tax_rate, category_id, cached_at
		FROM cached_products WHERE store_id = ? ORDER BY name`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached products: %w", err)
	}
	defer rows.Close()

	var products []model.CachedProduct
	for rows.Next() {
		p, err := scanCachedProduct(rows, storeID)
		if err != nil {
			log.Printf("[SQLiteProductCacheStore] Skipping unreadable row: %v", err)
			continue
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanCachedProduct(rows *sql.Rows, storeID string) (*model.CachedProduct, error) {
	var p model.CachedProduct
	var barcode, unit, imageURL, categoryID sql.NullString

	err := rows.Scan(&p.ID, &p.Name, &p.SKU, &barcode, &p.CostPrice, &p.SellingPrice,
		&p.CurrentStock, &unit, &imageURL, &p.IsActive, &p.TrackStock, &p.TaxRate,
		&categoryID, &p.CachedAt)
	if err != nil {
		return nil, err
	}

	p.StoreID = storeID
	p.Barcode = barcode.String
	p.Unit = unit.String
	p.ImageURL = imageURL.String
	p.CategoryID = categoryID.String
	return &p, nil
}

// Product returns one cached record, or ErrNotFound.
func (s *SQLiteProductCacheStore) Product(ctx context.Context, storeID, productID string) (*model.CachedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, sku, barcode, cost_price, selling_price, current_stock,
		       unit, image_url, is_active, track_stock, tax_rate, category_id, cached_at
		FROM cached_products WHERE store_id = ? AND product_id = ?`, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached product: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanCachedProduct(rows, storeID)
}

// UpdateProduct overwrites one cached record in place.
func (s *SQLiteProductCacheStore) UpdateProduct(ctx context.Context, storeID string, p *model.CachedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE cached_products
		SET name = ?, sku = ?, barcode = ?, cost_price = ?, selling_price = ?,
		    current_stock = ?, unit = ?, image_url = ?, is_active = ?, track_stock = ?,
		    tax_rate = ?, category_id = ?, cached_at = ?
		WHERE store_id = ? AND product_id = ?`

	result, err := s.db.ExecContext(ctx, query, p.Name, p.SKU, p.Barcode, p.CostPrice,
		p.SellingPrice, p.CurrentStock, p.Unit, p.ImageURL, p.IsActive, p.TrackStock,
		p.TaxRate, p.CategoryID, p.CachedAt, storeID, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update cached product %s: %w", p.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Meta returns the refresh metadata for a store, or nil if never populated.
func (s *SQLiteProductCacheStore) Meta(ctx context.Context, storeID string) (*model.CacheMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM cache_meta WHERE store_id = ?`, storeID).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache meta: %w", err)
	}
	return &model.CacheMeta{StoreID: storeID, FetchedAt: fetchedAt}, nil
}

// Clear drops the snapshot and metadata for one store.
func (s *SQLiteProductCacheStore) Clear(ctx context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_products WHERE store_id = ?`, storeID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_meta WHERE store_id = ?`, storeID); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteProductCacheStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteProductCacheStore implements ProductCacheStore
var _ ProductCacheStore = (*SQLiteProductCacheStore)(nil)
