package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"tillbridge-pos-agent/internal/backend"
	"tillbridge-pos-agent/internal/model"
	"tillbridge-pos-agent/pkg/uid"
)

// SaleCreator posts a sale directly to the backend.
type SaleCreator interface {
	CreateSale(ctx context.Context, storeID string, payload *model.SalePayload) (*model.SaleAck, error)
}

// SaleCoordinator decides, per sale, whether to transact directly with the
// backend or fall back to the offline queue, and keeps the catalog's stock
// figures consistent on both paths.
type SaleCoordinator struct {
	queue   *QueueManager
	catalog *CatalogManager
	backend SaleCreator
	now     func() time.Time
}

// NewSaleCoordinator creates a sale coordinator.
func NewSaleCoordinator(queue *QueueManager, catalog *CatalogManager, backend SaleCreator) *SaleCoordinator {
	return &SaleCoordinator{
		queue:   queue,
		catalog: catalog,
		backend: backend,
		now:     time.Now,
	}
}

// CreateSale runs one sale. The sale ID is generated client-side before any
// network attempt and is reused unchanged for the fallback enqueue, so
// redelivery can never create a second sale on the backend. Network failure
// is not an error here: the sale degrades to queued success.
func (c *SaleCoordinator) CreateSale(ctx context.Context, storeID string, draft model.SaleDraft) (*model.SaleResult, error) {
	payload := &model.SalePayload{
		ID:        uid.New(),
		StoreID:   storeID,
		CreatedAt: c.now().UTC(),
		Status:    "COMPLETED",
		SaleDraft: draft,
	}

	if c.queue.Online() {
		ack, err := c.backend.CreateSale(ctx, storeID, payload)
		if err == nil {
			c.applyStock(ctx, storeID, draft.Items)
			return &model.SaleResult{
				Success:    true,
				SaleID:     ack.ID,
				InvoiceURL: ack.InvoiceURL,
			}, nil
		}
		log.Printf("[SaleCoordinator] Direct sale %s failed, queueing: %v", payload.ID, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sale payload: %w", err)
	}

	if _, err := c.queue.Add(ctx, model.OperationDraft{
		Kind:     model.OpCreateSale,
		Endpoint: backend.SaleEndpoint(storeID),
		Method:   http.MethodPost,
		Payload:  body,
	}); err != nil {
		// Local storage broke: the sale would be lost silently, so this one
		// does surface.
		return nil, fmt.Errorf("failed to queue sale: %w", err)
	}

	c.applyStock(ctx, storeID, draft.Items)
	return &model.SaleResult{
		Success: true,
		SaleID:  payload.ID,
		Queued:  true,
	}, nil
}

// applyStock decrements cached stock once per line item. Items the cache does
// not know about are skipped; the next full refresh reconciles them.
func (c *SaleCoordinator) applyStock(ctx context.Context, storeID string, items []model.SaleLine) {
	for _, item := range items {
		clamped, err := c.catalog.DecreaseStock(ctx, storeID, item.ProductID, item.Quantity)
		if err != nil {
			if !IsNotFound(err) {
				log.Printf("[SaleCoordinator] Failed to decrease stock for %s: %v", item.ProductID, err)
			}
			continue
		}
		if clamped {
			log.Printf("[SaleCoordinator] Stock for %s clamped at zero (oversell while offline?)", item.ProductID)
		}
	}
}
