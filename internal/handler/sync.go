package handler

import (
	"net/http"
	"time"

	"tillbridge-pos-agent/internal/service"
	"tillbridge-pos-agent/pkg/apierror"
	"tillbridge-pos-agent/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SyncHandler exposes the offline queue to the register UI: status badges,
// manual sync, and failed-operation maintenance.
type SyncHandler struct {
	queue   *service.QueueManager
	monitor *service.ConnectivityMonitor
	catalog *service.CatalogManager
	storeID string
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(queue *service.QueueManager, monitor *service.ConnectivityMonitor, catalog *service.CatalogManager, storeID string) *SyncHandler {
	return &SyncHandler{
		queue:   queue,
		monitor: monitor,
		catalog: catalog,
		storeID: storeID,
	}
}

// Status handles GET /api/status — the register's online/pending/failed badge.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"online":        h.queue.Online(),
		"pending_count": h.queue.PendingCount(ctx),
		"failed_count":  h.queue.FailedCount(ctx),
		"server_time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.storeID != "" {
		status["cache"] = h.catalog.CacheInfo(ctx, h.storeID)
	}
	response.OK(w, status)
}

// Queue handles GET /api/v1/sync/queue
func (h *SyncHandler) Queue(w http.ResponseWriter, r *http.Request) {
	ops, err := h.queue.Queue(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read queue"))
		return
	}
	response.JSONWithMeta(w, http.StatusOK, ops, 1, len(ops), int64(len(ops)))
}

// SyncNow handles POST /api/v1/sync/now — a manual drain trigger.
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if !h.monitor.CheckNow(r.Context()) {
		response.Error(w, apierror.ServiceUnavailable("backend unreachable"))
		return
	}

	if err := h.queue.ProcessQueue(r.Context()); err != nil {
		response.Error(w, apierror.InternalError("drain failed"))
		return
	}

	response.OK(w, map[string]interface{}{
		"pending_count": h.queue.PendingCount(r.Context()),
		"failed_count":  h.queue.FailedCount(r.Context()),
	})
}

// ClearFailed handles DELETE /api/v1/sync/failed
func (h *SyncHandler) ClearFailed(w http.ResponseWriter, r *http.Request) {
	removed, err := h.queue.ClearFailed(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to clear failed operations"))
		return
	}
	response.OK(w, map[string]interface{}{"removed": removed})
}

// ClearAll handles DELETE /api/v1/sync/queue
func (h *SyncHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.ClearAll(r.Context()); err != nil {
		response.Error(w, apierror.InternalError("failed to clear queue"))
		return
	}
	response.NoContent(w)
}

// RemoveOperation handles DELETE /api/v1/sync/queue/{operation_id}
func (h *SyncHandler) RemoveOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operation_id")
	if id == "" {
		response.Error(w, apierror.BadRequest("operation_id is required"))
		return
	}

	if err := h.queue.Remove(r.Context(), id); err != nil {
		response.Error(w, apierror.InternalError("failed to remove operation"))
		return
	}
	response.NoContent(w)
}
