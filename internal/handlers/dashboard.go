package handlers

import (
	"errors"
	"net/http"

	"enrolldesk-backend/internal/middleware"
	"enrolldesk-backend/internal/repository"
	"enrolldesk-backend/internal/services"
)

type DashboardHandler struct {
	dashboard *repository.DashboardRepo
	sync      *services.SyncService
}

func NewDashboardHandler(dashboard *repository.DashboardRepo, syncService *services.SyncService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, sync: syncService}
}

// Stats returns the latest stored snapshot. No snapshot yet means a sync has
// never completed; the frontend shows an empty state and offers to run one.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.GetLatest(r.Context())
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		handleServiceError(w, r, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sync_status": "",
			"message":     "No dashboard data yet. Trigger a sync to populate it.",
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// Sync enqueues a dashboard refresh. The worker coalesces duplicate requests
// while one is already running.
func (h *DashboardHandler) Sync(w http.ResponseWriter, r *http.Request) {
	job, err := h.sync.Enqueue(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Dashboard sync queued",
		"job_id":  job.ID,
	})
}

func (h *DashboardHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.dashboard.Clear(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Dashboard data cleared",
		"deleted": deleted,
	})
}
