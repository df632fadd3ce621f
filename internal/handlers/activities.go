package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"enrolldesk-backend/internal/models"
	"enrolldesk-backend/internal/repository"
)

type ActivityHandler struct {
	activity *repository.ActivityRepo
}

func NewActivityHandler(activity *repository.ActivityRepo) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

func parseActivityFilter(r *http.Request) models.ActivityFilter {
	q := r.URL.Query()
	f := models.ActivityFilter{
		UserID: q.Get("user_id"),
		Action: q.Get("action"),
		Status: q.Get("status"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	return f
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	f := parseActivityFilter(r)

	records, total, err := h.activity.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activities": records,
		"total":      total,
		"page":       f.Page,
		"per_page":   f.PerPage,
	})
}

func (h *ActivityHandler) Detail(w http.ResponseWriter, r *http.Request) {
	rec, err := h.activity.GetByID(r.Context(), chi.URLParam(r, "activityID"))
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Activity record not found", r))
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *ActivityHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.activity.Analytics(r.Context(), parseActivityFilter(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

// Export streams the filtered log as CSV or JSON, selected by the format
// query parameter.
func (h *ActivityHandler) Export(w http.ResponseWriter, r *http.Request) {
	records, err := h.activity.ListAll(r.Context(), parseActivityFilter(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	stamp := time.Now().Format("2006-01-02")

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="activities_%s.json"`, stamp))
		json.NewEncoder(w).Encode(records)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="activities_%s.csv"`, stamp))

	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "user_id", "username", "full_name", "action", "status", "error", "created_at"})
	for _, rec := range records {
		cw.Write([]string{
			rec.ID.Hex(),
			rec.UserID,
			rec.UserUsername,
			rec.UserFullName,
			rec.Action,
			rec.Status,
			rec.ErrorMessage,
			rec.CreatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

func (h *ActivityHandler) Clear(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.activity.DeleteAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Activity log cleared",
		"deleted": deleted,
	})
}

// Log records a manual activity entry, used by the frontend for actions that
// happen outside the student workflows.
func (h *ActivityHandler) Log(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string                 `json:"user_id"`
		Username string                 `json:"username"`
		FullName string                 `json:"full_name"`
		Action   string                 `json:"action"`
		Details  map[string]interface{} `json:"details"`
		Status   string                 `json:"status"`
		Error    string                 `json:"error_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Action == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"action": "Action is required"}, r))
		return
	}
	if req.Status == "" {
		req.Status = models.StatusSuccess
	}

	rec := &models.ActivityRecord{
		UserID:       req.UserID,
		UserUsername: req.Username,
		UserFullName: req.FullName,
		Action:       req.Action,
		Details:      req.Details,
		Status:       req.Status,
		ErrorMessage: req.Error,
	}
	if err := h.activity.Insert(r.Context(), rec); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// FixStatus backfills the status field on legacy records that predate it.
func (h *ActivityHandler) FixStatus(w http.ResponseWriter, r *http.Request) {
	updated, err := h.activity.BackfillStatus(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Status backfill complete",
		"updated": updated,
	})
}
