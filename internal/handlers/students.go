package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"enrolldesk-backend/internal/middleware"
	"enrolldesk-backend/internal/models"
	"enrolldesk-backend/internal/repository"
	"enrolldesk-backend/internal/services"
)

type StudentHandler struct {
	students    *services.StudentService
	activity    *repository.ActivityRepo
	users       *repository.UserRepo
	searchLimit int
}

func NewStudentHandler(students *services.StudentService, activity *repository.ActivityRepo, users *repository.UserRepo, searchLimit int) *StudentHandler {
	return &StudentHandler{students: students, activity: activity, users: users, searchLimit: searchLimit}
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.students.ListStudents(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"students": users,
		"total":    len(users),
	})
}

func (h *StudentHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Query parameter q is required", r))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = h.searchLimit
	}

	users, err := h.students.SearchStudents(r.Context(), term, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"students": users,
		"total":    len(users),
	})
}

func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	r, _ = stampOperator(r, h.users)

	user, err := h.students.CreateStudent(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *StudentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req models.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	r, _ = stampOperator(r, h.users)

	user, err := h.students.EnrollStudent(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Student enrolled successfully",
		"student": user,
	})
}

func (h *StudentHandler) ToggleSuspension(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return
	}

	var req models.SuspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	r, _ = stampOperator(r, h.users)

	if err := h.students.ToggleGlobalSuspension(r.Context(), userID, req.Suspend); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Suspension status updated",
		"user_id":   userID,
		"suspended": req.Suspend,
	})
}

func (h *StudentHandler) CheckDuplicates(w http.ResponseWriter, r *http.Request) {
	var req models.DuplicateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	matches, err := h.students.CheckDuplicates(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"has_duplicates": matches.Any(),
		"by_username":    matches.ByUsername,
		"by_email":       matches.ByEmail,
		"by_name":        matches.ByName,
	})
}

// Credentials returns the password recorded when an account was created
// through this service. Accounts created elsewhere have no stored credentials.
func (h *StudentHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	rec, err := h.activity.LatestCreateByUsername(r.Context(), username)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No stored credentials for this student", r))
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	password, _ := rec.Details["password"].(string)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"username":   username,
		"password":   password,
		"created_at": rec.CreatedAt,
	})
}

// operatorSource resolves an authenticated user id to an account.
type operatorSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// stampOperator resolves the authenticated operator and returns a request
// whose context carries the identity, so the service layer can attribute
// activity records. The request comes back unchanged when no operator can be
// resolved.
func stampOperator(r *http.Request, users operatorSource) (*http.Request, services.Operator) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return r, services.Operator{}
	}
	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		return r, services.Operator{}
	}
	op := services.Operator{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
	}
	return r.WithContext(services.WithOperator(r.Context(), op)), op
}
