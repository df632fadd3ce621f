package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"enrolldesk-backend/internal/models"
	"enrolldesk-backend/internal/moodle"
	"enrolldesk-backend/internal/repository"
	"enrolldesk-backend/internal/services"
)

type CourseHandler struct {
	client      *moodle.Client
	students    *services.StudentService
	suspensions *repository.SuspensionRepo
	users       *repository.UserRepo
}

func NewCourseHandler(client *moodle.Client, students *services.StudentService, suspensions *repository.SuspensionRepo, users *repository.UserRepo) *CourseHandler {
	return &CourseHandler{client: client, students: students, suspensions: suspensions, users: users}
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.client.GetCourses(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		filtered := make([]moodle.Course, 0, len(courses))
		needle := strings.ToLower(q)
		for _, c := range courses {
			if strings.Contains(strings.ToLower(c.FullName), needle) ||
				strings.Contains(strings.ToLower(c.ShortName), needle) {
				filtered = append(filtered, c)
			}
		}
		courses = filtered
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"courses": courses,
		"total":   len(courses),
	})
}

func (h *CourseHandler) Detail(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	courses, err := h.client.GetCourses(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	for _, c := range courses {
		if c.ID == courseID {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Course not found", r))
}

// Students returns the course roster with per-course suspension state merged
// in from the local store.
func (h *CourseHandler) Students(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	enrolled, err := h.client.GetEnrolledUsers(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	records, err := h.suspensions.ListByCourse(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	suspended := make(map[int]*models.SuspensionStatusRecord, len(records))
	for i := range records {
		suspended[records[i].UserID] = &records[i]
	}

	type rosterEntry struct {
		moodle.User
		CourseSuspended bool   `json:"course_suspended"`
		SuspendedBy     string `json:"suspended_by,omitempty"`
		Reason          string `json:"reason,omitempty"`
	}

	roster := make([]rosterEntry, 0, len(enrolled))
	for _, u := range enrolled {
		entry := rosterEntry{User: u}
		if rec, ok := suspended[u.ID]; ok && rec.Suspended {
			entry.CourseSuspended = true
			entry.SuspendedBy = rec.SuspendedBy
			entry.Reason = rec.Reason
		}
		roster = append(roster, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"students": roster,
		"total":    len(roster),
	})
}

func (h *CourseHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return
	}

	r, _ = stampOperator(r, h.users)

	if err := h.students.RemoveFromCourse(r.Context(), courseID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Student removed from course",
		"user_id":   userID,
		"course_id": courseID,
	})
}

func (h *CourseHandler) ToggleSuspension(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
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

	r, op := stampOperator(r, h.users)

	if err := h.students.ToggleCourseSuspension(r.Context(), courseID, userID, req.Suspend, op.Email, req.Reason); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Course suspension updated",
		"user_id":   userID,
		"course_id": courseID,
		"suspended": req.Suspend,
	})
}

// StudentSuspension returns the recorded suspension state of one enrollment.
func (h *CourseHandler) StudentSuspension(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return
	}

	rec, err := h.suspensions.Get(r.Context(), userID, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		// No record means the enrollment was never suspended through here
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":   userID,
			"course_id": courseID,
			"suspended": false,
		})
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *CourseHandler) SuspensionStatus(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "courseID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	records, err := h.suspensions.ListByCourse(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"course_id": courseID,
		"statuses":  records,
		"total":     len(records),
	})
}
