package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"enrolldesk-backend/internal/models"
	"enrolldesk-backend/internal/moodle"
)

// ActivityStore is the slice of the activity log the operations need.
type ActivityStore interface {
	Insert(ctx context.Context, rec *models.ActivityRecord) error
}

// SuspensionStore keeps the local per-(user,course) suspension trail.
type SuspensionStore interface {
	Upsert(ctx context.Context, userID, courseID int, suspended bool, by, reason string) error
	Delete(ctx context.Context, userID, courseID int) error
}

// StudentService performs user and enrollment operations against Moodle and
// records their outcome in the local activity log. Every remote mutation is
// retried exactly once with the alternate parameter encoding; that is a
// compatibility shim for inconsistent server behavior, not a resilience
// strategy.
type StudentService struct {
	client        *moodle.Client
	searcher      *moodle.Searcher
	activity      ActivityStore
	suspensions   SuspensionStore
	defaultRoleID int
}

func NewStudentService(client *moodle.Client, searcher *moodle.Searcher, activity ActivityStore, suspensions SuspensionStore, defaultRoleID int) *StudentService {
	if defaultRoleID <= 0 {
		defaultRoleID = 5
	}
	return &StudentService{
		client:        client,
		searcher:      searcher,
		activity:      activity,
		suspensions:   suspensions,
		defaultRoleID: defaultRoleID,
	}
}

// DuplicateMatches groups the results of the three pre-creation probes.
type DuplicateMatches struct {
	ByUsername []moodle.User `json:"by_username"`
	ByEmail    []moodle.User `json:"by_email"`
	ByName     []moodle.User `json:"by_name"`
}

func (d DuplicateMatches) Any() bool {
	return len(d.ByUsername) > 0 || len(d.ByEmail) > 0 || len(d.ByName) > 0
}

// CreateStudent validates, probes for duplicates, then creates the account.
// No compensating action exists: a later failure leaves earlier effects in
// place.
func (s *StudentService) CreateStudent(ctx context.Context, req models.CreateStudentRequest) (*moodle.User, error) {
	fieldErrors := make(map[string]string)

	if strings.TrimSpace(req.FirstName) == "" {
		fieldErrors["firstname"] = "First name is required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		fieldErrors["lastname"] = "Last name is required"
	}
	if err := ValidateUsername(req.Username); err != nil {
		fieldErrors["username"] = err.Error()
	}
	if err := ValidateEmail(req.Email); err != nil {
		fieldErrors["email"] = err.Error()
	}
	if err := ValidatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	dups, err := s.CheckDuplicates(ctx, models.DuplicateCheckRequest{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return nil, err
	}
	if len(dups.ByUsername) > 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("Username %s is already taken by %s", req.Username, dups.ByUsername[0].FullName())}
	}
	if len(dups.ByEmail) > 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("Email %s already belongs to %s", req.Email, dups.ByEmail[0].Username)}
	}
	if len(dups.ByName) > 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("A student named %s %s already exists: %s", req.FirstName, req.LastName, describeAccounts(dups.ByName))}
	}

	params := moodle.Params{
		"users": []map[string]interface{}{{
			"username":  req.Username,
			"password":  req.Password,
			"firstname": req.FirstName,
			"lastname":  req.LastName,
			"email":     req.Email,
			"auth":      "manual",
		}},
	}

	data, err := s.client.Call(ctx, moodle.FnCreateUsers, params)
	if err != nil {
		// Compatibility fallback: required fields only, flat encoding.
		reduced := moodle.Params{
			"users": []map[string]interface{}{{
				"username":  req.Username,
				"password":  req.Password,
				"firstname": req.FirstName,
				"lastname":  req.LastName,
				"email":     req.Email,
			}},
		}
		data, err = s.client.CallEncoded(ctx, moodle.FnCreateUsers, reduced, moodle.EncodeFlat)
	}
	if err != nil {
		s.logActivity(ctx, "", req.Username, req.FirstName+" "+req.LastName, models.ActionCreateStudent, map[string]interface{}{
			"username": req.Username,
			"email":    req.Email,
		}, err)
		return nil, err
	}

	var created []struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &created); err != nil || len(created) == 0 {
		remoteErr := &moodle.RemoteError{Function: moodle.FnCreateUsers, Message: "create returned no user id"}
		s.logActivity(ctx, "", req.Username, req.FirstName+" "+req.LastName, models.ActionCreateStudent, nil, remoteErr)
		return nil, remoteErr
	}

	user := &moodle.User{
		ID:        created[0].ID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}

	// The generated credentials are embedded in the log details on purpose:
	// Moodle never exposes passwords after creation, and the log doubles as
	// the "last known credentials" lookup.
	s.logActivity(ctx, strconv.Itoa(user.ID), req.Username, user.FullName(), models.ActionCreateStudent, map[string]interface{}{
		"username":  req.Username,
		"password":  req.Password,
		"firstname": req.FirstName,
		"lastname":  req.LastName,
		"email":     req.Email,
	}, nil)

	return user, nil
}

// CheckDuplicates runs the three probes without creating anything.
func (s *StudentService) CheckDuplicates(ctx context.Context, req models.DuplicateCheckRequest) (*DuplicateMatches, error) {
	matches := &DuplicateMatches{}

	if req.Username != "" {
		users, err := s.searcher.FindByUsername(ctx, req.Username)
		if err != nil {
			return nil, err
		}
		matches.ByUsername = users
	}

	if req.Email != "" {
		users, err := s.searcher.FindByEmail(ctx, req.Email)
		if err != nil {
			return nil, err
		}
		matches.ByEmail = users
	}

	if req.FirstName != "" && req.LastName != "" {
		users, err := s.searcher.FindDuplicatesByName(ctx, req.FirstName, req.LastName)
		if err != nil {
			return nil, err
		}
		matches.ByName = users
	}

	return matches, nil
}

// EnrollStudent resolves the username and enrolls the account with suspend=0.
// An unresolvable username aborts before any enrollment call is issued.
func (s *StudentService) EnrollStudent(ctx context.Context, req models.EnrollRequest) (*moodle.User, error) {
	courseID, err := strconv.Atoi(strings.TrimSpace(req.CourseID))
	if err != nil || courseID <= 0 {
		return nil, &ValidationError{Fields: map[string]string{"course_id": "Course id must be numeric"}}
	}

	roleID := req.RoleID
	if roleID <= 0 {
		roleID = s.defaultRoleID
	}

	user, err := s.searcher.ResolveUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &NotFoundError{Message: fmt.Sprintf("Student %s was not found in Moodle", req.Username)}
	}

	params := moodle.Params{
		"enrolments": []map[string]interface{}{{
			"roleid":    roleID,
			"userid":    user.ID,
			"courseid":  courseID,
			"timestart": time.Now().Unix(),
			"timeend":   0,
			"suspend":   0,
		}},
	}

	_, err = s.client.Call(ctx, moodle.FnEnrolUsers, params)
	if err != nil {
		_, err = s.client.CallEncoded(ctx, moodle.FnEnrolUsers, params, moodle.EncodeFlat)
	}

	s.logActivity(ctx, strconv.Itoa(user.ID), user.Username, user.FullName(), models.ActionEnrollStudent, map[string]interface{}{
		"course_id": courseID,
		"role_id":   roleID,
	}, err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ToggleGlobalSuspension flips the account-wide suspended flag. Course
// enrollments are untouched.
func (s *StudentService) ToggleGlobalSuspension(ctx context.Context, userID int, suspend bool) error {
	flag := 0
	if suspend {
		flag = 1
	}

	params := moodle.Params{
		"users": []map[string]interface{}{{
			"id":        userID,
			"suspended": flag,
		}},
	}

	_, err := s.client.Call(ctx, moodle.FnUpdateUsers, params)
	if err != nil {
		// Some servers reject partial updates; retry with the fields they
		// insist on.
		padded := moodle.Params{
			"users": []map[string]interface{}{{
				"id":        userID,
				"suspended": flag,
				"confirmed": 1,
				"auth":      "manual",
			}},
		}
		_, err = s.client.Call(ctx, moodle.FnUpdateUsers, padded)
	}

	s.logActivity(ctx, strconv.Itoa(userID), "", "", models.ActionUpdateStudent, map[string]interface{}{
		"suspended": suspend,
		"scope":     "global",
	}, err)
	return err
}

// ToggleCourseSuspension suspends or reactivates one enrollment by re-issuing
// the enrol call with a flipped suspend flag (Moodle has no separate "update
// enrollment" primitive), then records the transition locally for the audit
// trail Moodle does not keep.
func (s *StudentService) ToggleCourseSuspension(ctx context.Context, courseID, userID int, suspend bool, by, reason string) error {
	flag := 0
	if suspend {
		flag = 1
	}

	params := moodle.Params{
		"enrolments": []map[string]interface{}{{
			"roleid":   s.defaultRoleID,
			"userid":   userID,
			"courseid": courseID,
			"suspend":  flag,
		}},
	}

	_, err := s.client.Call(ctx, moodle.FnEnrolUsers, params)
	if err != nil {
		_, err = s.client.CallEncoded(ctx, moodle.FnEnrolUsers, params, moodle.EncodeFlat)
	}
	if err != nil {
		s.logActivity(ctx, strconv.Itoa(userID), "", "", models.ActionUpdateStudent, map[string]interface{}{
			"course_id": courseID,
			"suspended": suspend,
			"scope":     "course",
		}, err)
		return err
	}

	if upErr := s.suspensions.Upsert(ctx, userID, courseID, suspend, by, reason); upErr != nil {
		log.Printf("failed to record suspension status for user %d course %d: %v", userID, courseID, upErr)
	}

	s.logActivity(ctx, strconv.Itoa(userID), "", "", models.ActionUpdateStudent, map[string]interface{}{
		"course_id": courseID,
		"suspended": suspend,
		"scope":     "course",
		"reason":    reason,
	}, nil)
	return nil
}

// RemoveFromCourse unenrolls the account. Destructive: the enrollment
// relation is erased, unlike suspension which preserves it.
func (s *StudentService) RemoveFromCourse(ctx context.Context, courseID, userID int) error {
	params := moodle.Params{
		"enrolments": []map[string]interface{}{{
			"userid":   userID,
			"courseid": courseID,
		}},
	}

	_, err := s.client.Call(ctx, moodle.FnUnenrolUsers, params)
	if err != nil {
		_, err = s.client.CallEncoded(ctx, moodle.FnUnenrolUsers, params, moodle.EncodeFlat)
	}

	s.logActivity(ctx, strconv.Itoa(userID), "", "", models.ActionUnenrollStudent, map[string]interface{}{
		"course_id": courseID,
	}, err)
	if err != nil {
		return err
	}

	// The enrollment is gone; its suspension record has nothing to describe.
	if delErr := s.suspensions.Delete(ctx, userID, courseID); delErr != nil {
		log.Printf("failed to drop suspension status for user %d course %d: %v", userID, courseID, delErr)
	}
	return nil
}

// SearchStudents is the search facade used by the HTTP layer.
func (s *StudentService) SearchStudents(ctx context.Context, term string, limit int) ([]moodle.User, error) {
	return s.searcher.Search(ctx, term, limit)
}

// ListStudents walks the id space up to limit entries. There is no reliable
// "list all users" function on this server, so listing is a capped scan.
func (s *StudentService) ListStudents(ctx context.Context, limit int) ([]moodle.User, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.searcher.RangeScan(ctx, "", limit)
}

func (s *StudentService) logActivity(ctx context.Context, userID, username, fullName, action string, details map[string]interface{}, outcome error) {
	rec := &models.ActivityRecord{
		UserID:       userID,
		UserUsername: username,
		UserFullName: strings.TrimSpace(fullName),
		Action:       action,
		Details:      details,
		Status:       models.StatusSuccess,
	}
	if outcome != nil {
		rec.Status = models.StatusError
		rec.ErrorMessage = outcome.Error()
	}
	if op, ok := OperatorFrom(ctx); ok {
		if rec.Details == nil {
			rec.Details = map[string]interface{}{}
		}
		rec.Details["performed_by"] = op.Email
	}

	if err := s.activity.Insert(ctx, rec); err != nil {
		log.Printf("failed to record %s activity: %v", action, err)
	}
}

func describeAccounts(users []moodle.User) string {
	parts := make([]string, 0, len(users))
	for _, u := range users {
		parts = append(parts, fmt.Sprintf("%s (%s)", u.FullName(), u.Username))
	}
	return strings.Join(parts, ", ")
}
