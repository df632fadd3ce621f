package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"enrolldesk-backend/internal/models"
	"enrolldesk-backend/internal/moodle"
)

// fakeMoodle records every web-service call and dispatches to a per-function
// responder. Unhandled functions answer with an empty array.
type fakeMoodle struct {
	t        *testing.T
	calls    []string
	forms    []url.Values
	handlers map[string]func(form url.Values, w http.ResponseWriter)
}

func newFakeMoodle(t *testing.T) (*fakeMoodle, *moodle.Client) {
	t.Helper()
	f := &fakeMoodle{t: t, handlers: map[string]func(url.Values, http.ResponseWriter){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		fn := r.URL.Query().Get("wsfunction")
		f.calls = append(f.calls, fn)
		f.forms = append(f.forms, r.PostForm)
		if h, ok := f.handlers[fn]; ok {
			h(r.PostForm, w)
			return
		}
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	return f, moodle.NewClient(srv.URL, "testtoken")
}

func (f *fakeMoodle) on(function string, h func(form url.Values, w http.ResponseWriter)) {
	f.handlers[function] = h
}

func (f *fakeMoodle) countCalls(function string) int {
	n := 0
	for _, c := range f.calls {
		if c == function {
			n++
		}
	}
	return n
}

func (f *fakeMoodle) lastForm(function string) url.Values {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i] == function {
			return f.forms[i]
		}
	}
	return nil
}

type fakeActivityStore struct {
	records []models.ActivityRecord
}

func (f *fakeActivityStore) Insert(ctx context.Context, rec *models.ActivityRecord) error {
	f.records = append(f.records, *rec)
	return nil
}

type fakeSuspensionStore struct {
	upserts []struct {
		UserID, CourseID int
		Suspended        bool
		By, Reason       string
	}
	deletes []struct{ UserID, CourseID int }
}

func (f *fakeSuspensionStore) Upsert(ctx context.Context, userID, courseID int, suspended bool, by, reason string) error {
	f.upserts = append(f.upserts, struct {
		UserID, CourseID int
		Suspended        bool
		By, Reason       string
	}{userID, courseID, suspended, by, reason})
	return nil
}

func (f *fakeSuspensionStore) Delete(ctx context.Context, userID, courseID int) error {
	f.deletes = append(f.deletes, struct{ UserID, CourseID int }{userID, courseID})
	return nil
}

func newStudentService(t *testing.T) (*StudentService, *fakeMoodle, *fakeActivityStore, *fakeSuspensionStore) {
	t.Helper()
	fake, client := newFakeMoodle(t)
	activity := &fakeActivityStore{}
	suspensions := &fakeSuspensionStore{}
	searcher := moodle.NewSearcher(client, 100, 50)
	svc := NewStudentService(client, searcher, activity, suspensions, 5)
	return svc, fake, activity, suspensions
}

func validCreateRequest() models.CreateStudentRequest {
	return models.CreateStudentRequest{
		Username:  "john.doe",
		Password:  "Str0ngPass!",
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
	}
}

func TestCreateStudent_ValidationFailsBeforeAnyCall(t *testing.T) {
	svc, fake, _, _ := newStudentService(t)

	req := models.CreateStudentRequest{
		Username: "nodots",
		Password: "weak",
		Email:    "not-an-email",
	}

	_, err := svc.CreateStudent(context.Background(), req)
	vErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	for _, field := range []string{"username", "password", "email", "firstname", "lastname"} {
		if vErr.Fields[field] == "" {
			t.Errorf("Expected a message for field %q", field)
		}
	}
	if len(fake.calls) != 0 {
		t.Errorf("Expected no remote calls on validation failure, got %v", fake.calls)
	}
}

func TestCreateStudent_DuplicateUsernameConflicts(t *testing.T) {
	svc, fake, _, _ := newStudentService(t)

	fake.on(moodle.FnGetUsersByField, func(form url.Values, w http.ResponseWriter) {
		if form.Get("field") == "username" {
			w.Write([]byte(`[{"id":9,"username":"john.doe","firstname":"Johann","lastname":"Doe","email":"other@example.com"}]`))
			return
		}
		w.Write([]byte(`[]`))
	})
	fake.on(moodle.FnGetUsers, func(form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`{"users":[]}`))
	})

	_, err := svc.CreateStudent(context.Background(), validCreateRequest())
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("Expected *ConflictError, got %v", err)
	}
	if fake.countCalls(moodle.FnCreateUsers) != 0 {
		t.Error("Expected no create call after a duplicate hit")
	}
}

func TestCreateStudent_RetriesWithFlatEncoding(t *testing.T) {
	svc, fake, activity, _ := newStudentService(t)

	fake.on(moodle.FnGetUsers, func(form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`{"users":[]}`))
	})

	created := 0
	fake.on(moodle.FnCreateUsers, func(form url.Values, w http.ResponseWriter) {
		created++
		if created == 1 {
			if form.Get("users[0][username]") == "" {
				t.Error("Expected structured encoding on the first attempt")
			}
			w.Write([]byte(`{"exception":"invalid_parameter_exception","errorcode":"invalidparameter","message":"Invalid parameter"}`))
			return
		}
		if form.Get("username") != "john.doe" {
			t.Error("Expected flat encoding on the retry")
		}
		w.Write([]byte(`[{"id":101,"username":"john.doe"}]`))
	})

	user, err := svc.CreateStudent(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("CreateStudent failed: %v", err)
	}
	if user.ID != 101 {
		t.Errorf("Expected created id 101, got %d", user.ID)
	}
	if created != 2 {
		t.Errorf("Expected exactly two create attempts, got %d", created)
	}

	if len(activity.records) != 1 {
		t.Fatalf("Expected one activity record, got %d", len(activity.records))
	}
	rec := activity.records[0]
	if rec.Action != models.ActionCreateStudent || rec.Status != models.StatusSuccess {
		t.Errorf("Expected successful create record, got %s/%s", rec.Action, rec.Status)
	}
	if rec.Details["password"] != "Str0ngPass!" {
		t.Error("Expected generated credentials stored in the activity details")
	}
}

func TestEnrollStudent_UnknownUsernameMakesNoEnrolCall(t *testing.T) {
	svc, fake, _, _ := newStudentService(t)

	_, err := svc.EnrollStudent(context.Background(), models.EnrollRequest{
		Username: "ghost.user",
		CourseID: "12",
	})
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Expected *NotFoundError, got %v", err)
	}
	if fake.countCalls(moodle.FnEnrolUsers) != 0 {
		t.Error("Expected no enrol call for an unknown username")
	}
}

func TestEnrollStudent_EnrollsActive(t *testing.T) {
	svc, fake, activity, _ := newStudentService(t)

	fake.on(moodle.FnGetUsersByField, func(form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`[{"id":42,"username":"john.doe","firstname":"John","lastname":"Doe","email":"john.doe@example.com"}]`))
	})
	fake.on(moodle.FnEnrolUsers, func(form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`null`))
	})

	user, err := svc.EnrollStudent(context.Background(), models.EnrollRequest{
		Username: "john.doe",
		CourseID: "12",
	})
	if err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}
	if user.ID != 42 {
		t.Errorf("Expected resolved user 42, got %d", user.ID)
	}

	form := fake.lastForm(moodle.FnEnrolUsers)
	if form.Get("enrolments[0][suspend]") != "0" {
		t.Errorf("Expected suspend=0 on enrollment, got %q", form.Get("enrolments[0][suspend]"))
	}
	if form.Get("enrolments[0][roleid]") != "5" {
		t.Errorf("Expected default role 5, got %q", form.Get("enrolments[0][roleid]"))
	}
	if form.Get("enrolments[0][courseid]") != "12" {
		t.Errorf("Expected courseid 12, got %q", form.Get("enrolments[0][courseid]"))
	}

	if len(activity.records) != 1 || activity.records[0].Action != models.ActionEnrollStudent {
		t.Fatalf("Expected one enroll activity record, got %+v", activity.records)
	}
}

func TestEnrollStudent_BadCourseID(t *testing.T) {
	svc, fake, _, _ := newStudentService(t)

	_, err := svc.EnrollStudent(context.Background(), models.EnrollRequest{
		Username: "john.doe",
		CourseID: "abc",
	})
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("Expected no remote calls for a bad course id, got %v", fake.calls)
	}
}

func TestToggleCourseSuspension_RecordsLocalStatus(t *testing.T) {
	svc, fake, _, suspensions := newStudentService(t)

	fake.on(moodle.FnEnrolUsers, func(form url.Values, w http.ResponseWriter) {
		if form.Get("enrolments[0][suspend]") != "1" {
			t.Errorf("Expected suspend=1, got %q", form.Get("enrolments[0][suspend]"))
		}
		w.Write([]byte(`null`))
	})

	err := svc.ToggleCourseSuspension(context.Background(), 12, 42, true, "admin@example.com", "Repeated absence")
	if err != nil {
		t.Fatalf("ToggleCourseSuspension failed: %v", err)
	}

	if len(suspensions.upserts) != 1 {
		t.Fatalf("Expected one suspension upsert, got %d", len(suspensions.upserts))
	}
	up := suspensions.upserts[0]
	if up.UserID != 42 || up.CourseID != 12 || !up.Suspended {
		t.Errorf("Unexpected upsert %+v", up)
	}
	if up.By != "admin@example.com" || up.Reason != "Repeated absence" {
		t.Errorf("Expected attribution recorded, got %+v", up)
	}
}

func TestToggleCourseSuspension_RemoteFailureSkipsLocalRecord(t *testing.T) {
	svc, fake, activity, suspensions := newStudentService(t)

	fake.on(moodle.FnEnrolUsers, func(form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`{"exception":"moodle_exception","errorcode":"error","message":"Cannot enrol"}`))
	})

	err := svc.ToggleCourseSuspension(context.Background(), 12, 42, true, "admin@example.com", "")
	if err == nil {
		t.Fatal("Expected error when both encodings fail")
	}
	if len(suspensions.upserts) != 0 {
		t.Error("Expected no local record when the remote update failed")
	}
	if len(activity.records) != 1 || activity.records[0].Status != models.StatusError {
		t.Errorf("Expected an error activity record, got %+v", activity.records)
	}
}

func TestRemoveFromCourse_DropsLocalStatus(t *testing.T) {
	svc, fake, _, suspensions := newStudentService(t)

	fake.on(moodle.FnUnenrolUsers, func(form url.Values, w http.ResponseWriter) {
		w.Write([]byte(``))
	})

	if err := svc.RemoveFromCourse(context.Background(), 12, 42); err != nil {
		t.Fatalf("RemoveFromCourse failed: %v", err)
	}

	if len(suspensions.deletes) != 1 {
		t.Fatalf("Expected one suspension delete, got %d", len(suspensions.deletes))
	}
	if suspensions.deletes[0].UserID != 42 || suspensions.deletes[0].CourseID != 12 {
		t.Errorf("Unexpected delete %+v", suspensions.deletes[0])
	}
}

func TestToggleGlobalSuspension_RetriesWithPaddedFields(t *testing.T) {
	svc, fake, _, _ := newStudentService(t)

	attempts := 0
	fake.on(moodle.FnUpdateUsers, func(form url.Values, w http.ResponseWriter) {
		attempts++
		if attempts == 1 {
			w.Write([]byte(`{"exception":"invalid_parameter_exception","errorcode":"invalidparameter","message":"Invalid parameter"}`))
			return
		}
		if form.Get("users[0][confirmed]") != "1" || form.Get("users[0][auth]") != "manual" {
			t.Error("Expected padded fields on the retry")
		}
		w.Write([]byte(`[]`))
	})

	if err := svc.ToggleGlobalSuspension(context.Background(), 42, true); err != nil {
		t.Fatalf("ToggleGlobalSuspension failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected two update attempts, got %d", attempts)
	}
}
