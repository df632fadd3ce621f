package moodle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// newFakeServer returns a client pointed at a handler that receives the
// parsed form body and the wsfunction name.
func newFakeServer(t *testing.T, handler func(function string, form url.Values, w http.ResponseWriter)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webservice/rest/server.php" {
			t.Errorf("Expected webservice path, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("wstoken") != "testtoken" {
			t.Errorf("Expected wstoken in query, got %q", r.URL.Query().Get("wstoken"))
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		handler(r.URL.Query().Get("wsfunction"), r.PostForm, w)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "testtoken")
}

func TestCall_ExceptionEnvelope(t *testing.T) {
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`))
	})

	_, err := client.Call(context.Background(), FnGetUsersByField, Params{"field": "id"})
	if err == nil {
		t.Fatal("Expected error for exception envelope, got nil")
	}
	remote, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("Expected *RemoteError, got %T", err)
	}
	if remote.Code != "invalidtoken" {
		t.Errorf("Expected errorcode 'invalidtoken', got %q", remote.Code)
	}
	if remote.Function != FnGetUsersByField {
		t.Errorf("Expected function %q, got %q", FnGetUsersByField, remote.Function)
	}
}

func TestNormalizeResponse_NullBody(t *testing.T) {
	tests := []struct {
		name     string
		function string
		body     string
		wantErr  bool
	}{
		{"null is success for enrol", FnEnrolUsers, "null", false},
		{"empty is success for unenrol", FnUnenrolUsers, "", false},
		{"empty object is success for enrol", FnEnrolUsers, "{}", false},
		{"empty object fails for unenrol", FnUnenrolUsers, "{}", true},
		{"null fails for lookups", FnGetUsersByField, "null", true},
		{"empty fails for create", FnCreateUsers, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizeResponse(tc.function, []byte(tc.body))
			if tc.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected success, got %v", err)
			}
		})
	}
}

func TestEncodeStructured_IndexedRecords(t *testing.T) {
	params := Params{
		"users": []map[string]interface{}{{
			"username":  "john.doe",
			"suspended": true,
			"id":        42,
		}},
	}

	v := EncodeStructured(params)

	if got := v.Get("users[0][username]"); got != "john.doe" {
		t.Errorf("Expected users[0][username]=john.doe, got %q", got)
	}
	if got := v.Get("users[0][suspended]"); got != "1" {
		t.Errorf("Expected booleans encoded as 1, got %q", got)
	}
	if got := v.Get("users[0][id]"); got != "42" {
		t.Errorf("Expected users[0][id]=42, got %q", got)
	}
}

func TestEncodeStructured_ScalarLists(t *testing.T) {
	v := EncodeStructured(Params{
		"field":  "id",
		"values": []string{"1", "2", "3"},
	})

	if got := v.Get("field"); got != "id" {
		t.Errorf("Expected field=id, got %q", got)
	}
	for i, want := range []string{"1", "2", "3"} {
		key := fmt.Sprintf("values[%d]", i)
		if got := v.Get(key); got != want {
			t.Errorf("Expected %s=%s, got %q", key, want, got)
		}
	}
}

func TestEncodeFlat_FirstRecordOnly(t *testing.T) {
	params := Params{
		"users": []map[string]interface{}{{
			"username": "john.doe",
			"email":    "john@example.com",
		}},
	}

	v := EncodeFlat(params)

	if got := v.Get("username"); got != "john.doe" {
		t.Errorf("Expected top-level username, got %q", got)
	}
	if got := v.Get("users[0][username]"); got != "" {
		t.Errorf("Expected no indexed keys in flat encoding, got %q", got)
	}
}

func TestGetEnrolledUsers_FallbackChain(t *testing.T) {
	var calls []string
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		calls = append(calls, function)
		switch function {
		case "core_enrol_get_enrolled_users":
			w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidfunction","message":"Unknown function"}`))
		case "moodle_enrol_get_enrolled_users":
			w.Write([]byte(`[{"id":7,"username":"jane.roe","firstname":"Jane","lastname":"Roe","email":"jane@example.com"}]`))
		default:
			t.Errorf("Unexpected function %q", function)
		}
	})

	users, err := client.GetEnrolledUsers(context.Background(), 12)
	if err != nil {
		t.Fatalf("GetEnrolledUsers failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != 7 {
		t.Fatalf("Expected one user with id 7, got %+v", users)
	}
	if len(calls) != 2 {
		t.Errorf("Expected fallback to stop at second function, got calls %v", calls)
	}
}

func TestGetEnrolledUsers_AllFail(t *testing.T) {
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidfunction","message":"Unknown function"}`))
	})

	_, err := client.GetEnrolledUsers(context.Background(), 12)
	if err == nil {
		t.Fatal("Expected error when every function fails, got nil")
	}
}
