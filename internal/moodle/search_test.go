package moodle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
)

// userDirectory backs the fake server with a fixed population and answers
// core_user_get_users_by_field lookups against it.
func userDirectory(users []User) func(function string, form url.Values, w http.ResponseWriter) {
	return func(function string, form url.Values, w http.ResponseWriter) {
		if function != FnGetUsersByField {
			w.Write([]byte(`{"exception":"moodle_exception","errorcode":"invalidfunction","message":"Unknown function"}`))
			return
		}

		field := form.Get("field")
		wanted := map[string]bool{}
		for key, vals := range form {
			if strings.HasPrefix(key, "values[") {
				wanted[vals[0]] = true
			}
		}

		var out []User
		for _, u := range users {
			var v string
			switch field {
			case "id":
				v = strconv.Itoa(u.ID)
			case "email":
				v = u.Email
			case "username":
				v = u.Username
			}
			if wanted[v] {
				out = append(out, u)
			}
		}
		json.NewEncoder(w).Encode(out)
	}
}

func TestSearch_EmailTierShortCircuits(t *testing.T) {
	population := []User{
		{ID: 1, Username: "jane.roe", FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"},
	}

	var calls int
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		calls++
		userDirectory(population)(function, form, w)
	})
	s := NewSearcher(client, 100, 50)

	users, err := s.Search(context.Background(), "jane@example.com", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != 1 {
		t.Fatalf("Expected the email match, got %+v", users)
	}
	if calls != 1 {
		t.Errorf("Expected a single lookup for an email hit, got %d calls", calls)
	}
}

func TestSearch_FallsThroughToRangeScan(t *testing.T) {
	population := []User{
		{ID: 3, Username: "jane.roe", FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"},
		{ID: 7, Username: "john.doe", FirstName: "John", LastName: "Doe", Email: "john@example.com"},
	}

	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		userDirectory(population)(function, form, w)
	})
	s := NewSearcher(client, 10, 5)

	// "doe" matches no exact username or id, so only the scan can find it.
	users, err := s.Search(context.Background(), "doe", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != 7 {
		t.Fatalf("Expected range scan to find john.doe, got %+v", users)
	}
}

func TestRangeScan_StopsAtLimit(t *testing.T) {
	var population []User
	for i := 1; i <= 100; i++ {
		population = append(population, User{
			ID:        i,
			Username:  fmt.Sprintf("student%03d", i),
			FirstName: "Student",
			LastName:  strconv.Itoa(i),
			Email:     fmt.Sprintf("student%03d@example.com", i),
		})
	}

	var batches int
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		batches++
		userDirectory(population)(function, form, w)
	})
	s := NewSearcher(client, 100, 10)

	users, err := s.RangeScan(context.Background(), "student", 5)
	if err != nil {
		t.Fatalf("RangeScan failed: %v", err)
	}
	if len(users) != 5 {
		t.Fatalf("Expected exactly 5 matches, got %d", len(users))
	}
	if batches != 1 {
		t.Errorf("Expected scan to stop after the first batch, got %d batches", batches)
	}
}

func TestRangeScan_FailedBatchSkipped(t *testing.T) {
	population := []User{
		{ID: 15, Username: "jane.roe", FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"},
	}

	var batches int
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		batches++
		if batches == 1 {
			w.Write([]byte(`{"exception":"moodle_exception","errorcode":"dberror","message":"Database error"}`))
			return
		}
		userDirectory(population)(function, form, w)
	})
	s := NewSearcher(client, 20, 10)

	users, err := s.RangeScan(context.Background(), "jane", 10)
	if err != nil {
		t.Fatalf("RangeScan failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != 15 {
		t.Fatalf("Expected match from the surviving batch, got %+v", users)
	}
}

func TestResolveUsername_NotFound(t *testing.T) {
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		w.Write([]byte(`[]`))
	})
	s := NewSearcher(client, 100, 50)

	user, err := s.ResolveUsername(context.Background(), "ghost.user")
	if err != nil {
		t.Fatalf("ResolveUsername failed: %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil for an unknown username, got %+v", user)
	}
}

func TestFindDuplicatesByName_CrossFilter(t *testing.T) {
	client := newFakeServer(t, func(function string, form url.Values, w http.ResponseWriter) {
		if function != FnGetUsers {
			t.Errorf("Expected %s, got %s", FnGetUsers, function)
		}
		key := form.Get("criteria[0][key]")
		switch key {
		case "firstname":
			w.Write([]byte(`{"users":[
				{"id":1,"username":"jane.roe","firstname":"Jane","lastname":"Roe","email":"jane@example.com"},
				{"id":2,"username":"jane.smith","firstname":"Jane","lastname":"Smith","email":"js@example.com"}]}`))
		case "lastname":
			w.Write([]byte(`{"users":[
				{"id":1,"username":"jane.roe","firstname":"Jane","lastname":"Roe","email":"jane@example.com"},
				{"id":3,"username":"bob.roe","firstname":"Bob","lastname":"Roe","email":"bob@example.com"}]}`))
		default:
			t.Errorf("Unexpected criteria key %q", key)
		}
	})
	s := NewSearcher(client, 100, 50)

	users, err := s.FindDuplicatesByName(context.Background(), "Jane", "roe")
	if err != nil {
		t.Fatalf("FindDuplicatesByName failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != 1 {
		t.Fatalf("Expected only jane.roe after cross-filter and dedupe, got %+v", users)
	}
}

func TestMatchesTerm(t *testing.T) {
	u := User{ID: 1, Username: "jane.roe", FirstName: "Jane", LastName: "Roe", Email: "jane@example.com"}

	tests := []struct {
		needle string
		want   bool
	}{
		{"jane", true},
		{"ROE", false}, // needle is pre-lowered by the caller
		{"roe", true},
		{"jane roe", true},
		{"example.com", true},
		{"nobody", false},
		{"", true},
	}

	for _, tc := range tests {
		if got := matchesTerm(u, tc.needle); got != tc.want {
			t.Errorf("matchesTerm(%q) = %v, want %v", tc.needle, got, tc.want)
		}
	}
}
