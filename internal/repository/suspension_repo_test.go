package repository

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestBuildSuspensionUpdate_Suspend(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	update := buildSuspensionUpdate(42, 12, true, "admin@example.com", "Repeated absence", now)

	set := update["$set"].(bson.M)
	unset := update["$unset"].(bson.M)

	if set["user_id"] != 42 || set["course_id"] != 12 {
		t.Errorf("Expected identity fields in $set, got %v", set)
	}
	if set["suspended"] != true {
		t.Errorf("Expected suspended=true, got %v", set["suspended"])
	}
	if set["suspended_at"] != now || set["suspended_by"] != "admin@example.com" {
		t.Errorf("Expected suspended pair set, got %v", set)
	}
	if set["reason"] != "Repeated absence" {
		t.Errorf("Expected reason set, got %v", set["reason"])
	}
	if _, ok := unset["reactivated_at"]; !ok {
		t.Error("Expected reactivated_at in $unset")
	}
	if _, ok := unset["reactivated_by"]; !ok {
		t.Error("Expected reactivated_by in $unset")
	}
}

func TestBuildSuspensionUpdate_Reactivate(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	update := buildSuspensionUpdate(42, 12, false, "admin@example.com", "", now)

	set := update["$set"].(bson.M)
	unset := update["$unset"].(bson.M)

	if set["suspended"] != false {
		t.Errorf("Expected suspended=false, got %v", set["suspended"])
	}
	if set["reactivated_at"] != now || set["reactivated_by"] != "admin@example.com" {
		t.Errorf("Expected reactivated pair set, got %v", set)
	}
	if _, ok := unset["suspended_at"]; !ok {
		t.Error("Expected suspended_at in $unset")
	}
	if _, ok := unset["suspended_by"]; !ok {
		t.Error("Expected suspended_by in $unset")
	}
}

// A field must never appear on both sides of the same update, regardless of
// direction; applying the same transition twice then just rewrites the same
// pair.
func TestBuildSuspensionUpdate_SidesDisjoint(t *testing.T) {
	now := time.Now().UTC()
	for _, suspended := range []bool{true, false} {
		update := buildSuspensionUpdate(1, 2, suspended, "x@example.com", "r", now)
		set := update["$set"].(bson.M)
		unset := update["$unset"].(bson.M)
		for field := range unset {
			if _, ok := set[field]; ok {
				t.Errorf("suspended=%v: field %q in both $set and $unset", suspended, field)
			}
		}
	}
}
