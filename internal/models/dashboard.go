package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Sync job states persisted on the snapshot.
const (
	SyncPending    = "pending"
	SyncInProgress = "in_progress"
	SyncCompleted  = "completed"
	SyncError      = "error"
)

type SuspendedUser struct {
	ID       int    `json:"id" bson:"id"`
	Username string `json:"username" bson:"username"`
	FullName string `json:"full_name" bson:"full_name"`
	Email    string `json:"email" bson:"email"`
}

type MultiCourseUser struct {
	ID          int      `json:"id" bson:"id"`
	Username    string   `json:"username" bson:"username"`
	FullName    string   `json:"full_name" bson:"full_name"`
	Email       string   `json:"email" bson:"email"`
	CourseCount int      `json:"course_count" bson:"course_count"`
	Courses     []string `json:"courses" bson:"courses"`
}

type NeverAccessedUser struct {
	ID       int    `json:"id" bson:"id"`
	Username string `json:"username" bson:"username"`
	FullName string `json:"full_name" bson:"full_name"`
	Email    string `json:"email" bson:"email"`
}

type CourseSuspendedUser struct {
	UserID      int        `json:"user_id" bson:"user_id"`
	CourseID    int        `json:"course_id" bson:"course_id"`
	Username    string     `json:"username" bson:"username"`
	FullName    string     `json:"full_name" bson:"full_name"`
	CourseName  string     `json:"course_name" bson:"course_name"`
	SuspendedAt *time.Time `json:"suspended_at,omitempty" bson:"suspended_at,omitempty"`
	SuspendedBy string     `json:"suspended_by,omitempty" bson:"suspended_by,omitempty"`
	Reason      string     `json:"reason,omitempty" bson:"reason,omitempty"`
}

// DashboardSnapshot is the single latest aggregate produced by the sync job.
// The sync updates the most recent document in place or creates one if none
// exists; readers only ever look at the latest.
type DashboardSnapshot struct {
	ID                   bson.ObjectID         `json:"id" bson:"_id,omitempty"`
	GloballySuspended    []SuspendedUser       `json:"globally_suspended_users" bson:"globally_suspended_users"`
	MultiCourseUsers     []MultiCourseUser     `json:"users_with_multiple_courses" bson:"users_with_multiple_courses"`
	NeverAccessedUsers   []NeverAccessedUser   `json:"never_accessed_users" bson:"never_accessed_users"`
	CourseSuspendedUsers []CourseSuspendedUser `json:"course_suspended_users" bson:"course_suspended_users"`
	TotalUsers           int                   `json:"total_users" bson:"total_users"`
	TotalCourses         int                   `json:"total_courses" bson:"total_courses"`
	LastSync             *time.Time            `json:"last_sync" bson:"last_sync,omitempty"`
	SyncStatus           string                `json:"sync_status" bson:"sync_status"`
	SyncError            string                `json:"sync_error,omitempty" bson:"sync_error,omitempty"`
	CreatedAt            time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at" bson:"updated_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type SyncProgress struct {
	Step     int    `json:"step"`
	StepName string `json:"step_name"`
	Status   string `json:"status"`
}
