package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Actions recorded in the activity log.
const (
	ActionCreateStudent   = "create_student"
	ActionEnrollStudent   = "enroll_student"
	ActionUpdateStudent   = "update_student"
	ActionDeleteStudent   = "delete_student"
	ActionUnenrollStudent = "unenroll_student"
)

// Activity outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

type ActivityRecord struct {
	ID           bson.ObjectID          `json:"id" bson:"_id,omitempty"`
	UserID       string                 `json:"user_id" bson:"user_id"`
	UserUsername string                 `json:"user_username" bson:"user_username"`
	UserFullName string                 `json:"user_full_name" bson:"user_full_name"`
	Action       string                 `json:"action" bson:"action"`
	Details      map[string]interface{} `json:"details" bson:"details"`
	Status       string                 `json:"status" bson:"status"`
	ErrorMessage string                 `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at" bson:"updated_at"`
}

type ActivityFilter struct {
	UserID  string
	Action  string
	Status  string
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

type ActivityAnalytics struct {
	Total    int64            `json:"total"`
	ByAction map[string]int64 `json:"by_action"`
	ByStatus map[string]int64 `json:"by_status"`
	ByDay    []DayCount       `json:"by_day"`
}

type DayCount struct {
	Day   string `json:"day" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}
