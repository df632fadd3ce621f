package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// SuspensionStatusRecord keeps the latest suspend/reactivate transition for a
// (user, course) pair. Moodle itself exposes no timestamps or attribution for
// enrollment suspension, so this is the only audit trail that exists.
type SuspensionStatusRecord struct {
	ID            bson.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        int           `json:"user_id" bson:"user_id"`
	CourseID      int           `json:"course_id" bson:"course_id"`
	Suspended     bool          `json:"suspended" bson:"suspended"`
	SuspendedAt   *time.Time    `json:"suspended_at,omitempty" bson:"suspended_at,omitempty"`
	SuspendedBy   string        `json:"suspended_by,omitempty" bson:"suspended_by,omitempty"`
	ReactivatedAt *time.Time    `json:"reactivated_at,omitempty" bson:"reactivated_at,omitempty"`
	ReactivatedBy string        `json:"reactivated_by,omitempty" bson:"reactivated_by,omitempty"`
	Reason        string        `json:"reason,omitempty" bson:"reason,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}
