package moodle

import (
	"context"
	"encoding/json"
	"strconv"
)

// Web-service function names consumed by this tool.
const (
	FnCreateUsers     = "core_user_create_users"
	FnUpdateUsers     = "core_user_update_users"
	FnGetUsersByField = "core_user_get_users_by_field"
	FnGetUsers        = "core_user_get_users"
	FnEnrolUsers      = "enrol_manual_enrol_users"
	FnUnenrolUsers    = "enrol_manual_unenrol_users"
)

// Ordered alternates tried until one returns a non-empty result. Older
// deployments only expose the legacy names.
var enrolledUsersFunctions = []string{
	"core_enrol_get_enrolled_users",
	"moodle_enrol_get_enrolled_users",
	"core_course_get_enrolled_users",
}

var courseListFunctions = []string{
	"core_course_get_courses",
	"moodle_course_get_courses",
}

// GetUsersByField performs an exact-match lookup. Moodle returns a bare array
// for this function.
func (c *Client) GetUsersByField(ctx context.Context, field string, values []string) ([]User, error) {
	data, err := c.Call(ctx, FnGetUsersByField, Params{
		"field":  field,
		"values": values,
	})
	if err != nil {
		return nil, err
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, &RemoteError{Function: FnGetUsersByField, Message: "unexpected response shape"}
	}
	return users, nil
}

// GetUsers queries by criteria. The response is wrapped in {users, warnings}.
func (c *Client) GetUsers(ctx context.Context, criteria []Criterion) ([]User, error) {
	records := make([]map[string]interface{}, 0, len(criteria))
	for _, cr := range criteria {
		records = append(records, map[string]interface{}{
			"key":   cr.Key,
			"value": cr.Value,
		})
	}

	data, err := c.Call(ctx, FnGetUsers, Params{"criteria": records})
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, &RemoteError{Function: FnGetUsers, Message: "unexpected response shape"}
	}
	return wrapped.Users, nil
}

// GetCourses lists all courses, trying each known function name in order.
func (c *Client) GetCourses(ctx context.Context) ([]Course, error) {
	var lastErr error
	for _, fn := range courseListFunctions {
		data, err := c.Call(ctx, fn, Params{})
		if err != nil {
			lastErr = err
			continue
		}

		var courses []Course
		if err := json.Unmarshal(data, &courses); err != nil {
			lastErr = &RemoteError{Function: fn, Message: "unexpected response shape"}
			continue
		}
		if len(courses) > 0 {
			return courses, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// GetEnrolledUsers lists the students of one course, trying each known
// function name until one yields a non-empty result. All alternates failing
// means the course contributes zero students, not an error.
func (c *Client) GetEnrolledUsers(ctx context.Context, courseID int) ([]User, error) {
	var lastErr error
	for _, fn := range enrolledUsersFunctions {
		data, err := c.Call(ctx, fn, Params{"courseid": strconv.Itoa(courseID)})
		if err != nil {
			lastErr = err
			continue
		}

		var users []User
		if err := json.Unmarshal(data, &users); err != nil {
			lastErr = &RemoteError{Function: fn, Message: "unexpected response shape"}
			continue
		}
		if len(users) > 0 {
			return users, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}
