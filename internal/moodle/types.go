package moodle

import "strings"

// User is a Moodle account as returned by the user lookup functions.
// Suspended is tri-state on the wire: present-and-boolean, or absent
// (treated as not suspended).
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstname"`
	LastName   string `json:"lastname"`
	Email      string `json:"email"`
	Suspended  *bool  `json:"suspended,omitempty"`
	LastAccess *int64 `json:"lastaccess,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsSuspended() bool {
	return u.Suspended != nil && *u.Suspended
}

// NeverAccessed reports whether the account has no recorded login.
func (u User) NeverAccessed() bool {
	return u.LastAccess == nil || *u.LastAccess == 0
}

// Course is read-only from this system's perspective.
type Course struct {
	ID         int    `json:"id"`
	FullName   string `json:"fullname"`
	ShortName  string `json:"shortname"`
	CategoryID int    `json:"categoryid"`
}

// Criterion is one key/value pair for core_user_get_users.
type Criterion struct {
	Key   string
	Value string
}
