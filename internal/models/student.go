package models

type CreateStudentRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

type EnrollRequest struct {
	Username string `json:"username"`
	CourseID string `json:"course_id"`
	RoleID   int    `json:"role_id,omitempty"`
}

type SuspendRequest struct {
	Suspend bool   `json:"suspend"`
	Reason  string `json:"reason,omitempty"`
}

type DuplicateCheckRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}
