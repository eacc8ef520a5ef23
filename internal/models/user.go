package models

import "time"

// UserType is the role a user holds. It drives both access policy and the maximum
// reservation length.
type UserType string

const (
	UserTypeAdmin         UserType = "ADMIN"
	UserTypeFaculty       UserType = "FACULTY"
	UserTypePostgraduate  UserType = "POSTGRADUATE"
	UserTypeUndergraduate UserType = "UNDERGRADUATE"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAdmin, UserTypeFaculty, UserTypePostgraduate, UserTypeUndergraduate:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	UserNo       string     `db:"user_no" json:"user_no"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	UserType     UserType   `db:"user_type" json:"user_type"`
	DepartmentID *int64     `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	DateJoined   time.Time  `db:"date_joined" json:"date_joined"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdmin is a shorthand used by handlers and services.
func (u *User) IsAdmin() bool {
	return u != nil && u.UserType == UserTypeAdmin
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	UserType     *UserType
	DepartmentID *int64
	Active       *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// UserTypeInfo is the reference row for a user type.
type UserTypeInfo struct {
	ID   int64    `db:"id" json:"id"`
	Name UserType `db:"name" json:"name"`
	// PossibleDuration is the longest reservation in hours; zero means unlimited.
	PossibleDuration int `db:"possible_duration" json:"possible_duration"`
}

// Department groups users.
type Department struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
